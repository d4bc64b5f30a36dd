package cache

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"syncai-fusion/internal/metrics"
)

// DefaultCapacity is used when a non-positive capacity is configured.
const DefaultCapacity = 1000

// MemoryAnswerCache is an in-process LRU of answers. Entries live for the
// process lifetime and leave only under capacity pressure or Clear.
type MemoryAnswerCache struct {
	items    *lru.Cache[string, string]
	capacity int
}

//create new in-memory cache
//if capacity is <= 0 DefaultCapacity is used

func NewMemoryAnswerCache(capacity int) (*MemoryAnswerCache, error) {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}

	items, err := lru.New[string, string](capacity)
	if err != nil {
		return nil, fmt.Errorf("cache: create lru: %w", err)
	}

	return &MemoryAnswerCache{
		items:    items,
		capacity: capacity,
	}, nil
}

// Get retrieves an answer and marks it most recently used.
func (c *MemoryAnswerCache) Get(_ context.Context, key string) (string, bool, error) {
	answer, ok := c.items.Get(key)
	return answer, ok, nil
}

// Set stores an answer; an existing key is overwritten in place.
func (c *MemoryAnswerCache) Set(_ context.Context, key string, answer string) error {
	if evicted := c.items.Add(key, answer); evicted {
		metrics.CacheEvictionsTotal.Inc()
	}
	return nil
}

// Len returns the number of items currently in the cache.
func (c *MemoryAnswerCache) Len(context.Context) (int, error) {
	return c.items.Len(), nil
}

// Clear removes all items from cache.
func (c *MemoryAnswerCache) Clear(context.Context) error {
	c.items.Purge()
	return nil
}

func (c *MemoryAnswerCache) Capacity() int {
	return c.capacity
}
