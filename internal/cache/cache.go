package cache

import (
	"context"
	"fmt"
)

// AnswerKey identifies one cached answer.
// Hash is sha256 of the normalized request text and target workspace.
type AnswerKey struct {
	Workspace string
	Hash      string
}

// String converts the structured key into the final string used in Redis/map.
func (k AnswerKey) String() string {
	// answer:<WORKSPACE>:<HASH_HEX>
	return fmt.Sprintf("answer:%s:%s", k.Workspace, k.Hash)
}

// AnswerCache is a bounded key -> answer store with LRU eviction.
// Implemented by memory cache (default) and Redis cache (shared).
// Implementations must be safe for concurrent use.
type AnswerCache interface {
	// Get returns the answer for key and refreshes its recency.
	Get(ctx context.Context, key string) (string, bool, error)
	// Set stores answer under key, overwriting any previous value and
	// evicting the least-recently-accessed entry when over capacity.
	Set(ctx context.Context, key string, answer string) error
	Len(ctx context.Context) (int, error)
	Clear(ctx context.Context) error
	Capacity() int
}
