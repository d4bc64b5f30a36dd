package remote

import (
	"context"
	"errors"
	"strings"
)

// Chat modes understood by the workspace API.
const (
	ModeChat  = "chat"
	ModeQuery = "query"
)

type ChatRequest struct {
	Message   string `json:"message"`
	Workspace string `json:"workspace,omitempty"`
	Mode      string `json:"mode,omitempty"`
	// Raw keeps reasoning blocks in the answer for this call only.
	Raw bool `json:"-"`
}

func (r *ChatRequest) Validate() error {
	if strings.TrimSpace(r.Message) == "" {
		return errors.New("message is required")
	}
	if r.Mode != "" && r.Mode != ModeChat && r.Mode != ModeQuery {
		return errors.New("mode must be chat or query")
	}
	if strings.ContainsAny(r.Workspace, "/?# ") {
		return errors.New("workspace must be a slug")
	}
	return nil
}

type ChatResponse struct {
	ID        string   `json:"id,omitempty"`
	Workspace string   `json:"workspace"`
	Text      string   `json:"text"`
	Sources   []Source `json:"sources,omitempty"`
}

type Source struct {
	Title string `json:"title"`
	Text  string `json:"text,omitempty"`
}

type Workspace struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

type StreamChunk struct {
	Delta string `json:"delta"`
	Close bool   `json:"close,omitempty"`
}

type StreamResult struct {
	Chunk *StreamChunk
	Err   error
}

// Client talks to the remote workspace inference service.
type Client interface {
	Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error)
	StreamChat(ctx context.Context, req *ChatRequest) (<-chan StreamResult, error)
	EnsureWorkspace(ctx context.Context, roomCode, displayName string) (string, error)
	ListWorkspaces(ctx context.Context) ([]Workspace, error)
	TestConnection(ctx context.Context) bool
	BaseURL() string
	Close() error
}
