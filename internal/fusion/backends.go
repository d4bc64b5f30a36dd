package fusion

import (
	"context"

	"syncai-fusion/internal/local"
	"syncai-fusion/internal/remote"
)

// RemoteBackend answers questions in a workspace and runs merge passes.
// remote.Client satisfies it.
type RemoteBackend interface {
	Chat(ctx context.Context, req *remote.ChatRequest) (*remote.ChatResponse, error)
}

// LocalBackend generates with the locally hosted model. *local.Client
// satisfies it.
type LocalBackend interface {
	Generate(ctx context.Context, prompt string, p local.Params) (string, error)
}

// optional capabilities used by Health
type (
	endpointReporter interface{ BaseURL() string }
	loadReporter     interface{ IsLoaded() bool }
	infoReporter     interface{ Info() local.Info }
)
