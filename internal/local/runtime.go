package local

import "context"

// Params are per-call sampling parameters. Zero fields take the client
// defaults.
type Params struct {
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p"`
	MaxTokens   int     `json:"max_tokens"`
}

// DefaultParams are used when the configuration sets none.
var DefaultParams = Params{
	Temperature: 0.7,
	TopP:        0.9,
	MaxTokens:   512,
}

func (p Params) withDefaults(def Params) Params {
	if p.Temperature <= 0 {
		p.Temperature = def.Temperature
	}
	if p.TopP <= 0 {
		p.TopP = def.TopP
	}
	if p.MaxTokens <= 0 {
		p.MaxTokens = def.MaxTokens
	}
	return p
}

// Runtime loads model files into something that can generate.
type Runtime interface {
	Load(ctx context.Context, path string) (Model, error)
}

// Model is a loaded model instance. Generate must be safe for concurrent use.
type Model interface {
	Generate(ctx context.Context, prompt string, p Params) (string, error)
	Close() error
}
