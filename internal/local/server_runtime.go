package local

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"go.uber.org/zap"
)

// ServerRuntime runs models through a llama.cpp server on the loopback
// interface using its OpenAI-compatible API. The server is started with the
// model file; Load checks that it is up and serving that file.
type ServerRuntime struct {
	client openai.Client
	logger *zap.Logger
}

// NewServerRuntime points the runtime at baseURL (e.g. http://127.0.0.1:8080/v1).
func NewServerRuntime(baseURL, apiKey string, logger *zap.Logger) *ServerRuntime {
	if logger == nil {
		logger = zap.NewNop()
	}
	if apiKey == "" {
		// llama.cpp ignores the key unless started with --api-key
		apiKey = "local"
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}

	return &ServerRuntime{
		client: openai.NewClient(
			option.WithBaseURL(baseURL),
			option.WithAPIKey(apiKey),
			option.WithMaxRetries(0),
		),
		logger: logger,
	}
}

func (r *ServerRuntime) Load(ctx context.Context, path string) (Model, error) {
	page, err := r.client.Models.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("check inference server: %w", err)
	}

	want := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	id := ""
	for _, m := range page.Data {
		if strings.Contains(m.ID, want) {
			id = m.ID
			break
		}
	}
	switch {
	case id != "":
	case len(page.Data) > 0:
		// a single-model server may report an alias instead of the file name
		id = page.Data[0].ID
		r.logger.Warn("inference server model id does not match file",
			zap.String("file", path),
			zap.String("served", id),
		)
	default:
		return nil, errors.New("inference server reports no models")
	}

	r.logger.Info("inference server ready", zap.String("model", id))
	return &serverModel{client: r.client, id: id}, nil
}

type serverModel struct {
	client openai.Client
	id     string
}

func (m *serverModel) Generate(ctx context.Context, prompt string, p Params) (string, error) {
	completion, err := m.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(m.id),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		Temperature: openai.Float(p.Temperature),
		TopP:        openai.Float(p.TopP),
		MaxTokens:   openai.Int(int64(p.MaxTokens)),
	})
	if err != nil {
		return "", err
	}
	if len(completion.Choices) == 0 {
		return "", errors.New("inference server returned no choices")
	}
	return completion.Choices[0].Message.Content, nil
}

// Close is a no-op; the server process owns the weights.
func (m *serverModel) Close() error {
	return nil
}
