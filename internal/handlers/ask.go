package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"syncai-fusion/internal/fusion"
	"syncai-fusion/pkg/logging/logging"

	"go.uber.org/zap"
)

// Engine is the part of *fusion.Engine the HTTP surface needs.
type Engine interface {
	Process(ctx context.Context, req fusion.Request) string
	EnableFusion()
	DisableFusion()
	FusionEnabled() bool
	ClearCache(ctx context.Context) error
	ResetStats()
	Stats(ctx context.Context) fusion.Stats
	Health(ctx context.Context) fusion.Health
}

type askRequest struct {
	Text     string `json:"text"`
	Target   string `json:"target,omitempty"`
	TaskType string `json:"task_type,omitempty"`
}

type askResponse struct {
	Answer string `json:"answer"`
}

// AskHandler serves POST /v1/ask.
type AskHandler struct {
	Engine Engine
}

func NewAskHandler(engine Engine) *AskHandler {
	return &AskHandler{Engine: engine}
}

// Ask runs one question through the engine. Backend failures are already
// folded into the answer, so anything that decodes gets a 200.
func (h *AskHandler) Ask(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.L(ctx)
	start := time.Now()

	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		logger.Warn("invalid request", zap.Error(err))
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	taskType := fusion.ParseTaskType(req.TaskType)
	answer := h.Engine.Process(ctx, fusion.Request{
		Text:     req.Text,
		Target:   req.Target,
		TaskType: taskType,
	})

	logger.Info("ask_served",
		zap.String("task_type", string(taskType)),
		zap.String("target", req.Target),
		zap.Bool("apology", answer == fusion.Apology),
		zap.Duration("total_latency_ms", time.Since(start)),
	)

	writeJSON(w, http.StatusOK, askResponse{Answer: answer})
}
