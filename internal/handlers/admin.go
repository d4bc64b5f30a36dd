package handlers

import (
	"net/http"

	"syncai-fusion/pkg/logging/logging"

	"go.uber.org/zap"
)

type fusionState struct {
	FusionEnabled bool `json:"fusion_enabled"`
}

type statusResponse struct {
	Status string `json:"status"`
}

// AdminHandler serves the /v1/admin routes.
type AdminHandler struct {
	Engine Engine
}

func NewAdminHandler(engine Engine) *AdminHandler {
	return &AdminHandler{Engine: engine}
}

func (h *AdminHandler) EnableFusion(w http.ResponseWriter, r *http.Request) {
	h.Engine.EnableFusion()
	logging.L(r.Context()).Info("fusion enabled")
	writeJSON(w, http.StatusOK, fusionState{FusionEnabled: h.Engine.FusionEnabled()})
}

func (h *AdminHandler) DisableFusion(w http.ResponseWriter, r *http.Request) {
	h.Engine.DisableFusion()
	logging.L(r.Context()).Info("fusion disabled")
	writeJSON(w, http.StatusOK, fusionState{FusionEnabled: h.Engine.FusionEnabled()})
}

func (h *AdminHandler) ClearCache(w http.ResponseWriter, r *http.Request) {
	if err := h.Engine.ClearCache(r.Context()); err != nil {
		logging.L(r.Context()).Error("cache clear failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "cache clear failed")
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: "cleared"})
}

func (h *AdminHandler) ResetStats(w http.ResponseWriter, r *http.Request) {
	h.Engine.ResetStats()
	writeJSON(w, http.StatusOK, statusResponse{Status: "reset"})
}

func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Engine.Stats(r.Context()))
}

// Health never fails the request; a disabled engine is still reachable.
func (h *AdminHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Engine.Health(r.Context()))
}
