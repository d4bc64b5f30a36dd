package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"syncai-fusion/internal/fusion"
)

type fakeEngine struct {
	mu       sync.Mutex
	answer   string
	requests []fusion.Request
	fusion   bool
	cleared  int
	resets   int
	clearErr error
}

func (f *fakeEngine) Process(ctx context.Context, req fusion.Request) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	return f.answer
}

func (f *fakeEngine) EnableFusion()       { f.fusion = true }
func (f *fakeEngine) DisableFusion()      { f.fusion = false }
func (f *fakeEngine) FusionEnabled() bool { return f.fusion }
func (f *fakeEngine) ResetStats()         { f.resets++ }

func (f *fakeEngine) ClearCache(ctx context.Context) error {
	f.cleared++
	return f.clearErr
}

func (f *fakeEngine) Stats(ctx context.Context) fusion.Stats {
	return fusion.Stats{TotalRequests: 3, DualSuccess: 2, FallbackUsed: 1, FusionEnabled: f.fusion}
}

func (f *fakeEngine) Health(ctx context.Context) fusion.Health {
	return fusion.Health{Status: "healthy"}
}

func TestAskHandler(t *testing.T) {
	engine := &fakeEngine{answer: "merged answer"}
	h := NewAskHandler(engine)

	req := httptest.NewRequest(http.MethodPost, "/v1/ask",
		strings.NewReader(`{"text":"What is Go?","target":"room-1","task_type":"summary"}`))
	rr := httptest.NewRecorder()
	h.Ask(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("unexpected content type %q", ct)
	}

	var resp askResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Answer != "merged answer" {
		t.Fatalf("unexpected answer %q", resp.Answer)
	}

	if len(engine.requests) != 1 {
		t.Fatalf("expected 1 engine call, got %d", len(engine.requests))
	}
	got := engine.requests[0]
	if got.Text != "What is Go?" || got.Target != "room-1" || got.TaskType != fusion.TaskSummary {
		t.Fatalf("unexpected request %+v", got)
	}
}

func TestAskHandlerUnknownTaskTypeIsGeneral(t *testing.T) {
	engine := &fakeEngine{answer: "ok"}
	h := NewAskHandler(engine)

	rr := httptest.NewRecorder()
	h.Ask(rr, httptest.NewRequest(http.MethodPost, "/v1/ask", strings.NewReader(`{"text":"hi","task_type":"poetry"}`)))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if engine.requests[0].TaskType != fusion.TaskGeneral {
		t.Fatalf("expected general task, got %q", engine.requests[0].TaskType)
	}
}

func TestAskHandlerApologyIsStill200(t *testing.T) {
	engine := &fakeEngine{answer: fusion.Apology}
	h := NewAskHandler(engine)

	rr := httptest.NewRecorder()
	h.Ask(rr, httptest.NewRequest(http.MethodPost, "/v1/ask", strings.NewReader(`{"text":"hi"}`)))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "temporarily unavailable") {
		t.Fatalf("expected apology, got %s", rr.Body.String())
	}
}

func TestAskHandlerRejectsBadInput(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{name: "invalid json", body: `{"text":`, want: http.StatusBadRequest},
		{name: "blank text", body: `{"text":"   "}`, want: http.StatusBadRequest},
		{name: "missing text", body: `{}`, want: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := &fakeEngine{answer: "unused"}
			h := NewAskHandler(engine)

			rr := httptest.NewRecorder()
			h.Ask(rr, httptest.NewRequest(http.MethodPost, "/v1/ask", strings.NewReader(tt.body)))

			if rr.Code != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, rr.Code)
			}
			if len(engine.requests) != 0 {
				t.Fatalf("engine should not be called")
			}
		})
	}
}

func TestAskHandlerBodyTooLarge(t *testing.T) {
	engine := &fakeEngine{answer: "unused"}
	h := NewAskHandler(engine)

	req := httptest.NewRequest(http.MethodPost, "/v1/ask",
		strings.NewReader(`{"text":"`+strings.Repeat("x", 64)+`"}`))
	rr := httptest.NewRecorder()
	req.Body = http.MaxBytesReader(rr, req.Body, 16)
	h.Ask(rr, req)

	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", rr.Code)
	}
}

func TestAdminFusionToggle(t *testing.T) {
	engine := &fakeEngine{fusion: true}
	h := NewAdminHandler(engine)

	rr := httptest.NewRecorder()
	h.DisableFusion(rr, httptest.NewRequest(http.MethodPost, "/v1/admin/fusion/disable", nil))
	if rr.Code != http.StatusOK || strings.TrimSpace(rr.Body.String()) != `{"fusion_enabled":false}` {
		t.Fatalf("unexpected disable response %d %s", rr.Code, rr.Body.String())
	}

	rr = httptest.NewRecorder()
	h.EnableFusion(rr, httptest.NewRequest(http.MethodPost, "/v1/admin/fusion/enable", nil))
	if strings.TrimSpace(rr.Body.String()) != `{"fusion_enabled":true}` {
		t.Fatalf("unexpected enable response %s", rr.Body.String())
	}
}

func TestAdminCacheAndStats(t *testing.T) {
	engine := &fakeEngine{}
	h := NewAdminHandler(engine)

	rr := httptest.NewRecorder()
	h.ClearCache(rr, httptest.NewRequest(http.MethodPost, "/v1/admin/cache/clear", nil))
	if rr.Code != http.StatusOK || engine.cleared != 1 {
		t.Fatalf("cache clear: %d cleared=%d", rr.Code, engine.cleared)
	}

	engine.clearErr = errors.New("redis down")
	rr = httptest.NewRecorder()
	h.ClearCache(rr, httptest.NewRequest(http.MethodPost, "/v1/admin/cache/clear", nil))
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 on clear failure, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	h.ResetStats(rr, httptest.NewRequest(http.MethodPost, "/v1/admin/stats/reset", nil))
	if rr.Code != http.StatusOK || engine.resets != 1 {
		t.Fatalf("stats reset: %d resets=%d", rr.Code, engine.resets)
	}

	rr = httptest.NewRecorder()
	h.Stats(rr, httptest.NewRequest(http.MethodGet, "/v1/admin/stats", nil))
	var stats map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats["total_requests"] != float64(3) || stats["fallback_used"] != float64(1) {
		t.Fatalf("unexpected stats %v", stats)
	}
}

func TestAdminHealth(t *testing.T) {
	h := NewAdminHandler(&fakeEngine{})

	rr := httptest.NewRecorder()
	h.Health(rr, httptest.NewRequest(http.MethodGet, "/v1/admin/health", nil))

	var health fusion.Health
	if err := json.Unmarshal(rr.Body.Bytes(), &health); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if health.Status != "healthy" {
		t.Fatalf("unexpected status %q", health.Status)
	}
}
