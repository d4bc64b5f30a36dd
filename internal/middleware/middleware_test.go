package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"syncai-fusion/pkg/logging/logging"
)

func TestTimeoutReturns504(t *testing.T) {
	t.Parallel()

	h := Timeout(20 * time.Millisecond)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("too late"))
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusGatewayTimeout {
		t.Fatalf("expected 504, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "too late") {
		t.Fatalf("late write leaked into response: %q", rec.Body.String())
	}
}

func TestTimeoutPassesThrough(t *testing.T) {
	t.Parallel()

	h := Timeout(time.Second)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Test", "yes")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte("done"))
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusCreated || rec.Body.String() != "done" || rec.Header().Get("X-Test") != "yes" {
		t.Fatalf("unexpected response: %d %q %v", rec.Code, rec.Body.String(), rec.Header())
	}
}

func TestMaxBodySize(t *testing.T) {
	t.Parallel()

	h := MaxBodySize(8)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := io.ReadAll(r.Body); err != nil {
			http.Error(w, err.Error(), http.StatusRequestEntityTooLarge)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("small")))
	if rec.Code != http.StatusOK {
		t.Fatalf("small body rejected: %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("this body is far too large")))
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", rec.Code)
	}
}

func TestRecovererAndLoggingContext(t *testing.T) {
	t.Parallel()

	var sawLogger bool
	h := LoggingContext(zaptest.NewLogger(t))(Recoverer()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawLogger = logging.L(r.Context()) != logging.DefaultLogger()
		panic("boom")
	})))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/ask", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if !sawLogger {
		t.Fatalf("request logger missing from context")
	}
}
