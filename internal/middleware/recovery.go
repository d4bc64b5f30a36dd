package middleware

import (
	"net/http"

	"go.uber.org/zap"

	"syncai-fusion/pkg/logging/logging"
)

// Recoverer turns a handler panic into a logged 500. http.ErrAbortHandler
// is passed through so net/http can abort the connection.
func Recoverer() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				switch rec {
				case nil:
					return
				case http.ErrAbortHandler:
					panic(rec)
				}

				logging.L(r.Context()).Error("handler panicked",
					zap.Any("panic", rec),
					zap.Stack("stack"),
				)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte(`{"error":"internal_server_error"}`))
			}()

			next.ServeHTTP(w, r)
		})
	}
}
