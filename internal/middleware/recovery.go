package middleware

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
)

// Recoverer is a middleware that recovers from panics, logs them with the
// stack and answers 500 in the API error shape. With showDetails the panic
// value is echoed in the message.
func Recoverer(logger *slog.Logger, showDetails bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rvr := recover()
				if rvr == nil {
					return
				}
				if rvr == http.ErrAbortHandler {
					panic(rvr)
				}

				logger.Error("panic recovered",
					slog.String("request_id", GetRequestID(r.Context())),
					slog.Any("panic", rvr),
					slog.String("stack", string(debug.Stack())),
				)

				message := "Internal server error"
				if showDetails {
					message = fmt.Sprint(rvr)
				}
				writeError(w, http.StatusInternalServerError, map[string]any{
					"success": false,
					"message": message,
				})
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// writeError writes a JSON error body from middleware, where the handler
// package's helpers are out of reach.
func writeError(w http.ResponseWriter, status int, body map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
