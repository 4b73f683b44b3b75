package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	"zenoscript/pkg/fastjson"
)

// Recoverer turns a handler panic into a JSON 500. With detail set the panic
// value and stack are included in the body.
func Recoverer(detail bool) func(http.Handler) http.Handler {
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
				stack := string(debug.Stack())
				slog.Error("panic recovered",
					"error", rvr,
					"path", r.URL.Path,
					"method", r.Method,
					"stack", stack,
				)

				body := map[string]interface{}{
					"kind":    "panic",
					"message": "internal server error",
				}
				if detail {
					body["message"] = fmt.Sprintf("%v", rvr)
					body["stack"] = stack
				}
				WriteJSON(w, http.StatusInternalServerError, map[string]interface{}{
					"success": false,
					"error":   body,
				})
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// WriteJSON encodes v as the response body with the given status.
func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := fastjson.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to write response", "error", err)
	}
}
