package router

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/shandysiswandi/otpgate/internal/pkg/stacktrace"
)

// middlewareRecoverer turns a handler panic into a 500 JSON response and a
// single error log carrying the module-local stack frames.
func middlewareRecoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rvr := recover()
			if rvr == nil {
				return
			}
			//nolint:err113,errorlint // sentinel must propagate untouched
			if rvr == http.ErrAbortHandler {
				panic(rvr)
			}

			attrs := []any{
				"method", r.Method,
				"path", r.URL.Path,
				// set on the response by the correlation id middleware further in
				"correlation_id", w.Header().Get(HeaderCorrelationID),
				"panic", rvr,
			}

			stack := debug.Stack()
			if paths := stacktrace.InternalPaths(stack); len(paths) > 0 {
				attrs = append(attrs, "stack", paths)
			} else {
				attrs = append(attrs, "stack", string(stack))
			}

			slog.ErrorContext(r.Context(), "panic recovered in http handler", attrs...)

			writeJSON(w, errorResponse{Message: "Internal server error"}, http.StatusInternalServerError)
		}()

		next.ServeHTTP(w, r)
	})
}
