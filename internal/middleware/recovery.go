package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"runtime/debug"
)

// Recoverer turns a handler panic into a logged JSON 500. When printStack
// is set the stack also goes to stderr, which is easier to read locally.
func Recoverer(logger *slog.Logger, printStack bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := newStatusRecorder(w)
			defer func() {
				rvr := recover()
				if rvr == nil {
					return
				}
				if err, ok := rvr.(error); ok && errors.Is(err, http.ErrAbortHandler) {
					panic(rvr)
				}

				attrs := []any{
					slog.String("request_id", GetRequestID(r.Context())),
					slog.String("endpoint", r.Method+" "+r.URL.Path),
					slog.Any("panic", rvr),
					slog.String("stack", string(debug.Stack())),
				}
				if c := callerFromContext(r.Context()); c != nil {
					if userID, _, _ := c.get(); userID != "" {
						attrs = append(attrs, slog.String("user_id", userID))
					}
				}
				logger.Error("panic recovered", attrs...)
				if printStack {
					debug.PrintStack()
				}

				// Headers already went out; the client sees a truncated body.
				if rec.wroteHeader {
					return
				}
				writeJSONError(w, http.StatusInternalServerError, "Internal server error", "INTERNAL_ERROR")
			}()

			next.ServeHTTP(rec, r)
		})
	}
}
