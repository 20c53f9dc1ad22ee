package httpx

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
)

type Middleware func(http.Handler) http.Handler

// Chain(h, a, b) serves requests through a, then b, then h.
func Chain(h http.Handler, m ...Middleware) http.Handler {
	for i := len(m) - 1; i >= 0; i-- {
		if m[i] == nil {
			continue
		}
		h = m[i](h)
	}
	return h
}

func WithBodyLimit(limitBytes int64) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, limitBytes)
			next.ServeHTTP(w, r)
		})
	}
}

func WithTimeout(d time.Duration) Middleware {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

// WithRecovery turns handler panics into 500 responses and logs them.
func WithRecovery(logger *slog.Logger) Middleware {
	return handlers.RecoveryHandler(
		handlers.RecoveryLogger(recoveryLogger{logger: logger}),
		handlers.PrintRecoveryStack(false),
	)
}

type recoveryLogger struct {
	logger *slog.Logger
}

func (l recoveryLogger) Println(v ...interface{}) {
	l.logger.Error("http handler panic", "panic", fmt.Sprint(v...))
}
