package middleware

import (
	"log/slog"
	"net/http"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/nikhilbhutani/fiscalassistant/internal/auth"
)

// Logging emits one structured line per request.
func Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		attrs := []any{
			"request_id", chimiddleware.GetReqID(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"bytes", ww.BytesWritten(),
			"duration_ms", float64(time.Since(start).Microseconds()) / 1000.0,
			"remote_addr", r.RemoteAddr,
		}
		if owner, ok := auth.OwnerIDFromContext(r.Context()); ok {
			attrs = append(attrs, "owner_id", owner)
		}

		switch {
		case status >= 500:
			slog.Error("request.complete", attrs...)
		case status >= 400:
			slog.Warn("request.complete", attrs...)
		default:
			slog.Info("request.complete", attrs...)
		}
	})
}
