package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		capturingWriter := ExtendResponseWriter(w)

		// Call the next handler in the chain
		next.ServeHTTP(capturingWriter, r)

		// static assets, metrics scrapes and widget streams are noisy
		level := slog.LevelInfo
		if strings.HasPrefix(r.URL.Path, "/static/") || r.URL.Path == "/metrics" || strings.HasSuffix(r.URL.Path, "/stream") {
			level = slog.LevelDebug
		}
		if capturingWriter.StatusCode >= http.StatusInternalServerError {
			level = slog.LevelWarn
		}

		log(r.Context()).Log(r.Context(), level, fmt.Sprintf("Request %s %s %d %s", r.Method, r.RequestURI, capturingWriter.StatusCode, http.StatusText(capturingWriter.StatusCode)),
			slog.String("method", r.Method),
			slog.String("host", r.Host),
			slog.String("path", r.RequestURI),
			slog.Int("status", capturingWriter.StatusCode),
			slog.Duration("latency", capturingWriter.WriteBegin.Sub(start)),
			slog.Duration("duration", time.Since(start)),
		)
	})
}
