package middleware

import (
	"net/http"
)

func AllStandardMiddleware(next http.Handler, allowedOrigin string) http.Handler {
	return ContextLoggerMiddleware(LoggingMiddleware(CORSMiddleware(allowedOrigin)(next)))
}
