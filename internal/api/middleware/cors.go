package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

// NewCORS allows browser clients from the configured origins. An empty list
// disables cross-origin access.
func NewCORS(allowedOrigins []string) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", TriggerKeyHeader},
		ExposedHeaders:   []string{TraceHeader},
		AllowCredentials: false,
		MaxAge:           300,
	})
}
