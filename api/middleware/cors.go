package middleware

import (
	"net/http"
	"slices"

	"github.com/go-chi/cors"

	"github.com/angelmondragon/musicportal-backend/pkg/config"
)

// CORS applies the configured origin policy. A wildcard origin never carries
// credentials; browsers reject that combination anyway.
func CORS(cfg config.CORSConfig) func(http.Handler) http.Handler {
	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}
	return cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{
			http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut,
			http.MethodPatch, http.MethodDelete, http.MethodOptions,
		},
		AllowedHeaders: []string{
			"Accept", "Authorization", "Content-Type", "Range",
			TokenHeader, IdempotencyHeader, requestIDHeader,
		},
		ExposedHeaders: []string{
			TokenHeader, requestIDHeader, ReplayedHeader,
			"Retry-After", "Content-Range", "Accept-Ranges",
		},
		AllowCredentials: cfg.AllowCredentials && !slices.Contains(origins, "*"),
		MaxAge:           cfg.MaxAgeSeconds,
	}).Handler
}
