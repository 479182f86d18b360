package api

import (
	"encoding/json"
	"net/http"

	"authorities/internal/models"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
)

// RouteOption configures optional route behavior.
type RouteOption func(*mux.Router)

// WithOTelMiddleware adds OpenTelemetry HTTP instrumentation middleware.
func WithOTelMiddleware(serviceName string) RouteOption {
	return func(r *mux.Router) {
		r.Use(otelmux.Middleware(serviceName,
			otelmux.WithFilter(func(r *http.Request) bool {
				return r.URL.Path != "/health" &&
					r.URL.Path != "/api/health" &&
					r.URL.Path != "/metrics" &&
					r.URL.Path != "/api/openapi.yaml" &&
					r.URL.Path != "/api/docs"
			}),
		))
	}
}

// WithMCPHandler mounts the tool endpoint at path. The handler answers every
// method itself.
func WithMCPHandler(path string, handler http.Handler) RouteOption {
	return func(r *mux.Router) {
		r.Handle(path, handler)
	}
}

// SetupRoutes configures the HTTP routes for the API
func SetupRoutes(handlers *Handlers, config *models.Config, opts ...RouteOption) *mux.Router {
	router := mux.NewRouter()

	for _, opt := range opts {
		opt(router)
	}

	api := router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/contact-authorities", handlers.CreateEvent).Methods("POST")
	api.HandleFunc("/contact-authorities", handlers.ListEvents).Methods("GET")
	api.HandleFunc("/contact-authorities/status", handlers.RateLimitStatus).Methods("GET")

	api.HandleFunc("/openapi.yaml", handlers.ServeOpenAPISpec).Methods("GET")
	api.HandleFunc("/docs", handlers.ServeSwaggerUI).Methods("GET")

	router.HandleFunc("/health", handlers.HealthCheck).Methods("GET")
	api.HandleFunc("/health", handlers.HealthCheck).Methods("GET")

	// OPTIONS is registered per route; unknown /api paths must stay 404.
	for _, path := range []string{"/contact-authorities", "/contact-authorities/status"} {
		api.HandleFunc(path, preflight).Methods("OPTIONS")
	}

	if config.Server.CORS.Enabled {
		router.Use(corsMiddleware(config.Server.CORS))
	}

	router.Use(loggingMiddleware)
	router.Use(recoveryMiddleware)

	router.MethodNotAllowedHandler = http.HandlerFunc(writeMethodNotAllowed)
	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		errorResp := models.NewErrorResponse("Not found", models.ErrorCodeNotFound)
		json.NewEncoder(w).Encode(errorResp)
	})

	return router
}

func preflight(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}
