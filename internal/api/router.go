package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/kiranshivaraju/contractlens/internal/api/handler"
	mw "github.com/kiranshivaraju/contractlens/internal/api/middleware"
	"github.com/kiranshivaraju/contractlens/internal/api/response"
)

// Dependencies holds all handler and middleware dependencies for the router.
// Nil handler groups leave their routes unmounted.
type Dependencies struct {
	Auth           *mw.Auth
	RateLimit      *mw.RateLimit
	AllowedOrigins []string

	HealthHandler http.HandlerFunc
	Documents     *handler.Documents
	Contracts     *handler.Contracts
	Drafts        *handler.Drafts
}

// NewRouter builds the Chi router with middleware stack and all routes.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.RequestID)
	r.Use(mw.Logger)
	r.Use(mw.Recovery)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", chimw.RequestIDHeader},
		ExposedHeaders:   []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		response.Error(w, http.StatusNotFound, "RESOURCE_NOT_FOUND", "Route not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		response.Error(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
	})

	r.Route("/api/v1", func(r chi.Router) {
		// Public health check
		r.Get("/health", orNotImplemented(deps.HealthHandler))

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(deps.Auth.Authenticate)
			r.Use(deps.RateLimit.Limit)

			if h := deps.Documents; h != nil {
				r.Route("/documents", func(r chi.Router) {
					r.Post("/", h.Create)
					r.Post("/upload", h.Upload)
					r.Get("/", h.List)
					r.Get("/{id}", h.Get)
					r.Get("/{id}/status", h.Status)
					r.Patch("/{id}", h.Rename)
					r.Delete("/{id}", h.Delete)
					r.Post("/{id}/retry", h.Retry)
				})
			}

			if h := deps.Contracts; h != nil {
				r.Route("/contracts", func(r chi.Router) {
					r.Post("/", h.Create)
					r.Get("/", h.List)
					r.Get("/types", h.Types)
					r.Get("/{id}", h.Get)
					r.Patch("/{id}", h.Update)
					r.Delete("/{id}", h.Delete)
					r.Post("/{id}/assess", h.Assess)
				})
			}

			if h := deps.Drafts; h != nil {
				r.Route("/drafts", func(r chi.Router) {
					r.Post("/", h.GenerateBoth)
					r.Post("/{provider}", h.Generate)
					r.Post("/{sessionID}/select", h.Select)
				})
			}
		})
	})

	return r
}

// orNotImplemented returns the handler if non-nil, or a 501 placeholder.
func orNotImplemented(h http.HandlerFunc) http.HandlerFunc {
	if h != nil {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "Endpoint not yet implemented", nil)
	}
}
