// internal/app/features/organizations/routes.go
package organizations

import (
	"github.com/dalemusser/tenanthub/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// Routes mounts all Organization routes under the base path
// (typically "/org" from bootstrap).
func Routes(h *Handler, mw *auth.Middleware) chi.Router {
	r := chi.NewRouter()

	r.Post("/create", h.HandleCreate)
	r.Get("/get", h.ServeGet)

	// Owner-only routes
	r.Group(func(pr chi.Router) {
		pr.Use(mw.RequireAdmin)
		pr.Put("/update", h.HandleUpdate)
		pr.Delete("/delete", h.HandleDelete)
	})

	return r
}
