// internal/app/features/login/routes.go
package login

import (
	"net/http"
	"time"

	"github.com/dalemusser/tenanthub/internal/app/system/ratelimit"
	"github.com/go-chi/chi/v5"
)

// Routes mounts POST / with a per-IP limit of perMinute attempts
// (0 disables the limit).
func Routes(h *Handler, perMinute int) chi.Router {
	r := chi.NewRouter()
	r.Use(ratelimit.PerIP(perMinute, time.Minute, func(req *http.Request) {
		h.Audit.LoginRateLimited(req.Context(), req)
	}))
	r.Post("/", h.HandleLoginPost)
	return r
}
