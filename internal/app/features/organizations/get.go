// internal/app/features/organizations/get.go
package organizations

import (
	"net/http"

	"github.com/dalemusser/tenanthub/internal/app/features/shared/respond"
)

// ServeGet returns an organization by name.
//
// Route: GET /org/get?organization_name=...
func (h *Handler) ServeGet(w http.ResponseWriter, r *http.Request) {
	view, err := h.Orgs.Get(r.Context(), r.URL.Query().Get("organization_name"))
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, orgResponse{OK: true, Organization: view})
}
