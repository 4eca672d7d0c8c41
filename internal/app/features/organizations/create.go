// internal/app/features/organizations/create.go
package organizations

import (
	"net/http"

	"github.com/dalemusser/tenanthub/internal/app/features/shared/respond"
	"github.com/dalemusser/tenanthub/internal/app/tenancy"
	"go.uber.org/zap"
)

type createRequest struct {
	OrganizationName string `json:"organization_name"`
	Email            string `json:"email"`
	Password         string `json:"password"`
}

// HandleCreate provisions an organization with its administrator and
// tenant collection.
//
// Route: POST /org/create
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := respond.Decode(r, &req); err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}

	view, err := h.Orgs.Create(r.Context(), tenancy.CreateInput{
		Name:     req.OrganizationName,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}

	h.Log.Info("organization created",
		zap.String("org_id", view.ID),
		zap.String("organization_name", view.Name),
		zap.String("collection", view.CollectionName))
	h.Audit.OrgCreated(r.Context(), r, view.Org)

	respond.JSON(w, http.StatusCreated, orgResponse{OK: true, Organization: view})
}
