// internal/app/features/organizations/delete.go
package organizations

import (
	"errors"
	"net/http"

	"github.com/dalemusser/tenanthub/internal/app/features/shared/respond"
	"github.com/dalemusser/tenanthub/internal/app/system/auth"
	"github.com/dalemusser/tenanthub/internal/domain/apperr"
	"go.uber.org/zap"
)

type deleteRequest struct {
	OrganizationName string `json:"organization_name"`
}

// HandleDelete removes the caller's organization, its administrators, and
// its tenant collection.
//
// Route: DELETE /org/delete (bearer)
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	admin, ok := auth.CurrentAdmin(r.Context())
	if !ok {
		h.ErrLog.Write(w, r, apperr.New(apperr.ErrUnauthenticated, "authentication required"))
		return
	}

	var req deleteRequest
	if err := respond.Decode(r, &req); err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}

	org, err := h.Orgs.Delete(r.Context(), req.OrganizationName, admin.OrgID)
	if err != nil {
		if errors.Is(err, apperr.ErrForbidden) {
			h.Audit.OrgAccessDenied(r.Context(), r, admin.ID, req.OrganizationName, "delete")
		}
		h.ErrLog.Write(w, r, err)
		return
	}

	h.Log.Info("organization deleted",
		zap.String("org_id", org.ID.Hex()),
		zap.String("organization_name", org.Name))
	h.Audit.OrgDeleted(r.Context(), r, admin.ID, org.ID, org.Name)

	respond.JSON(w, http.StatusOK, messageResponse{OK: true, Message: "Organization and related data deleted."})
}
