// internal/app/features/organizations/update.go
package organizations

import (
	"errors"
	"net/http"
	"strings"

	"github.com/dalemusser/tenanthub/internal/app/features/shared/respond"
	"github.com/dalemusser/tenanthub/internal/app/system/auth"
	"github.com/dalemusser/tenanthub/internal/app/system/normalize"
	"github.com/dalemusser/tenanthub/internal/app/tenancy"
	"github.com/dalemusser/tenanthub/internal/domain/apperr"
	"go.uber.org/zap"
)

type updateRequest struct {
	OrganizationName    string `json:"organization_name"`
	NewOrganizationName string `json:"new_organization_name"`
	Email               string `json:"email"`
	Password            string `json:"password"`
}

// HandleUpdate renames the caller's organization and/or changes its
// administrator credentials. A rename migrates the tenant collection before
// the response is written.
//
// Route: PUT /org/update (bearer)
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	admin, ok := auth.CurrentAdmin(r.Context())
	if !ok {
		h.ErrLog.Write(w, r, apperr.New(apperr.ErrUnauthenticated, "authentication required"))
		return
	}

	var req updateRequest
	if err := respond.Decode(r, &req); err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}

	view, err := h.Orgs.Update(r.Context(), tenancy.UpdateInput{
		Name:            req.OrganizationName,
		NewName:         req.NewOrganizationName,
		Email:           req.Email,
		Password:        req.Password,
		RequestingOrgID: admin.OrgID,
	})
	if err != nil {
		if errors.Is(err, apperr.ErrForbidden) {
			h.Audit.OrgAccessDenied(r.Context(), r, admin.ID, req.OrganizationName, "update")
		}
		h.ErrLog.Write(w, r, err)
		return
	}

	oldName := normalize.OrgName(req.OrganizationName)
	if view.Name != oldName {
		h.Log.Info("organization renamed",
			zap.String("org_id", view.ID),
			zap.String("old_name", oldName),
			zap.String("new_name", view.Name))
		h.Audit.OrgRenamed(r.Context(), r, admin.ID, view.Org.ID, oldName, view.Name)
	}
	if fields := changedCredentials(req); fields != "" {
		h.Audit.OrgCredentialsUpdated(r.Context(), r, admin.ID, view.Org.ID, fields)
	}

	respond.JSON(w, http.StatusOK, orgResponse{OK: true, Message: "Organization updated", Organization: view})
}

func changedCredentials(req updateRequest) string {
	var fields []string
	if strings.TrimSpace(req.Email) != "" {
		fields = append(fields, "email")
	}
	if req.Password != "" {
		fields = append(fields, "password")
	}
	return strings.Join(fields, ",")
}
