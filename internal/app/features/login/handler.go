// internal/app/features/login/handler.go
package login

import (
	"context"
	"errors"
	"net/http"

	uierrors "github.com/dalemusser/tenanthub/internal/app/features/errors"
	"github.com/dalemusser/tenanthub/internal/app/features/shared/respond"
	"github.com/dalemusser/tenanthub/internal/app/system/auditlog"
	"github.com/dalemusser/tenanthub/internal/app/tenancy"
	"github.com/dalemusser/tenanthub/internal/domain/apperr"
	"go.uber.org/zap"
)

// Authenticator exchanges credentials for a token.
type Authenticator interface {
	Login(ctx context.Context, email, password string) (tenancy.LoginResult, error)
}

// Handler serves administrator login.
type Handler struct {
	Auth   Authenticator
	Audit  *auditlog.Logger
	ErrLog *uierrors.ErrorLogger
	Log    *zap.Logger
}

// NewHandler creates a login handler. audit may be nil.
func NewHandler(authn Authenticator, audit *auditlog.Logger, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if errLog == nil {
		errLog = uierrors.NewErrorLogger(logger)
	}
	return &Handler{Auth: authn, Audit: audit, ErrLog: errLog, Log: logger}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type adminInfo struct {
	ID             string `json:"id"`
	Email          string `json:"email"`
	OrganizationID string `json:"organization_id"`
}

type loginResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresIn   int64     `json:"expires_in"`
	Admin       adminInfo `json:"admin"`
}

// HandleLoginPost authenticates an administrator and returns a bearer token.
//
// Route: POST /admin/login
func (h *Handler) HandleLoginPost(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := respond.Decode(r, &req); err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}

	res, err := h.Auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, apperr.ErrUnauthenticated) {
			h.Log.Info("login failed", zap.String("email", req.Email), zap.Error(err))
			h.Audit.LoginFailed(r.Context(), r, req.Email, errors.Is(err, tenancy.ErrWrongPassword))
		}
		h.ErrLog.Write(w, r, err)
		return
	}

	h.Audit.LoginSuccess(r.Context(), r, res.Admin.ID, res.Admin.OrganizationID, res.Admin.Email)

	respond.JSON(w, http.StatusOK, loginResponse{
		AccessToken: res.AccessToken,
		TokenType:   res.TokenType,
		ExpiresIn:   res.ExpiresIn,
		Admin: adminInfo{
			ID:             res.Admin.ID.Hex(),
			Email:          res.Admin.Email,
			OrganizationID: res.Admin.OrganizationID.Hex(),
		},
	})
}
