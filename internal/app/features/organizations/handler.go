// internal/app/features/organizations/handler.go
package organizations

import (
	"context"

	uierrors "github.com/dalemusser/tenanthub/internal/app/features/errors"
	"github.com/dalemusser/tenanthub/internal/app/system/auditlog"
	"github.com/dalemusser/tenanthub/internal/app/tenancy"
	"github.com/dalemusser/tenanthub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Lifecycle is the part of tenancy.Manager the handlers drive.
type Lifecycle interface {
	Create(ctx context.Context, in tenancy.CreateInput) (tenancy.OrgView, error)
	Get(ctx context.Context, name string) (tenancy.OrgView, error)
	Update(ctx context.Context, in tenancy.UpdateInput) (tenancy.OrgView, error)
	Delete(ctx context.Context, name string, requestingOrgID primitive.ObjectID) (models.Organization, error)
}

// Handler is the feature-level entry point for Organizations.
type Handler struct {
	Orgs   Lifecycle
	Audit  *auditlog.Logger
	ErrLog *uierrors.ErrorLogger
	Log    *zap.Logger
}

// NewHandler constructs a new Organizations handler. audit may be nil.
func NewHandler(orgs Lifecycle, audit *auditlog.Logger, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if errLog == nil {
		errLog = uierrors.NewErrorLogger(logger)
	}
	return &Handler{
		Orgs:   orgs,
		Audit:  audit,
		ErrLog: errLog,
		Log:    logger,
	}
}

// orgResponse is the body of create, get, and update.
type orgResponse struct {
	OK           bool            `json:"ok"`
	Message      string          `json:"message,omitempty"`
	Organization tenancy.OrgView `json:"organization"`
}

type messageResponse struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}
