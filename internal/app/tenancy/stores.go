package tenancy

import (
	"context"
	"time"

	"github.com/dalemusser/tenanthub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// OrgStore persists organization records. Implementations return errors
// matching apperr.ErrNotFound for missing records, apperr.ErrConflict for a
// duplicate name, and apperr.ErrStaleVersion from a guarded CommitRename.
type OrgStore interface {
	Create(ctx context.Context, org models.Organization) (models.Organization, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (models.Organization, error)
	GetByName(ctx context.Context, name string) (models.Organization, error)
	ExistsByName(ctx context.Context, name string) (bool, error)
	SetAdmin(ctx context.Context, id, adminID primitive.ObjectID) error
	CommitRename(ctx context.Context, id primitive.ObjectID, version int64, name, collection string) error
	Delete(ctx context.Context, id primitive.ObjectID) (int64, error)
	List(ctx context.Context) ([]models.Organization, error)
}

// AdminStore persists administrator records.
type AdminStore interface {
	Create(ctx context.Context, a models.Administrator) (models.Administrator, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (models.Administrator, error)
	FindByEmail(ctx context.Context, email string) ([]models.Administrator, error)
	UpdateCredentials(ctx context.Context, id primitive.ObjectID, email, passwordHash string) error
	DeleteByOrganization(ctx context.Context, orgID primitive.ObjectID) (int64, error)
}

// TenantStore manages tenant data collections. Create returns an error
// matching apperr.ErrCollectionExists when the collection is already there.
type TenantStore interface {
	Create(ctx context.Context, name string) error
	Drop(ctx context.Context, name string) error
	Exists(ctx context.Context, name string) (bool, error)
	Count(ctx context.Context, name string) (int64, error)
	Copy(ctx context.Context, from, to string) (int64, error)
	List(ctx context.Context, prefix string) ([]string, error)
}

// JournalStore records progress of multi-step lifecycle operations.
type JournalStore interface {
	Begin(ctx context.Context, op models.LifecycleOp) (models.LifecycleOp, error)
	Advance(ctx context.Context, id primitive.ObjectID, p models.OpProgress) error
	Finish(ctx context.Context, id primitive.ObjectID, status string, cause error) error
	Get(ctx context.Context, id primitive.ObjectID) (models.LifecycleOp, error)
	ListOpen(ctx context.Context, olderThan time.Time) ([]models.LifecycleOp, error)
	PurgeFinished(ctx context.Context, olderThan time.Time) (int64, error)
}
