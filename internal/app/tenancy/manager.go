// Package tenancy provisions organizations: the metadata record, the
// administrator, and the dedicated tenant collection, kept consistent across
// create, rename, and delete.
package tenancy

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dalemusser/tenanthub/internal/app/system/auditlog"
	"github.com/dalemusser/tenanthub/internal/app/system/authutil"
	"github.com/dalemusser/tenanthub/internal/app/system/inputval"
	"github.com/dalemusser/tenanthub/internal/app/system/normalize"
	"github.com/dalemusser/tenanthub/internal/app/system/orglock"
	"github.com/dalemusser/tenanthub/internal/app/system/orgutil"
	"github.com/dalemusser/tenanthub/internal/app/system/timeouts"
	"github.com/dalemusser/tenanthub/internal/domain/apperr"
	"github.com/dalemusser/tenanthub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Deps are the collaborators of a Manager. Stores are required; the rest
// have usable defaults.
type Deps struct {
	DBName  string
	Orgs    OrgStore
	Admins  AdminStore
	Tenants TenantStore
	Journal JournalStore
	Hasher  *authutil.Hasher
	Locks   *orglock.Locker
	Metrics *Metrics
	Audit   *auditlog.Logger
	Logger  *zap.Logger
}

// Manager runs organization lifecycle operations. Operations on one
// organization are serialized in-process; across processes the record's
// version field rejects stale writes.
type Manager struct {
	dbName  string
	orgs    OrgStore
	admins  AdminStore
	tenants TenantStore
	journal JournalStore
	hasher  *authutil.Hasher
	locks   *orglock.Locker
	metrics *Metrics
	audit   *auditlog.Logger
	log     *zap.Logger
}

func NewManager(d Deps) *Manager {
	if d.Hasher == nil {
		d.Hasher = authutil.NewHasher(authutil.DefaultCost)
	}
	if d.Locks == nil {
		d.Locks = orglock.New()
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	return &Manager{
		dbName:  d.DBName,
		orgs:    d.Orgs,
		admins:  d.Admins,
		tenants: d.Tenants,
		journal: d.Journal,
		hasher:  d.Hasher,
		locks:   d.Locks,
		metrics: d.Metrics,
		audit:   d.Audit,
		log:     d.Logger,
	}
}

type CreateInput struct {
	Name     string
	Email    string
	Password string
}

// UpdateInput describes an update. Empty optional fields are left unchanged.
type UpdateInput struct {
	Name            string
	NewName         string
	Email           string
	Password        string
	RequestingOrgID primitive.ObjectID
}

/*─────────────────────────────────────────────────────────────────────────────*
| Validation                                                                    |
*─────────────────────────────────────────────────────────────────────────────*/

func validName(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", apperr.New(apperr.ErrValidation, "organization_name is required")
	}
	if !inputval.IsValidOrgName(raw) {
		return "", apperr.New(apperr.ErrValidation, "organization_name may contain only letters, digits, and hyphens")
	}
	return normalize.OrgName(raw), nil
}

func validEmail(raw string) (string, error) {
	email := normalize.Email(raw)
	if !inputval.IsValidEmail(email) {
		return "", apperr.New(apperr.ErrValidation, "a valid email address is required")
	}
	return email, nil
}

func validPassword(pw string) error {
	if !inputval.IsValidPassword(pw) {
		return apperr.New(apperr.ErrValidation, "password must be at least %d characters", inputval.MinPasswordLen)
	}
	return nil
}

/*─────────────────────────────────────────────────────────────────────────────*
| Journal helpers                                                               |
*─────────────────────────────────────────────────────────────────────────────*/

// Journal writes after Begin are best effort: a missed step only makes the
// reconciliation pass do redundant work.
func (m *Manager) advance(ctx context.Context, op models.LifecycleOp, p models.OpProgress) {
	if err := m.journal.Advance(ctx, op.ID, p); err != nil {
		m.log.Warn("journal advance failed",
			zap.String("op_id", op.ID.Hex()),
			zap.String("kind", op.Kind),
			zap.String("step", p.Step),
			zap.Error(err))
	}
}

func (m *Manager) finish(ctx context.Context, op models.LifecycleOp, status string, cause error) {
	// A cancelled request context must not keep the entry open.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeouts.Short())
	defer cancel()
	if err := m.journal.Finish(ctx, op.ID, status, cause); err != nil {
		m.log.Warn("journal finish failed",
			zap.String("op_id", op.ID.Hex()),
			zap.String("kind", op.Kind),
			zap.String("status", status),
			zap.Error(err))
	}
}

// dropBestEffort removes a collection during cleanup; failures are logged and
// left to the orphan sweep.
func (m *Manager) dropBestEffort(ctx context.Context, coll string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeouts.Short())
	defer cancel()
	if err := m.tenants.Drop(ctx, coll); err != nil {
		m.log.Warn("cleanup drop failed; collection left for reconcile",
			zap.String("collection", coll),
			zap.Error(err))
	}
}

func lockErr(err error) error {
	return apperr.Wrap(apperr.ErrInternal, err, "waiting for organization lock")
}

/*─────────────────────────────────────────────────────────────────────────────*
| Create                                                                        |
*─────────────────────────────────────────────────────────────────────────────*/

// Create provisions a new organization, its tenant collection, and its
// administrator.
func (m *Manager) Create(ctx context.Context, in CreateInput) (view OrgView, err error) {
	start := time.Now()
	defer func() { m.metrics.observe(models.OpCreate, start, err) }()

	name, err := validName(in.Name)
	if err != nil {
		return OrgView{}, err
	}
	email, err := validEmail(in.Email)
	if err != nil {
		return OrgView{}, err
	}
	if err := validPassword(in.Password); err != nil {
		return OrgView{}, err
	}
	hash, err := m.hasher.Hash(in.Password)
	if err != nil {
		return OrgView{}, apperr.Internal(err, "hash password")
	}

	unlock, err := m.locks.Lock(ctx, orglock.NameKey(name))
	if err != nil {
		return OrgView{}, lockErr(err)
	}
	defer unlock()

	ctx, cancel := timeouts.WithTimeout(ctx, timeouts.Long(), m.log, "create organization")
	defer cancel()

	exists, err := m.orgs.ExistsByName(ctx, name)
	if err != nil {
		return OrgView{}, apperr.Internal(err, "check organization name")
	}
	if exists {
		return OrgView{}, apperr.New(apperr.ErrConflict, "organization %q already exists", name)
	}

	coll := orgutil.CollectionName(name)
	op, err := m.journal.Begin(ctx, models.LifecycleOp{
		Kind:          models.OpCreate,
		NewName:       name,
		NewCollection: coll,
	})
	if err != nil {
		return OrgView{}, apperr.Internal(err, "record create operation")
	}

	created := true
	if err := m.tenants.Create(ctx, coll); err != nil {
		if !errors.Is(err, apperr.ErrCollectionExists) {
			m.finish(ctx, op, models.OpFailed, err)
			return OrgView{}, apperr.Internal(err, "create tenant collection")
		}
		created = false
		m.log.Info("tenant collection already exists; reusing",
			zap.String("organization", name),
			zap.String("collection", coll))
	}
	m.advance(ctx, op, models.OpProgress{Step: models.StepCollectionCreated, CreatedCollection: &created})

	org, err := m.orgs.Create(ctx, models.Organization{
		Name:           name,
		CollectionName: coll,
		Connection: models.Connection{
			DBName:         m.dbName,
			CollectionName: coll,
			Extra:          map[string]string{},
		},
	})
	if err != nil {
		if created {
			m.dropBestEffort(ctx, coll)
		}
		if errors.Is(err, apperr.ErrConflict) {
			// Another process claimed the name between the check and the insert.
			m.finish(ctx, op, models.OpRolledBack, err)
			return OrgView{}, apperr.Wrap(apperr.ErrConflict, err, "organization %q already exists", name)
		}
		m.finish(ctx, op, models.OpFailed, err)
		return OrgView{}, apperr.Internal(err, "insert organization")
	}
	m.advance(ctx, op, models.OpProgress{Step: models.StepOrgInserted, OrganizationID: &org.ID})

	admin, err := m.admins.Create(ctx, models.Administrator{
		OrganizationID: org.ID,
		Email:          email,
		PasswordHash:   hash,
		Role:           models.RoleAdmin,
	})
	if err != nil {
		m.log.Error("administrator insert failed after organization insert; left for reconcile",
			zap.String("organization", name),
			zap.String("op_id", op.ID.Hex()),
			zap.Error(err))
		return OrgView{}, apperr.Internal(err, "insert administrator")
	}
	m.advance(ctx, op, models.OpProgress{Step: models.StepAdminInserted, AdminID: &admin.ID})

	if err := m.orgs.SetAdmin(ctx, org.ID, admin.ID); err != nil {
		m.log.Error("administrator link failed; left for reconcile",
			zap.String("organization", name),
			zap.String("op_id", op.ID.Hex()),
			zap.Error(err))
		return OrgView{}, apperr.Internal(err, "link administrator")
	}
	org.AdminID = &admin.ID
	org.Version++
	m.advance(ctx, op, models.OpProgress{Step: models.StepAdminLinked})
	m.finish(ctx, op, models.OpDone, nil)

	m.log.Info("organization created",
		zap.String("organization", name),
		zap.String("organization_id", org.ID.Hex()),
		zap.String("collection", coll))
	return viewOf(org, &admin), nil
}

/*─────────────────────────────────────────────────────────────────────────────*
| Get                                                                           |
*─────────────────────────────────────────────────────────────────────────────*/

// lookup finds an organization by a client-supplied name. Names that could
// never have been created are reported as not found.
func (m *Manager) lookup(ctx context.Context, raw string) (models.Organization, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || !inputval.IsValidOrgName(raw) {
		return models.Organization{}, apperr.New(apperr.ErrNotFound, "organization not found")
	}
	org, err := m.orgs.GetByName(ctx, normalize.OrgName(raw))
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return models.Organization{}, apperr.New(apperr.ErrNotFound, "organization %q not found", normalize.OrgName(raw))
		}
		return models.Organization{}, apperr.Internal(err, "load organization")
	}
	return org, nil
}

func (m *Manager) view(ctx context.Context, org models.Organization) (OrgView, error) {
	if org.AdminID == nil {
		return viewOf(org, nil), nil
	}
	admin, err := m.admins.GetByID(ctx, *org.AdminID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			m.log.Warn("organization references a missing administrator",
				zap.String("organization", org.Name),
				zap.String("admin_id", org.AdminID.Hex()))
			return viewOf(org, nil), nil
		}
		return OrgView{}, apperr.Internal(err, "load administrator")
	}
	return viewOf(org, &admin), nil
}

// Get returns the organization called name.
func (m *Manager) Get(ctx context.Context, name string) (OrgView, error) {
	org, err := m.lookup(ctx, name)
	if err != nil {
		return OrgView{}, err
	}
	return m.view(ctx, org)
}

// List returns every organization ordered by name.
func (m *Manager) List(ctx context.Context) ([]models.Organization, error) {
	orgs, err := m.orgs.List(ctx)
	if err != nil {
		return nil, apperr.Internal(err, "list organizations")
	}
	return orgs, nil
}

/*─────────────────────────────────────────────────────────────────────────────*
| Delete                                                                        |
*─────────────────────────────────────────────────────────────────────────────*/

// Delete removes the organization called name: its tenant collection, its
// administrators, then its record. Only the organization itself may do this.
func (m *Manager) Delete(ctx context.Context, name string, requestingOrgID primitive.ObjectID) (deleted models.Organization, err error) {
	start := time.Now()
	defer func() { m.metrics.observe(models.OpDelete, start, err) }()

	org, err := m.lookup(ctx, name)
	if err != nil {
		return models.Organization{}, err
	}
	if org.ID != requestingOrgID {
		return models.Organization{}, apperr.New(apperr.ErrForbidden, "not authorized to delete this organization")
	}

	unlock, err := m.locks.Lock(ctx, orglock.OrgKey(org.ID.Hex()))
	if err != nil {
		return models.Organization{}, lockErr(err)
	}
	defer unlock()

	ctx, cancel := timeouts.WithTimeout(ctx, timeouts.Long(), m.log, "delete organization")
	defer cancel()

	// Re-read under the lock; a concurrent delete or rename may have won.
	current, err := m.orgs.GetByID(ctx, org.ID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return models.Organization{}, apperr.New(apperr.ErrNotFound, "organization not found")
		}
		return models.Organization{}, apperr.Internal(err, "load organization")
	}
	if current.Name != org.Name {
		return models.Organization{}, apperr.New(apperr.ErrConflict, "organization was renamed concurrently")
	}
	org = current

	op, err := m.journal.Begin(ctx, models.LifecycleOp{
		Kind:           models.OpDelete,
		OrganizationID: &org.ID,
		AdminID:        org.AdminID,
		OldName:        org.Name,
		OldCollection:  org.CollectionName,
	})
	if err != nil {
		return models.Organization{}, apperr.Internal(err, "record delete operation")
	}

	// No rollback past this point: an interrupted delete is rolled forward.
	if err := m.tenants.Drop(ctx, org.CollectionName); err != nil {
		return models.Organization{}, apperr.Internal(err, "drop tenant collection")
	}
	m.advance(ctx, op, models.OpProgress{Step: models.StepCollectionDropped})

	if _, err := m.admins.DeleteByOrganization(ctx, org.ID); err != nil {
		return models.Organization{}, apperr.Internal(err, "delete administrators")
	}
	m.advance(ctx, op, models.OpProgress{Step: models.StepAdminsDeleted})

	if _, err := m.orgs.Delete(ctx, org.ID); err != nil {
		return models.Organization{}, apperr.Internal(err, "delete organization")
	}
	m.advance(ctx, op, models.OpProgress{Step: models.StepOrgDeleted})
	m.finish(ctx, op, models.OpDone, nil)

	m.log.Info("organization deleted",
		zap.String("organization", org.Name),
		zap.String("organization_id", org.ID.Hex()))
	return org, nil
}

/*─────────────────────────────────────────────────────────────────────────────*
| Update                                                                        |
*─────────────────────────────────────────────────────────────────────────────*/

// Update renames the organization and/or changes its administrator's
// credentials. Ownership is checked before the body is validated.
func (m *Manager) Update(ctx context.Context, in UpdateInput) (view OrgView, err error) {
	start := time.Now()
	defer func() { m.metrics.observe(models.OpUpdate, start, err) }()

	org, err := m.lookup(ctx, in.Name)
	if err != nil {
		return OrgView{}, err
	}
	if org.ID != in.RequestingOrgID {
		return OrgView{}, apperr.New(apperr.ErrForbidden, "not authorized to update this organization")
	}

	var newName, email, hash string
	if strings.TrimSpace(in.NewName) != "" {
		if newName, err = validName(in.NewName); err != nil {
			return OrgView{}, err
		}
	}
	if strings.TrimSpace(in.Email) != "" {
		if email, err = validEmail(in.Email); err != nil {
			return OrgView{}, err
		}
	}
	if in.Password != "" {
		if err := validPassword(in.Password); err != nil {
			return OrgView{}, err
		}
		if hash, err = m.hasher.Hash(in.Password); err != nil {
			return OrgView{}, apperr.Internal(err, "hash password")
		}
	}

	rename := newName != "" && newName != org.Name
	keys := []string{orglock.OrgKey(org.ID.Hex())}
	if rename {
		keys = append(keys, orglock.NameKey(newName))
	}
	unlock, err := m.locks.LockAll(ctx, keys...)
	if err != nil {
		return OrgView{}, lockErr(err)
	}
	defer unlock()

	current, err := m.orgs.GetByID(ctx, org.ID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return OrgView{}, apperr.New(apperr.ErrNotFound, "organization not found")
		}
		return OrgView{}, apperr.Internal(err, "load organization")
	}
	if current.Name != org.Name {
		return OrgView{}, apperr.New(apperr.ErrConflict, "organization was renamed concurrently")
	}
	org = current

	if rename {
		taken, err := m.orgs.ExistsByName(ctx, newName)
		if err != nil {
			return OrgView{}, apperr.Internal(err, "check organization name")
		}
		if taken {
			return OrgView{}, apperr.New(apperr.ErrConflict, "organization %q already exists", newName)
		}
		if err := m.migrate(ctx, org, newName); err != nil {
			return OrgView{}, err
		}
		org.Name = newName
	}

	// The rename, if any, ran under the migration timeout.
	ctx, cancel := timeouts.WithTimeout(ctx, timeouts.Long(), m.log, "update organization")
	defer cancel()

	if email != "" || hash != "" {
		if org.AdminID == nil {
			return OrgView{}, apperr.New(apperr.ErrNotFound, "organization has no administrator")
		}
		if err := m.admins.UpdateCredentials(ctx, *org.AdminID, email, hash); err != nil {
			if errors.Is(err, apperr.ErrNotFound) {
				return OrgView{}, apperr.New(apperr.ErrNotFound, "administrator not found")
			}
			return OrgView{}, apperr.Internal(err, "update administrator credentials")
		}
	}

	final, err := m.orgs.GetByName(ctx, org.Name)
	if err != nil {
		return OrgView{}, apperr.Internal(err, "reload organization")
	}
	return m.view(ctx, final)
}
