package tenancy

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/tenanthub/internal/app/system/orglock"
	"github.com/dalemusser/tenanthub/internal/app/system/orgutil"
	"github.com/dalemusser/tenanthub/internal/app/system/timeouts"
	"github.com/dalemusser/tenanthub/internal/domain/apperr"
	"github.com/dalemusser/tenanthub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Migrate renames organization orgID from oldName to newName, moving its
// tenant collection. It fails with a Conflict if the organization is no
// longer called oldName or newName is taken.
func (m *Manager) Migrate(ctx context.Context, oldName, newName string, orgID primitive.ObjectID) error {
	oldName = normalizeOrEmpty(oldName)
	target, err := validName(newName)
	if err != nil {
		return err
	}

	keys := []string{orglock.OrgKey(orgID.Hex())}
	if target != oldName {
		keys = append(keys, orglock.NameKey(target))
	}
	unlock, err := m.locks.LockAll(ctx, keys...)
	if err != nil {
		return lockErr(err)
	}
	defer unlock()

	org, err := m.orgs.GetByID(ctx, orgID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return apperr.New(apperr.ErrNotFound, "organization not found")
		}
		return apperr.Internal(err, "load organization")
	}
	if org.Name != oldName {
		return apperr.New(apperr.ErrConflict, "organization is no longer named %q", oldName)
	}
	if target != org.Name {
		taken, err := m.orgs.ExistsByName(ctx, target)
		if err != nil {
			return apperr.Internal(err, "check organization name")
		}
		if taken {
			return apperr.New(apperr.ErrConflict, "organization %q already exists", target)
		}
	}
	return m.migrate(ctx, org, target)
}

func normalizeOrEmpty(raw string) string {
	name, err := validName(raw)
	if err != nil {
		return ""
	}
	return name
}

// migrate moves org's tenant collection to the one derived from newName and
// commits the new name. The caller holds the org and name locks.
// Metadata changes only after the copy is verified, and the old collection is
// dropped only after the metadata commit.
func (m *Manager) migrate(ctx context.Context, org models.Organization, newName string) (err error) {
	start := time.Now()
	defer func() { m.metrics.observe(models.OpRename, start, err) }()

	oldColl := orgutil.CollectionName(org.Name)
	newColl := orgutil.CollectionName(newName)
	log := m.log.With(
		zap.String("organization_id", org.ID.Hex()),
		zap.String("old_name", org.Name),
		zap.String("new_name", newName))

	if oldColl == newColl {
		if org.Name == newName {
			return nil
		}
		// Only the spelling changed; no data moves.
		return m.commitName(ctx, org, newName, newColl)
	}

	ctx, cancel := timeouts.WithTimeout(ctx, timeouts.Migration(), m.log, "migrate "+oldColl)
	defer cancel()

	op, err := m.journal.Begin(ctx, models.LifecycleOp{
		Kind:           models.OpRename,
		OrganizationID: &org.ID,
		OldName:        org.Name,
		NewName:        newName,
		OldCollection:  oldColl,
		NewCollection:  newColl,
	})
	if err != nil {
		return apperr.Internal(err, "record rename operation")
	}

	// A non-empty target belongs to someone else; leave it alone.
	present, err := m.tenants.Exists(ctx, newColl)
	if err != nil {
		m.finish(ctx, op, models.OpFailed, err)
		return apperr.Internal(err, "inspect target collection")
	}
	if present {
		n, err := m.tenants.Count(ctx, newColl)
		if err != nil {
			m.finish(ctx, op, models.OpFailed, err)
			return apperr.Internal(err, "inspect target collection")
		}
		if n > 0 {
			err := apperr.New(apperr.ErrConflict, "collection %s already holds %d documents", newColl, n)
			m.finish(ctx, op, models.OpFailed, err)
			return err
		}
	}

	abort := func(cause, surfaced error) error {
		m.dropBestEffort(ctx, newColl)
		m.finish(ctx, op, models.OpRolledBack, cause)
		m.audit.MigrationFailed(ctx, org.ID, org.Name, newName, cause)
		log.Warn("migration rolled back", zap.Error(cause))
		return surfaced
	}

	// The database only materializes a collection on first insert, so an
	// empty source would otherwise leave no target at all.
	if !present {
		if err := m.tenants.Create(ctx, newColl); err != nil && !errors.Is(err, apperr.ErrCollectionExists) {
			return abort(err, apperr.Internal(err, "create target collection"))
		}
	}

	copied, err := m.tenants.Copy(ctx, oldColl, newColl)
	if err != nil {
		return abort(err, apperr.Internal(err, "copy tenant collection"))
	}
	m.advance(ctx, op, models.OpProgress{Step: models.StepCopied})

	oldCount, err := m.tenants.Count(ctx, oldColl)
	if err != nil {
		return abort(err, apperr.Internal(err, "count source collection"))
	}
	newCount, err := m.tenants.Count(ctx, newColl)
	if err != nil {
		return abort(err, apperr.Internal(err, "count target collection"))
	}
	if oldCount != newCount {
		verr := apperr.New(apperr.ErrMigrationVerification,
			"document count mismatch after copy: %s has %d, %s has %d", oldColl, oldCount, newColl, newCount)
		return abort(verr, verr)
	}
	m.advance(ctx, op, models.OpProgress{Step: models.StepVerified})

	if err := m.orgs.CommitRename(ctx, org.ID, org.Version, newName, newColl); err != nil {
		switch {
		case errors.Is(err, apperr.ErrStaleVersion):
			return abort(err, apperr.Wrap(apperr.ErrConflict, err, "organization was modified concurrently"))
		case errors.Is(err, apperr.ErrConflict):
			return abort(err, apperr.Wrap(apperr.ErrConflict, err, "organization %q already exists", newName))
		default:
			return abort(err, apperr.Internal(err, "commit rename"))
		}
	}
	m.advance(ctx, op, models.OpProgress{Step: models.StepCommitted})
	m.metrics.migrated(copied)

	if err := m.tenants.Drop(ctx, oldColl); err != nil {
		// The rename stands; reconcile finishes the drop from the journal.
		log.Warn("old collection drop failed; left for reconcile",
			zap.String("collection", oldColl),
			zap.Error(err))
		return nil
	}
	m.advance(ctx, op, models.OpProgress{Step: models.StepOldDropped})
	m.finish(ctx, op, models.OpDone, nil)

	log.Info("organization renamed",
		zap.String("collection", newColl),
		zap.Int64("documents", copied))
	return nil
}

func (m *Manager) commitName(ctx context.Context, org models.Organization, newName, coll string) error {
	err := m.orgs.CommitRename(ctx, org.ID, org.Version, newName, coll)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, apperr.ErrStaleVersion):
		return apperr.Wrap(apperr.ErrConflict, err, "organization was modified concurrently")
	case errors.Is(err, apperr.ErrConflict):
		return apperr.Wrap(apperr.ErrConflict, err, "organization %q already exists", newName)
	default:
		return apperr.Internal(err, "commit rename")
	}
}
