package tenancy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dalemusser/tenanthub/internal/app/system/orglock"
	"github.com/dalemusser/tenanthub/internal/app/system/orgutil"
	"github.com/dalemusser/tenanthub/internal/domain/apperr"
	"github.com/dalemusser/tenanthub/internal/domain/models"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// ReconcileOptions controls a reconciliation pass.
type ReconcileOptions struct {
	// StaleAfter is how long a running operation must be idle before it is
	// considered interrupted.
	StaleAfter time.Duration
	// DropOrphans removes unreferenced tenant collections instead of only
	// reporting them.
	DropOrphans bool
	// PurgeAfter, when positive, deletes finished journal entries older than this.
	PurgeAfter time.Duration
}

// Reconcile actions.
const (
	ActionRolledBack  = "rolled_back"
	ActionLinkedAdmin = "linked_admin"
	ActionDroppedNew  = "dropped_new_collection"
	ActionDroppedOld  = "dropped_old_collection"
	ActionKeptOld     = "kept_reused_collection"
	ActionCompleted   = "completed_delete"
	ActionClosed      = "closed"
)

type Repair struct {
	OpID   string
	Kind   string
	Step   string
	Action string
}

type ReconcileReport struct {
	Repairs []Repair
	Orphans []string
	Dropped []string
	Purged  int64
}

// Reconcile repairs lifecycle operations that stopped part-way and sweeps
// tenant collections no organization references. Every repair is attempted;
// failures are aggregated into the returned error.
func (m *Manager) Reconcile(ctx context.Context, opts ReconcileOptions) (ReconcileReport, error) {
	var report ReconcileReport
	var errs error

	open, err := m.journal.ListOpen(ctx, time.Now().Add(-opts.StaleAfter))
	if err != nil {
		return report, apperr.Internal(err, "list open operations")
	}
	for _, op := range open {
		action, err := m.repairLocked(ctx, op)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s op %s: %w", op.Kind, op.ID.Hex(), err))
			continue
		}
		if action == "" {
			continue
		}
		report.Repairs = append(report.Repairs, Repair{OpID: op.ID.Hex(), Kind: op.Kind, Step: op.Step, Action: action})
		m.metrics.reconciled(op.Kind, action)
		m.audit.OpReconciled(ctx, op, action)
		m.log.Info("lifecycle operation reconciled",
			zap.String("op_id", op.ID.Hex()),
			zap.String("kind", op.Kind),
			zap.String("step", op.Step),
			zap.String("action", action))
	}

	orphans, dropped, err := m.sweepOrphans(ctx, opts.DropOrphans)
	errs = multierr.Append(errs, err)
	report.Orphans = orphans
	report.Dropped = dropped

	if opts.PurgeAfter > 0 {
		n, err := m.journal.PurgeFinished(ctx, time.Now().Add(-opts.PurgeAfter))
		errs = multierr.Append(errs, err)
		report.Purged = n
	}
	return report, errs
}

func (m *Manager) repairLocked(ctx context.Context, op models.LifecycleOp) (string, error) {
	var keys []string
	if op.OrganizationID != nil {
		keys = append(keys, orglock.OrgKey(op.OrganizationID.Hex()))
	}
	if op.NewName != "" {
		keys = append(keys, orglock.NameKey(op.NewName))
	}
	unlock, err := m.locks.LockAll(ctx, keys...)
	if err != nil {
		return "", err
	}
	defer unlock()

	// Another pass may have closed it while we waited.
	op, err = m.journal.Get(ctx, op.ID)
	if err != nil {
		return "", err
	}
	if op.Status != models.OpRunning {
		return "", nil
	}

	var action string
	switch op.Kind {
	case models.OpCreate:
		action, err = m.repairCreate(ctx, op)
	case models.OpRename:
		action, err = m.repairRename(ctx, op)
	case models.OpDelete:
		action, err = m.repairDelete(ctx, op)
	default:
		action, err = ActionClosed, nil
	}
	if err != nil {
		return "", err
	}
	status := models.OpDone
	if action == ActionRolledBack || action == ActionDroppedNew {
		status = models.OpRolledBack
	}
	if err := m.journal.Finish(ctx, op.ID, status, nil); err != nil {
		return "", err
	}
	return action, nil
}

// collectionInUse reports whether any organization other than the op's own
// currently points at coll.
func (m *Manager) collectionInUse(ctx context.Context, coll string, op models.LifecycleOp) (bool, error) {
	orgs, err := m.orgs.List(ctx)
	if err != nil {
		return false, err
	}
	for _, o := range orgs {
		if o.CollectionName != coll {
			continue
		}
		if op.OrganizationID == nil || o.ID != *op.OrganizationID {
			return true, nil
		}
	}
	return false, nil
}

func (m *Manager) dropUnlessUsed(ctx context.Context, coll string, op models.LifecycleOp) (bool, error) {
	used, err := m.collectionInUse(ctx, coll, op)
	if err != nil || used {
		return false, err
	}
	return true, m.tenants.Drop(ctx, coll)
}

func (m *Manager) repairCreate(ctx context.Context, op models.LifecycleOp) (string, error) {
	switch op.Step {
	case models.StepAdminLinked:
		return ActionClosed, nil

	case models.StepAdminInserted:
		if op.OrganizationID == nil || op.AdminID == nil {
			break
		}
		err := m.orgs.SetAdmin(ctx, *op.OrganizationID, *op.AdminID)
		if err == nil {
			return ActionLinkedAdmin, nil
		}
		if !errors.Is(err, apperr.ErrNotFound) {
			return "", err
		}
		// The organization is gone; fall through to cleaning up what remains.
	}

	if op.OrganizationID != nil {
		// A missed journal write can make a finished create look unfinished.
		org, err := m.orgs.GetByID(ctx, *op.OrganizationID)
		if err == nil && org.AdminID != nil {
			return ActionClosed, nil
		}
		if err != nil && !errors.Is(err, apperr.ErrNotFound) {
			return "", err
		}
		if _, err := m.admins.DeleteByOrganization(ctx, *op.OrganizationID); err != nil {
			return "", err
		}
		if _, err := m.orgs.Delete(ctx, *op.OrganizationID); err != nil {
			return "", err
		}
	}
	if op.CreatedCollection {
		if _, err := m.dropUnlessUsed(ctx, op.NewCollection, op); err != nil {
			return "", err
		}
	}
	return ActionRolledBack, nil
}

func (m *Manager) repairRename(ctx context.Context, op models.LifecycleOp) (string, error) {
	if op.Step == models.StepOldDropped {
		return ActionClosed, nil
	}

	committed := op.Step == models.StepCommitted
	if !committed && op.OrganizationID != nil {
		// The commit may have landed without the journal hearing about it.
		org, err := m.orgs.GetByID(ctx, *op.OrganizationID)
		switch {
		case err == nil:
			committed = org.Name == op.NewName && org.CollectionName == op.NewCollection
		case !errors.Is(err, apperr.ErrNotFound):
			return "", err
		}
	}

	if committed {
		dropped, err := m.dropUnlessUsed(ctx, op.OldCollection, op)
		if err != nil {
			return "", err
		}
		if !dropped {
			return ActionKeptOld, nil
		}
		return ActionDroppedOld, nil
	}

	if _, err := m.dropUnlessUsed(ctx, op.NewCollection, op); err != nil {
		return "", err
	}
	return ActionDroppedNew, nil
}

func (m *Manager) repairDelete(ctx context.Context, op models.LifecycleOp) (string, error) {
	if op.OrganizationID == nil {
		return ActionClosed, nil
	}
	if op.Step == models.StepStarted {
		if _, err := m.dropUnlessUsed(ctx, op.OldCollection, op); err != nil {
			return "", err
		}
	}
	if op.Step != models.StepAdminsDeleted && op.Step != models.StepOrgDeleted {
		if _, err := m.admins.DeleteByOrganization(ctx, *op.OrganizationID); err != nil {
			return "", err
		}
	}
	if op.Step != models.StepOrgDeleted {
		if _, err := m.orgs.Delete(ctx, *op.OrganizationID); err != nil {
			return "", err
		}
	}
	return ActionCompleted, nil
}

// Orphans reports tenant collections no organization references, without
// repairing or dropping anything.
func (m *Manager) Orphans(ctx context.Context) ([]string, error) {
	orphans, _, err := m.sweepOrphans(ctx, false)
	return orphans, err
}

// sweepOrphans lists tenant collections that no organization references and
// no running operation targets. Collections are listed before organizations
// and operations, so one created concurrently is always claimed by one of them.
func (m *Manager) sweepOrphans(ctx context.Context, drop bool) (orphans, dropped []string, err error) {
	names, err := m.tenants.List(ctx, orgutil.CollectionPrefix)
	if err != nil {
		return nil, nil, apperr.Internal(err, "list tenant collections")
	}
	orgs, err := m.orgs.List(ctx)
	if err != nil {
		return nil, nil, apperr.Internal(err, "list organizations")
	}
	running, err := m.journal.ListOpen(ctx, time.Now().Add(time.Minute))
	if err != nil {
		return nil, nil, apperr.Internal(err, "list open operations")
	}

	claimed := make(map[string]bool, len(orgs)+2*len(running))
	for _, o := range orgs {
		claimed[o.CollectionName] = true
	}
	for _, op := range running {
		claimed[op.OldCollection] = true
		claimed[op.NewCollection] = true
	}

	var errs error
	for _, name := range names {
		if claimed[name] {
			continue
		}
		orphans = append(orphans, name)
		if !drop {
			continue
		}
		if derr := m.tenants.Drop(ctx, name); derr != nil {
			errs = multierr.Append(errs, fmt.Errorf("drop orphan %s: %w", name, derr))
		} else {
			dropped = append(dropped, name)
			m.audit.OrphanDropped(ctx, name)
		}
	}

	m.metrics.setOrphans(len(orphans) - len(dropped))
	if len(orphans) > 0 {
		m.log.Info("orphan tenant collections",
			zap.Strings("collections", orphans),
			zap.Int("dropped", len(dropped)))
	}
	return orphans, dropped, errs
}
