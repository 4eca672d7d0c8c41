package tenancy_test

import (
	"errors"
	"testing"
	"time"

	"github.com/dalemusser/tenanthub/internal/app/system/timeouts"
	"github.com/dalemusser/tenanthub/internal/app/tenancy"
	"github.com/dalemusser/tenanthub/internal/domain/apperr"
	"github.com/dalemusser/tenanthub/internal/domain/models"
	"github.com/stretchr/testify/require"
)

func TestCreate(t *testing.T) {
	e := newEnv(t)

	v, err := e.mgr.Create(ctx(t), tenancy.CreateInput{Name: "Acme", Email: "A@X.com", Password: testPassword})
	require.NoError(t, err)
	require.Equal(t, "acme", v.Name)
	require.Equal(t, "org_acme", v.CollectionName)
	require.Equal(t, "org_acme", v.Connection.CollectionName)
	require.Equal(t, "master_db", v.Connection.DBName)
	require.NotNil(t, v.AdminUserID)
	require.NotNil(t, v.Admin)
	require.Equal(t, "a@x.com", v.Admin.Email)
	require.Equal(t, models.RoleAdmin, v.Admin.Role)
	require.True(t, e.exists(t, "org_acme"))

	got, err := e.mgr.Get(ctx(t), "ACME")
	require.NoError(t, err)
	require.Equal(t, v.ID, got.ID)
	require.Equal(t, "org_acme", got.CollectionName)
	require.NotNil(t, got.AdminUserID)
	require.Equal(t, *v.AdminUserID, *got.AdminUserID)

	op := lastOp(t, e.mem)
	require.Equal(t, models.OpCreate, op.Kind)
	require.Equal(t, models.OpDone, op.Status)
	require.Equal(t, models.StepAdminLinked, op.Step)

	require.Equal(t, 1.0, e.opsTotal("create", "ok"))
}

func TestCreate_DuplicateNameIsConflict(t *testing.T) {
	e := newEnv(t)
	e.create(t, "acme", "a@x.com")

	for _, name := range []string{"acme", "ACME", " Acme "} {
		_, err := e.mgr.Create(ctx(t), tenancy.CreateInput{Name: name, Email: "other@y.com", Password: testPassword})
		require.ErrorIs(t, err, apperr.ErrConflict, "name %q", name)
	}

	orgs, err := e.mgr.List(ctx(t))
	require.NoError(t, err)
	require.Len(t, orgs, 1)
}

func TestCreate_Validation(t *testing.T) {
	tests := []struct {
		name string
		in   tenancy.CreateInput
	}{
		{"empty name", tenancy.CreateInput{Name: "", Email: "a@x.com", Password: testPassword}},
		{"space in name", tenancy.CreateInput{Name: "ac me", Email: "a@x.com", Password: testPassword}},
		{"punctuation in name", tenancy.CreateInput{Name: "acme!", Email: "a@x.com", Password: testPassword}},
		{"underscore in name", tenancy.CreateInput{Name: "ac_me", Email: "a@x.com", Password: testPassword}},
		{"bad email", tenancy.CreateInput{Name: "acme", Email: "not-an-email", Password: testPassword}},
		{"short password", tenancy.CreateInput{Name: "acme", Email: "a@x.com", Password: "short"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t)
			_, err := e.mgr.Create(ctx(t), tt.in)
			require.ErrorIs(t, err, apperr.ErrValidation)

			orgs, err := e.mgr.List(ctx(t))
			require.NoError(t, err)
			require.Empty(t, orgs)
			require.False(t, e.exists(t, "org_acme"))
		})
	}
}

func TestCreate_ExistingCollectionIsReused(t *testing.T) {
	e := newEnv(t)
	e.seed("org_acme", 3)

	e.create(t, "acme", "a@x.com")
	require.Equal(t, int64(3), e.count(t, "org_acme"))
	require.False(t, lastOp(t, e.mem).CreatedCollection)
}

func TestCreate_CollectionErrorPropagates(t *testing.T) {
	e := newEnv(t)
	e.tenants.createErr = errors.New("not authorized on master_db")

	_, err := e.mgr.Create(ctx(t), tenancy.CreateInput{Name: "acme", Email: "a@x.com", Password: testPassword})
	require.ErrorIs(t, err, apperr.ErrInternal)
	require.NotContains(t, apperr.Message(err), "not authorized")

	orgs, _ := e.mgr.List(ctx(t))
	require.Empty(t, orgs)
	require.Equal(t, models.OpFailed, lastOp(t, e.mem).Status)
}

func TestCreate_LinkFailureIsRepairedByReconcile(t *testing.T) {
	e := newEnv(t)
	e.orgs.setAdminErr = errors.New("connection reset")

	_, err := e.mgr.Create(ctx(t), tenancy.CreateInput{Name: "acme", Email: "a@x.com", Password: testPassword})
	require.ErrorIs(t, err, apperr.ErrInternal)

	got, err := e.mgr.Get(ctx(t), "acme")
	require.NoError(t, err)
	require.Nil(t, got.AdminUserID)
	op := lastOp(t, e.mem)
	require.Equal(t, models.OpRunning, op.Status)
	require.Equal(t, models.StepAdminInserted, op.Step)

	e.orgs.setAdminErr = nil
	report := e.reconcile(t, tenancy.ReconcileOptions{})
	require.Len(t, report.Repairs, 1)
	require.Equal(t, tenancy.ActionLinkedAdmin, report.Repairs[0].Action)

	got, err = e.mgr.Get(ctx(t), "acme")
	require.NoError(t, err)
	require.NotNil(t, got.AdminUserID)
	require.NotNil(t, got.Admin)
	require.Equal(t, models.OpDone, lastOp(t, e.mem).Status)
}

func TestCreate_AdminInsertFailureIsRolledBackByReconcile(t *testing.T) {
	e := newEnv(t)
	e.admins.createErr = errors.New("write concern timeout")

	_, err := e.mgr.Create(ctx(t), tenancy.CreateInput{Name: "acme", Email: "a@x.com", Password: testPassword})
	require.ErrorIs(t, err, apperr.ErrInternal)
	require.True(t, e.exists(t, "org_acme"))

	e.admins.createErr = nil
	report := e.reconcile(t, tenancy.ReconcileOptions{})
	require.Len(t, report.Repairs, 1)
	require.Equal(t, tenancy.ActionRolledBack, report.Repairs[0].Action)

	_, err = e.mgr.Get(ctx(t), "acme")
	require.ErrorIs(t, err, apperr.ErrNotFound)
	require.False(t, e.exists(t, "org_acme"))
	require.Equal(t, models.OpRolledBack, lastOp(t, e.mem).Status)

	// The name is free again.
	e.create(t, "acme", "a@x.com")
}

func TestGet_NotFound(t *testing.T) {
	e := newEnv(t)
	for _, name := range []string{"missing", "", "bad name!"} {
		_, err := e.mgr.Get(ctx(t), name)
		require.ErrorIs(t, err, apperr.ErrNotFound, "name %q", name)
	}
}

func TestDelete(t *testing.T) {
	e := newEnv(t)
	id := e.create(t, "acme", "a@x.com")
	e.seed("org_acme", 5)

	deleted, err := e.mgr.Delete(ctx(t), "acme", id)
	require.NoError(t, err)
	require.Equal(t, id, deleted.ID)

	require.False(t, e.exists(t, "org_acme"))
	admins, err := e.mem.Admins.FindByEmail(ctx(t), "a@x.com")
	require.NoError(t, err)
	require.Empty(t, admins)

	_, err = e.mgr.Get(ctx(t), "acme")
	require.ErrorIs(t, err, apperr.ErrNotFound)

	op := lastOp(t, e.mem)
	require.Equal(t, models.OpDelete, op.Kind)
	require.Equal(t, models.OpDone, op.Status)
}

func TestDelete_NotFoundThenForbidden(t *testing.T) {
	e := newEnv(t)
	id := e.create(t, "acme", "a@x.com")
	other := e.create(t, "beta", "b@x.com")

	_, err := e.mgr.Delete(ctx(t), "missing", id)
	require.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = e.mgr.Delete(ctx(t), "acme", other)
	require.ErrorIs(t, err, apperr.ErrForbidden)

	_, err = e.mgr.Get(ctx(t), "acme")
	require.NoError(t, err)
	require.True(t, e.exists(t, "org_acme"))
}

func TestDelete_InterruptedIsRolledForward(t *testing.T) {
	e := newEnv(t)
	id := e.create(t, "acme", "a@x.com")
	e.admins.deleteErr = errors.New("primary stepped down")

	_, err := e.mgr.Delete(ctx(t), "acme", id)
	require.ErrorIs(t, err, apperr.ErrInternal)
	require.False(t, e.exists(t, "org_acme"))
	_, err = e.mgr.Get(ctx(t), "acme")
	require.NoError(t, err, "organization record survives the interrupted delete")

	e.admins.deleteErr = nil
	report := e.reconcile(t, tenancy.ReconcileOptions{})
	require.Len(t, report.Repairs, 1)
	require.Equal(t, tenancy.ActionCompleted, report.Repairs[0].Action)

	_, err = e.mgr.Get(ctx(t), "acme")
	require.ErrorIs(t, err, apperr.ErrNotFound)
	admins, _ := e.mem.Admins.FindByEmail(ctx(t), "a@x.com")
	require.Empty(t, admins)
}

func TestUpdate_OwnershipCheckedBeforeBody(t *testing.T) {
	e := newEnv(t)
	e.create(t, "acme", "a@x.com")
	other := e.create(t, "beta", "b@x.com")

	bodies := []tenancy.UpdateInput{
		{Name: "acme", NewName: "acme2"},
		{Name: "acme", NewName: "not valid!"},
		{Name: "acme", Password: "x"},
		{Name: "acme", Email: "nope"},
		{Name: "acme"},
	}
	for _, in := range bodies {
		in.RequestingOrgID = other
		_, err := e.mgr.Update(ctx(t), in)
		require.ErrorIs(t, err, apperr.ErrForbidden, "body %+v", in)
	}

	_, err := e.mgr.Update(ctx(t), tenancy.UpdateInput{Name: "ghost", NewName: "bad name!", RequestingOrgID: other})
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestUpdate_Validation(t *testing.T) {
	e := newEnv(t)
	id := e.create(t, "acme", "a@x.com")

	for _, in := range []tenancy.UpdateInput{
		{Name: "acme", NewName: "acme two"},
		{Name: "acme", Email: "broken"},
		{Name: "acme", Password: "1234567"},
	} {
		in.RequestingOrgID = id
		_, err := e.mgr.Update(ctx(t), in)
		require.ErrorIs(t, err, apperr.ErrValidation, "body %+v", in)
	}
}

func TestUpdate_Credentials(t *testing.T) {
	e := newEnv(t)
	id := e.create(t, "acme", "a@x.com")

	v, err := e.mgr.Update(ctx(t), tenancy.UpdateInput{
		Name:            "acme",
		Email:           "New@X.com",
		Password:        "newpassword",
		RequestingOrgID: id,
	})
	require.NoError(t, err)
	require.Equal(t, "new@x.com", v.Admin.Email)

	_, err = e.auth.Login(ctx(t), "a@x.com", testPassword)
	require.ErrorIs(t, err, apperr.ErrUnauthenticated)
	_, err = e.auth.Login(ctx(t), "new@x.com", testPassword)
	require.ErrorIs(t, err, apperr.ErrUnauthenticated)
	res, err := e.auth.Login(ctx(t), "new@x.com", "newpassword")
	require.NoError(t, err)
	require.Equal(t, id, res.Admin.OrganizationID)
}

func TestUpdate_RenameAndCredentialsTogether(t *testing.T) {
	e := newEnv(t)
	id := e.create(t, "acme", "a@x.com")

	v, err := e.mgr.Update(ctx(t), tenancy.UpdateInput{
		Name:            "acme",
		NewName:         "acme2",
		Password:        "rotated-pass",
		RequestingOrgID: id,
	})
	require.NoError(t, err)
	require.Equal(t, "acme2", v.Name)

	_, err = e.auth.Login(ctx(t), "a@x.com", "rotated-pass")
	require.NoError(t, err)
}

func TestUpdate_NoChanges(t *testing.T) {
	e := newEnv(t)
	id := e.create(t, "acme", "a@x.com")

	v, err := e.mgr.Update(ctx(t), tenancy.UpdateInput{Name: "acme", RequestingOrgID: id})
	require.NoError(t, err)
	require.Equal(t, "acme", v.Name)
	require.NotNil(t, v.Admin)
	require.Equal(t, 1.0, e.opsTotal(models.OpUpdate, "ok"))
}

func TestLifecycleWrites_UseLongTimeout(t *testing.T) {
	timeouts.Configure(timeouts.Config{Long: 2 * time.Second})
	t.Cleanup(timeouts.Reset)

	e := newEnv(t)
	// ctx(t) allows 10s, so any deadline under 3s came from the Long timeout.
	limit := func() time.Time { return time.Now().Add(3 * time.Second) }

	id := e.create(t, "acme", "a@x.com")
	_, err := e.mgr.Update(ctx(t), tenancy.UpdateInput{Name: "acme", Password: "rotated-pass", RequestingOrgID: id})
	require.NoError(t, err)
	_, err = e.mgr.Delete(ctx(t), "acme", id)
	require.NoError(t, err)

	// Create, UpdateCredentials, DeleteByOrganization.
	require.Len(t, e.admins.deadlines, 3)
	for i, d := range e.admins.deadlines {
		require.False(t, d.IsZero(), "write %d ran without a deadline", i)
		require.True(t, d.Before(limit()), "write %d deadline %v is not the Long timeout", i, d)
	}
}
