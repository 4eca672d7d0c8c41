package memstore_test

import (
	"context"
	"errors"
	"testing"

	"github.com/dalemusser/tenanthub/internal/app/store/memstore"
	"github.com/dalemusser/tenanthub/internal/domain/apperr"
	"github.com/dalemusser/tenanthub/internal/domain/models"
	"github.com/stretchr/testify/require"
)

func TestOrgStore_UniqueNameAndVersion(t *testing.T) {
	b := memstore.New()
	ctx := context.Background()

	org, err := b.Orgs.Create(ctx, models.Organization{Name: "acme", CollectionName: "org_acme"})
	require.NoError(t, err)
	require.Equal(t, int64(1), org.Version)

	_, err = b.Orgs.Create(ctx, models.Organization{Name: "acme"})
	require.ErrorIs(t, err, apperr.ErrConflict)

	err = b.Orgs.CommitRename(ctx, org.ID, 99, "acme2", "org_acme2")
	require.ErrorIs(t, err, apperr.ErrStaleVersion)

	require.NoError(t, b.Orgs.CommitRename(ctx, org.ID, 1, "acme2", "org_acme2"))
	got, err := b.Orgs.GetByName(ctx, "acme2")
	require.NoError(t, err)
	require.Equal(t, int64(2), got.Version)
	require.Equal(t, "org_acme2", got.Connection.CollectionName)
}

func TestTenantStore_CreateCopyCount(t *testing.T) {
	b := memstore.New()
	ctx := context.Background()

	require.NoError(t, b.Tenants.Create(ctx, "org_a"))
	err := b.Tenants.Create(ctx, "org_a")
	require.True(t, errors.Is(err, apperr.ErrCollectionExists))

	b.Tenants.Insert("org_a", map[string]any{"n": 1}, map[string]any{"n": 2})
	n, err := b.Tenants.Copy(ctx, "org_a", "org_b")
	require.NoError(t, err)
	require.Equal(t, int64(2), n)

	// Copies are independent of the source.
	docs := b.Tenants.Docs("org_b")
	docs[0]["n"] = 100
	require.Equal(t, 1, b.Tenants.Docs("org_b")[0]["n"])

	names, err := b.Tenants.List(ctx, "org_")
	require.NoError(t, err)
	require.Equal(t, []string{"org_a", "org_b"}, names)
}

func TestTenantStore_CopyEmptyCreatesNothing(t *testing.T) {
	b := memstore.New()
	ctx := context.Background()

	require.NoError(t, b.Tenants.Create(ctx, "org_empty"))
	n, err := b.Tenants.Copy(ctx, "org_empty", "org_empty2")
	require.NoError(t, err)
	require.Zero(t, n)

	ok, err := b.Tenants.Exists(ctx, "org_empty2")
	require.NoError(t, err)
	require.False(t, ok, "an empty copy writes nothing, so the target is never created")
}

func TestJournalStore_Lifecycle(t *testing.T) {
	b := memstore.New()
	ctx := context.Background()

	op, err := b.Journal.Begin(ctx, models.LifecycleOp{Kind: models.OpDelete})
	require.NoError(t, err)
	require.NoError(t, b.Journal.Advance(ctx, op.ID, models.OpProgress{Step: models.StepCollectionDropped}))
	require.NoError(t, b.Journal.Finish(ctx, op.ID, models.OpDone, nil))

	got, err := b.Journal.Get(ctx, op.ID)
	require.NoError(t, err)
	require.Equal(t, models.StepCollectionDropped, got.Step)
	require.Equal(t, models.OpDone, got.Status)
}
