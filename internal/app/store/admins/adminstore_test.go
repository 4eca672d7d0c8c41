package adminstore_test

import (
	"errors"
	"testing"

	adminstore "github.com/dalemusser/tenanthub/internal/app/store/admins"
	"github.com/dalemusser/tenanthub/internal/domain/apperr"
	"github.com/dalemusser/tenanthub/internal/domain/models"
	"github.com/dalemusser/tenanthub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestStore_CreateAndGet(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := adminstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	orgID := primitive.NewObjectID()
	created, err := store.Create(ctx, models.Administrator{
		OrganizationID: orgID,
		Email:          "  Admin@Acme.COM ",
		PasswordHash:   "hash",
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if created.Email != "admin@acme.com" {
		t.Errorf("Email: got %q, want normalized", created.Email)
	}
	if created.Role != models.RoleAdmin {
		t.Errorf("Role: got %q, want %q", created.Role, models.RoleAdmin)
	}

	found, err := store.GetByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if found.OrganizationID != orgID {
		t.Errorf("OrganizationID: got %s, want %s", found.OrganizationID.Hex(), orgID.Hex())
	}

	if _, err := store.GetByID(ctx, primitive.NewObjectID()); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_Create_RequiresOrganization(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := adminstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if _, err := store.Create(ctx, models.Administrator{Email: "a@x.com"}); err == nil {
		t.Error("expected error for missing organization_id")
	}
}

func TestStore_FindByEmail_NotUnique(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := adminstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	for i := 0; i < 2; i++ {
		if _, err := store.Create(ctx, models.Administrator{
			OrganizationID: primitive.NewObjectID(),
			Email:          "shared@x.com",
			PasswordHash:   "hash",
		}); err != nil {
			t.Fatalf("Create %d failed: %v", i, err)
		}
	}

	admins, err := store.FindByEmail(ctx, "SHARED@x.com")
	if err != nil {
		t.Fatalf("FindByEmail failed: %v", err)
	}
	if len(admins) != 2 {
		t.Errorf("expected 2 admins sharing the email, got %d", len(admins))
	}
}

func TestStore_UpdateCredentials(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := adminstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	created, err := store.Create(ctx, models.Administrator{
		OrganizationID: primitive.NewObjectID(),
		Email:          "old@x.com",
		PasswordHash:   "old-hash",
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	// Password only: email must stay.
	if err := store.UpdateCredentials(ctx, created.ID, "", "new-hash"); err != nil {
		t.Fatalf("UpdateCredentials failed: %v", err)
	}
	found, _ := store.GetByID(ctx, created.ID)
	if found.Email != "old@x.com" || found.PasswordHash != "new-hash" {
		t.Errorf("after password update: email=%q hash=%q", found.Email, found.PasswordHash)
	}

	// Email only: hash must stay.
	if err := store.UpdateCredentials(ctx, created.ID, "New@x.com", ""); err != nil {
		t.Fatalf("UpdateCredentials failed: %v", err)
	}
	found, _ = store.GetByID(ctx, created.ID)
	if found.Email != "new@x.com" || found.PasswordHash != "new-hash" {
		t.Errorf("after email update: email=%q hash=%q", found.Email, found.PasswordHash)
	}

	if err := store.UpdateCredentials(ctx, primitive.NewObjectID(), "x@x.com", ""); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_DeleteByOrganization(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := adminstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	orgA, orgB := primitive.NewObjectID(), primitive.NewObjectID()
	for _, org := range []primitive.ObjectID{orgA, orgA, orgB} {
		if _, err := store.Create(ctx, models.Administrator{OrganizationID: org, Email: "a@x.com"}); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}

	n, err := store.DeleteByOrganization(ctx, orgA)
	if err != nil || n != 2 {
		t.Errorf("DeleteByOrganization = %d, %v; want 2, nil", n, err)
	}
	left, err := store.CountByOrganization(ctx, orgB)
	if err != nil || left != 1 {
		t.Errorf("CountByOrganization(orgB) = %d, %v; want 1, nil", left, err)
	}
}
