package audit_test

import (
	"testing"
	"time"

	"github.com/dalemusser/tenanthub/internal/app/store/audit"
	"github.com/dalemusser/tenanthub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestStore_Log(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	orgID := primitive.NewObjectID()
	event := audit.Event{
		Category:       audit.CategoryAdmin,
		EventType:      audit.EventOrgCreated,
		OrganizationID: &orgID,
		IP:             "192.168.1.1",
		Success:        true,
		Details:        map[string]string{"organization_name": "acme"},
	}

	if err := store.Log(ctx, event); err != nil {
		t.Fatalf("Log failed: %v", err)
	}

	events, err := store.GetByOrganization(ctx, orgID, 10)
	if err != nil {
		t.Fatalf("GetByOrganization failed: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].ID.IsZero() {
		t.Error("expected ID to be auto-generated")
	}
	if events[0].Timestamp.IsZero() {
		t.Error("expected timestamp to be set")
	}
	if events[0].Details["organization_name"] != "acme" {
		t.Errorf("details: got %v", events[0].Details)
	}
}

func TestStore_QueryByCategory(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	for _, ev := range []audit.Event{
		{Category: audit.CategoryAuth, EventType: audit.EventLoginSuccess, Success: true},
		{Category: audit.CategoryAuth, EventType: audit.EventLoginFailedWrongPassword},
		{Category: audit.CategoryLifecycle, EventType: audit.EventMigrationFailed},
	} {
		if err := store.Log(ctx, ev); err != nil {
			t.Fatalf("Log failed: %v", err)
		}
	}

	n, err := store.CountByFilter(ctx, audit.QueryFilter{Category: audit.CategoryAuth})
	if err != nil {
		t.Fatalf("CountByFilter failed: %v", err)
	}
	if n != 2 {
		t.Errorf("auth events: got %d, want 2", n)
	}

	failed, err := store.GetFailedLogins(ctx, time.Now().Add(-time.Hour), 10)
	if err != nil {
		t.Fatalf("GetFailedLogins failed: %v", err)
	}
	if len(failed) != 1 || failed[0].EventType != audit.EventLoginFailedWrongPassword {
		t.Errorf("failed logins: got %+v", failed)
	}
}

func TestStore_QueryNewestFirst(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	base := time.Now().UTC().Add(-time.Minute)
	for i, et := range []string{audit.EventOrgCreated, audit.EventOrgRenamed, audit.EventOrgDeleted} {
		err := store.Log(ctx, audit.Event{
			Category:  audit.CategoryAdmin,
			EventType: et,
			Timestamp: base.Add(time.Duration(i) * time.Second),
			Success:   true,
		})
		if err != nil {
			t.Fatalf("Log failed: %v", err)
		}
	}

	events, err := store.GetRecent(ctx, 2)
	if err != nil {
		t.Fatalf("GetRecent failed: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].EventType != audit.EventOrgDeleted || events[1].EventType != audit.EventOrgRenamed {
		t.Errorf("order: got %s, %s", events[0].EventType, events[1].EventType)
	}
}
