package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/dalemusser/tenanthub/internal/app/system/orgutil"
	"github.com/dalemusser/tenanthub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// Fixtures provides helper methods for creating test data directly in the
// database, bypassing the lifecycle manager.
type Fixtures struct {
	db *mongo.Database
	t  *testing.T
}

// NewFixtures creates a new Fixtures instance for the given test database.
func NewFixtures(t *testing.T, db *mongo.Database) *Fixtures {
	t.Helper()
	return &Fixtures{db: db, t: t}
}

// DB returns the underlying database for direct access in tests.
func (f *Fixtures) DB() *mongo.Database {
	return f.db
}

// CreateOrganization inserts an organization record (without admin) whose
// collection name is derived from name.
func (f *Fixtures) CreateOrganization(ctx context.Context, name string) models.Organization {
	f.t.Helper()

	now := time.Now().UTC()
	coll := orgutil.CollectionName(name)
	org := models.Organization{
		ID:             primitive.NewObjectID(),
		Name:           name,
		CollectionName: coll,
		Connection: models.Connection{
			DBName:         f.db.Name(),
			CollectionName: coll,
			Extra:          map[string]string{},
		},
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if _, err := f.db.Collection("organizations").InsertOne(ctx, org); err != nil {
		f.t.Fatalf("failed to create test organization: %v", err)
	}
	return org
}

// CreateAdmin inserts an administrator for orgID.
func (f *Fixtures) CreateAdmin(ctx context.Context, orgID primitive.ObjectID, email, passwordHash string) models.Administrator {
	f.t.Helper()

	now := time.Now().UTC()
	admin := models.Administrator{
		ID:             primitive.NewObjectID(),
		OrganizationID: orgID,
		Email:          email,
		PasswordHash:   passwordHash,
		Role:           models.RoleAdmin,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if _, err := f.db.Collection("admins").InsertOne(ctx, admin); err != nil {
		f.t.Fatalf("failed to create test admin: %v", err)
	}
	return admin
}

// SeedDocuments inserts n small documents into the named collection.
func (f *Fixtures) SeedDocuments(ctx context.Context, collection string, n int) {
	f.t.Helper()
	if n == 0 {
		return
	}
	docs := make([]interface{}, n)
	for i := range docs {
		docs[i] = bson.M{"_id": primitive.NewObjectID(), "seq": i, "payload": "row"}
	}
	if _, err := f.db.Collection(collection).InsertMany(ctx, docs); err != nil {
		f.t.Fatalf("failed to seed %s: %v", collection, err)
	}
}
