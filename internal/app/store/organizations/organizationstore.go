// internal/app/store/organizations/organizationstore.go
package organizationstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dalemusser/tenanthub/internal/domain/apperr"
	"github.com/dalemusser/tenanthub/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection is the name of the organization metadata collection.
const Collection = "organizations"

type Store struct {
	c *mongo.Collection
}

var ErrDuplicateOrganization = apperr.New(apperr.ErrConflict, "organization already exists")

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection(Collection)}
}

// Create inserts org with a fresh ID and timestamps. org.Name must already
// be normalized; the unique index on name rejects duplicates.
func (s *Store) Create(ctx context.Context, org models.Organization) (models.Organization, error) {
	now := time.Now().UTC()
	org.ID = primitive.NewObjectID()
	org.Version = 1
	org.CreatedAt = now
	org.UpdatedAt = now
	if org.Connection.Extra == nil {
		org.Connection.Extra = map[string]string{}
	}
	if _, err := s.c.InsertOne(ctx, org); err != nil {
		if wafflemongo.IsDup(err) {
			return models.Organization{}, ErrDuplicateOrganization
		}
		return models.Organization{}, err
	}
	return org, nil
}

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.Organization, error) {
	return s.findOne(ctx, bson.M{"_id": id})
}

func (s *Store) GetByName(ctx context.Context, name string) (models.Organization, error) {
	return s.findOne(ctx, bson.M{"name": name})
}

func (s *Store) findOne(ctx context.Context, filter bson.M) (models.Organization, error) {
	var org models.Organization
	err := s.c.FindOne(ctx, filter).Decode(&org)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Organization{}, apperr.New(apperr.ErrNotFound, "organization not found")
	}
	if err != nil {
		return models.Organization{}, err
	}
	return org, nil
}

// ExistsByName checks if an organization with the given (normalized) name exists.
func (s *Store) ExistsByName(ctx context.Context, name string) (bool, error) {
	err := s.c.FindOne(ctx, bson.M{"name": name}, options.FindOne().SetProjection(bson.M{"_id": 1})).Err()
	if err == mongo.ErrNoDocuments {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// SetAdmin links the administrator to the organization.
func (s *Store) SetAdmin(ctx context.Context, id, adminID primitive.ObjectID) error {
	res, err := s.c.UpdateByID(ctx, id, bson.M{
		"$set": bson.M{"admin_id": adminID, "updated_at": time.Now().UTC()},
		"$inc": bson.M{"version": 1},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return apperr.New(apperr.ErrNotFound, "organization not found")
	}
	return nil
}

// CommitRename atomically switches the organization to a new name and
// collection, provided it is still at version. Returns apperr.ErrStaleVersion
// when the record moved on in the meantime.
func (s *Store) CommitRename(ctx context.Context, id primitive.ObjectID, version int64, name, collection string) error {
	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": id, "version": version},
		bson.M{
			"$set": bson.M{
				"name":                       name,
				"collection_name":            collection,
				"connection.collection_name": collection,
				"updated_at":                 time.Now().UTC(),
			},
			"$inc": bson.M{"version": 1},
		},
	)
	if err != nil {
		if wafflemongo.IsDup(err) {
			return ErrDuplicateOrganization
		}
		return err
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("commit rename of %s at version %d: %w", id.Hex(), version, apperr.ErrStaleVersion)
	}
	return nil
}

// Delete removes an organization by ID. Returns the number of documents deleted (0 or 1).
func (s *Store) Delete(ctx context.Context, id primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// List returns every organization ordered by name.
func (s *Store) List(ctx context.Context) ([]models.Organization, error) {
	cur, err := s.c.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var orgs []models.Organization
	if err := cur.All(ctx, &orgs); err != nil {
		return nil, err
	}
	return orgs, nil
}
