package adminstore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/tenanthub/internal/app/system/normalize"
	"github.com/dalemusser/tenanthub/internal/domain/apperr"
	"github.com/dalemusser/tenanthub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection is the name of the administrator collection.
const Collection = "admins"

var errOrgNeeded = errors.New("administrator must have organization_id")

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection(Collection)}
}

// Create inserts a new administrator after normalizing the email.
// Role defaults to "admin".
func (s *Store) Create(ctx context.Context, a models.Administrator) (models.Administrator, error) {
	if a.OrganizationID.IsZero() {
		return models.Administrator{}, errOrgNeeded
	}
	a.ID = primitive.NewObjectID()
	a.Email = normalize.Email(a.Email)
	if a.Role == "" {
		a.Role = models.RoleAdmin
	}
	now := time.Now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now

	if _, err := s.c.InsertOne(ctx, a); err != nil {
		return models.Administrator{}, err
	}
	return a, nil
}

// GetByID loads an administrator by ObjectID.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.Administrator, error) {
	var a models.Administrator
	err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&a)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Administrator{}, apperr.New(apperr.ErrNotFound, "administrator not found")
	}
	if err != nil {
		return models.Administrator{}, err
	}
	return a, nil
}

// FindByEmail returns every administrator registered under email, oldest
// first. Email is not unique across organizations.
func (s *Store) FindByEmail(ctx context.Context, email string) ([]models.Administrator, error) {
	cur, err := s.c.Find(ctx,
		bson.M{"email": normalize.Email(email)},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}),
	)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.Administrator
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateCredentials sets a new email and/or password hash. Empty values are
// left unchanged.
func (s *Store) UpdateCredentials(ctx context.Context, id primitive.ObjectID, email, passwordHash string) error {
	set := bson.M{"updated_at": time.Now().UTC()}
	if email != "" {
		set["email"] = normalize.Email(email)
	}
	if passwordHash != "" {
		set["password_hash"] = passwordHash
	}
	res, err := s.c.UpdateByID(ctx, id, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return apperr.New(apperr.ErrNotFound, "administrator not found")
	}
	return nil
}

// DeleteByOrganization removes every administrator of orgID.
func (s *Store) DeleteByOrganization(ctx context.Context, orgID primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteMany(ctx, bson.M{"organization_id": orgID})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// CountByOrganization returns how many administrators reference orgID.
func (s *Store) CountByOrganization(ctx context.Context, orgID primitive.ObjectID) (int64, error) {
	return s.c.CountDocuments(ctx, bson.M{"organization_id": orgID})
}
