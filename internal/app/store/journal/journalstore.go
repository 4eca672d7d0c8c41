// internal/app/store/journal/journalstore.go
package journalstore

import (
	"context"
	"time"

	"github.com/dalemusser/tenanthub/internal/domain/apperr"
	"github.com/dalemusser/tenanthub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection holds one document per multi-step lifecycle operation.
const Collection = "lifecycle_ops"

// Store records progress of create, rename, and delete operations so that an
// interrupted operation can be repaired later.
type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection(Collection)}
}

// Begin inserts op as running at StepStarted and returns the stored entry.
func (s *Store) Begin(ctx context.Context, op models.LifecycleOp) (models.LifecycleOp, error) {
	now := time.Now().UTC()
	op.ID = primitive.NewObjectID()
	op.Step = models.StepStarted
	op.Status = models.OpRunning
	op.StartedAt = now
	op.UpdatedAt = now
	if _, err := s.c.InsertOne(ctx, op); err != nil {
		return models.LifecycleOp{}, err
	}
	return op, nil
}

// Advance records that p.Step completed.
func (s *Store) Advance(ctx context.Context, id primitive.ObjectID, p models.OpProgress) error {
	set := bson.M{"step": p.Step, "updated_at": time.Now().UTC()}
	if p.OrganizationID != nil {
		set["organization_id"] = *p.OrganizationID
	}
	if p.AdminID != nil {
		set["admin_id"] = *p.AdminID
	}
	if p.CreatedCollection != nil {
		set["created_collection"] = *p.CreatedCollection
	}
	return s.update(ctx, id, set)
}

// Finish closes the entry with status. cause, if non-nil, is stored as text.
func (s *Store) Finish(ctx context.Context, id primitive.ObjectID, status string, cause error) error {
	set := bson.M{"status": status, "updated_at": time.Now().UTC()}
	if cause != nil {
		set["error"] = cause.Error()
	}
	return s.update(ctx, id, set)
}

func (s *Store) update(ctx context.Context, id primitive.ObjectID, set bson.M) error {
	res, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return apperr.New(apperr.ErrNotFound, "lifecycle op %s not found", id.Hex())
	}
	return nil
}

// Get returns one journal entry.
func (s *Store) Get(ctx context.Context, id primitive.ObjectID) (models.LifecycleOp, error) {
	var op models.LifecycleOp
	err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&op)
	if err == mongo.ErrNoDocuments {
		return models.LifecycleOp{}, apperr.New(apperr.ErrNotFound, "lifecycle op %s not found", id.Hex())
	}
	return op, err
}

// ListOpen returns running entries last touched at or before olderThan, oldest first.
func (s *Store) ListOpen(ctx context.Context, olderThan time.Time) ([]models.LifecycleOp, error) {
	filter := bson.M{
		"status":     models.OpRunning,
		"updated_at": bson.M{"$lte": olderThan},
	}
	opts := options.Find().SetSort(bson.D{{Key: "updated_at", Value: 1}})

	cur, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.LifecycleOp
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// PurgeFinished deletes closed entries last touched at or before olderThan.
func (s *Store) PurgeFinished(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := s.c.DeleteMany(ctx, bson.M{
		"status":     bson.M{"$ne": models.OpRunning},
		"updated_at": bson.M{"$lte": olderThan},
	})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
