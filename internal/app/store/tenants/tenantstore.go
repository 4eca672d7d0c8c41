// Package tenantstore manages the per-organization data collections.
// Documents inside a tenant collection are opaque: this package only
// creates, drops, counts, lists, and bulk-copies them.
package tenantstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dalemusser/tenanthub/internal/domain/apperr"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// DefaultBatchSize is the number of documents written per InsertMany during a copy.
const DefaultBatchSize = 1000

// codeNamespaceExists is the server error code for creating an existing collection.
const codeNamespaceExists = 48

type Store struct {
	db        *mongo.Database
	batchSize int
}

// New returns a Store over db. A batchSize <= 0 uses DefaultBatchSize.
func New(db *mongo.Database, batchSize int) *Store {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Store{db: db, batchSize: batchSize}
}

// Create creates the collection. It returns an error wrapping
// apperr.ErrCollectionExists when the collection is already present, so
// callers can tolerate that case and still see genuine failures.
func (s *Store) Create(ctx context.Context, name string) error {
	err := s.db.CreateCollection(ctx, name)
	if err == nil {
		return nil
	}
	if isNamespaceExists(err) {
		return fmt.Errorf("create %s: %w", name, apperr.ErrCollectionExists)
	}
	return err
}

// Drop removes the collection. Dropping a missing collection is not an error.
func (s *Store) Drop(ctx context.Context, name string) error {
	return s.db.Collection(name).Drop(ctx)
}

// Exists reports whether the collection is present.
func (s *Store) Exists(ctx context.Context, name string) (bool, error) {
	names, err := s.db.ListCollectionNames(ctx, bson.M{"name": name})
	if err != nil {
		return false, err
	}
	return len(names) > 0, nil
}

// Count returns the number of documents in the collection (0 if missing).
func (s *Store) Count(ctx context.Context, name string) (int64, error) {
	return s.db.Collection(name).CountDocuments(ctx, bson.D{})
}

// Copy streams every document of from into to, batchSize documents per
// write, and returns how many were written. It is not transactional: a
// failure part-way leaves to partially filled, and callers verify counts.
func (s *Store) Copy(ctx context.Context, from, to string) (int64, error) {
	src := s.db.Collection(from)
	dst := s.db.Collection(to)

	cur, err := src.Find(ctx, bson.D{}, options.Find().SetBatchSize(int32(s.batchSize)))
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", from, err)
	}
	defer cur.Close(ctx)

	var copied int64
	batch := make([]interface{}, 0, s.batchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		res, err := dst.InsertMany(ctx, batch)
		if res != nil {
			copied += int64(len(res.InsertedIDs))
		}
		batch = batch[:0]
		return err
	}

	for cur.Next(ctx) {
		// cur.Current is reused by the driver; keep our own copy.
		doc := make(bson.Raw, len(cur.Current))
		copy(doc, cur.Current)
		batch = append(batch, doc)
		if len(batch) == s.batchSize {
			if err := flush(); err != nil {
				return copied, fmt.Errorf("write %s: %w", to, err)
			}
		}
	}
	if err := cur.Err(); err != nil {
		return copied, fmt.Errorf("read %s: %w", from, err)
	}
	if err := flush(); err != nil {
		return copied, fmt.Errorf("write %s: %w", to, err)
	}
	return copied, nil
}

// List returns collection names starting with prefix.
func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	names, err := s.db.ListCollectionNames(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(names))
	for _, n := range names {
		if strings.HasPrefix(n, prefix) {
			out = append(out, n)
		}
	}
	return out, nil
}

func isNamespaceExists(err error) bool {
	var ce mongo.CommandError
	if errors.As(err, &ce) {
		return ce.Code == codeNamespaceExists || ce.Name == "NamespaceExists"
	}
	return false
}
