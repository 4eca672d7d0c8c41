// internal/domain/models/organization.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Connection describes where an organization's tenant data lives.
type Connection struct {
	DBName         string            `bson:"db_name" json:"db_name"`
	CollectionName string            `bson:"collection_name" json:"collection_name"`
	Extra          map[string]string `bson:"extra" json:"extra"`
}

// Organization is the tenant metadata record.
//
// Name is stored already folded to lower case, so it doubles as the
// case-insensitive lookup key. CollectionName is always derived from Name.
type Organization struct {
	ID             primitive.ObjectID  `bson:"_id"`
	Name           string              `bson:"name"`
	CollectionName string              `bson:"collection_name"`
	Connection     Connection          `bson:"connection"`
	AdminID        *primitive.ObjectID `bson:"admin_id"` // nil until the admin is linked
	Version        int64               `bson:"version"`  // bumped on every metadata mutation
	CreatedAt      time.Time           `bson:"created_at"`
	UpdatedAt      time.Time           `bson:"updated_at"`
}
