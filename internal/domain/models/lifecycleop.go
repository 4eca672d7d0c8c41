// internal/domain/models/lifecycleop.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Lifecycle operation kinds.
const (
	OpCreate = "create"
	OpRename = "rename"
	OpDelete = "delete"
)

// OpUpdate labels Update in metrics. It is never journaled; a rename inside
// an update is journaled as OpRename.
const OpUpdate = "update"

// Lifecycle operation statuses.
const (
	OpRunning    = "running"
	OpDone       = "done"
	OpFailed     = "failed"
	OpRolledBack = "rolled_back"
)

// Steps recorded by the create path, in order.
const (
	StepStarted           = "started"
	StepCollectionCreated = "collection_created"
	StepOrgInserted       = "org_inserted"
	StepAdminInserted     = "admin_inserted"
	StepAdminLinked       = "admin_linked"
)

// Steps recorded by the rename path, in order (after StepStarted).
const (
	StepCopied     = "copied"
	StepVerified   = "verified"
	StepCommitted  = "committed"
	StepOldDropped = "old_dropped"
)

// Steps recorded by the delete path, in order (after StepStarted).
const (
	StepCollectionDropped = "collection_dropped"
	StepAdminsDeleted     = "admins_deleted"
	StepOrgDeleted        = "org_deleted"
)

// LifecycleOp is a journal entry for one multi-step create, rename, or
// delete. Step is the last step that completed.
type LifecycleOp struct {
	ID                primitive.ObjectID  `bson:"_id"`
	Kind              string              `bson:"kind"`
	OrganizationID    *primitive.ObjectID `bson:"organization_id,omitempty"`
	AdminID           *primitive.ObjectID `bson:"admin_id,omitempty"`
	OldName           string              `bson:"old_name,omitempty"`
	NewName           string              `bson:"new_name,omitempty"`
	OldCollection     string              `bson:"old_collection,omitempty"`
	NewCollection     string              `bson:"new_collection,omitempty"`
	CreatedCollection bool                `bson:"created_collection"`
	Step              string              `bson:"step"`
	Status            string              `bson:"status"`
	Error             string              `bson:"error,omitempty"`
	StartedAt         time.Time           `bson:"started_at"`
	UpdatedAt         time.Time           `bson:"updated_at"`
}

// OpProgress is the delta applied to a journal entry when a step completes.
// Nil pointers leave the stored value unchanged.
type OpProgress struct {
	Step              string
	OrganizationID    *primitive.ObjectID
	AdminID           *primitive.ObjectID
	CreatedCollection *bool
}
