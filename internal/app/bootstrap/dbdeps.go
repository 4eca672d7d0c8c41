// internal/app/bootstrap/dbdeps.go
package bootstrap

import (
	"github.com/dalemusser/tenanthub/internal/app/store/memstore"
	"github.com/dalemusser/tenanthub/internal/app/system/auditlog"
	"github.com/dalemusser/tenanthub/internal/app/tenancy"
	"go.mongodb.org/mongo-driver/mongo"
)

// DBDeps holds database/back-end dependencies for the app.
type DBDeps struct {
	// Set for the mongo backend only.
	MongoClient   *mongo.Client
	MongoDatabase *mongo.Database

	// Set for the memory backend only.
	Memory *memstore.Backend

	Orgs    tenancy.OrgStore
	Admins  tenancy.AdminStore
	Tenants tenancy.TenantStore
	Journal tenancy.JournalStore
	Audit   auditlog.Sink // nil when audit events have no DB destination

	// Services is filled in by Startup and shared with BuildHandler and
	// Shutdown.
	Services *Services
}
