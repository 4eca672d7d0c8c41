// internal/app/bootstrap/appconfig.go
package bootstrap

import "time"

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// These values come from environment variables, configuration files, or
// command-line flags (loaded in LoadConfig). WAFFLE's CoreConfig covers the
// framework-level settings (ports, TLS, log level, CORS, body limits); this
// struct carries everything specific to tenant provisioning.
type AppConfig struct {
	// Backend selection: "mongo" (default) or "memory" for local development.
	StoreBackend string

	// MongoDB connection configuration
	MongoURI         string // MongoDB connection string (e.g., mongodb://localhost:27017)
	MongoDatabase    string // Master database holding metadata and tenant collections
	MongoMaxPoolSize uint64
	MongoMinPoolSize uint64

	// Token issuing
	JWTSecret  string        // HS256 signing secret (required)
	JWTIssuer  string        // "iss" claim
	JWTExpires time.Duration // token lifetime

	// Password hashing
	SaltRounds int // bcrypt cost

	// Rename migration
	MigrationBatchSize int // documents per insert batch

	// Reconciliation
	ReconcileSchedule    string        // cron expression; blank disables the worker
	ReconcileStaleAfter  time.Duration // how old a running op must be before repair
	ReconcileDropOrphans bool          // drop unreferenced tenant collections instead of reporting them
	ReconcilePurgeAfter  time.Duration // retention for finished journal entries (0 keeps them)

	// Login rate limit (attempts per minute per client IP, 0 disables)
	LoginRateLimit int

	// Audit logging: "all", "db", "log", or "off"
	AuditLogAuth  string
	AuditLogAdmin string

	// Store timeouts (zero keeps the built-in default)
	TimeoutPing      time.Duration
	TimeoutShort     time.Duration
	TimeoutLong      time.Duration
	TimeoutMigration time.Duration
	TimeoutReconcile time.Duration
}

// Store backends.
const (
	BackendMongo  = "mongo"
	BackendMemory = "memory"
)
