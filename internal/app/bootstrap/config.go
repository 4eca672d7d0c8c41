// internal/app/bootstrap/config.go
package bootstrap

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dalemusser/tenanthub/internal/app/system/auditlog"
	"github.com/dalemusser/tenanthub/internal/app/system/authutil"
	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// appConfigKeys defines the configuration keys for tenanthub.
// These are loaded via WAFFLE's config system with support for:
//   - Config files: mongo_uri, jwt_secret, etc.
//   - Environment variables: TENANTHUB_MONGO_URI, TENANTHUB_JWT_SECRET, etc.
//   - Command-line flags: --mongo_uri, --jwt_secret, etc.
var appConfigKeys = []config.AppKey{
	{Name: "store_backend", Default: BackendMongo, Desc: "Metadata/tenant backend: 'mongo' or 'memory' (development only)"},
	{Name: "mongo_uri", Default: "mongodb://localhost:27017", Desc: "MongoDB connection URI"},
	{Name: "mongo_database", Default: "master_db", Desc: "MongoDB master database name"},
	{Name: "mongo_max_pool_size", Default: 100, Desc: "MongoDB max connection pool size (default: 100)"},
	{Name: "mongo_min_pool_size", Default: 10, Desc: "MongoDB min connection pool size (default: 10)"},

	// Tokens and passwords
	{Name: "jwt_secret", Default: "", Desc: "HS256 signing secret for admin tokens (required)"},
	{Name: "jwt_issuer", Default: "tenanthub", Desc: "Issuer claim for admin tokens"},
	{Name: "jwt_expires", Default: "60m", Desc: "Admin token lifetime (e.g., 60m, 12h)"},
	{Name: "salt_rounds", Default: authutil.DefaultCost, Desc: "bcrypt cost for administrator passwords"},

	// Rename migration
	{Name: "migration_batch_size", Default: 1000, Desc: "Documents per batch when copying a tenant collection"},

	// Reconciliation
	{Name: "reconcile_schedule", Default: "@every 5m", Desc: "Cron schedule for the reconcile worker (blank disables)"},
	{Name: "reconcile_stale_after", Default: "10m", Desc: "Age after which a running lifecycle operation is repaired"},
	{Name: "reconcile_drop_orphans", Default: false, Desc: "Drop tenant collections no organization references"},
	{Name: "reconcile_purge_after", Default: "720h", Desc: "Retention for finished journal entries (0 keeps them)"},

	// Rate limiting
	{Name: "login_rate_limit", Default: 10, Desc: "Login attempts per minute per client IP (0 disables)"},

	// Audit logging settings
	{Name: "audit_log_auth", Default: "all", Desc: "Auth event logging: 'all' (db+log), 'db', 'log', or 'off'"},
	{Name: "audit_log_admin", Default: "all", Desc: "Admin event logging: 'all' (db+log), 'db', 'log', or 'off'"},

	// Timeouts
	{Name: "timeout_ping", Default: "2s", Desc: "Health/startup ping timeout"},
	{Name: "timeout_short", Default: "5s", Desc: "Single-document read timeout"},
	{Name: "timeout_long", Default: "30s", Desc: "Multi-step lifecycle write timeout"},
	{Name: "timeout_migration", Default: "10m", Desc: "Rename migration timeout"},
	{Name: "timeout_reconcile", Default: "5m", Desc: "Reconcile pass timeout"},
}

// LoadConfig loads WAFFLE core config and app-specific config.
//
// WAFFLE's config.LoadWithAppConfig handles:
//   - Loading from .env files
//   - Loading from config.yaml/json/toml files
//   - Reading environment variables (WAFFLE_* for core, TENANTHUB_* for app)
//   - Parsing command-line flags
//   - Merging with precedence: flags > env > files > defaults
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, appValues, err := config.LoadWithAppConfig(logger, "TENANTHUB", appConfigKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}

	appCfg := AppConfig{
		StoreBackend:     strings.ToLower(strings.TrimSpace(appValues.String("store_backend"))),
		MongoURI:         appValues.String("mongo_uri"),
		MongoDatabase:    appValues.String("mongo_database"),
		MongoMaxPoolSize: uint64(appValues.Int("mongo_max_pool_size")),
		MongoMinPoolSize: uint64(appValues.Int("mongo_min_pool_size")),

		JWTSecret:  appValues.String("jwt_secret"),
		JWTIssuer:  appValues.String("jwt_issuer"),
		JWTExpires: appValues.Duration("jwt_expires", time.Hour),
		SaltRounds: appValues.Int("salt_rounds"),

		MigrationBatchSize: appValues.Int("migration_batch_size"),

		ReconcileSchedule:    strings.TrimSpace(appValues.String("reconcile_schedule")),
		ReconcileStaleAfter:  appValues.Duration("reconcile_stale_after", 10*time.Minute),
		ReconcileDropOrphans: appValues.Bool("reconcile_drop_orphans"),
		ReconcilePurgeAfter:  appValues.Duration("reconcile_purge_after", 30*24*time.Hour),

		LoginRateLimit: appValues.Int("login_rate_limit"),

		AuditLogAuth:  appValues.String("audit_log_auth"),
		AuditLogAdmin: appValues.String("audit_log_admin"),

		TimeoutPing:      appValues.Duration("timeout_ping", 0),
		TimeoutShort:     appValues.Duration("timeout_short", 0),
		TimeoutLong:      appValues.Duration("timeout_long", 0),
		TimeoutMigration: appValues.Duration("timeout_migration", 0),
		TimeoutReconcile: appValues.Duration("timeout_reconcile", 0),
	}

	return coreCfg, appCfg, nil
}

// ValidateConfig performs app-specific config validation.
//
// All problems are reported together.
func ValidateConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	err := validateAppConfig(appCfg)
	if err != nil {
		for _, e := range multierr.Errors(err) {
			logger.Error("invalid configuration", zap.Error(e))
		}
	}
	return err
}

func validateAppConfig(appCfg AppConfig) error {
	var errs error

	switch appCfg.StoreBackend {
	case BackendMongo:
		if err := wafflemongo.ValidateURI(appCfg.MongoURI); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("invalid MongoDB URI: %w", err))
		}
		if strings.TrimSpace(appCfg.MongoDatabase) == "" {
			errs = multierr.Append(errs, errors.New("mongo_database is required"))
		}
	case BackendMemory:
	default:
		errs = multierr.Append(errs, fmt.Errorf("store_backend must be %q or %q, got %q", BackendMongo, BackendMemory, appCfg.StoreBackend))
	}

	if strings.TrimSpace(appCfg.JWTSecret) == "" {
		errs = multierr.Append(errs, errors.New("jwt_secret is required"))
	}
	if appCfg.JWTExpires <= 0 {
		errs = multierr.Append(errs, errors.New("jwt_expires must be positive"))
	}
	if appCfg.SaltRounds < bcrypt.MinCost || appCfg.SaltRounds > bcrypt.MaxCost {
		errs = multierr.Append(errs, fmt.Errorf("salt_rounds must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost))
	}
	if appCfg.MigrationBatchSize <= 0 {
		errs = multierr.Append(errs, errors.New("migration_batch_size must be positive"))
	}
	if appCfg.LoginRateLimit < 0 {
		errs = multierr.Append(errs, errors.New("login_rate_limit cannot be negative"))
	}
	if appCfg.ReconcileStaleAfter < 0 {
		errs = multierr.Append(errs, errors.New("reconcile_stale_after cannot be negative"))
	}
	for _, kv := range [][2]string{{"audit_log_auth", appCfg.AuditLogAuth}, {"audit_log_admin", appCfg.AuditLogAdmin}} {
		switch kv[1] {
		case "", auditlog.All, auditlog.DB, auditlog.Log, auditlog.Off:
		default:
			errs = multierr.Append(errs, fmt.Errorf("%s must be all, db, log, or off, got %q", kv[0], kv[1]))
		}
	}
	return errs
}
