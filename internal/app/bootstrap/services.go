// internal/app/bootstrap/services.go
package bootstrap

import (
	"fmt"

	"github.com/dalemusser/tenanthub/internal/app/system/auditlog"
	"github.com/dalemusser/tenanthub/internal/app/system/authutil"
	"github.com/dalemusser/tenanthub/internal/app/system/orglock"
	"github.com/dalemusser/tenanthub/internal/app/system/tokens"
	"github.com/dalemusser/tenanthub/internal/app/system/workers"
	"github.com/dalemusser/tenanthub/internal/app/tenancy"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

// Services is the application graph built on top of DBDeps.
type Services struct {
	Registry *prometheus.Registry
	Audit    *auditlog.Logger
	Manager  *tenancy.Manager
	Auth     *tenancy.Authenticator
	Worker   *workers.ReconcileWorker // nil when reconcile_schedule is blank
}

// ReconcileOptions returns the worker/CLI options from config.
func (c AppConfig) ReconcileOptions() tenancy.ReconcileOptions {
	return tenancy.ReconcileOptions{
		StaleAfter:  c.ReconcileStaleAfter,
		DropOrphans: c.ReconcileDropOrphans,
		PurgeAfter:  c.ReconcilePurgeAfter,
	}
}

// NewServices wires the lifecycle manager, authenticator, audit logger, and
// (if scheduled) the reconcile worker. The worker is not started.
func NewServices(appCfg AppConfig, deps DBDeps, logger *zap.Logger) (*Services, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	al := auditlog.New(deps.Audit, logger, auditlog.Config{
		Auth:  appCfg.AuditLogAuth,
		Admin: appCfg.AuditLogAdmin,
	})

	issuer, err := tokens.NewIssuer(appCfg.JWTSecret, appCfg.JWTIssuer)
	if err != nil {
		return nil, fmt.Errorf("token issuer: %w", err)
	}
	hasher := authutil.NewHasher(appCfg.SaltRounds)

	dbName := appCfg.MongoDatabase
	if deps.MongoDatabase != nil {
		dbName = deps.MongoDatabase.Name()
	}

	mgr := tenancy.NewManager(tenancy.Deps{
		DBName:  dbName,
		Orgs:    deps.Orgs,
		Admins:  deps.Admins,
		Tenants: deps.Tenants,
		Journal: deps.Journal,
		Hasher:  hasher,
		Locks:   orglock.New(),
		Metrics: tenancy.NewMetrics(reg),
		Audit:   al,
		Logger:  logger,
	})

	svc := &Services{
		Registry: reg,
		Audit:    al,
		Manager:  mgr,
		Auth:     tenancy.NewAuthenticator(deps.Admins, hasher, issuer, appCfg.JWTExpires, logger),
	}

	if appCfg.ReconcileSchedule != "" {
		w, err := workers.NewReconcileWorker(mgr, appCfg.ReconcileOptions(), appCfg.ReconcileSchedule, logger)
		if err != nil {
			return nil, err
		}
		svc.Worker = w
	}
	return svc, nil
}
