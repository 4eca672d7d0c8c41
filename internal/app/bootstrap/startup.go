// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"

	"github.com/dalemusser/tenanthub/internal/app/system/timeouts"
	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

// Startup runs one-time application initialization after DB connections and
// schema setup are complete, but before the HTTP handler is built. It builds
// the service graph into deps.Services and starts the reconcile worker.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	svc, err := NewServices(appCfg, deps, logger)
	if err != nil {
		logger.Error("service wiring failed", zap.Error(err))
		return err
	}
	*deps.Services = *svc

	t := timeouts.Current()
	logger.Info("tenanthub configured",
		zap.String("backend", appCfg.StoreBackend),
		zap.Duration("token_ttl", appCfg.JWTExpires),
		zap.Int("migration_batch_size", appCfg.MigrationBatchSize),
		zap.Duration("timeout_short", t.Short),
		zap.Duration("timeout_long", t.Long),
		zap.Duration("timeout_migration", t.Migration))

	if svc.Worker != nil {
		svc.Worker.Start()
	} else {
		logger.Info("reconcile worker disabled")
	}
	return nil
}
