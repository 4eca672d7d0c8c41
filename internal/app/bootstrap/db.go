// internal/app/bootstrap/db.go
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	adminstore "github.com/dalemusser/tenanthub/internal/app/store/admins"
	"github.com/dalemusser/tenanthub/internal/app/store/audit"
	journalstore "github.com/dalemusser/tenanthub/internal/app/store/journal"
	"github.com/dalemusser/tenanthub/internal/app/store/memstore"
	organizationstore "github.com/dalemusser/tenanthub/internal/app/store/organizations"
	tenantstore "github.com/dalemusser/tenanthub/internal/app/store/tenants"
	"github.com/dalemusser/tenanthub/internal/app/system/indexes"
	"github.com/dalemusser/tenanthub/internal/app/system/timeouts"
	"github.com/dalemusser/waffle/config"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

// connectRetryWindow bounds how long startup waits for MongoDB.
const connectRetryWindow = 30 * time.Second

// ConnectDB opens the configured backend and builds the stores on top of it.
func ConnectDB(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) (DBDeps, error) {
	timeouts.Configure(timeouts.Config{
		Ping:      appCfg.TimeoutPing,
		Short:     appCfg.TimeoutShort,
		Long:      appCfg.TimeoutLong,
		Migration: appCfg.TimeoutMigration,
		Reconcile: appCfg.TimeoutReconcile,
	})

	if appCfg.StoreBackend == BackendMemory {
		logger.Warn("using in-memory store backend; data is lost on restart")
		return memoryDeps(), nil
	}

	client, err := connectMongo(ctx, appCfg, logger)
	if err != nil {
		return DBDeps{}, err
	}
	return mongoDeps(client, appCfg), nil
}

func memoryDeps() DBDeps {
	mem := memstore.New()
	return DBDeps{
		Memory:   mem,
		Orgs:     mem.Orgs,
		Admins:   mem.Admins,
		Tenants:  mem.Tenants,
		Journal:  mem.Journal,
		Services: &Services{},
	}
}

func mongoDeps(client *mongo.Client, appCfg AppConfig) DBDeps {
	db := client.Database(appCfg.MongoDatabase)
	return DBDeps{
		MongoClient:   client,
		MongoDatabase: db,
		Orgs:          organizationstore.New(db),
		Admins:        adminstore.New(db),
		Tenants:       tenantstore.New(db, appCfg.MigrationBatchSize),
		Journal:       journalstore.New(db),
		Audit:         audit.New(db),
		Services:      &Services{},
	}
}

// connectMongo connects and retries the initial ping with exponential
// backoff, so the service can start alongside its database.
func connectMongo(ctx context.Context, appCfg AppConfig, logger *zap.Logger) (*mongo.Client, error) {
	opts := options.Client().ApplyURI(appCfg.MongoURI)
	if appCfg.MongoMaxPoolSize > 0 {
		opts.SetMaxPoolSize(appCfg.MongoMaxPoolSize)
	}
	if appCfg.MongoMinPoolSize > 0 {
		opts.SetMinPoolSize(appCfg.MongoMinPoolSize)
	}

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}

	ping := func() (struct{}, error) {
		pctx, cancel := context.WithTimeout(ctx, timeouts.Ping())
		defer cancel()
		return struct{}{}, client.Ping(pctx, readpref.Primary())
	}
	_, err = backoff.Retry(ctx, ping,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxElapsedTime(connectRetryWindow),
		backoff.WithNotify(func(err error, next time.Duration) {
			logger.Warn("mongo ping failed, retrying", zap.Error(err), zap.Duration("next", next))
		}),
	)
	if err != nil {
		dctx, cancel := context.WithTimeout(context.Background(), timeouts.Short())
		defer cancel()
		_ = client.Disconnect(dctx)
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	logger.Info("connected to MongoDB",
		zap.String("database", appCfg.MongoDatabase),
		zap.Uint64("max_pool_size", appCfg.MongoMaxPoolSize))
	return client, nil
}

// EnsureSchema creates the metadata, journal, and audit indexes.
func EnsureSchema(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	if deps.MongoDatabase == nil {
		return nil
	}
	if err := indexes.EnsureAll(ctx, deps.MongoDatabase); err != nil {
		logger.Error("ensure indexes failed", zap.Error(err))
		return err
	}
	return nil
}
