// Package timeouts provides the timeout values used around store operations.
//
// Guidelines:
//   - Ping: health checks and startup connectivity
//   - Short: single-document reads (get organization, login lookup)
//   - Long: multi-step lifecycle writes (create, delete, credential update)
//   - Migration: rename, which copies a whole tenant collection in-request
//   - Reconcile: one background repair pass
package timeouts

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultPing      = 2 * time.Second
	DefaultShort     = 5 * time.Second
	DefaultLong      = 30 * time.Second
	DefaultMigration = 10 * time.Minute
	DefaultReconcile = 5 * time.Minute
)

var (
	mu        sync.RWMutex
	ping      = DefaultPing
	short     = DefaultShort
	long      = DefaultLong
	migration = DefaultMigration
	reconcile = DefaultReconcile
)

func Ping() time.Duration      { return get(&ping) }
func Short() time.Duration     { return get(&short) }
func Long() time.Duration      { return get(&long) }
func Migration() time.Duration { return get(&migration) }
func Reconcile() time.Duration { return get(&reconcile) }

func get(d *time.Duration) time.Duration {
	mu.RLock()
	defer mu.RUnlock()
	return *d
}

// Config holds overrides. Zero values keep the current value.
type Config struct {
	Ping      time.Duration
	Short     time.Duration
	Long      time.Duration
	Migration time.Duration
	Reconcile time.Duration
}

// Configure applies non-zero overrides. Call once at startup.
func Configure(cfg Config) {
	mu.Lock()
	defer mu.Unlock()
	set := func(dst *time.Duration, v time.Duration) {
		if v > 0 {
			*dst = v
		}
	}
	set(&ping, cfg.Ping)
	set(&short, cfg.Short)
	set(&long, cfg.Long)
	set(&migration, cfg.Migration)
	set(&reconcile, cfg.Reconcile)
}

// Reset restores the defaults. Used by tests.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	ping, short, long = DefaultPing, DefaultShort, DefaultLong
	migration, reconcile = DefaultMigration, DefaultReconcile
}

// Current returns the active configuration, for startup logging.
func Current() Config {
	mu.RLock()
	defer mu.RUnlock()
	return Config{Ping: ping, Short: short, Long: long, Migration: migration, Reconcile: reconcile}
}

// WithTimeout derives a context with timeout whose cancel func logs a
// warning when the deadline was the reason the operation ended.
//
//	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Migration(), h.Log, "rename organization")
//	defer cancel()
func WithTimeout(parent context.Context, timeout time.Duration, log *zap.Logger, operation string) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(parent, timeout)
	return ctx, func() {
		if ctx.Err() == context.DeadlineExceeded && log != nil {
			log.Warn("operation timed out",
				zap.String("operation", operation),
				zap.Duration("timeout", timeout),
			)
		}
		cancel()
	}
}
