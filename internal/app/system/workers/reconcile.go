// internal/app/system/workers/reconcile.go
package workers

import (
	"context"
	"fmt"
	"sync"

	"github.com/dalemusser/tenanthub/internal/app/system/timeouts"
	"github.com/dalemusser/tenanthub/internal/app/tenancy"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Reconciler repairs interrupted lifecycle operations.
type Reconciler interface {
	Reconcile(ctx context.Context, opts tenancy.ReconcileOptions) (tenancy.ReconcileReport, error)
}

var scheduleParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ReconcileWorker runs the reconciliation pass on a cron schedule.
// Overlapping runs are skipped.
type ReconcileWorker struct {
	rec      Reconciler
	opts     tenancy.ReconcileOptions
	log      *zap.Logger
	schedule string
	cron     *cron.Cron

	mu      sync.Mutex
	started bool
}

// NewReconcileWorker creates a worker for a standard five-field cron
// expression or a descriptor such as "@every 5m".
//
// Parameters:
//   - rec: usually the tenancy.Manager
//   - opts: passed through to every run
//   - schedule: when to run
//   - logger: zap logger for logging
func NewReconcileWorker(rec Reconciler, opts tenancy.ReconcileOptions, schedule string, logger *zap.Logger) (*ReconcileWorker, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	w := &ReconcileWorker{
		rec:      rec,
		opts:     opts,
		log:      logger,
		schedule: schedule,
	}

	cl := cronLogger{logger.Sugar()}
	w.cron = cron.New(
		cron.WithParser(scheduleParser),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	if _, err := w.cron.AddFunc(schedule, w.run); err != nil {
		return nil, fmt.Errorf("invalid reconcile schedule %q: %w", schedule, err)
	}
	return w, nil
}

// Start begins the schedule.
func (w *ReconcileWorker) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return
	}
	w.started = true
	w.cron.Start()
	w.log.Info("reconcile worker started",
		zap.String("schedule", w.schedule),
		zap.Duration("stale_after", w.opts.StaleAfter),
		zap.Bool("drop_orphans", w.opts.DropOrphans))
}

// Stop halts the schedule and waits for a running pass to finish.
func (w *ReconcileWorker) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.started {
		return
	}
	w.started = false
	<-w.cron.Stop().Done()
	w.log.Info("reconcile worker stopped")
}

func (w *ReconcileWorker) run() {
	ctx, cancel := context.WithTimeout(context.Background(), timeouts.Reconcile())
	defer cancel()
	_, _ = w.RunOnce(ctx)
}

// RunOnce performs a single pass and logs its outcome.
func (w *ReconcileWorker) RunOnce(ctx context.Context) (tenancy.ReconcileReport, error) {
	report, err := w.rec.Reconcile(ctx, w.opts)
	if err != nil {
		w.log.Error("reconcile pass failed",
			zap.Int("repairs", len(report.Repairs)),
			zap.Error(err))
		return report, err
	}

	if len(report.Repairs) > 0 || len(report.Orphans) > 0 || report.Purged > 0 {
		w.log.Info("reconcile pass finished",
			zap.Int("repairs", len(report.Repairs)),
			zap.Strings("orphans", report.Orphans),
			zap.Strings("dropped", report.Dropped),
			zap.Int64("purged", report.Purged))
	}
	return report, nil
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
