package workers

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dalemusser/tenanthub/internal/app/tenancy"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type fakeReconciler struct {
	calls  atomic.Int32
	report tenancy.ReconcileReport
	err    error
	opts   tenancy.ReconcileOptions
}

func (f *fakeReconciler) Reconcile(_ context.Context, opts tenancy.ReconcileOptions) (tenancy.ReconcileReport, error) {
	f.calls.Add(1)
	f.opts = opts
	return f.report, f.err
}

func TestNewReconcileWorker_InvalidSchedule(t *testing.T) {
	for _, s := range []string{"", "every minute", "* * *", "@every banana"} {
		if _, err := NewReconcileWorker(&fakeReconciler{}, tenancy.ReconcileOptions{}, s, nil); err == nil {
			t.Errorf("schedule %q: expected error", s)
		}
	}
}

func TestRunOnce_PassesOptionsAndLogs(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	rec := &fakeReconciler{report: tenancy.ReconcileReport{
		Repairs: []tenancy.Repair{{Kind: "rename", Action: tenancy.ActionRolledBack}},
		Orphans: []string{"org_ghost"},
	}}
	opts := tenancy.ReconcileOptions{StaleAfter: 10 * time.Minute, DropOrphans: true}

	w, err := NewReconcileWorker(rec, opts, "*/5 * * * *", zap.New(core))
	if err != nil {
		t.Fatalf("NewReconcileWorker failed: %v", err)
	}

	report, err := w.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce failed: %v", err)
	}
	if len(report.Repairs) != 1 {
		t.Errorf("repairs: got %d, want 1", len(report.Repairs))
	}
	if rec.opts != opts {
		t.Errorf("options: got %+v, want %+v", rec.opts, opts)
	}
	if logs.FilterMessage("reconcile pass finished").Len() != 1 {
		t.Error("expected a finished log entry")
	}
}

func TestRunOnce_QuietWhenNothingToDo(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	w, err := NewReconcileWorker(&fakeReconciler{}, tenancy.ReconcileOptions{}, "@hourly", zap.New(core))
	if err != nil {
		t.Fatalf("NewReconcileWorker failed: %v", err)
	}
	if _, err := w.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce failed: %v", err)
	}
	if logs.Len() != 0 {
		t.Errorf("expected no log entries, got %d", logs.Len())
	}
}

func TestRunOnce_ReportsError(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	boom := errors.New("journal unavailable")
	w, err := NewReconcileWorker(&fakeReconciler{err: boom}, tenancy.ReconcileOptions{}, "@hourly", zap.New(core))
	if err != nil {
		t.Fatalf("NewReconcileWorker failed: %v", err)
	}
	if _, err := w.RunOnce(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("RunOnce error: got %v, want %v", err, boom)
	}
	if logs.FilterMessage("reconcile pass failed").Len() != 1 {
		t.Error("expected a failure log entry")
	}
}

func TestStartStop_RunsOnSchedule(t *testing.T) {
	rec := &fakeReconciler{}
	w, err := NewReconcileWorker(rec, tenancy.ReconcileOptions{}, "@every 1s", zap.NewNop())
	if err != nil {
		t.Fatalf("NewReconcileWorker failed: %v", err)
	}

	w.Start()
	w.Start() // second Start is a no-op

	deadline := time.Now().Add(5 * time.Second)
	for rec.calls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
	}
	w.Stop()
	w.Stop()

	if rec.calls.Load() == 0 {
		t.Fatal("expected at least one scheduled run")
	}
	after := rec.calls.Load()
	time.Sleep(1500 * time.Millisecond)
	if rec.calls.Load() != after {
		t.Error("worker kept running after Stop")
	}
}
