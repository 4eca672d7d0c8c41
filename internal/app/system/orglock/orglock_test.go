package orglock

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestLock_SerializesSameKey(t *testing.T) {
	l := New()
	ctx := context.Background()

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := l.Lock(ctx, OrgKey("a"))
			if err != nil {
				t.Errorf("Lock failed: %v", err)
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
			unlock()
		}()
	}
	wg.Wait()

	if maxInside != 1 {
		t.Errorf("expected at most 1 holder at a time, saw %d", maxInside)
	}
	if l.Held() != 0 {
		t.Errorf("expected no held keys after release, got %d", l.Held())
	}
}

func TestLock_DifferentKeysDoNotBlock(t *testing.T) {
	l := New()
	ctx := context.Background()

	unlockA, err := l.Lock(ctx, OrgKey("a"))
	if err != nil {
		t.Fatalf("Lock a failed: %v", err)
	}
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlockB, err := l.Lock(ctx, OrgKey("b"))
		if err == nil {
			unlockB()
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on a different key blocked")
	}
}

func TestLock_ContextCancel(t *testing.T) {
	l := New()
	unlock, err := l.Lock(context.Background(), NameKey("acme"))
	if err != nil {
		t.Fatalf("Lock failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := l.Lock(ctx, NameKey("acme")); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected DeadlineExceeded, got %v", err)
	}

	unlock()
	if l.Held() != 0 {
		t.Errorf("expected waiter bookkeeping to be released, got %d held", l.Held())
	}
}

func TestUnlock_Idempotent(t *testing.T) {
	l := New()
	unlock, err := l.Lock(context.Background(), "k")
	if err != nil {
		t.Fatalf("Lock failed: %v", err)
	}
	unlock()
	unlock()

	unlock2, err := l.Lock(context.Background(), "k")
	if err != nil {
		t.Fatalf("re-Lock failed: %v", err)
	}
	unlock2()
}

func TestLockAll_ReleasesOnFailure(t *testing.T) {
	l := New()
	held, err := l.Lock(context.Background(), "second")
	if err != nil {
		t.Fatalf("Lock failed: %v", err)
	}
	defer held()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := l.LockAll(ctx, "first", "second"); err == nil {
		t.Fatal("expected LockAll to fail while second is held")
	}

	unlock, err := l.Lock(context.Background(), "first")
	if err != nil {
		t.Fatalf("first should have been released: %v", err)
	}
	unlock()
}
