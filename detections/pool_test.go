package detections

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestSessionPool_AcquireRelease(t *testing.T) {
	a := newFakeSession(t, 1, nil)
	b := newFakeSession(t, 1, nil)
	pool := newFakePool(t, a, b)
	defer pool.Destroy()

	s1, err := pool.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	s2, err := pool.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if s1 == s2 {
		t.Fatal("the same session was handed out twice")
	}

	stats := pool.Stats()
	if stats.InUse != 2 || stats.TotalAcquired != 2 || stats.PoolSize != 2 {
		t.Errorf("unexpected stats %+v", stats)
	}

	pool.Release(s1)
	pool.Release(s2)

	stats = pool.Stats()
	if stats.InUse != 0 || stats.TotalReleased != 2 {
		t.Errorf("unexpected stats after release %+v", stats)
	}
}

func TestSessionPool_AcquireTimeout(t *testing.T) {
	pool, err := NewSessionPool(1, 20*time.Millisecond, func() (Session, error) {
		return newFakeSession(t, 1, nil), nil
	})
	if err != nil {
		t.Fatalf("NewSessionPool failed: %v", err)
	}
	defer pool.Destroy()

	held, err := pool.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	defer pool.Release(held)

	_, err = pool.Acquire(context.Background())
	if !errors.Is(err, ErrAcquireTimeout) {
		t.Fatalf("expected ErrAcquireTimeout, got %v", err)
	}
	if pool.Stats().AcquireFailures != 1 {
		t.Errorf("expected one acquire failure, got %d", pool.Stats().AcquireFailures)
	}
}

func TestSessionPool_ContextCancelled(t *testing.T) {
	pool := newFakePool(t, newFakeSession(t, 1, nil))
	defer pool.Destroy()

	held, _ := pool.Acquire(context.Background())
	defer pool.Release(held)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := pool.Acquire(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestSessionPool_Destroy(t *testing.T) {
	idle := newFakeSession(t, 1, nil)
	busy := newFakeSession(t, 1, nil)
	pool := newFakePool(t, busy, idle)

	held, err := pool.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	pool.Destroy()
	pool.Destroy()

	if _, err := pool.Acquire(context.Background()); !errors.Is(err, ErrPoolClosed) {
		t.Errorf("expected ErrPoolClosed, got %v", err)
	}

	heldFake := held.(*fakeSession)
	other := idle
	if heldFake == idle {
		other = busy
	}
	if !other.destroyed.Load() {
		t.Error("idle session was not destroyed")
	}
	if heldFake.destroyed.Load() {
		t.Error("session in use was destroyed before release")
	}

	pool.Release(held)
	if !heldFake.destroyed.Load() {
		t.Error("released session was not destroyed after close")
	}
}

func TestNewSessionPool_FactoryError(t *testing.T) {
	created := newFakeSession(t, 1, nil)
	calls := 0

	_, err := NewSessionPool(3, time.Second, func() (Session, error) {
		calls++
		if calls == 2 {
			return nil, errors.New("out of memory")
		}
		return created, nil
	})
	if err == nil {
		t.Fatal("expected error from factory")
	}
	if !created.destroyed.Load() {
		t.Error("sessions created before the failure must be destroyed")
	}
}
