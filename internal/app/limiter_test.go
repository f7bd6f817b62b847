package app

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// waitAcquire lance un Acquire en tâche de fond et signale sa réussite.
func waitAcquire(l *FetchLimiter) <-chan error {
	done := make(chan error, 1)
	go func() { done <- l.Acquire(context.Background()) }()
	return done
}

func assertBlocked(t *testing.T, done <-chan error) {
	t.Helper()
	select {
	case <-done:
		t.Fatalf("acquire should still be waiting")
	case <-time.After(50 * time.Millisecond):
	}
}

func assertAcquired(t *testing.T, done <-chan error) {
	t.Helper()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Acquire: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("acquire did not proceed")
	}
}

func TestFetchLimiter_ReleaseHandsOverSlot(t *testing.T) {
	l := NewFetchLimiter(1)
	if err := l.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	done := waitAcquire(l)
	assertBlocked(t, done)

	l.Release()
	assertAcquired(t, done)
	l.Release()
	if n := l.InFlight(); n != 0 {
		t.Fatalf("in flight: want 0, got %d", n)
	}
}

func TestFetchLimiter_SetLimit(t *testing.T) {
	l := NewFetchLimiter(1)
	_ = l.Acquire(context.Background())

	done := waitAcquire(l)
	assertBlocked(t, done)
	l.SetLimit(2)
	assertAcquired(t, done)

	// Abaisser le plafond ne retire rien aux fetchs en cours.
	l.SetLimit(0)
	if l.Limit() != 1 || l.InFlight() != 2 {
		t.Fatalf("limit=%d inFlight=%d", l.Limit(), l.InFlight())
	}
	next := waitAcquire(l)
	l.Release()
	assertBlocked(t, next)
	l.Release()
	assertAcquired(t, next)
	l.Release()
}

func TestFetchLimiter_AcquireHonorsContext(t *testing.T) {
	l := NewFetchLimiter(1)
	_ = l.Acquire(context.Background())
	defer l.Release()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	if err := l.Acquire(ctx); err != context.DeadlineExceeded {
		t.Fatalf("want DeadlineExceeded, got %v", err)
	}
	if n := l.InFlight(); n != 1 {
		t.Fatalf("cancelled acquire must not take a slot, inFlight=%d", n)
	}
}

func TestFetchLimiter_NeverExceedsLimit(t *testing.T) {
	l := NewFetchLimiter(3)
	var current, peak atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = l.Acquire(context.Background())
			n := current.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			current.Add(-1)
			l.Release()
		}()
	}
	wg.Wait()
	if p := peak.Load(); p > 3 {
		t.Fatalf("peak concurrency %d exceeds limit", p)
	}
}
