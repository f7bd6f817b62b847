package app

import (
	"context"
	"sync"
)

// FetchLimiter borne le nombre de requêtes AniList simultanées. Le plafond
// suit max_concurrent_fetches et peut changer à chaud (rechargement de la
// config); un plafond abaissé s'applique aux prochains Acquire.
type FetchLimiter struct {
	mu     sync.Mutex
	limit  int
	active int
	// wake est fermé (puis remplacé) quand un slot peut s'être libéré.
	wake chan struct{}
}

func NewFetchLimiter(limit int) *FetchLimiter {
	return &FetchLimiter{limit: max(limit, 1), wake: make(chan struct{})}
}

func (l *FetchLimiter) Limit() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.limit
}

func (l *FetchLimiter) InFlight() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.active
}

func (l *FetchLimiter) SetLimit(limit int) {
	limit = max(limit, 1)
	l.mu.Lock()
	defer l.mu.Unlock()
	if limit > l.limit {
		l.signalLocked()
	}
	l.limit = limit
}

// Acquire attend un slot libre ou l'annulation de ctx.
func (l *FetchLimiter) Acquire(ctx context.Context) error {
	for {
		ok, wake := l.tryAcquire()
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-wake:
		}
	}
}

func (l *FetchLimiter) tryAcquire() (bool, <-chan struct{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.active < l.limit {
		l.active++
		return true, nil
	}
	return false, l.wake
}

func (l *FetchLimiter) Release() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.active == 0 {
		return
	}
	l.active--
	l.signalLocked()
}

func (l *FetchLimiter) signalLocked() {
	close(l.wake)
	l.wake = make(chan struct{})
}
