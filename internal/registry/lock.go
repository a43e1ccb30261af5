package registry

import (
	"context"
	"sync"
	"time"

	"github.com/outcomelab/marketd/internal/domain"
)

// LocalLocker implements domain.LockManager with in-process mutexes, one
// per key. It is the default for a single agent process; deployments
// running multiple instances against the same registry directory use the
// Redis lock manager instead.
type LocalLocker struct {
	mu    sync.Mutex
	locks map[string]chan struct{}
}

// NewLocalLocker creates an empty LocalLocker.
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{locks: make(map[string]chan struct{})}
}

func (l *LocalLocker) slot(key string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	ch, ok := l.locks[key]
	if !ok {
		ch = make(chan struct{}, 1)
		l.locks[key] = ch
	}
	return ch
}

// Acquire blocks until the named lock is free or ctx is done. The ttl is
// ignored: an in-process holder cannot die without the process dying too.
// The returned unlock function is safe to call multiple times.
func (l *LocalLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	ch := l.slot(key)
	select {
	case ch <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	var once sync.Once
	unlock := func() {
		once.Do(func() { <-ch })
	}
	return unlock, nil
}

// Compile-time interface check.
var _ domain.LockManager = (*LocalLocker)(nil)
