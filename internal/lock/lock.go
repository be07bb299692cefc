// Package lock serialises writes that change a user's daily totals, so two
// concurrent cap checks for the same user cannot both pass.
package lock

import (
	"context"
	"errors"
	"sync"
)

// ErrNotAcquired is returned when the lock could not be taken before the
// wait deadline or the context expired.
var ErrNotAcquired = errors.New("lock: not acquired")

// Locker hands out exclusive locks keyed by string.
type Locker interface {
	// Acquire blocks until the lock for key is held and returns its release
	// function. Release is safe to call more than once.
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// UserKey is the lock key guarding one user's time logs.
func UserKey(userID string) string {
	return "timesheet:lock:user:" + userID
}

// WithLock runs fn while holding the lock for key.
func WithLock(ctx context.Context, l Locker, key string, fn func(ctx context.Context) error) error {
	release, err := l.Acquire(ctx, key)
	if err != nil {
		return err
	}
	defer release()
	return fn(ctx)
}

// Local is an in-process Locker. It only protects a single replica.
type Local struct {
	mu    sync.Mutex
	locks map[string]*entry
}

type entry struct {
	ch   chan struct{} // buffered(1); holding the token means holding the lock
	refs int
}

func NewLocal() *Local {
	return &Local{locks: make(map[string]*entry)}
}

func (l *Local) Acquire(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	e, ok := l.locks[key]
	if !ok {
		e = &entry{ch: make(chan struct{}, 1)}
		l.locks[key] = e
	}
	e.refs++
	l.mu.Unlock()

	select {
	case e.ch <- struct{}{}:
	case <-ctx.Done():
		l.unref(key, e)
		return nil, errors.Join(ErrNotAcquired, ctx.Err())
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.ch
			l.unref(key, e)
		})
	}, nil
}

func (l *Local) unref(key string, e *entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(l.locks, key)
	}
}
