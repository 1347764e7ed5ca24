// Package lock provides non-blocking per-key mutual exclusion so a target is
// never checked by two runs at once.
package lock

import (
	"context"
	"errors"
	"sync"
)

// ErrLocked is returned by TryLock when another holder owns the key.
var ErrLocked = errors.New("lock held")

type Locker interface {
	// TryLock acquires key without waiting. The returned func releases it.
	TryLock(ctx context.Context, key string) (unlock func(), err error)
}

// KeyedLocker is an in-process Locker.
type KeyedLocker struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func NewKeyedLocker() *KeyedLocker {
	return &KeyedLocker{held: make(map[string]struct{})}
}

func (l *KeyedLocker) TryLock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.held[key]; ok {
		return nil, ErrLocked
	}
	l.held[key] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, key)
			l.mu.Unlock()
		})
	}, nil
}
