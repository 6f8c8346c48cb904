package lock

import (
	"context"
	"fmt"
	"sync"
)

type localEntry struct {
	slot chan struct{}
	refs int
}

// LocalLocker is an in-process keyed mutex. Entries are dropped once no
// goroutine holds or waits for them.
type LocalLocker struct {
	mu      sync.Mutex
	entries map[string]*localEntry
}

// NewLocalLocker builds an empty in-process locker.
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{entries: make(map[string]*localEntry)}
}

// Acquire blocks until key is free or ctx is done.
func (l *LocalLocker) Acquire(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	entry, ok := l.entries[key]
	if !ok {
		entry = &localEntry{slot: make(chan struct{}, 1)}
		l.entries[key] = entry
	}
	entry.refs++
	l.mu.Unlock()

	select {
	case entry.slot <- struct{}{}:
	case <-ctx.Done():
		l.unref(key, entry)
		return nil, fmt.Errorf("%w: %s: %v", ErrNotAcquired, key, ctx.Err())
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-entry.slot
			l.unref(key, entry)
		})
	}, nil
}

func (l *LocalLocker) unref(key string, entry *localEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry.refs--
	if entry.refs == 0 {
		delete(l.entries, key)
	}
}

// size reports the number of live keys.
func (l *LocalLocker) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
