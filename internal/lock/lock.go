// Package lock serializes check-in writes per (course, student, date) key.
// The backing stores are not transactional across a read-check-insert
// sequence on their own, so the recorder takes one of these locks around it.
package lock

import (
	"context"
	"sync"
)

// Keyed grants exclusive ownership of a string key. Lock blocks until the
// key is free or ctx is done; the returned function releases it.
type Keyed interface {
	Lock(ctx context.Context, key string) (func(), error)
}

// InMemory is a process-local Keyed lock. Entries are reference-counted and
// removed once the last waiter releases, so the key space stays bounded.
type InMemory struct {
	mu   sync.Mutex
	keys map[string]*memEntry
}

type memEntry struct {
	sem  chan struct{}
	refs int
}

// NewInMemory creates an empty in-process lock table.
func NewInMemory() *InMemory {
	return &InMemory{keys: make(map[string]*memEntry)}
}

// Lock acquires the key, waiting for the current holder if necessary.
func (l *InMemory) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	e, ok := l.keys[key]
	if !ok {
		e = &memEntry{sem: make(chan struct{}, 1)}
		l.keys[key] = e
	}
	e.refs++
	l.mu.Unlock()

	select {
	case e.sem <- struct{}{}:
	case <-ctx.Done():
		l.release(key, e)
		return nil, ctx.Err()
	}

	var once sync.Once
	unlock := func() {
		once.Do(func() {
			<-e.sem
			l.release(key, e)
		})
	}
	return unlock, nil
}

func (l *InMemory) release(key string, e *memEntry) {
	l.mu.Lock()
	e.refs--
	if e.refs == 0 {
		delete(l.keys, key)
	}
	l.mu.Unlock()
}
