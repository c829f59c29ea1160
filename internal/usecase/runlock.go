package usecase

import (
	"errors"
	"sync"
)

// ErrRunInProgress is returned when a project already has a run in flight.
var ErrRunInProgress = errors.New("run already in progress for project")

// KeyedLock is a non-blocking mutex per key.
type KeyedLock struct {
	mu   sync.Mutex
	held map[string]struct{}
}

// NewKeyedLock returns an empty lock set.
func NewKeyedLock() *KeyedLock {
	return &KeyedLock{held: map[string]struct{}{}}
}

// TryLock acquires key without waiting. The returned unlock is idempotent.
func (l *KeyedLock) TryLock(key string) (unlock func(), ok bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, busy := l.held[key]; busy {
		return nil, false
	}
	l.held[key] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, key)
			l.mu.Unlock()
		})
	}, true
}

// Held reports whether key is currently locked.
func (l *KeyedLock) Held(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, busy := l.held[key]
	return busy
}
