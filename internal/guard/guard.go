package guard

import (
	"context"
	"errors"
	"sync"
)

// ErrBusy is returned when another deployment already holds the key.
var ErrBusy = errors.New("guard: deployment already in progress")

// Guard enforces at most one active deployment per project key. Acquire
// either takes the key atomically or fails with ErrBusy; it never waits.
type Guard interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// Memory is an in-process Guard.
type Memory struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func NewMemory() *Memory {
	return &Memory{held: make(map[string]struct{})}
}

func (m *Memory) Acquire(ctx context.Context, key string) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, busy := m.held[key]; busy {
		return nil, ErrBusy
	}
	m.held[key] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.held, key)
			m.mu.Unlock()
		})
	}, nil
}

// Held reports whether key is currently taken.
func (m *Memory) Held(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.held[key]
	return ok
}
