package session

import (
	"context"
	"sync"
	"time"

	"github.com/MikeSquared-Agency/safety-intake/internal/dialogue"
)

type entry struct {
	state   dialogue.State
	expires time.Time
}

// Memory is an in-process Store. Entries expire ttl after their last save.
type Memory struct {
	mu      sync.Mutex
	entries map[string]entry
	ttl     time.Duration
	now     func() time.Time
}

func NewMemory(ttl time.Duration) *Memory {
	return &Memory{
		entries: make(map[string]entry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (m *Memory) Get(_ context.Context, id string) (dialogue.State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[id]
	if !ok || m.expired(e) {
		delete(m.entries, id)
		return dialogue.State{}, ErrNotFound
	}
	return e.state.Clone(), nil
}

func (m *Memory) Save(_ context.Context, s dialogue.State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[s.SessionID] = entry{state: s.Clone(), expires: m.now().Add(m.ttl)}
	return nil
}

func (m *Memory) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.entries, id)
	return nil
}

// Len returns the number of live sessions.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, e := range m.entries {
		if !m.expired(e) {
			n++
		}
	}
	return n
}

// Run removes expired entries every interval until ctx is done.
func (m *Memory) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.sweep()
		}
	}
}

func (m *Memory) sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, e := range m.entries {
		if m.expired(e) {
			delete(m.entries, id)
			removed++
		}
	}
	return removed
}

func (m *Memory) expired(e entry) bool {
	return m.ttl > 0 && !m.now().Before(e.expires)
}
