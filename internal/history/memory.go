package history

import (
	"context"
	"sync"
)

// MemoryRepository keeps the most recent entries in a bounded ring.
type MemoryRepository struct {
	mu      sync.RWMutex
	entries []*Entry
	next    int
	full    bool
}

func NewMemoryRepository(capacity int) *MemoryRepository {
	if capacity <= 0 {
		capacity = 500
	}
	return &MemoryRepository{entries: make([]*Entry, capacity)}
}

func (m *MemoryRepository) Add(_ context.Context, e *Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *e
	m.entries[m.next] = &cp
	m.next = (m.next + 1) % len(m.entries)
	if m.next == 0 {
		m.full = true
	}
	return nil
}

func (m *MemoryRepository) Get(_ context.Context, id string) (*Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, e := range m.entries {
		if e != nil && e.ID == id {
			cp := *e
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryRepository) List(_ context.Context, userID string, limit int) ([]*Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := m.next
	if m.full {
		n = len(m.entries)
	}
	out := []*Entry{}
	// walk backwards from the newest slot
	for i := 0; i < n && len(out) < limit; i++ {
		idx := (m.next - 1 - i + len(m.entries)) % len(m.entries)
		e := m.entries[idx]
		if e == nil || (userID != "" && e.UserID != userID) {
			continue
		}
		cp := *e
		out = append(out, &cp)
	}
	return out, nil
}
