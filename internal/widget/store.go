package widget

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrStoreFull is returned when a single session's state is larger than the
// store will hold.
var ErrStoreFull = errors.New("widget state exceeds the store capacity")

// Store keeps widget state per session id.
type Store interface {
	// Load returns the state for id, or an empty state if none exists.
	Load(ctx context.Context, id string) (*State, error)

	// Update runs fn on the current state and saves the result atomically.
	// When fn returns an error nothing is saved and that error is returned.
	// The state passed to fn may omit the selected file's bytes.
	Update(ctx context.Context, id string, fn func(*State) error) error
}

type memoryEntry struct {
	state   State
	touched time.Time
}

// MemoryStore is a process-local Store. Entries idle longer than ttl are
// treated as absent and removed by Sweep. When a session or byte cap is set,
// the least recently touched sessions are evicted to stay under it.
type MemoryStore struct {
	mu          sync.Mutex
	entries     map[string]*memoryEntry
	bytes       int64
	ttl         time.Duration
	maxBytes    int64
	maxSessions int
	now         func() time.Time
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithMaxBytes caps the total size of stored photos. Zero means no cap.
func WithMaxBytes(n int64) MemoryOption {
	return func(m *MemoryStore) { m.maxBytes = n }
}

// WithMaxSessions caps the number of stored sessions. Zero means no cap.
func WithMaxSessions(n int) MemoryOption {
	return func(m *MemoryStore) { m.maxSessions = n }
}

func NewMemoryStore(ttl time.Duration, opts ...MemoryOption) *MemoryStore {
	m := &MemoryStore{
		entries: make(map[string]*memoryEntry),
		ttl:     ttl,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *MemoryStore) Load(ctx context.Context, id string) (*State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e := m.live(id)
	if e == nil {
		return &State{}, nil
	}
	s := e.state
	return &s, nil
}

func (m *MemoryStore) Update(ctx context.Context, id string, fn func(*State) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var s State
	if e := m.live(id); e != nil {
		s = e.state
	}
	if err := fn(&s); err != nil {
		return err
	}

	size := s.size()
	if m.maxBytes > 0 && size > m.maxBytes {
		return ErrStoreFull
	}
	m.remove(id)
	m.makeRoom(size)

	now := m.now()
	s.UpdatedAt = now
	m.entries[id] = &memoryEntry{state: s, touched: now}
	m.bytes += size
	return nil
}

// makeRoom evicts sessions, oldest first, until one more session of size
// bytes fits the caps. Callers hold m.mu.
func (m *MemoryStore) makeRoom(size int64) {
	over := func() bool {
		if m.maxBytes > 0 && m.bytes+size > m.maxBytes {
			return true
		}
		return m.maxSessions > 0 && len(m.entries)+1 > m.maxSessions
	}
	if !over() {
		return
	}

	m.sweepLocked()
	for over() && len(m.entries) > 0 {
		victim := ""
		var oldest time.Time
		for id, e := range m.entries {
			if victim == "" || e.touched.Before(oldest) {
				victim, oldest = id, e.touched
			}
		}
		m.remove(victim)
	}
}

// live returns the unexpired entry for id. Callers hold m.mu.
func (m *MemoryStore) live(id string) *memoryEntry {
	e, ok := m.entries[id]
	if !ok {
		return nil
	}
	if m.now().Sub(e.touched) > m.ttl {
		m.remove(id)
		return nil
	}
	return e
}

func (m *MemoryStore) remove(id string) {
	if e, ok := m.entries[id]; ok {
		m.bytes -= e.state.size()
		delete(m.entries, id)
	}
}

// Sweep drops expired entries and reports how many were removed.
func (m *MemoryStore) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sweepLocked()
}

func (m *MemoryStore) sweepLocked() int {
	removed := 0
	now := m.now()
	for id, e := range m.entries {
		if now.Sub(e.touched) > m.ttl {
			m.remove(id)
			removed++
		}
	}
	return removed
}

// RunJanitor sweeps every interval until ctx is done.
func (m *MemoryStore) RunJanitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep()
		}
	}
}

// Len reports the number of stored sessions, expired or not.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Bytes reports the total size of stored photos.
func (m *MemoryStore) Bytes() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.bytes
}
