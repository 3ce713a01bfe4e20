package state

import (
	"context"
	"sync"
	"time"
)

var _ Store = (*MemoryStore)(nil)

type pending struct {
	token   string
	expires time.Time
}

// MemoryStore is a process-local Store. Entries expire lazily on access and
// are swept on writes, so the maps stay bounded by the number of active users.
type MemoryStore struct {
	mu        sync.Mutex
	ttl       time.Duration
	pending   map[int64]pending
	updates   map[int]time.Time
	lastSweep time.Time
	now       func() time.Time
}

// NewMemoryStore creates a store whose continuations live for ttl
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultPendingTTL
	}
	return &MemoryStore{
		ttl:     ttl,
		pending: make(map[int64]pending),
		updates: make(map[int]time.Time),
		now:     time.Now,
	}
}

func (m *MemoryStore) SetPending(ctx context.Context, userID int64, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.sweep(now)
	m.pending[userID] = pending{token: token, expires: now.Add(m.ttl)}
	return nil
}

func (m *MemoryStore) TakePending(ctx context.Context, userID int64) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.pending[userID]
	if !ok {
		return "", false, nil
	}
	delete(m.pending, userID)
	if !m.now().Before(p.expires) {
		return "", false, nil
	}
	return p.token, true, nil
}

func (m *MemoryStore) ClearPending(ctx context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.pending, userID)
	return nil
}

func (m *MemoryStore) MarkUpdate(ctx context.Context, updateID int, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.sweep(now)
	if expires, ok := m.updates[updateID]; ok && now.Before(expires) {
		return false, nil
	}
	m.updates[updateID] = now.Add(ttl)
	return true, nil
}

func (m *MemoryStore) ReleaseUpdate(ctx context.Context, updateID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.updates, updateID)
	return nil
}

func (m *MemoryStore) Close() error {
	return nil
}

// sweep drops expired entries at most once a minute. Callers hold mu.
func (m *MemoryStore) sweep(now time.Time) {
	if now.Sub(m.lastSweep) < time.Minute {
		return
	}
	m.lastSweep = now
	for id, p := range m.pending {
		if !now.Before(p.expires) {
			delete(m.pending, id)
		}
	}
	for id, expires := range m.updates {
		if !now.Before(expires) {
			delete(m.updates, id)
		}
	}
}
