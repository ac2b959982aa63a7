package redis

import (
	"SentraKTP/internal/entity"
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	frame     []byte
	box       *entity.DetectionBox
	expiresAt time.Time
}

// memoryStore is the IRedis used when no Redis address is configured.
type memoryStore struct {
	mu       sync.Mutex
	ttl      time.Duration
	sessions map[string]*memoryEntry
	now      func() time.Time
}

func NewMemory(ttl time.Duration) IRedis {
	return &memoryStore{
		ttl:      ttl,
		sessions: make(map[string]*memoryEntry),
		now:      time.Now,
	}
}

func (m *memoryStore) entry(sessionID string, create bool) *memoryEntry {
	e, ok := m.sessions[sessionID]
	if ok && m.ttl > 0 && m.now().After(e.expiresAt) {
		delete(m.sessions, sessionID)
		ok = false
	}
	if !ok && create {
		e = &memoryEntry{}
		m.sessions[sessionID] = e
		ok = true
	}
	if !ok {
		return nil
	}
	if create {
		e.expiresAt = m.now().Add(m.ttl)
	}
	return e
}

func (m *memoryStore) SaveFrame(_ context.Context, sessionID string, frame []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	buf := make([]byte, len(frame))
	copy(buf, frame)
	m.entry(sessionID, true).frame = buf
	return nil
}

func (m *memoryStore) GetFrame(_ context.Context, sessionID string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e := m.entry(sessionID, false)
	if e == nil || e.frame == nil {
		return nil, ErrNotFound
	}
	return e.frame, nil
}

func (m *memoryStore) SaveBox(_ context.Context, sessionID string, box *entity.DetectionBox) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if box == nil {
		if e := m.entry(sessionID, false); e != nil {
			e.box = nil
		}
		return nil
	}

	b := *box
	m.entry(sessionID, true).box = &b
	return nil
}

func (m *memoryStore) GetBox(_ context.Context, sessionID string) (*entity.DetectionBox, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e := m.entry(sessionID, false)
	if e == nil || e.box == nil {
		return nil, ErrNotFound
	}
	b := *e.box
	return &b, nil
}

func (m *memoryStore) Delete(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.sessions, sessionID)
	return nil
}
