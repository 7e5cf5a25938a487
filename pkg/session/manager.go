package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Manager manages sessions in memory, evicting idle ones lazily on
// access and via a periodic sweep goroutine (spec.md §3.5). Mirrors the
// teacher's pkg/session/manager.go RWMutex-over-map shape.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	ttl   time.Duration
	keepN int

	stopSweep chan struct{}
	sweepOnce sync.Once

	logger *slog.Logger
}

// NewManager creates a Manager with the given idle TTL and history
// ring-buffer size (K in spec.md §3.5, default 5).
func NewManager(ttl time.Duration, keepN int) *Manager {
	return &Manager{
		sessions:  make(map[string]*Session),
		ttl:       ttl,
		keepN:     keepN,
		stopSweep: make(chan struct{}),
		logger:    slog.Default(),
	}
}

// Create starts a new session and returns it.
func (m *Manager) Create() *Session {
	s := newSession(uuid.New().String(), m.keepN)
	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()
	return s
}

// Get retrieves a session by ID, evicting it first if it has expired.
func (m *Manager) Get(sessionID string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[sessionID]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("session not found: %s", sessionID)
	}
	if s.expired(m.ttl, time.Now()) {
		m.Delete(sessionID)
		return nil, fmt.Errorf("session not found: %s", sessionID)
	}
	s.touch()
	return s, nil
}

// GetOrCreate returns the session for sessionID if live, or a new one
// when sessionID is empty or not found — the /chat endpoint's entry point.
func (m *Manager) GetOrCreate(sessionID string) *Session {
	if sessionID != "" {
		if s, err := m.Get(sessionID); err == nil {
			return s
		}
	}
	return m.Create()
}

// Delete removes a session immediately.
func (m *Manager) Delete(sessionID string) {
	m.mu.Lock()
	delete(m.sessions, sessionID)
	m.mu.Unlock()
}

// FindQuery scans live sessions for queryID, used by REST endpoints that
// receive only a query_id and no session_id (spec.md §6.3 does not thread
// session_id through GET /api/execute, /api/interpret, /api/download).
// Sessions are few and short-lived enough that a linear scan under RLock
// is the simplest correct option; an explicit session_id query parameter,
// when the caller has one, should be preferred and checked first.
func (m *Manager) FindQuery(queryID string) (*Session, *QueryCacheEntry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.sessions {
		if e, ok := s.GetQuery(queryID); ok {
			return s, e, true
		}
	}
	return nil, nil, false
}

// Count returns the number of live sessions, used by the health endpoint.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// StartSweep launches the periodic idle-session sweep described in
// spec.md §3.5 (every 60s by default). It runs until ctx is canceled.
func (m *Manager) StartSweep(ctx context.Context, every time.Duration) {
	go func() {
		ticker := time.NewTicker(every)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-m.stopSweep:
				return
			case <-ticker.C:
				m.sweep()
			}
		}
	}()
}

// StopSweep halts a sweep goroutine started with StartSweep; safe to
// call multiple times.
func (m *Manager) StopSweep() {
	m.sweepOnce.Do(func() { close(m.stopSweep) })
}

func (m *Manager) sweep() {
	now := time.Now()
	m.mu.Lock()
	defer m.mu.Unlock()
	evicted := 0
	for id, s := range m.sessions {
		if s.expired(m.ttl, now) {
			delete(m.sessions, id)
			evicted++
		}
	}
	if evicted > 0 {
		m.logger.Info("session sweep evicted idle sessions", "evicted", evicted, "remaining", len(m.sessions))
	}
}
