// Package session provides an in-memory, TTL-bounded store of
// conversation sessions: a ring buffer of recent exchanges plus a
// per-session, query-scoped result cache (spec.md §3.5).
package session

import (
	"sync"
	"time"
)

// Exchange is one user turn and its generated SQL, kept for rewriting
// follow-up questions.
type Exchange struct {
	UserMessage  string
	GeneratedSQL string
	Timestamp    time.Time
}

// QueryCacheEntry caches one executed query's preview rows under the
// session, addressed by query_id so /api/execute, /api/interpret, and
// /api/download can all find the same result set without re-running SQL.
type QueryCacheEntry struct {
	SQL             string
	OriginalQuery   string
	NormalizedQuery string // sqlcache.Normalize(RewrittenQuery) — the SQL cache's actual key
	Rows            [][]any
	Columns         []string
	TotalCount      *int // nil means "unknown" (spec.md §3.4/§4.8)
	CreatedAt       time.Time
}

// Session is one conversation's state. Exported fields are snapshotted
// by callers under the session's own lock; callers must not mutate the
// returned slices/maps directly — see Manager for the mutating API.
type Session struct {
	ID          string
	CreatedAt   time.Time
	LastTouched time.Time

	mu      sync.Mutex
	history []Exchange // ring buffer, at most keepN entries
	queries map[string]*QueryCacheEntry

	keepN int
}

func newSession(id string, keepN int) *Session {
	now := time.Now()
	return &Session{
		ID:          id,
		CreatedAt:   now,
		LastTouched: now,
		queries:     make(map[string]*QueryCacheEntry),
		keepN:       keepN,
	}
}

// touch records access time under the session's own lock so the TTL
// sweep (pkg/session/manager.go) never races a concurrent reader.
func (s *Session) touch() {
	s.mu.Lock()
	s.LastTouched = time.Now()
	s.mu.Unlock()
}

// AppendExchange adds an exchange to the ring buffer, evicting the
// oldest entry once keepN is exceeded.
func (s *Session) AppendExchange(ex Exchange) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, ex)
	if len(s.history) > s.keepN {
		s.history = s.history[len(s.history)-s.keepN:]
	}
	s.LastTouched = time.Now()
}

// RecentExchanges returns the last n exchanges (oldest first), used to
// inject bounded history into LLM prompts (spec.md §3.5: last 3 of 5 kept).
func (s *Session) RecentExchanges(n int) []Exchange {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n > len(s.history) {
		n = len(s.history)
	}
	out := make([]Exchange, n)
	copy(out, s.history[len(s.history)-n:])
	return out
}

// PutQuery stores a result set under queryID.
func (s *Session) PutQuery(queryID string, entry *QueryCacheEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries[queryID] = entry
	s.LastTouched = time.Now()
}

// GetQuery retrieves a previously cached result set by queryID.
func (s *Session) GetQuery(queryID string) (*QueryCacheEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.queries[queryID]
	return e, ok
}

// expired reports whether the session has been idle longer than ttl.
func (s *Session) expired(ttl time.Duration, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.LastTouched) > ttl
}
