// Package session holds short-lived per-session conversation memory: a
// generic key space plus a bounded ring of turn snapshots.
package session

import (
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/weather-assistant/internal/domain"
	"github.com/couchcryptid/weather-assistant/internal/observability"
)

// KeyTurnHistory mirrors the turn ring into the generic key space.
const KeyTurnHistory = "turn_history"

// Defaults used when Config fields are unset.
const (
	DefaultTTL          = 30 * time.Minute
	DefaultMaxSessions  = 5000
	DefaultTurnCapacity = 20
)

// Config bounds session lifetime and memory.
type Config struct {
	TTL          time.Duration
	MaxSessions  int
	TurnCapacity int
}

// Store is an in-memory session store guarded by a single mutex.
//
// Every read or write first drops sessions whose expiry has passed, then
// evicts soonest-to-expire sessions while the count exceeds MaxSessions.
// Any access to an existing session slides its expiry to now+TTL.
type Store struct {
	mu       sync.Mutex
	clock    clockwork.Clock
	cfg      Config
	sessions map[string]*entry
	metrics  *observability.Metrics
}

type entry struct {
	values  map[string]any
	turns   []domain.TurnSnapshot
	expires time.Time
}

// NewStore creates a Store. A nil clock means the real clock.
func NewStore(cfg Config, clock clockwork.Clock, metrics *observability.Metrics) *Store {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = DefaultMaxSessions
	}
	if cfg.TurnCapacity <= 0 {
		cfg.TurnCapacity = DefaultTurnCapacity
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Store{
		clock:    clock,
		cfg:      cfg,
		sessions: make(map[string]*entry),
		metrics:  metrics,
	}
}

// Get returns the value stored under key, or def when the session or key is
// absent. Reading does not create a session.
func (s *Store) Get(sessionID, key string, def any) any {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	s.purge(now)

	e, ok := s.sessions[sessionID]
	if !ok {
		return def
	}
	e.expires = now.Add(s.cfg.TTL)
	v, ok := e.values[key]
	if !ok {
		return def
	}
	return v
}

// Set stores value under key, creating the session if needed.
func (s *Store) Set(sessionID, key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	s.purge(now)
	s.touch(sessionID, now).values[key] = value
	s.purge(now)
}

// Delete removes key from the session, if present.
func (s *Store) Delete(sessionID, key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	s.purge(now)
	if e, ok := s.sessions[sessionID]; ok {
		e.expires = now.Add(s.cfg.TTL)
		delete(e.values, key)
	}
}

// AppendTurn records a turn snapshot, dropping the oldest once the ring is full.
func (s *Store) AppendTurn(sessionID string, intent domain.Intent, confidence float64, entities domain.Entities, reply string) domain.TurnSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	snap := domain.TurnSnapshot{
		Intent:     intent,
		Confidence: confidence,
		Entities:   entities,
		Timestamp:  now,
		Reply:      reply,
	}

	s.purge(now)
	e := s.touch(sessionID, now)
	if len(e.turns) >= s.cfg.TurnCapacity {
		n := copy(e.turns, e.turns[len(e.turns)-s.cfg.TurnCapacity+1:])
		e.turns = e.turns[:n]
	}
	e.turns = append(e.turns, snap)
	e.values[KeyTurnHistory] = cloneTurns(e.turns)
	s.purge(now)

	return snap
}

// Turns returns a copy of the session's turn ring, most recent last.
func (s *Store) Turns(sessionID string) []domain.TurnSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	s.purge(now)

	e, ok := s.sessions[sessionID]
	if !ok || len(e.turns) == 0 {
		return []domain.TurnSnapshot{}
	}
	e.expires = now.Add(s.cfg.TTL)
	return cloneTurns(e.turns)
}

// Len returns the number of live sessions after purging.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.purge(s.clock.Now())
	return len(s.sessions)
}

// TTL returns the sliding session lifetime.
func (s *Store) TTL() time.Duration {
	return s.cfg.TTL
}

// touch returns the session, creating it if absent, and refreshes its expiry.
// Callers must hold s.mu.
func (s *Store) touch(sessionID string, now time.Time) *entry {
	e, ok := s.sessions[sessionID]
	if !ok {
		e = &entry{values: make(map[string]any)}
		s.sessions[sessionID] = e
	}
	e.expires = now.Add(s.cfg.TTL)
	return e
}

// purge drops expired sessions, then the soonest-to-expire ones over capacity.
// Callers must hold s.mu.
func (s *Store) purge(now time.Time) {
	for id, e := range s.sessions {
		if !e.expires.After(now) {
			delete(s.sessions, id)
			s.evicted("expired")
		}
	}

	if len(s.sessions) > s.cfg.MaxSessions {
		ids := make([]string, 0, len(s.sessions))
		for id := range s.sessions {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool {
			ei, ej := s.sessions[ids[i]].expires, s.sessions[ids[j]].expires
			if ei.Equal(ej) {
				return ids[i] < ids[j]
			}
			return ei.Before(ej)
		})
		for _, id := range ids {
			if len(s.sessions) <= s.cfg.MaxSessions {
				break
			}
			delete(s.sessions, id)
			s.evicted("capacity")
		}
	}

	if s.metrics != nil {
		s.metrics.SessionsLive.Set(float64(len(s.sessions)))
	}
}

func (s *Store) evicted(reason string) {
	if s.metrics != nil {
		s.metrics.SessionsEvicted.WithLabelValues(reason).Inc()
	}
}

func cloneTurns(turns []domain.TurnSnapshot) []domain.TurnSnapshot {
	out := make([]domain.TurnSnapshot, len(turns))
	copy(out, turns)
	return out
}
