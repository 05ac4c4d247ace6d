// Package dialog keeps the per-user conversation state of the chat bot.
//
// The state is an explicit keyed store: a map from user id to the step the
// user's dialog is in. Two implementations are provided: MemoryStore for a
// single process and RedisStore for state that survives restarts.
package dialog

import (
	"context"
	"strconv"
	"sync"
	"time"
)

// State is the dialog step of one user.
type State string

const (
	// Idle is the state of a user with no open prompt.
	Idle State = ""
	// AwaitingPuk means the next text is a VIN_NUMBER submission.
	AwaitingPuk State = "awaiting_puk"
	// AwaitingSearch means the next admin text is a search query.
	AwaitingSearch State = "awaiting_search"
)

// Valid reports whether s is a known state.
func (s State) Valid() bool {
	switch s {
	case Idle, AwaitingPuk, AwaitingSearch:
		return true
	}
	return false
}

// Store reads and writes dialog state by user id. Get returns Idle for users
// without a stored state.
type Store interface {
	Get(ctx context.Context, userID int64) (State, error)
	Set(ctx context.Context, userID int64, s State) error
	Clear(ctx context.Context, userID int64) error
}

type memEntry struct {
	state   State
	expires time.Time
}

// MemoryStore is a mutex-guarded in-process Store. Entries expire after TTL
// when TTL is positive. Expired entries are dropped on Get and by a sweep
// that Set runs at most once per TTL.
type MemoryStore struct {
	TTL time.Duration
	Now func() time.Time

	mu        sync.Mutex
	m         map[int64]memEntry
	nextSweep time.Time
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{TTL: ttl, Now: time.Now, m: make(map[int64]memEntry)}
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, userID int64) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.m[userID]
	if !ok {
		return Idle, nil
	}
	if !e.expires.IsZero() && !s.now().Before(e.expires) {
		delete(s.m, userID)
		return Idle, nil
	}
	return e.state, nil
}

// Set implements Store. Setting Idle removes the entry.
func (s *MemoryStore) Set(_ context.Context, userID int64, st State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.m == nil {
		s.m = make(map[int64]memEntry)
	}
	now := s.now()
	s.sweep(now)
	if st == Idle {
		delete(s.m, userID)
		return nil
	}
	e := memEntry{state: st}
	if s.TTL > 0 {
		e.expires = now.Add(s.TTL)
	}
	s.m[userID] = e
	return nil
}

// sweep removes expired entries. Caller holds mu.
func (s *MemoryStore) sweep(now time.Time) {
	if s.TTL <= 0 || now.Before(s.nextSweep) {
		return
	}
	for id, e := range s.m {
		if !e.expires.IsZero() && !now.Before(e.expires) {
			delete(s.m, id)
		}
	}
	s.nextSweep = now.Add(s.TTL)
}

// Clear implements Store.
func (s *MemoryStore) Clear(_ context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, userID)
	return nil
}

// Len returns the number of stored entries, expired ones included.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.m)
}

func (s *MemoryStore) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func userKey(prefix string, userID int64) string {
	return prefix + strconv.FormatInt(userID, 10)
}
