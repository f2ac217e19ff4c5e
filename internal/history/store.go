package history

import (
	"errors"
	"slices"
	"sync"
)

// DefaultSession is used when a caller supplies no session identifier.
const DefaultSession = "default"

// ErrEmptySession is returned for a blank session identifier.
var ErrEmptySession = errors.New("empty session id")

type entry struct {
	turn    sync.Mutex
	history *History
}

// Store maps session identifiers to histories. Access to one session is
// serialized through Do; different sessions proceed independently.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*entry
	seed     []Message
	journal  *Journal
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithSeed makes every new history start with msgs.
func WithSeed(msgs ...Message) StoreOption {
	return func(s *Store) { s.seed = append([]Message(nil), msgs...) }
}

// WithJournal records every appended message to j.
func WithJournal(j *Journal) StoreOption {
	return func(s *Store) { s.journal = j }
}

// NewStore creates an empty Store.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{sessions: make(map[string]*entry)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) entry(id string) *entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.sessions[id]
	if !ok {
		h := New(s.seed...)
		if s.journal != nil {
			j := s.journal
			h.onAppend = func(m Message) { j.Save(id, m) }
		}
		e = &entry{history: h}
		s.sessions[id] = e
	}
	return e
}

// Do runs fn with exclusive access to the history of session id, creating
// the session on first use.
func (s *Store) Do(id string, fn func(h *History) error) error {
	if id == "" {
		return ErrEmptySession
	}
	e := s.entry(id)
	e.turn.Lock()
	defer e.turn.Unlock()
	return fn(e.history)
}

// Get returns a snapshot of session id. The second result is false when the
// session does not exist.
func (s *Store) Get(id string) ([]Message, bool) {
	s.mu.Lock()
	e, ok := s.sessions[id]
	s.mu.Unlock()
	if !ok {
		return nil, false
	}
	return e.history.Snapshot(), true
}

// Delete discards a session. Turns already holding the history finish
// against the detached copy.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
}

// Sessions lists known session identifiers in lexical order.
func (s *Store) Sessions() []string {
	s.mu.Lock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	s.mu.Unlock()
	slices.Sort(ids)
	return ids
}
