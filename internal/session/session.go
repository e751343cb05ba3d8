// Package session keeps bounded per-conversation history so follow-up
// questions can resolve references like "tell me more about that".
package session

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Exchange is one completed user/assistant turn pair.
type Exchange struct {
	UserMessage string
	Assistant   string
}

// Store holds conversation history in memory, bounded to a fixed number of
// exchange pairs per session. When the bound is exceeded the oldest pair is
// evicted, so memory per session stays constant regardless of conversation
// length.
//
// Sessions are created lazily: recording an exchange under an unknown ID
// creates the session, and the history of an unknown ID is simply empty.
// Callers that want a server-minted ID use Create.
//
// Safe for concurrent use across sessions; operations on the same session
// are serialized.
type Store struct {
	maxHistory int

	mu       sync.RWMutex
	sessions map[string]*session
}

type session struct {
	mu        sync.Mutex
	exchanges []Exchange
}

// NewStore creates a store keeping at most maxHistory exchange pairs per
// session. maxHistory must be positive.
func NewStore(maxHistory int) (*Store, error) {
	if maxHistory < 1 {
		return nil, fmt.Errorf("max history must be positive, got %d", maxHistory)
	}
	return &Store{
		maxHistory: maxHistory,
		sessions:   make(map[string]*session),
	}, nil
}

// Create mints a new empty session and returns its ID.
func (s *Store) Create() string {
	id := uuid.NewString()
	s.mu.Lock()
	s.sessions[id] = &session{}
	s.mu.Unlock()
	return id
}

// AddExchange appends one completed turn pair to the session, evicting the
// oldest pair when the bound is exceeded. An unknown ID starts a new
// session.
func (s *Store) AddExchange(id string, userMessage, assistant string) {
	sess := s.getOrCreate(id)

	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.exchanges = append(sess.exchanges, Exchange{UserMessage: userMessage, Assistant: assistant})
	if n := len(sess.exchanges) - s.maxHistory; n > 0 {
		sess.exchanges = append(sess.exchanges[:0:0], sess.exchanges[n:]...)
	}
}

// History returns the session's retained exchanges formatted for prompt
// inclusion, oldest first:
//
//	User: <message>
//	Assistant: <response>
//
// A session with no exchanges yet, including one the store has never seen,
// yields the empty string.
func (s *Store) History(id string) string {
	sess, ok := s.get(id)
	if !ok {
		return ""
	}

	sess.mu.Lock()
	exchanges := append([]Exchange(nil), sess.exchanges...)
	sess.mu.Unlock()

	var b strings.Builder
	for i, ex := range exchanges {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "User: %s\nAssistant: %s", ex.UserMessage, ex.Assistant)
	}
	return b.String()
}

// Len returns the number of retained exchange pairs in the session, zero
// for a session the store has never seen.
func (s *Store) Len(id string) int {
	sess, ok := s.get(id)
	if !ok {
		return 0
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return len(sess.exchanges)
}

func (s *Store) get(id string) (*session, bool) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	return sess, ok
}

func (s *Store) getOrCreate(id string) *session {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		sess = &session{}
		s.sessions[id] = sess
	}
	return sess
}
