package session

import (
	"sync"
	"time"

	"github.com/caravel-ai/caravel/core"
)

// InMemoryStore is a volatile SessionStore keeping sessions in a process
// local map. It is safe for concurrent access; every returned session is
// cloned to prevent external mutation of internal state.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*core.Session
	order    []string
}

// NewInMemoryStore constructs an empty in-memory session store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{sessions: make(map[string]*core.Session)}
}

// Create implements core.SessionStore.
func (s *InMemoryStore) Create(agent, parentID, parentAgent string, typ core.ThreadType, name string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if parentID != "" {
		if _, ok := s.sessions[parentID]; !ok {
			return "", core.NewNotFoundError("session", parentID)
		}
	}

	now := time.Now().UTC()
	sess := &core.Session{
		ID:          core.NewID(),
		Agent:       agent,
		Name:        name,
		ParentID:    parentID,
		ParentAgent: parentAgent,
		Type:        typ,
		Messages:    []core.Message{},
		Created:     now,
		Updated:     now,
		Usage:       core.Usage{},
	}
	s.sessions[sess.ID] = sess
	s.order = append(s.order, sess.ID)
	return sess.ID, nil
}

// Get implements core.SessionStore.
func (s *InMemoryStore) Get(id string) (*core.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, core.NewNotFoundError("session", id)
	}
	return sess.Clone(), nil
}

// Append implements core.SessionStore. Appends within one session are
// serialized by the execution loop; the store only guarantees atomicity of
// each call.
func (s *InMemoryStore) Append(id string, msg core.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return core.NewNotFoundError("session", id)
	}
	sess.Messages = append(sess.Messages, msg)
	sess.Updated = time.Now().UTC()
	return nil
}

// AddUsage implements core.SessionStore.
func (s *InMemoryStore) AddUsage(id, model string, usage core.ModelUsage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return core.NewNotFoundError("session", id)
	}
	sess.Usage.Add(model, usage)
	sess.Updated = time.Now().UTC()
	return nil
}

// List implements core.SessionStore.
func (s *InMemoryStore) List(agent string) ([]*core.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*core.Session
	for _, id := range s.order {
		sess := s.sessions[id]
		if agent == "" || sess.Agent == agent {
			out = append(out, sess.Clone())
		}
	}
	return out, nil
}

// Children implements core.SessionStore.
func (s *InMemoryStore) Children(id string) ([]*core.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.sessions[id]; !ok {
		return nil, core.NewNotFoundError("session", id)
	}
	var out []*core.Session
	for _, sid := range s.order {
		sess := s.sessions[sid]
		if sess.ParentID == id {
			out = append(out, sess.Clone())
		}
	}
	return out, nil
}

// Fork implements core.SessionStore: duplicates history up to message index
// at (negative or out-of-range copies everything) under a new fork session
// whose parent is the source.
func (s *InMemoryStore) Fork(id string, at int, name string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	src, ok := s.sessions[id]
	if !ok {
		return "", core.NewNotFoundError("session", id)
	}

	if at < 0 || at > len(src.Messages) {
		at = len(src.Messages)
	}

	now := time.Now().UTC()
	fork := &core.Session{
		ID:          core.NewID(),
		Agent:       src.Agent,
		Name:        name,
		ParentID:    src.ID,
		ParentAgent: src.Agent,
		Type:        core.ThreadFork,
		Messages:    make([]core.Message, at),
		Created:     now,
		Updated:     now,
		Usage:       core.Usage{},
	}
	copy(fork.Messages, src.Messages[:at])
	s.sessions[fork.ID] = fork
	s.order = append(s.order, fork.ID)
	return fork.ID, nil
}

var _ core.SessionStore = (*InMemoryStore)(nil)
