package session

import (
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// Registry tracks every live Session.
// All methods are safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	deps     Deps
	sessions map[string]*Session
}

// NewRegistry creates an empty Registry whose sessions share deps.
func NewRegistry(deps Deps) *Registry {
	return &Registry{
		deps:     deps,
		sessions: make(map[string]*Session),
	}
}

// Create starts a new session. An empty id is replaced by a fresh uuid.
//
// Postcondition: Returns the created Session, or an error if id is already registered.
func (r *Registry) Create(id string, playerLevel int) (*Session, error) {
	if id == "" {
		id = uuid.NewString()
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[id]; exists {
		return nil, fmt.Errorf("session %q already exists", id)
	}
	sess := New(id, playerLevel, r.deps)
	r.sessions[id] = sess
	return sess, nil
}

// Remove ends a session.
//
// Postcondition: Returns an error if id is not registered.
func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[id]; !exists {
		return fmt.Errorf("session %q not found", id)
	}
	delete(r.sessions, id)
	return nil
}

// Get returns the session for id.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sess, ok := r.sessions[id]
	return sess, ok
}

// Count returns the number of live sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Sessions returns the live sessions ordered by id.
//
// Postcondition: the registry lock is not held while the caller uses the result.
func (r *Registry) Sessions() []*Session {
	r.mu.RLock()
	out := make([]*Session, 0, len(r.sessions))
	for _, sess := range r.sessions {
		out = append(out, sess)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}
