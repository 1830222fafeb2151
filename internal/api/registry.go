package api

import (
	"sync"

	"medisync-rag/internal/rag"
)

// sessionEntry serializes requests for one session.
type sessionEntry struct {
	session *rag.Session
	mu      sync.Mutex
}

// SessionRegistry holds the live sessions by id. Sessions never share state;
// the registry lock only guards the map.
type SessionRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*sessionEntry
}

func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{sessions: make(map[string]*sessionEntry)}
}

func (r *SessionRegistry) Add(s *rag.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ID().String()] = &sessionEntry{session: s}
}

func (r *SessionRegistry) get(id string) (*sessionEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.sessions[id]
	return e, ok
}

// Remove drops the session from the registry. It does not close it.
func (r *SessionRegistry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
}

func (r *SessionRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// CloseAll closes and removes every session.
func (r *SessionRegistry) CloseAll() {
	r.mu.Lock()
	entries := r.sessions
	r.sessions = make(map[string]*sessionEntry)
	r.mu.Unlock()

	for _, e := range entries {
		e.mu.Lock()
		_ = e.session.Close()
		e.mu.Unlock()
	}
}
