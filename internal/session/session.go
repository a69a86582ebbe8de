// File path: internal/session/session.go

// Package session ties a browser session to the schema file the user is
// currently working on. One binding per session, last writer wins; the
// superseded value is handed back so the caller can log the supersede.
package session

import (
	"net/http"
	"sync"

	"github.com/google/uuid"
)

// CookieName identifies the browser-session cookie.
const CookieName = "cattle_session"

// Manager maps session identifiers to the path of their current schema
// file. It is the sole mechanism the HTTP layer uses to know what file a
// user is working on.
type Manager struct {
	mu       sync.RWMutex
	bindings map[string]string
}

func NewManager() *Manager {
	return &Manager{bindings: make(map[string]string)}
}

// Bind records schemaPath as the session's current file and returns the
// binding it displaced, if any. Concurrent binds on one session settle
// last-writer-wins.
func (m *Manager) Bind(id, schemaPath string) (previous string, superseded bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	previous, superseded = m.bindings[id]
	m.bindings[id] = schemaPath
	return previous, superseded
}

// Current returns the session's bound schema path.
func (m *Manager) Current(id string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	path, ok := m.bindings[id]
	return path, ok
}

// Clear drops the session's binding.
func (m *Manager) Clear(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.bindings, id)
}

// EnsureID returns the request's session identifier, minting a fresh random
// one (and setting the cookie) when the browser has none yet.
func EnsureID(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(CookieName); err == nil && c.Value != "" {
		return c.Value
	}
	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return id
}
