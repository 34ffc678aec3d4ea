// Package session tracks live bindings between connections and authenticated
// users. State is process-lifetime only; a restart clears all sessions.
package session

import (
	"errors"
	"sort"
	"sync"
	"time"

	"chat-relay/internal/models"
)

// ErrUsernameTaken is returned when the username is active on another
// connection.
var ErrUsernameTaken = errors.New("username already taken")

// Session is a live binding between a connection and a user identity.
type Session struct {
	UserID      int
	Username    string
	AvatarColor string
	ConnID      string
	JoinedAt    time.Time
}

// Ref returns the roster entry for the session.
func (s *Session) Ref() models.UserRef {
	return models.UserRef{ID: s.UserID, Username: s.Username, AvatarColor: s.AvatarColor}
}

// Registry owns all live sessions. Lookups by connection id and by user id
// stay consistent under a single mutex.
type Registry struct {
	mu     sync.RWMutex
	byConn map[string]*Session
	byUser map[int]*Session
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byConn: make(map[string]*Session),
		byUser: make(map[int]*Session),
	}
}

// Join binds user to connID. If the user already holds a session on another
// connection the handle is re-bound and rebound reports true; deciding whether
// that older connection was a live duplicate (reject) or a dead one
// (reconnect) is the caller's job, since only the transport layer knows
// liveness. A different user holding the same username fails with
// ErrUsernameTaken.
func (r *Registry) Join(user models.UserRef, connID string) (*Session, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, s := range r.byConn {
		if s.Username == user.Username && s.UserID != user.ID {
			return nil, false, ErrUsernameTaken
		}
	}

	if existing, ok := r.byUser[user.ID]; ok && existing.ConnID != connID {
		// reconnect: swap the transport handle, keep the identity
		delete(r.byConn, existing.ConnID)
		existing.ConnID = connID
		r.byConn[connID] = existing
		return existing, true, nil
	}

	sess := &Session{
		UserID:      user.ID,
		Username:    user.Username,
		AvatarColor: user.AvatarColor,
		ConnID:      connID,
		JoinedAt:    time.Now(),
	}
	r.byConn[connID] = sess
	r.byUser[user.ID] = sess
	return sess, false, nil
}

// Leave removes the session bound to connID and returns the freed user id.
// Unknown connections are a no-op. A session that has re-bound to a newer
// connection is left alone.
func (r *Registry) Leave(connID string) (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.byConn[connID]
	if !ok {
		return 0, false
	}
	delete(r.byConn, connID)
	if current, ok := r.byUser[sess.UserID]; ok && current.ConnID == connID {
		delete(r.byUser, sess.UserID)
	}
	return sess.UserID, true
}

// ByConn looks up the session bound to a connection.
func (r *Registry) ByConn(connID string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sess, ok := r.byConn[connID]
	return sess, ok
}

// ByUser looks up the session held by a user.
func (r *Registry) ByUser(userID int) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sess, ok := r.byUser[userID]
	return sess, ok
}

// Roster returns a stable snapshot of all connected users.
func (r *Registry) Roster() []models.UserRef {
	r.mu.RLock()
	defer r.mu.RUnlock()

	roster := make([]models.UserRef, 0, len(r.byUser))
	for _, s := range r.byUser {
		roster = append(roster, s.Ref())
	}
	sort.Slice(roster, func(i, j int) bool { return roster[i].ID < roster[j].ID })
	return roster
}
