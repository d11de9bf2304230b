package server

import (
	"sort"
	"sync"
	"time"

	"github.com/0ya-sh0/GoChatRoom/internal/protocol"
	"github.com/google/uuid"
)

// Registry tracks live sessions. It is the only holder of session transports.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	newID    func() string
	now      func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		newID:    uuid.NewString,
		now:      time.Now,
	}
}

// Register never fails. Duplicate nicknames coexist as distinct sessions.
func (r *Registry) Register(nickname string, conn Conn) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	session := &Session{
		ID:       r.newID(),
		Nickname: nickname,
		JoinTime: r.now(),
		conn:     conn,
	}
	r.sessions[session.ID] = session
	return session.ID
}

// Unregister removes the session and closes its transport. A second call for
// the same id returns false.
func (r *Registry) Unregister(id string) (Session, bool) {
	r.mu.Lock()
	session, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
	}
	r.mu.Unlock()

	if !ok {
		return Session{}, false
	}
	if session.conn != nil {
		_ = session.conn.Close()
	}
	return *session, true
}

func (r *Registry) Lookup(id string) (Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	session, ok := r.sessions[id]
	if !ok {
		return Session{}, false
	}
	return *session, true
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Snapshot lists users ordered by join time.
func (r *Registry) Snapshot() []protocol.User {
	sessions := r.sessionsByJoinTime()
	users := make([]protocol.User, 0, len(sessions))
	for _, s := range sessions {
		users = append(users, s.User())
	}
	return users
}

func (r *Registry) sessionsByJoinTime() []*Session {
	r.mu.RLock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.RUnlock()

	sort.Slice(sessions, func(i, j int) bool {
		if sessions[i].JoinTime.Equal(sessions[j].JoinTime) {
			return sessions[i].ID < sessions[j].ID
		}
		return sessions[i].JoinTime.Before(sessions[j].JoinTime)
	})
	return sessions
}

func (r *Registry) lookupConn(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	session, ok := r.sessions[id]
	return session, ok
}

func (r *Registry) closeAll() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()

	for _, s := range sessions {
		if s.conn != nil {
			_ = s.conn.Close()
		}
	}
}
