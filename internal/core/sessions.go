package core

import (
	"context"
	"sort"
	"sync"
)

// MemberResolver returns the durable member list of a room.
type MemberResolver func(ctx context.Context, roomID string) ([]string, error)

// SessionRegistry maps connections to users and tracks who is online.
// A user is online while at least one connection is bound to them.
type SessionRegistry struct {
	mu     sync.RWMutex
	byConn map[string]string
	byUser map[string]map[string]struct{}
}

func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{
		byConn: make(map[string]string),
		byUser: make(map[string]map[string]struct{}),
	}
}

// Register binds connID to userID, replacing any previous binding of the
// connection, and returns the updated online set.
func (s *SessionRegistry) Register(connID, userID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.byConn[connID]; ok && prev != userID {
		s.detachLocked(connID, prev)
	}
	s.byConn[connID] = userID
	conns, ok := s.byUser[userID]
	if !ok {
		conns = make(map[string]struct{})
		s.byUser[userID] = conns
	}
	conns[connID] = struct{}{}
	return s.onlineLocked()
}

// Unregister removes the binding of connID. offline reports whether the
// user lost their last connection.
func (s *SessionRegistry) Unregister(connID string) (userID string, offline bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	userID, ok := s.byConn[connID]
	if !ok {
		return "", false
	}
	delete(s.byConn, connID)
	return userID, s.detachLocked(connID, userID)
}

func (s *SessionRegistry) detachLocked(connID, userID string) bool {
	conns := s.byUser[userID]
	delete(conns, connID)
	if len(conns) == 0 {
		delete(s.byUser, userID)
		return true
	}
	return false
}

// UserOf returns the user bound to connID.
func (s *SessionRegistry) UserOf(connID string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.byConn[connID]
	return u, ok
}

func (s *SessionRegistry) IsOnline(userID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.byUser[userID]
	return ok
}

// Online returns the sorted set of online users.
func (s *SessionRegistry) Online() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.onlineLocked()
}

func (s *SessionRegistry) onlineLocked() []string {
	out := make([]string, 0, len(s.byUser))
	for u := range s.byUser {
		out = append(out, u)
	}
	sort.Strings(out)
	return out
}

// ConnectionsOf returns the live connections bound to userID.
func (s *SessionRegistry) ConnectionsOf(userID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	conns := s.byUser[userID]
	out := make([]string, 0, len(conns))
	for c := range conns {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// ConnectionCount returns the number of bound connections.
func (s *SessionRegistry) ConnectionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byConn)
}

// ListMembersOf returns the durable members of roomID that are online.
// The resolver runs without holding the registry lock.
func (s *SessionRegistry) ListMembersOf(ctx context.Context, roomID string, resolve MemberResolver) ([]string, error) {
	members, err := resolve(ctx, roomID)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(members))
	for _, m := range members {
		if _, ok := s.byUser[m]; ok {
			out = append(out, m)
		}
	}
	sort.Strings(out)
	return out, nil
}
