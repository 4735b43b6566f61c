package core

import (
	"sort"
	"sync"
)

// Subscriptions is the in-memory cache of which connections receive which
// rooms. Edges only exist for open connections.
type Subscriptions struct {
	mu     sync.RWMutex
	byConn map[string]map[string]struct{}
	byRoom map[string]map[string]struct{}
}

func NewSubscriptions() *Subscriptions {
	return &Subscriptions{
		byConn: make(map[string]map[string]struct{}),
		byRoom: make(map[string]map[string]struct{}),
	}
}

// Open marks connID as live so it may hold subscriptions.
func (s *Subscriptions) Open(connID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byConn[connID]; !ok {
		s.byConn[connID] = make(map[string]struct{})
	}
}

// JoinRoom adds the edge connID -> roomID. It is idempotent and returns
// false only when the connection is not open.
func (s *Subscriptions) JoinRoom(connID, roomID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	rooms, ok := s.byConn[connID]
	if !ok {
		return false
	}
	rooms[roomID] = struct{}{}
	conns, ok := s.byRoom[roomID]
	if !ok {
		conns = make(map[string]struct{})
		s.byRoom[roomID] = conns
	}
	conns[connID] = struct{}{}
	return true
}

// LeaveRoom removes one edge and reports whether it existed.
func (s *Subscriptions) LeaveRoom(connID, roomID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	rooms := s.byConn[connID]
	if _, ok := rooms[roomID]; !ok {
		return false
	}
	delete(rooms, roomID)
	s.unlinkLocked(connID, roomID)
	return true
}

// LeaveAll removes every edge of connID but keeps it open.
func (s *Subscriptions) LeaveAll(connID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	rooms, ok := s.byConn[connID]
	if !ok {
		return nil
	}
	s.byConn[connID] = make(map[string]struct{})
	return s.unlinkAllLocked(connID, rooms)
}

// DropConnection removes every edge of connID and closes it, so later
// joins for it are rejected. It returns the rooms it was subscribed to.
func (s *Subscriptions) DropConnection(connID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	rooms, ok := s.byConn[connID]
	if !ok {
		return nil
	}
	delete(s.byConn, connID)
	return s.unlinkAllLocked(connID, rooms)
}

func (s *Subscriptions) unlinkAllLocked(connID string, rooms map[string]struct{}) []string {
	out := make([]string, 0, len(rooms))
	for room := range rooms {
		s.unlinkLocked(connID, room)
		out = append(out, room)
	}
	sort.Strings(out)
	return out
}

func (s *Subscriptions) unlinkLocked(connID, roomID string) {
	conns := s.byRoom[roomID]
	delete(conns, connID)
	if len(conns) == 0 {
		delete(s.byRoom, roomID)
	}
}

// SubscribersOf returns a snapshot of connections subscribed to roomID.
func (s *Subscriptions) SubscribersOf(roomID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	conns := s.byRoom[roomID]
	out := make([]string, 0, len(conns))
	for c := range conns {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// RoomsOf returns the rooms connID is subscribed to.
func (s *Subscriptions) RoomsOf(connID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rooms := s.byConn[connID]
	out := make([]string, 0, len(rooms))
	for r := range rooms {
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}

func (s *Subscriptions) IsSubscribed(connID, roomID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.byConn[connID][roomID]
	return ok
}

// RoomCount returns the number of rooms with at least one subscriber.
func (s *Subscriptions) RoomCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byRoom)
}
