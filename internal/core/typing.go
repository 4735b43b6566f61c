package core

import (
	"sort"
	"sync"
)

// TypingTracker records the single room each user is typing in.
type TypingTracker struct {
	mu    sync.Mutex
	rooms map[string]string
}

func NewTypingTracker() *TypingTracker {
	return &TypingTracker{rooms: make(map[string]string)}
}

// SetTyping marks userID as typing in roomID and returns the room the user
// was typing in before, if different.
func (t *TypingTracker) SetTyping(userID, roomID string) (previous string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	prev := t.rooms[userID]
	t.rooms[userID] = roomID
	if prev == roomID {
		return ""
	}
	return prev
}

// ClearTyping removes the entry of userID and returns its room.
func (t *TypingTracker) ClearTyping(userID string) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	room, ok := t.rooms[userID]
	if ok {
		delete(t.rooms, userID)
	}
	return room, ok
}

// RoomOf returns the room userID is typing in.
func (t *TypingTracker) RoomOf(userID string) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	room, ok := t.rooms[userID]
	return room, ok
}

// ListTypingIn returns the sorted users typing in roomID.
func (t *TypingTracker) ListTypingIn(roomID string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, 0)
	for u, r := range t.rooms {
		if r == roomID {
			out = append(out, u)
		}
	}
	sort.Strings(out)
	return out
}
