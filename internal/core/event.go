package core

import "github.com/vovakirdan/huddle/internal/store"

// EventKind is a notification the core emits to clients.
type EventKind int

const (
	// EventAck answers exactly one command of the receiving connection.
	EventAck EventKind = iota
	// EventOnlineUsers carries the full set of online users.
	EventOnlineUsers
	// EventNewMessage delivers a persisted message to room subscribers.
	EventNewMessage
	// EventTyping carries who is typing in a room, excluding the receiver.
	EventTyping
	// EventGroupUpdated reports a durable membership change.
	EventGroupUpdated
)

// Event is sent to clients to describe what happened in the system.
// Events are shared between recipients and must not be mutated after send.
type Event struct {
	Kind      EventKind
	RequestID string
	Command   CommandKind
	Room      string
	User      string
	Users     []string
	Rooms     []string
	Online    bool
	Message   *store.Message
	Messages  []*store.Message
	Group     *store.Group
	Groups    []*store.Group
	Change    GroupChangeKind
	Error     *CoreError
}

func newAck(cmd *Command) *Event {
	return &Event{Kind: EventAck, RequestID: cmd.RequestID, Command: cmd.Kind}
}
