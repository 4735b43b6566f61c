package proto

import "encoding/json"

// Inbound is the envelope for messages coming from the client.
// ID is optional and echoed back in the matching ack or error.
type Inbound struct {
	ID   string          `json:"id,omitempty"`
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

const (
	ProtocolVersion = 2

	InboundTypeJoin          = "join"
	InboundTypeMsg           = "msg"
	InboundTypeTyping        = "typing"
	InboundTypeStopTyping    = "stop_typing"
	InboundTypeJoinRoom      = "join_room"
	InboundTypeLeaveRoom     = "leave_room"
	InboundTypeOnlineMembers = "online_members"
	InboundTypeCheckOnline   = "check_online"
	InboundTypeHistory       = "history"

	OutboundTypeEvent = "event"
	OutboundTypeAck   = "ack"
	OutboundTypeError = "error"

	EventNameOnlineUsers  = "online_users"
	EventNameNewMessage   = "message"
	EventNameTyping       = "typing"
	EventNameGroupUpdated = "group_updated"
)

// JoinData binds the connection to a user. Token is required when the
// server enforces JWT authentication.
type JoinData struct {
	User     string `json:"user"`
	Token    string `json:"token,omitempty"`
	Protocol int    `json:"protocol,omitempty"`
}

// MsgData is a chat message from the client. An empty room means the
// global room.
type MsgData struct {
	Room string `json:"room"`
	Text string `json:"text"`
}

// RoomData names the room a command applies to.
type RoomData struct {
	Room string `json:"room"`
}

// CheckOnlineData asks whether a user is online.
type CheckOnlineData struct {
	User string `json:"user"`
}

// Outbound is the envelope for messages sent to the client.
type Outbound struct {
	Type  string `json:"type"`
	ID    string `json:"id,omitempty"`
	Event string `json:"event,omitempty"`
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// EventMessage is a persisted chat message.
type EventMessage struct {
	ID   int64  `json:"id"`
	Room string `json:"room"`
	User string `json:"user"`
	Text string `json:"text"`
	TS   int64  `json:"ts"`
}

// EventOnlineUsers carries every user with a live session.
type EventOnlineUsers struct {
	Users []string `json:"users"`
}

// EventTyping lists who is typing in a room.
type EventTyping struct {
	Room  string   `json:"room"`
	Users []string `json:"users"`
}

// Group is the wire form of a durable group.
type Group struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Creator     string   `json:"creator"`
	Members     []string `json:"members"`
	MemberCount int      `json:"member_count"`
	LastMessage string   `json:"last_message,omitempty"`
	UpdatedAt   int64    `json:"updated_at"`
}

// EventGroupUpdated reports a membership change.
type EventGroupUpdated struct {
	Room   string `json:"room"`
	Change string `json:"change"`
	User   string `json:"user,omitempty"`
	Group  Group  `json:"group"`
}

// AckJoin answers a join.
type AckJoin struct {
	User   string   `json:"user"`
	Online []string `json:"online"`
	Rooms  []string `json:"rooms"`
	Groups []Group  `json:"groups"`
}

// AckRoom answers room-scoped commands.
type AckRoom struct {
	Room  string `json:"room"`
	Group *Group `json:"group,omitempty"`
}

// AckMembers lists online members of a room.
type AckMembers struct {
	Room  string   `json:"room"`
	Users []string `json:"users"`
}

// AckOnline answers check_online.
type AckOnline struct {
	User   string `json:"user"`
	Online bool   `json:"online"`
}

// AckHistory carries the messages of a room, oldest first.
type AckHistory struct {
	Room     string         `json:"room"`
	Messages []EventMessage `json:"messages"`
}

// Error describes a protocol-level error response.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}
