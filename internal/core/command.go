package core

// CommandKind describes what the client wants to do.
type CommandKind int

const (
	// CommandJoin binds the connection to a user identity.
	CommandJoin CommandKind = iota
	// CommandSendMessage delivers a chat message to room subscribers.
	CommandSendMessage
	// CommandStartTyping marks the user as typing in a room.
	CommandStartTyping
	// CommandStopTyping clears the user's typing entry.
	CommandStopTyping
	// CommandJoinRoom subscribes the connection to a group it belongs to.
	CommandJoinRoom
	// CommandLeaveRoom unsubscribes the connection from a room.
	CommandLeaveRoom
	// CommandGetOnlineMembers lists users with a live subscription to a room.
	CommandGetOnlineMembers
	// CommandCheckUserOnline reports whether a user has any live session.
	CommandCheckUserOnline
	// CommandHistory returns the persisted messages of a room.
	CommandHistory
)

var commandNames = [...]string{
	CommandJoin:             "join",
	CommandSendMessage:      "send_message",
	CommandStartTyping:      "start_typing",
	CommandStopTyping:       "stop_typing",
	CommandJoinRoom:         "join_room",
	CommandLeaveRoom:        "leave_room",
	CommandGetOnlineMembers: "online_members",
	CommandCheckUserOnline:  "check_online",
	CommandHistory:          "history",
}

func (k CommandKind) String() string {
	if k >= 0 && int(k) < len(commandNames) {
		return commandNames[k]
	}
	return "unknown"
}

// Command represents an action requested by a client.
// RequestID is echoed back in the acknowledgement.
type Command struct {
	Kind      CommandKind
	RequestID string
	User      string
	Room      string
	Text      string
}
