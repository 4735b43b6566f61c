package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a referenced record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrNameTaken is returned when a group name is already used.
	ErrNameTaken = errors.New("group name already exists")
	// ErrAlreadyMember is returned when adding a user that already belongs to the group.
	ErrAlreadyMember = errors.New("already a member")
	// ErrNotMember is returned when removing a user that does not belong to the group.
	ErrNotMember = errors.New("not a member")
	// ErrUserExists is returned when registering a taken username.
	ErrUserExists = errors.New("user already exists")
)

// User represents a registered identity.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}

// Group is a named conversation with a durable member set.
type Group struct {
	ID          string
	Name        string
	CreatorID   string
	Members     []string
	LastMessage string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// MemberCount returns the number of members in the group.
func (g *Group) MemberCount() int {
	return len(g.Members)
}

// HasMember reports whether userID belongs to the group.
func (g *Group) HasMember(userID string) bool {
	for _, m := range g.Members {
		if m == userID {
			return true
		}
	}
	return false
}

// NewGroup carries the fields needed to create a group.
// Members must already contain the creator and be deduplicated.
type NewGroup struct {
	Name      string
	CreatorID string
	Members   []string
}

// Message represents a persisted chat message. RoomID is either the
// global room name or a group ID.
type Message struct {
	ID        int64
	RoomID    string
	SenderID  string
	Text      string
	CreatedAt time.Time
}

// UserStore handles user persistence.
type UserStore interface {
	// CreateUser creates a new user with hashed password.
	CreateUser(ctx context.Context, username, passwordHash string) (*User, error)

	// GetUserByUsername retrieves a user by username.
	GetUserByUsername(ctx context.Context, username string) (*User, error)

	// UserExists reports whether a username is registered.
	UserExists(ctx context.Context, username string) (bool, error)
}

// GroupStore handles group persistence.
type GroupStore interface {
	// CreateGroup creates a group and its memberships atomically.
	CreateGroup(ctx context.Context, g NewGroup) (*Group, error)

	// GetGroup retrieves a group by ID.
	GetGroup(ctx context.Context, id string) (*Group, error)

	// ListGroupsByMember lists groups containing userID, most recently updated first.
	ListGroupsByMember(ctx context.Context, userID string) ([]*Group, error)

	// AddMember adds userID to the group and bumps updated_at.
	AddMember(ctx context.Context, groupID, userID string) (*Group, error)

	// RemoveMember removes userID from the group and bumps updated_at.
	RemoveMember(ctx context.Context, groupID, userID string) (*Group, error)

	// UpdateGroupSummary sets the last message text and updated_at.
	UpdateGroupSummary(ctx context.Context, groupID, text string, at time.Time) error
}

// MessageStore handles message persistence.
type MessageStore interface {
	// AppendMessage persists a message and returns it with its assigned ID.
	AppendMessage(ctx context.Context, msg *Message) (*Message, error)

	// ListMessages returns all messages of a room ordered by timestamp ascending.
	ListMessages(ctx context.Context, roomID string) ([]*Message, error)
}

// Store aggregates all storage interfaces.
type Store interface {
	UserStore
	GroupStore
	MessageStore

	// Close closes the underlying database connection.
	Close() error
}
