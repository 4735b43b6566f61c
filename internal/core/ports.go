package core

import (
	"context"
	"time"

	"github.com/vovakirdan/huddle/internal/store"
)

//go:generate mockgen -destination=mocks/room_store_mock.go -package=mocks github.com/vovakirdan/huddle/internal/core RoomStore,Directory

// RoomStore is the slice of durable storage the core depends on.
type RoomStore interface {
	GetGroup(ctx context.Context, id string) (*store.Group, error)
	ListGroupsByMember(ctx context.Context, userID string) ([]*store.Group, error)
	AppendMessage(ctx context.Context, msg *store.Message) (*store.Message, error)
	ListMessages(ctx context.Context, roomID string) ([]*store.Message, error)
	UpdateGroupSummary(ctx context.Context, groupID, text string, at time.Time) error
}

// Directory answers whether a user identity is known.
type Directory interface {
	Exists(ctx context.Context, userID string) (bool, error)
}
