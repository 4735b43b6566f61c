package core

import (
	"context"

	"github.com/vovakirdan/huddle/internal/store"
)

// GroupChangeKind identifies a durable membership change.
type GroupChangeKind int

const (
	GroupCreated GroupChangeKind = iota
	GroupMemberAdded
	GroupMemberRemoved
)

func (k GroupChangeKind) String() string {
	switch k {
	case GroupCreated:
		return "created"
	case GroupMemberAdded:
		return "member_added"
	case GroupMemberRemoved:
		return "member_removed"
	default:
		return "unknown"
	}
}

// ParseGroupChangeKind is the inverse of GroupChangeKind.String.
func ParseGroupChangeKind(s string) (GroupChangeKind, bool) {
	switch s {
	case "created":
		return GroupCreated, true
	case "member_added":
		return GroupMemberAdded, true
	case "member_removed":
		return GroupMemberRemoved, true
	default:
		return 0, false
	}
}

// GroupChange describes a committed change to a group. User is the
// affected member for add and remove.
type GroupChange struct {
	Kind  GroupChangeKind
	Group *store.Group
	User  string
}

// ApplyGroupChange subscribes the live connections of new members and
// notifies current subscribers. Removed members keep their existing
// subscription until they leave or disconnect.
func (r *Router) ApplyGroupChange(change GroupChange) {
	if change.Group == nil {
		return
	}
	roomID := change.Group.ID

	var joiners []string
	switch change.Kind {
	case GroupCreated:
		joiners = change.Group.Members
	case GroupMemberAdded:
		joiners = []string{change.User}
	}
	for _, user := range joiners {
		for _, connID := range r.sessions.ConnectionsOf(user) {
			r.subs.JoinRoom(connID, roomID)
		}
	}

	r.sendTo(r.subs.SubscribersOf(roomID), &Event{
		Kind:   EventGroupUpdated,
		Room:   roomID,
		User:   change.User,
		Group:  change.Group,
		Change: change.Kind,
	})
	r.updateGauges()
	r.log.Debug().Str("group", roomID).Str("change", change.Kind.String()).Str("user", change.User).Msg("group change applied")
}

// NotifyGroupChange applies change locally. It lets the router stand in as
// the notifier when no message bus is configured.
func (r *Router) NotifyGroupChange(_ context.Context, change GroupChange) error {
	r.ApplyGroupChange(change)
	return nil
}
