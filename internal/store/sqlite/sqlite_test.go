package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/huddle/internal/store"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	s, err := NewWithSetup(":memory:", ApplySchema)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// steppingClock returns a clock that advances one second per call.
func steppingClock(start time.Time) func() time.Time {
	current := start
	return func() time.Time {
		current = current.Add(time.Second)
		return current
	}
}

func TestCreateGroupCollapsesDuplicates(t *testing.T) {
	req := require.New(t)
	s := newTestStore(t)
	ctx := context.Background()

	group, err := s.CreateGroup(ctx, store.NewGroup{
		Name:      "Team",
		CreatorID: "alice",
		Members:   []string{"alice", "bob", "bob"},
	})
	req.NoError(err)
	req.NotEmpty(group.ID)
	req.Equal("Team", group.Name)
	req.Equal("alice", group.CreatorID)
	req.ElementsMatch([]string{"alice", "bob"}, group.Members)
	req.Equal(2, group.MemberCount())
	req.Empty(group.LastMessage)
	req.False(group.CreatedAt.IsZero())

	groups, err := s.ListGroupsByMember(ctx, "bob")
	req.NoError(err)
	req.Len(groups, 1)
	req.Equal(group.ID, groups[0].ID)
	req.ElementsMatch([]string{"alice", "bob"}, groups[0].Members)
}

func TestCreateGroupNameConflict(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.CreateGroup(ctx, store.NewGroup{Name: "Team", CreatorID: "alice", Members: []string{"alice", "bob"}})
	require.NoError(t, err)

	_, err = s.CreateGroup(ctx, store.NewGroup{Name: "Team", CreatorID: "carol", Members: []string{"carol", "dave"}})
	require.ErrorIs(t, err, store.ErrNameTaken)

	groups, err := s.ListGroupsByMember(ctx, "carol")
	require.NoError(t, err)
	require.Empty(t, groups, "failed create must not leave memberships behind")
}

func TestGetGroupNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetGroup(context.Background(), "missing")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestAddAndRemoveMember(t *testing.T) {
	req := require.New(t)
	s := newTestStore(t)
	s.now = steppingClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	ctx := context.Background()

	group, err := s.CreateGroup(ctx, store.NewGroup{Name: "Team", CreatorID: "alice", Members: []string{"alice", "bob"}})
	req.NoError(err)

	added, err := s.AddMember(ctx, group.ID, "carol")
	req.NoError(err)
	req.Equal([]string{"alice", "bob", "carol"}, added.Members)
	req.True(added.UpdatedAt.After(group.UpdatedAt))

	_, err = s.AddMember(ctx, group.ID, "carol")
	req.ErrorIs(err, store.ErrAlreadyMember)

	_, err = s.AddMember(ctx, "missing", "carol")
	req.ErrorIs(err, store.ErrNotFound)

	removed, err := s.RemoveMember(ctx, group.ID, "bob")
	req.NoError(err)
	req.Equal([]string{"alice", "carol"}, removed.Members)
	req.True(removed.UpdatedAt.After(added.UpdatedAt))

	_, err = s.RemoveMember(ctx, group.ID, "bob")
	req.ErrorIs(err, store.ErrNotMember)

	_, err = s.RemoveMember(ctx, "missing", "bob")
	req.ErrorIs(err, store.ErrNotFound)
}

func TestListGroupsByMemberOrdersByUpdatedAtDesc(t *testing.T) {
	req := require.New(t)
	s := newTestStore(t)
	s.now = steppingClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	ctx := context.Background()

	first, err := s.CreateGroup(ctx, store.NewGroup{Name: "first", CreatorID: "alice", Members: []string{"alice", "bob"}})
	req.NoError(err)
	second, err := s.CreateGroup(ctx, store.NewGroup{Name: "second", CreatorID: "alice", Members: []string{"alice", "carol"}})
	req.NoError(err)

	groups, err := s.ListGroupsByMember(ctx, "alice")
	req.NoError(err)
	req.Equal([]string{second.ID, first.ID}, []string{groups[0].ID, groups[1].ID})

	// A new message bumps the first group to the top.
	req.NoError(s.UpdateGroupSummary(ctx, first.ID, "hi", s.now()))

	groups, err = s.ListGroupsByMember(ctx, "alice")
	req.NoError(err)
	req.Equal(first.ID, groups[0].ID)
	req.Equal("hi", groups[0].LastMessage)
}

func TestUpdateGroupSummaryUnknownGroup(t *testing.T) {
	s := newTestStore(t)

	err := s.UpdateGroupSummary(context.Background(), "missing", "hi", time.Now())
	require.True(t, errors.Is(err, store.ErrNotFound), "got %v", err)
}

func TestAppendAndListMessages(t *testing.T) {
	req := require.New(t)
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	// Inserted out of order on purpose.
	_, err := s.AppendMessage(ctx, &store.Message{RoomID: "general", SenderID: "bob", Text: "second", CreatedAt: base.Add(time.Minute)})
	req.NoError(err)
	first, err := s.AppendMessage(ctx, &store.Message{RoomID: "general", SenderID: "alice", Text: "first", CreatedAt: base})
	req.NoError(err)
	req.NotZero(first.ID)
	req.True(first.CreatedAt.Equal(base))

	_, err = s.AppendMessage(ctx, &store.Message{RoomID: "other", SenderID: "alice", Text: "elsewhere"})
	req.NoError(err)

	messages, err := s.ListMessages(ctx, "general")
	req.NoError(err)
	req.Len(messages, 2)
	req.Equal("first", messages[0].Text)
	req.Equal("alice", messages[0].SenderID)
	req.Equal("second", messages[1].Text)

	empty, err := s.ListMessages(ctx, "nobody-here")
	req.NoError(err)
	req.Empty(empty)
}

func TestUsers(t *testing.T) {
	req := require.New(t)
	s := newTestStore(t)
	ctx := context.Background()

	exists, err := s.UserExists(ctx, "alice")
	req.NoError(err)
	req.False(exists)

	user, err := s.CreateUser(ctx, "alice", "hash")
	req.NoError(err)
	req.Equal("alice", user.Username)
	req.Equal("hash", user.PasswordHash)

	_, err = s.CreateUser(ctx, "alice", "other")
	req.ErrorIs(err, store.ErrUserExists)

	exists, err = s.UserExists(ctx, "alice")
	req.NoError(err)
	req.True(exists)

	_, err = s.GetUserByUsername(ctx, "bob")
	req.ErrorIs(err, store.ErrNotFound)
}
