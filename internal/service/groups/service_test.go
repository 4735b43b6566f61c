package groups

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/huddle/internal/core"
	"github.com/vovakirdan/huddle/internal/store/sqlite"
)

type recordingNotifier struct {
	mu      sync.Mutex
	changes []core.GroupChange
	err     error
}

func (n *recordingNotifier) NotifyGroupChange(_ context.Context, change core.GroupChange) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.changes = append(n.changes, change)
	return n.err
}

type staticDirectory map[string]bool

func (d staticDirectory) Exists(_ context.Context, username string) (bool, error) {
	return d[username], nil
}

func newTestService(t *testing.T, dir Directory) (*Service, *recordingNotifier) {
	t.Helper()

	st, err := sqlite.NewWithSetup(":memory:", sqlite.ApplySchema)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	n := &recordingNotifier{}
	return New(st, dir, n, nil), n
}

func TestCreateCollapsesDuplicatesAndNotifies(t *testing.T) {
	req := require.New(t)
	svc, n := newTestService(t, nil)
	ctx := context.Background()

	g, err := svc.Create(ctx, CreateRequest{Name: "  Team ", Creator: "alice", Members: []string{"alice", "bob", "bob", ""}})
	req.NoError(err)
	req.Equal("Team", g.Name)
	req.ElementsMatch([]string{"alice", "bob"}, g.Members)
	req.Equal(2, g.MemberCount())

	req.Len(n.changes, 1)
	req.Equal(core.GroupCreated, n.changes[0].Kind)
	req.Equal(g.ID, n.changes[0].Group.ID)

	list, err := svc.ListByMember(ctx, "bob")
	req.NoError(err)
	req.Len(list, 1)
}

func TestCreateValidation(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	cases := []CreateRequest{
		{Name: "", Creator: "alice", Members: []string{"bob"}},
		{Name: "   ", Creator: "alice", Members: []string{"bob"}},
		{Name: "Solo", Creator: "alice", Members: []string{"alice"}},
		{Name: "NoCreator", Members: []string{"bob", "carol"}},
		{Name: string(make([]byte, 51)), Creator: "alice", Members: []string{"bob"}},
	}
	for _, tc := range cases {
		_, err := svc.Create(ctx, tc)
		require.ErrorIs(t, err, ErrValidation, "%+v", tc)
	}
}

func TestCreateRejectsDuplicateNameAndUnknownUsers(t *testing.T) {
	svc, _ := newTestService(t, staticDirectory{"alice": true, "bob": true})
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateRequest{Name: "Team", Creator: "alice", Members: []string{"bob"}})
	require.NoError(t, err)

	_, err = svc.Create(ctx, CreateRequest{Name: "Team", Creator: "bob", Members: []string{"alice"}})
	require.ErrorIs(t, err, ErrNameTaken)

	_, err = svc.Create(ctx, CreateRequest{Name: "Other", Creator: "alice", Members: []string{"mallory"}})
	require.ErrorIs(t, err, ErrUnknownUser)
}

func TestMembershipChanges(t *testing.T) {
	req := require.New(t)
	svc, n := newTestService(t, nil)
	ctx := context.Background()

	g, err := svc.Create(ctx, CreateRequest{Name: "Team", Creator: "alice", Members: []string{"bob"}})
	req.NoError(err)

	g, err = svc.AddMember(ctx, g.ID, "carol")
	req.NoError(err)
	req.Equal([]string{"alice", "bob", "carol"}, g.Members)

	_, err = svc.AddMember(ctx, g.ID, "carol")
	req.ErrorIs(err, ErrAlreadyMember)

	g, err = svc.RemoveMember(ctx, g.ID, "bob")
	req.NoError(err)
	req.Equal([]string{"alice", "carol"}, g.Members)

	_, err = svc.RemoveMember(ctx, g.ID, "bob")
	req.ErrorIs(err, ErrNotMember)

	_, err = svc.RemoveMember(ctx, g.ID, "alice")
	req.ErrorIs(err, ErrCreatorRemoval)

	_, err = svc.AddMember(ctx, "missing", "dave")
	req.ErrorIs(err, ErrGroupNotFound)

	kinds := make([]core.GroupChangeKind, 0, len(n.changes))
	for _, c := range n.changes {
		kinds = append(kinds, c.Kind)
	}
	req.Equal([]core.GroupChangeKind{core.GroupCreated, core.GroupMemberAdded, core.GroupMemberRemoved}, kinds)
	req.Equal("bob", n.changes[2].User)

	req.NoError(svc.RequireMember(ctx, g.ID, "carol"))
	req.ErrorIs(svc.RequireMember(ctx, g.ID, "bob"), ErrNotMember)
}

func TestNotifierFailureDoesNotFailOperation(t *testing.T) {
	svc, n := newTestService(t, nil)
	n.err = errors.New("bus down")

	_, err := svc.Create(context.Background(), CreateRequest{Name: "Team", Creator: "alice", Members: []string{"bob"}})
	require.NoError(t, err)
}
