package core

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSessionRegistryOnlineMatchesBindings(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	s := NewSessionRegistry()
	model := make(map[string]string)

	users := []string{"alice", "bob", "carol", "dave"}
	for step := range 2000 {
		conn := fmt.Sprintf("c%d", rng.IntN(12))
		if rng.IntN(3) == 0 {
			user, offline := s.Unregister(conn)
			prev, had := model[conn]
			delete(model, conn)
			require.Equal(t, prev, user, "step %d", step)
			if had {
				require.Equal(t, !modelHasUser(model, prev), offline, "step %d", step)
			}
		} else {
			user := users[rng.IntN(len(users))]
			model[conn] = user
			online := s.Register(conn, user)
			require.Equal(t, modelOnline(model), online, "step %d", step)
		}

		require.Equal(t, modelOnline(model), s.Online(), "step %d", step)
		for _, u := range users {
			require.Equal(t, modelHasUser(model, u), s.IsOnline(u), "step %d user %s", step, u)
		}
	}
}

func modelOnline(model map[string]string) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, u := range model {
		if _, ok := seen[u]; !ok {
			seen[u] = struct{}{}
			out = append(out, u)
		}
	}
	sort.Strings(out)
	return out
}

func modelHasUser(model map[string]string, user string) bool {
	for _, u := range model {
		if u == user {
			return true
		}
	}
	return false
}

func TestSessionRegistryMultipleConnections(t *testing.T) {
	req := require.New(t)
	s := NewSessionRegistry()

	s.Register("c1", "alice")
	s.Register("c2", "alice")
	req.Equal([]string{"c1", "c2"}, s.ConnectionsOf("alice"))

	user, offline := s.Unregister("c1")
	req.Equal("alice", user)
	req.False(offline)
	req.True(s.IsOnline("alice"))

	_, offline = s.Unregister("c2")
	req.True(offline)
	req.False(s.IsOnline("alice"))

	user, offline = s.Unregister("missing")
	req.Empty(user)
	req.False(offline)
}

func TestSessionRegistryRebindMovesConnection(t *testing.T) {
	req := require.New(t)
	s := NewSessionRegistry()

	s.Register("c1", "alice")
	online := s.Register("c1", "bob")
	req.Equal([]string{"bob"}, online)
	u, ok := s.UserOf("c1")
	req.True(ok)
	req.Equal("bob", u)
}

func TestSessionRegistryConcurrentRegister(t *testing.T) {
	s := NewSessionRegistry()

	var wg sync.WaitGroup
	for i := range 64 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			conn := fmt.Sprintf("c%d", i)
			s.Register(conn, fmt.Sprintf("u%d", i%8))
			if i%2 == 0 {
				s.Unregister(conn)
			}
		}(i)
	}
	wg.Wait()

	want := make([]string, 0)
	for i := 1; i < 8; i += 2 {
		want = append(want, fmt.Sprintf("u%d", i))
	}
	require.Equal(t, want, s.Online())
	require.Equal(t, 32, s.ConnectionCount())
}

func TestListMembersOfIntersectsOnline(t *testing.T) {
	req := require.New(t)
	s := NewSessionRegistry()
	s.Register("c1", "bob")
	s.Register("c2", "zed")

	members, err := s.ListMembersOf(context.Background(), "team", func(_ context.Context, room string) ([]string, error) {
		req.Equal("team", room)
		return []string{"alice", "bob"}, nil
	})
	req.NoError(err)
	req.Equal([]string{"bob"}, members)

	boom := errors.New("boom")
	_, err = s.ListMembersOf(context.Background(), "team", func(context.Context, string) ([]string, error) {
		return nil, boom
	})
	req.ErrorIs(err, boom)
}
