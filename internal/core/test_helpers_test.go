package core

import (
	"context"
	"fmt"
	"slices"
	"testing"
	"time"

	"github.com/vovakirdan/huddle/internal/store/sqlite"
)

func mustEvent(t *testing.T, ch <-chan *Event, kind EventKind) *Event {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		select {
		case ev := <-ch:
			if ev == nil {
				continue
			}
			if ev.Kind == kind {
				return ev
			}
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
	t.Fatalf("expected event kind %v not received", kind)
	return nil
}

// mustAck waits for the acknowledgement of requestID, skipping other events.
func mustAck(t *testing.T, ch <-chan *Event, requestID string) *Event {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		select {
		case ev := <-ch:
			if ev != nil && ev.Kind == EventAck && ev.RequestID == requestID {
				return ev
			}
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
	t.Fatalf("ack for %q not received", requestID)
	return nil
}

// mustOnline waits for an online users event carrying exactly want.
func mustOnline(t *testing.T, ch <-chan *Event, want ...string) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	var last []string
	for time.Now().Before(deadline) {
		select {
		case ev := <-ch:
			if ev != nil && ev.Kind == EventOnlineUsers {
				last = ev.Users
				if slices.Equal(ev.Users, want) {
					return
				}
			}
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
	t.Fatalf("online users %v not received, last seen %v", want, last)
}

// noEvent fails if an event of kind arrives within wait.
func noEvent(t *testing.T, ch <-chan *Event, kind EventKind, wait time.Duration) {
	t.Helper()

	deadline := time.Now().Add(wait)
	for time.Now().Before(deadline) {
		select {
		case ev := <-ch:
			if ev != nil && ev.Kind == kind {
				t.Fatalf("unexpected event: %+v", ev)
			}
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
}

func newTestStore(t *testing.T) *sqlite.SQLiteStore {
	t.Helper()

	s, err := sqlite.NewWithSetup(":memory:", sqlite.ApplySchema)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newTestRouter(t *testing.T, st RoomStore) *Router {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	r := NewRouter(st, nil, Options{})
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return r
}

// connect registers a fresh client on r.
func connect(t *testing.T, r *Router, id string) *Client {
	t.Helper()

	c := NewClient(id, 128)
	r.RegisterClient(context.Background(), c)
	return c
}

// joinAs connects a client and binds it to user, failing on error acks.
func joinAs(t *testing.T, r *Router, id, user string) *Client {
	t.Helper()

	c := connect(t, r, id)
	reqID := fmt.Sprintf("join-%s", id)
	c.Commands <- &Command{Kind: CommandJoin, RequestID: reqID, User: user}
	ack := mustAck(t, c.Events, reqID)
	if ack.Error != nil {
		t.Fatalf("join %s failed: %+v", user, ack.Error)
	}
	return c
}
