package http

import (
	"context"
	"encoding/json"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/vovakirdan/huddle/internal/proto"
)

func TestHealthEndpoint(t *testing.T) {
	env := startTestServer(t, testConfig())

	resp, err := env.ts.Client().Get(env.ts.URL + "/health")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
}

func TestWebSocketJoinAndMessage(t *testing.T) {
	env := startTestServer(t, testConfig())
	ctx, closeCtx := context.WithTimeout(context.Background(), 5*time.Second)
	defer closeCtx()

	connA := env.joinWS(t, ctx, "alice")
	connB := env.joinWS(t, ctx, "bob")

	send(t, ctx, connA, "m1", proto.InboundTypeMsg, proto.MsgData{Text: "hi there"})

	out := readUntil(t, ctx, connB, eventNamed(proto.EventNameNewMessage))
	var event proto.EventMessage
	if err := json.Unmarshal(out.Data, &event); err != nil {
		t.Fatalf("unmarshal event data: %v", err)
	}
	if event.User != "alice" || event.Text != "hi there" || event.Room != "general" {
		t.Fatalf("unexpected event payload: %+v", event)
	}

	ack := readUntil(t, ctx, connA, replyTo("m1"))
	if ack.Type != proto.OutboundTypeAck || ack.Event != "send_message" {
		t.Fatalf("unexpected ack: %+v", ack)
	}
}

func TestWebSocketOnlineUsersBroadcast(t *testing.T) {
	env := startTestServer(t, testConfig())
	ctx, closeCtx := context.WithTimeout(context.Background(), 5*time.Second)
	defer closeCtx()

	connA := env.joinWS(t, ctx, "alice")
	env.joinWS(t, ctx, "bob")

	out := readUntil(t, ctx, connA, func(o rawOutbound) bool {
		if o.Event != proto.EventNameOnlineUsers {
			return false
		}
		var users proto.EventOnlineUsers
		_ = json.Unmarshal(o.Data, &users)
		return len(users.Users) == 2
	})
	var users proto.EventOnlineUsers
	if err := json.Unmarshal(out.Data, &users); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if users.Users[0] != "alice" || users.Users[1] != "bob" {
		t.Fatalf("unexpected online users: %v", users.Users)
	}
}

func TestWebSocketCommandBeforeJoin(t *testing.T) {
	env := startTestServer(t, testConfig())
	ctx, closeCtx := context.WithTimeout(context.Background(), 5*time.Second)
	defer closeCtx()

	conn := env.dial(t, ctx)
	send(t, ctx, conn, "early", proto.InboundTypeMsg, proto.MsgData{Text: "hello?"})

	out := readUntil(t, ctx, conn, replyTo("early"))
	if out.Type != proto.OutboundTypeError || out.Error == nil || out.Error.Code != "unauthenticated" {
		t.Fatalf("expected unauthenticated error, got %+v", out)
	}

	send(t, ctx, conn, "bogus", "dance", struct{}{})
	out = readUntil(t, ctx, conn, replyTo("bogus"))
	if out.Error == nil || out.Error.Code != "invalid_message" {
		t.Fatalf("expected invalid_message, got %+v", out)
	}
}

func TestWebSocketTypingAndOnlineMembers(t *testing.T) {
	env := startTestServer(t, testConfig())
	ctx, closeCtx := context.WithTimeout(context.Background(), 5*time.Second)
	defer closeCtx()

	connA := env.joinWS(t, ctx, "alice")
	connB := env.joinWS(t, ctx, "bob")

	send(t, ctx, connA, "t", proto.InboundTypeTyping, proto.RoomData{Room: "general"})
	out := readUntil(t, ctx, connB, eventNamed(proto.EventNameTyping))
	var typing proto.EventTyping
	if err := json.Unmarshal(out.Data, &typing); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if typing.Room != "general" || len(typing.Users) != 1 || typing.Users[0] != "alice" {
		t.Fatalf("unexpected typing event: %+v", typing)
	}

	send(t, ctx, connB, "om", proto.InboundTypeOnlineMembers, proto.RoomData{Room: "general"})
	out = readUntil(t, ctx, connB, replyTo("om"))
	var members proto.AckMembers
	if err := json.Unmarshal(out.Data, &members); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if strings.Join(members.Users, ",") != "alice,bob" {
		t.Fatalf("unexpected members: %v", members.Users)
	}

	send(t, ctx, connB, "co", proto.InboundTypeCheckOnline, proto.CheckOnlineData{User: "carol"})
	out = readUntil(t, ctx, connB, replyTo("co"))
	var online proto.AckOnline
	if err := json.Unmarshal(out.Data, &online); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if online.Online {
		t.Fatalf("carol should be offline")
	}
}

func TestMetricsEndpoint(t *testing.T) {
	env := startTestServer(t, testConfig())

	resp, err := env.ts.Client().Get(env.ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("metrics request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
	if _, err := io.ReadAll(resp.Body); err != nil {
		t.Fatalf("read body: %v", err)
	}
}
