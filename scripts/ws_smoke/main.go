package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/vovakirdan/huddle/internal/proto"
)

func main() {
	if err := run(); err != nil {
		log.Printf("ws_smoke: %v", err)
		os.Exit(1)
	}
}

type frame struct {
	Type  string          `json:"type"`
	ID    string          `json:"id"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	Error *proto.Error    `json:"error"`
}

func run() error {
	addr := flag.String("addr", "ws://localhost:8080/ws", "WebSocket address")
	user := flag.String("user", "tester", "username to join as")
	token := flag.String("token", "", "JWT token when the server requires one")
	room := flag.String("room", "", "room to send to (empty means the global room)")
	text := flag.String("text", "hello from smoke test", "message text to send")
	timeout := flag.Duration("timeout", 5*time.Second, "total timeout for the run")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, *addr, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	send := func(id, typ string, data any) error {
		payload, err := json.Marshal(data)
		if err != nil {
			return fmt.Errorf("marshal %s: %w", typ, err)
		}
		if err := wsjson.Write(ctx, conn, proto.Inbound{ID: id, Type: typ, Data: payload}); err != nil {
			return fmt.Errorf("send %s: %w", typ, err)
		}
		return nil
	}

	if err := send("join", proto.InboundTypeJoin, proto.JoinData{User: *user, Token: *token, Protocol: proto.ProtocolVersion}); err != nil {
		return err
	}
	if err := send("msg", proto.InboundTypeMsg, proto.MsgData{Room: *room, Text: *text}); err != nil {
		return err
	}

	for {
		var out frame
		if err := wsjson.Read(ctx, conn, &out); err != nil {
			return fmt.Errorf("read: %w", err)
		}

		fmt.Printf("Received outbound: type=%s", out.Type)
		if out.ID != "" {
			fmt.Printf(" id=%s", out.ID)
		}
		if out.Event != "" {
			fmt.Printf(" event=%s", out.Event)
		}
		fmt.Println()

		if out.Error != nil {
			return fmt.Errorf("%s failed: %s (%s)", out.Event, out.Error.Msg, out.Error.Code)
		}

		if out.Type == proto.OutboundTypeEvent && out.Event == proto.EventNameNewMessage {
			var evt proto.EventMessage
			if err := json.Unmarshal(out.Data, &evt); err != nil {
				return fmt.Errorf("unmarshal message: %w", err)
			}
			fmt.Printf("EventMessage: room=%s user=%s text=%q ts=%d\n", evt.Room, evt.User, evt.Text, evt.TS)
			return nil
		}
		if out.Event == proto.EventNameOnlineUsers {
			fmt.Printf("Online: %s\n", string(out.Data))
		}
	}
}
