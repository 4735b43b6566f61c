package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/vovakirdan/huddle/internal/proto"
)

func main() {
	if err := run(); err != nil {
		log.Printf("ws_chat: %v", err)
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
	user := flag.String("user", "cli-user", "username")
	token := flag.String("token", "", "JWT token when the server requires one")
	room := flag.String("room", "", "room to talk in (empty means the global room)")
	flag.Parse()

	baseCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(baseCtx)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, *addr, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	c := &chat{ctx: ctx, conn: conn, room: *room}
	if err := c.send(proto.InboundTypeJoin, proto.JoinData{User: *user, Token: *token, Protocol: proto.ProtocolVersion}); err != nil {
		return err
	}

	fmt.Printf("Connected to %s as %s\n", *addr, *user)
	fmt.Println("Type messages and press Enter to send. Commands: /room <id>, /leave, /typing, /stop, /online, /check <user>, /history. Ctrl+C to exit.")

	go func() {
		defer cancel()
		readLoop(ctx, conn)
	}()

	c.writeLoop()

	stop()
	cancel()
	_ = conn.Close(websocket.StatusNormalClosure, "bye")
	return nil
}

type chat struct {
	ctx  context.Context
	conn *websocket.Conn
	room string
	seq  int
}

func (c *chat) send(typ string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", typ, err)
	}
	c.seq++
	return wsjson.Write(c.ctx, c.conn, proto.Inbound{ID: fmt.Sprintf("%d", c.seq), Type: typ, Data: payload})
}

func (c *chat) handleLine(line string) error {
	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)
	switch cmd {
	case "/room":
		c.room = arg
		if arg == "" {
			return nil
		}
		return c.send(proto.InboundTypeJoinRoom, proto.RoomData{Room: arg})
	case "/leave":
		err := c.send(proto.InboundTypeLeaveRoom, proto.RoomData{Room: c.room})
		c.room = ""
		return err
	case "/typing":
		return c.send(proto.InboundTypeTyping, proto.RoomData{Room: c.room})
	case "/stop":
		return c.send(proto.InboundTypeStopTyping, proto.RoomData{Room: c.room})
	case "/online":
		room := c.room
		if room == "" {
			room = "general"
		}
		return c.send(proto.InboundTypeOnlineMembers, proto.RoomData{Room: room})
	case "/check":
		return c.send(proto.InboundTypeCheckOnline, proto.CheckOnlineData{User: arg})
	case "/history":
		return c.send(proto.InboundTypeHistory, proto.RoomData{Room: c.room})
	default:
		return c.send(proto.InboundTypeMsg, proto.MsgData{Room: c.room, Text: line})
	}
}

func readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		var out frame
		if err := wsjson.Read(ctx, conn, &out); err != nil {
			// Treat expected shutdowns quietly.
			if errors.Is(err, context.Canceled) {
				return
			}
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				return
			}
			log.Printf("read error: %v", err)
			return
		}

		if out.Error != nil {
			fmt.Printf("! %s: %s (%s)\n", out.Event, out.Error.Msg, out.Error.Code)
			continue
		}

		switch out.Event {
		case proto.EventNameNewMessage:
			var evt proto.EventMessage
			if err := json.Unmarshal(out.Data, &evt); err != nil {
				log.Printf("unmarshal message: %v", err)
				continue
			}
			fmt.Printf("[%s] %s: %s\n", evt.Room, evt.User, evt.Text)
		case proto.EventNameOnlineUsers:
			var evt proto.EventOnlineUsers
			if err := json.Unmarshal(out.Data, &evt); err == nil {
				fmt.Printf("* online: %s\n", strings.Join(evt.Users, ", "))
			}
		case proto.EventNameTyping:
			var evt proto.EventTyping
			if err := json.Unmarshal(out.Data, &evt); err == nil && len(evt.Users) > 0 {
				fmt.Printf("* [%s] typing: %s\n", evt.Room, strings.Join(evt.Users, ", "))
			}
		case proto.EventNameGroupUpdated:
			var evt proto.EventGroupUpdated
			if err := json.Unmarshal(out.Data, &evt); err == nil {
				fmt.Printf("* group %s (%s): %s %s\n", evt.Group.Name, evt.Room, evt.Change, evt.User)
			}
		default:
			fmt.Printf("%s %s %s\n", out.Type, out.Event, string(out.Data))
		}
	}
}

func (c *chat) writeLoop() {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-c.ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			text := strings.TrimSpace(line)
			if text == "" {
				continue
			}
			if err := c.handleLine(text); err != nil {
				log.Printf("send error: %v", err)
				return
			}
		}
	}
}
