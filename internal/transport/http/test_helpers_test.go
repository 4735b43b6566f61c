package http

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/vovakirdan/huddle/internal/auth"
	"github.com/vovakirdan/huddle/internal/config"
	"github.com/vovakirdan/huddle/internal/core"
	"github.com/vovakirdan/huddle/internal/proto"
	"github.com/vovakirdan/huddle/internal/service/groups"
	"github.com/vovakirdan/huddle/internal/store/sqlite"
)

type testEnv struct {
	ts     *httptest.Server
	store  *sqlite.SQLiteStore
	auth   *auth.Service
	groups *groups.Service
	router *core.Router
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.Addr = ":0"
	cfg.ReadHeaderTimeout = time.Second
	cfg.ShutdownTimeout = time.Second
	cfg.JWTSecret = "test-secret"
	return cfg
}

// startTestServer wires an in-memory store, router and services behind an
// httptest server.
func startTestServer(t *testing.T, cfg config.Config) *testEnv {
	t.Helper()

	st, err := sqlite.NewWithSetup(":memory:", sqlite.ApplySchema)
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	logger := zerolog.Nop()
	authService := auth.NewService(st, &auth.JWTConfig{
		Secret:   []byte(cfg.JWTSecret),
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		TTL:      cfg.JWTTTL,
	})

	router := core.NewRouter(st, &logger, core.Options{GlobalRoom: cfg.GlobalRoom})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		router.Run(ctx)
		close(done)
	}()

	groupService := groups.New(st, nil, router, &logger)
	reg := prometheus.NewRegistry()
	server := NewServer(Services{
		Router:   router,
		Auth:     authService,
		Groups:   groupService,
		Messages: st,
		Gatherer: reg,
	}, &cfg, &logger)

	ts := httptest.NewServer(server.Handler)
	t.Cleanup(func() {
		ts.Close()
		cancel()
		<-done
	})

	return &testEnv{ts: ts, store: st, auth: authService, groups: groupService, router: router}
}

func init() {
	auth.SetHashCost(bcrypt.MinCost)
}

func (e *testEnv) dial(t *testing.T, ctx context.Context) *websocket.Conn {
	t.Helper()

	wsURL := strings.Replace(e.ts.URL, "http", "ws", 1) + "/ws"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "done") })
	return conn
}

func send(t *testing.T, ctx context.Context, conn *websocket.Conn, id, typ string, data any) {
	t.Helper()

	payload, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := wsjson.Write(ctx, conn, proto.Inbound{ID: id, Type: typ, Data: payload}); err != nil {
		t.Fatalf("send %s: %v", typ, err)
	}
}

type rawOutbound struct {
	Type  string          `json:"type"`
	ID    string          `json:"id"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	Error *proto.Error    `json:"error"`
}

// readUntil reads frames until match returns true.
func readUntil(t *testing.T, ctx context.Context, conn *websocket.Conn, match func(rawOutbound) bool) rawOutbound {
	t.Helper()

	for {
		var out rawOutbound
		if err := wsjson.Read(ctx, conn, &out); err != nil {
			t.Fatalf("read outbound: %v", err)
		}
		if match(out) {
			return out
		}
	}
}

func replyTo(id string) func(rawOutbound) bool {
	return func(o rawOutbound) bool { return o.ID == id }
}

func eventNamed(name string) func(rawOutbound) bool {
	return func(o rawOutbound) bool { return o.Type == proto.OutboundTypeEvent && o.Event == name }
}

// joinWS dials and joins as user, waiting for the ack.
func (e *testEnv) joinWS(t *testing.T, ctx context.Context, user string) *websocket.Conn {
	t.Helper()

	conn := e.dial(t, ctx)
	send(t, ctx, conn, "join", proto.InboundTypeJoin, proto.JoinData{User: user})
	ack := readUntil(t, ctx, conn, replyTo("join"))
	if ack.Type != proto.OutboundTypeAck {
		t.Fatalf("join %s failed: %+v", user, ack.Error)
	}
	return conn
}
