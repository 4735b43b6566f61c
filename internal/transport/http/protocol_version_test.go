package http

import (
	"context"
	"testing"
	"time"

	"github.com/vovakirdan/huddle/internal/proto"
)

func TestProtocolVersionMismatch(t *testing.T) {
	env := startTestServer(t, testConfig())
	cctx, closeCtx := context.WithTimeout(context.Background(), 3*time.Second)
	defer closeCtx()

	conn := env.dial(t, cctx)
	send(t, cctx, conn, "v", proto.InboundTypeJoin, proto.JoinData{User: "alice", Protocol: proto.ProtocolVersion + 1})

	outbound := readUntil(t, cctx, conn, replyTo("v"))
	if outbound.Type != proto.OutboundTypeError || outbound.Error == nil || outbound.Error.Code != "unsupported_version" {
		t.Fatalf("expected unsupported_version error, got %+v", outbound)
	}
	if env.router.IsOnline("alice") {
		t.Fatalf("rejected join must not register a session")
	}
}
