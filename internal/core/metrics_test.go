package core

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestMetricsTrackRouterActivity(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r := NewRouter(newTestStore(t), nil, Options{Metrics: m})
	go r.Run(ctx)

	alice := joinAs(t, r, "a", "alice")
	alice.Commands <- &Command{Kind: CommandSendMessage, RequestID: "m", Text: "hi"}
	mustAck(t, alice.Events, "m")
	alice.Commands <- &Command{Kind: CommandJoinRoom, RequestID: "bad", Room: "missing"}
	mustAck(t, alice.Events, "bad")

	require.Equal(t, 1.0, testutil.ToFloat64(m.connections))
	require.Equal(t, 1.0, testutil.ToFloat64(m.onlineUsers))
	require.Equal(t, 1.0, testutil.ToFloat64(m.persisted))
	require.Equal(t, 1.0, testutil.ToFloat64(m.commands.WithLabelValues("send_message", "ok")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.commands.WithLabelValues("join_room", ErrCodeNotFound)))

	r.UnregisterClient(alice)
	require.Equal(t, 0.0, testutil.ToFloat64(m.connections))
	require.Equal(t, 0.0, testutil.ToFloat64(m.onlineUsers))
}

func TestNilMetricsAreNoop(t *testing.T) {
	var m *Metrics
	m.observeCommand(CommandJoin, nil)
	m.observeDelivery(true)
	m.observePersisted()
	m.setGauges(1, 2, 3)
}
