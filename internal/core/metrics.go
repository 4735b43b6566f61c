package core

import "github.com/prometheus/client_golang/prometheus"

// Metrics exposes router counters. A nil *Metrics records nothing.
type Metrics struct {
	connections prometheus.Gauge
	onlineUsers prometheus.Gauge
	rooms       prometheus.Gauge
	commands    *prometheus.CounterVec
	delivered   prometheus.Counter
	dropped     prometheus.Counter
	persisted   prometheus.Counter
}

// NewMetrics registers the router collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "huddle",
			Name:      "connections",
			Help:      "Number of live connections.",
		}),
		onlineUsers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "huddle",
			Name:      "online_users",
			Help:      "Number of users with at least one live session.",
		}),
		rooms: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "huddle",
			Name:      "subscribed_rooms",
			Help:      "Number of rooms with at least one subscriber.",
		}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "huddle",
			Name:      "commands_total",
			Help:      "Commands processed, by kind and result code.",
		}, []string{"kind", "result"}),
		delivered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "huddle",
			Name:      "events_delivered_total",
			Help:      "Events handed to client queues.",
		}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "huddle",
			Name:      "events_dropped_total",
			Help:      "Events dropped because a client queue was full or closed.",
		}),
		persisted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "huddle",
			Name:      "messages_persisted_total",
			Help:      "Messages appended to durable storage.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.connections, m.onlineUsers, m.rooms, m.commands, m.delivered, m.dropped, m.persisted)
	}
	return m
}

func (m *Metrics) observeCommand(kind CommandKind, ev *Event) {
	if m == nil {
		return
	}
	result := "ok"
	if ev != nil && ev.Error != nil {
		result = ev.Error.Code
	}
	m.commands.WithLabelValues(kind.String(), result).Inc()
}

func (m *Metrics) observeDelivery(ok bool) {
	if m == nil {
		return
	}
	if ok {
		m.delivered.Inc()
	} else {
		m.dropped.Inc()
	}
}

func (m *Metrics) observePersisted() {
	if m == nil {
		return
	}
	m.persisted.Inc()
}

func (m *Metrics) setGauges(conns, online, rooms int) {
	if m == nil {
		return
	}
	m.connections.Set(float64(conns))
	m.onlineUsers.Set(float64(online))
	m.rooms.Set(float64(rooms))
}
