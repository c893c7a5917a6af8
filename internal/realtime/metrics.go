package realtime

import "github.com/prometheus/client_golang/prometheus"

// Metrics is safe to use as a nil pointer, which disables collection.
type Metrics struct {
	connections   prometheus.Gauge
	events        *prometheus.CounterVec
	handshakes    *prometheus.CounterVec
	droppedFrames prometheus.Counter
	busMessages   *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "realtime",
			Name:      "connections",
			Help:      "Live websocket connections on this instance.",
		}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "realtime",
			Name:      "events_total",
			Help:      "Client events handled, by event name and outcome.",
		}, []string{"event", "outcome"}),
		handshakes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "realtime",
			Name:      "handshakes_total",
			Help:      "Websocket handshakes, by result.",
		}, []string{"result"}),
		droppedFrames: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "realtime",
			Name:      "dropped_frames_total",
			Help:      "Frames dropped because a client queue was full.",
		}),
		busMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "realtime",
			Name:      "bus_messages_total",
			Help:      "Cross-instance fan-out messages, by direction.",
		}, []string{"direction"}),
	}
	if reg != nil {
		reg.MustRegister(m.connections, m.events, m.handshakes, m.droppedFrames, m.busMessages)
	}
	return m
}

func (m *Metrics) connected() {
	if m != nil {
		m.connections.Inc()
	}
}

func (m *Metrics) disconnected() {
	if m != nil {
		m.connections.Dec()
	}
}

func (m *Metrics) event(name, outcome string) {
	if m != nil {
		m.events.WithLabelValues(name, outcome).Inc()
	}
}

func (m *Metrics) handshake(result string) {
	if m != nil {
		m.handshakes.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) dropped() {
	if m != nil {
		m.droppedFrames.Inc()
	}
}

func (m *Metrics) bus(direction string) {
	if m != nil {
		m.busMessages.WithLabelValues(direction).Inc()
	}
}
