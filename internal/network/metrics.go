package network

import "github.com/prometheus/client_golang/prometheus"

// hubMetrics метрики WebSocket-хаба
type hubMetrics struct {
	connections prometheus.Gauge
	messages    *prometheus.CounterVec
	dropped     prometheus.Counter
}

func newHubMetrics(reg prometheus.Registerer) *hubMetrics {
	m := &hubMetrics{
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "arena",
			Subsystem: "ws",
			Name:      "connections",
			Help:      "Количество открытых WebSocket-подключений",
		}),
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "arena",
			Subsystem: "ws",
			Name:      "messages_total",
			Help:      "Входящие сообщения по типам",
		}, []string{"type"}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "arena",
			Subsystem: "ws",
			Name:      "slow_clients_dropped_total",
			Help:      "Клиенты, отключённые из-за переполненной очереди",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.connections, m.messages, m.dropped)
	}
	return m
}
