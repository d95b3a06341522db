package game

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics Prometheus-метрики симуляции. Нулевой указатель допустим:
// все методы на nil ничего не делают.
type Metrics struct {
	ticks        prometheus.Counter
	overruns     prometheus.Counter
	tickDuration prometheus.Histogram
	players      prometheus.Gauge
	entities     prometheus.Gauge
	spawned      prometheus.Counter
	collisions   prometheus.Counter
	defeats      prometheus.Counter
	droppedEvent prometheus.Counter
}

// NewMetrics создаёт метрики и регистрирует их в reg (если reg != nil).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "arena", Subsystem: "engine", Name: "ticks_total",
			Help: "Число выполненных тиков симуляции.",
		}),
		overruns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "arena", Subsystem: "engine", Name: "tick_overruns_total",
			Help: "Тики, не уложившиеся в целевой период.",
		}),
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "arena", Subsystem: "engine", Name: "tick_duration_seconds",
			Help:    "Время вычисления одного тика.",
			Buckets: prometheus.ExponentialBuckets(0.00005, 2, 12),
		}),
		players: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "arena", Subsystem: "engine", Name: "players",
			Help: "Зарегистрированные игроки.",
		}),
		entities: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "arena", Subsystem: "engine", Name: "entities",
			Help: "Живые сущности после тика.",
		}),
		spawned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "arena", Subsystem: "engine", Name: "projectiles_spawned_total",
			Help: "Выпущенные снаряды.",
		}),
		collisions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "arena", Subsystem: "engine", Name: "collisions_total",
			Help: "Найденные пересечения пар.",
		}),
		defeats: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "arena", Subsystem: "engine", Name: "defeats_total",
			Help: "Поражения игроков.",
		}),
		droppedEvent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "arena", Subsystem: "engine", Name: "events_dropped_total",
			Help: "События, не поместившиеся в очередь публикации.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.ticks, m.overruns, m.tickDuration, m.players, m.entities,
			m.spawned, m.collisions, m.defeats, m.droppedEvent)
	}
	return m
}

func (m *Metrics) observeStep(r StepResult, took time.Duration, overrun bool) {
	if m == nil {
		return
	}
	m.ticks.Inc()
	m.tickDuration.Observe(took.Seconds())
	if overrun {
		m.overruns.Inc()
	}
	m.entities.Set(float64(r.Entities))
	m.spawned.Add(float64(r.Spawned))
	m.collisions.Add(float64(r.Collisions))
	m.defeats.Add(float64(r.Defeats))
}

func (m *Metrics) setPlayers(n int) {
	if m == nil {
		return
	}
	m.players.Set(float64(n))
}

func (m *Metrics) eventDropped() {
	if m == nil {
		return
	}
	m.droppedEvent.Inc()
}
