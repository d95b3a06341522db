package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/annel0/arena-shooter/internal/logging"
	nats "github.com/nats-io/nats.go"
)

// JetStreamConfig параметры подключения к JetStream.
type JetStreamConfig struct {
	URL       string        // nats://127.0.0.1:4222
	Stream    string        // Имя стрима, по умолчанию ARENA_EVENTS
	Subject   string        // Префикс subject, по умолчанию arena.events
	Retention time.Duration // MaxAge сообщений в стриме
	Name      string        // Имя клиента в мониторинге NATS
}

func (c *JetStreamConfig) applyDefaults() {
	if c.Stream == "" {
		c.Stream = "ARENA_EVENTS"
	}
	if c.Subject == "" {
		c.Subject = "arena.events"
	}
	if c.Retention <= 0 {
		c.Retention = 24 * time.Hour
	}
	if c.Name == "" {
		c.Name = "arena-server"
	}
}

// JetStreamBus реализует EventBus поверх NATS JetStream.
type JetStreamBus struct {
	nc        *nats.Conn
	js        nats.JetStreamContext
	cfg       JetStreamConfig
	log       *logging.Logger
	published uint64
	consumed  uint64
	dropped   uint64
}

// NewJetStreamBus подключается к NATS и гарантирует наличие стрима
// с subject <prefix>.*.
func NewJetStreamBus(cfg JetStreamConfig) (*JetStreamBus, error) {
	cfg.applyDefaults()
	log := logging.GetComponentLogger("eventbus")

	nc, err := nats.Connect(cfg.URL,
		nats.Name(cfg.Name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn("NATS отключён: %v", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info("NATS переподключён к %s", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	if _, err := js.StreamInfo(cfg.Stream); err != nil {
		_, err = js.AddStream(&nats.StreamConfig{
			Name:      cfg.Stream,
			Subjects:  []string{cfg.Subject + ".*"},
			Retention: nats.LimitsPolicy,
			MaxAge:    cfg.Retention,
			Storage:   nats.FileStorage,
		})
		if err != nil {
			nc.Close()
			return nil, fmt.Errorf("add stream %s: %w", cfg.Stream, err)
		}
		log.Info("Создан стрим %s (%s.*)", cfg.Stream, cfg.Subject)
	}

	return &JetStreamBus{nc: nc, js: js, cfg: cfg, log: log}, nil
}

func (jb *JetStreamBus) subject(eventType string) string {
	return jb.cfg.Subject + "." + eventType
}

// Publish сериализует Envelope в JSON и публикует в <prefix>.<type>.
// ID конверта используется для дедупликации на стороне сервера.
func (jb *JetStreamBus) Publish(ctx context.Context, ev *Envelope) error {
	data, err := json.Marshal(ev)
	if err != nil {
		atomic.AddUint64(&jb.dropped, 1)
		return err
	}
	if _, err := jb.js.Publish(jb.subject(ev.EventType), data, nats.Context(ctx), nats.MsgId(ev.ID)); err != nil {
		atomic.AddUint64(&jb.dropped, 1)
		return fmt.Errorf("jetstream publish %s: %w", ev.EventType, err)
	}
	atomic.AddUint64(&jb.published, 1)
	return nil
}

// Subscribe создаёт эфемерного потребителя, получающего только новые
// события. Если в фильтре больше одного типа, фильтрация идёт локально.
func (jb *JetStreamBus) Subscribe(ctx context.Context, f Filter, h Handler) (Subscription, error) {
	subj := jb.cfg.Subject + ".*"
	if len(f.Types) == 1 {
		subj = jb.subject(f.Types[0])
	}

	natSub, err := jb.js.Subscribe(subj, func(msg *nats.Msg) {
		var ev Envelope
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			jb.log.Warn("Битое событие в %s: %v", msg.Subject, err)
			_ = msg.Term()
			return
		}
		if matchFilter(&ev, f) {
			h(ctx, &ev)
			atomic.AddUint64(&jb.consumed, 1)
		}
		_ = msg.Ack()
	}, nats.ManualAck(), nats.DeliverNew(), nats.AckWait(30*time.Second))
	if err != nil {
		return nil, fmt.Errorf("jetstream subscribe %s: %w", subj, err)
	}

	return &jetSub{natSub}, nil
}

// jetSub обёртка вокруг *nats.Subscription
type jetSub struct {
	s *nats.Subscription
}

func (j *jetSub) Unsubscribe() {
	_ = j.s.Unsubscribe()
}

// Metrics возвращает текущие метрики.
func (jb *JetStreamBus) Metrics() Stats {
	return Stats{
		Published: atomic.LoadUint64(&jb.published),
		Consumed:  atomic.LoadUint64(&jb.consumed),
		Dropped:   atomic.LoadUint64(&jb.dropped),
		InFlight:  0, // Очередь держит сам JetStream
	}
}

// Close дожидается отправки буфера и закрывает соединение.
func (jb *JetStreamBus) Close() error {
	return jb.nc.Drain()
}
