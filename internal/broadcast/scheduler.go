package broadcast

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/annel0/arena-shooter/internal/game"
	"github.com/annel0/arena-shooter/internal/logging"
	"github.com/annel0/arena-shooter/internal/protocol"
	"github.com/prometheus/client_golang/prometheus"
)

// Source источник снапшотов (game.Engine)
type Source interface {
	Snapshot(ctx context.Context) (game.Snapshot, error)
}

// Publisher транспорт, рассылающий готовый кадр всем подключениям
type Publisher interface {
	Broadcast(ctx context.Context, data []byte) error
}

// audience необязательная способность транспорта сообщить число слушателей
type audience interface {
	ClientCount() int
}

// Scheduler рассылает GameStateReport с частотой ниже частоты симуляции.
// Снапшот копируется владельцем движка, а сериализация и отправка идут
// уже в этой горутине.
type Scheduler struct {
	source    Source
	publisher Publisher
	period    time.Duration
	now       func() time.Time
	log       *logging.Logger

	sent     prometheus.Counter
	failed   prometheus.Counter
	skipped  prometheus.Counter
	frameLen prometheus.Histogram
}

// NewScheduler создаёт планировщик. reg может быть nil.
func NewScheduler(source Source, publisher Publisher, period time.Duration, reg prometheus.Registerer) *Scheduler {
	s := &Scheduler{
		source:    source,
		publisher: publisher,
		period:    period,
		now:       time.Now,
		log:       logging.GetBroadcastLogger(),
		sent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "arena", Subsystem: "broadcast", Name: "reports_total",
			Help: "Разосланные отчёты о состоянии.",
		}),
		failed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "arena", Subsystem: "broadcast", Name: "failures_total",
			Help: "Циклы рассылки, завершившиеся ошибкой.",
		}),
		skipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "arena", Subsystem: "broadcast", Name: "skipped_total",
			Help: "Циклы без слушателей.",
		}),
		frameLen: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "arena", Subsystem: "broadcast", Name: "frame_bytes",
			Help:    "Размер кадра GameStateReport.",
			Buckets: prometheus.ExponentialBuckets(256, 2, 10),
		}),
	}
	if reg != nil {
		reg.MustRegister(s.sent, s.failed, s.skipped, s.frameLen)
	}
	return s
}

// Run рассылает отчёты до отмены ctx. Остановка движка завершает цикл с ошибкой.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.period)
	defer ticker.Stop()

	s.log.Info("Рассылка состояния каждые %v", s.period)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			err := s.BroadcastOnce(ctx)
			switch {
			case err == nil:
			case ctx.Err() != nil:
				return nil
			case errors.Is(err, game.ErrEngineStopped):
				return err
			default:
				s.failed.Inc()
				s.log.Warn("Рассылка не удалась: %v", err)
			}
		}
	}
}

// BroadcastOnce один цикл: снапшот, кодирование, отправка.
func (s *Scheduler) BroadcastOnce(ctx context.Context) error {
	if a, ok := s.publisher.(audience); ok && a.ClientCount() == 0 {
		s.skipped.Inc()
		return nil
	}

	snapshot, err := s.source.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("снапшот: %w", err)
	}

	frame, err := protocol.Encode(protocol.MsgGameStateReport, game.NewReport(s.now(), snapshot))
	if err != nil {
		return err
	}
	s.frameLen.Observe(float64(len(frame)))

	if err := s.publisher.Broadcast(ctx, frame); err != nil {
		return fmt.Errorf("отправка отчёта: %w", err)
	}
	s.sent.Inc()
	return nil
}
