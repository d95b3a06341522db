package eventbus

import (
	"context"

	"github.com/annel0/arena-shooter/internal/logging"
)

// StartLoggingListener подписывается на все события и пишет их в лог
// шины на уровне DEBUG. Функция неблокирующая.
func StartLoggingListener(ctx context.Context, bus EventBus) (Subscription, error) {
	log := logging.GetComponentLogger("eventbus")
	sub, err := bus.Subscribe(ctx, Filter{}, func(_ context.Context, ev *Envelope) {
		log.Debug("%s %s src=%s prio=%d size=%dB", ev.ID, ev.EventType, ev.Source, ev.Priority, len(ev.Payload))
	})
	if err != nil {
		return nil, err
	}
	log.Info("Журналирование событий шины включено")
	return sub, nil
}
