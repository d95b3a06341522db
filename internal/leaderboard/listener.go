package leaderboard

import (
	"context"

	"github.com/annel0/arena-shooter/internal/eventbus"
	"github.com/annel0/arena-shooter/internal/game"
	"github.com/annel0/arena-shooter/internal/logging"
)

// Listen подписывает таблицу на события арены: входы дают имена,
// поражения дают счёт.
func Listen(ctx context.Context, bus eventbus.EventBus, board Board) (eventbus.Subscription, error) {
	log := logging.GetComponentLogger("leaderboard")
	filter := eventbus.Filter{
		Types:   []string{string(game.EventPlayerJoined), string(game.EventPlayerDefeated)},
		Sources: []string{game.EventSource},
	}
	return bus.Subscribe(ctx, filter, func(ctx context.Context, env *eventbus.Envelope) {
		ev, err := game.DecodeEvent(env)
		if err != nil {
			log.Warn("%v", err)
			return
		}
		switch ev.Type {
		case game.EventPlayerJoined:
			err = board.SetName(ctx, ev.PlayerID, ev.Name)
		case game.EventPlayerDefeated:
			err = board.RecordDefeat(ctx, ev.PlayerID, ev.ByID)
		}
		if err != nil {
			log.Error("Таблица лидеров: %v", err)
		}
	})
}
