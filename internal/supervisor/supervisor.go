package supervisor

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/annel0/arena-shooter/internal/logging"
	"github.com/cenkalti/backoff/v4"
)

// ErrRestartsExhausted цикл упал больше MaxRestarts раз подряд
var ErrRestartsExhausted = errors.New("исчерпан лимит перезапусков")

// PanicError паника внутри цикла, превращённая в ошибку
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("паника: %v", e.Value)
}

// Policy политика перезапуска.
type Policy struct {
	MaxRestarts    int           // 0 - без перезапусков
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	ResetAfter     time.Duration // Проработав столько, цикл считается здоровым
}

// DefaultPolicy пять попыток с паузой от 100мс до 5с.
func DefaultPolicy() Policy {
	return Policy{
		MaxRestarts:    5,
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     5 * time.Second,
		ResetAfter:     time.Minute,
	}
}

// Loop долгоживущий цикл: возвращает nil при штатной остановке по ctx.
type Loop func(ctx context.Context) error

// Run запускает loop и перезапускает его после ошибки или паники с
// экспоненциальной паузой. Возвращает nil, когда ctx отменён, и ошибку
// с ErrRestartsExhausted, когда попытки кончились.
func Run(ctx context.Context, name string, policy Policy, loop Loop) error {
	log := logging.GetComponentLogger("supervisor")

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = policy.InitialBackoff
	b.MaxInterval = policy.MaxBackoff
	b.MaxElapsedTime = 0
	b.Reset()

	failures := 0
	for {
		started := time.Now()
		err := runProtected(ctx, loop)
		if ctx.Err() != nil {
			return nil
		}
		if err == nil {
			// Цикл вышел сам, хотя контекст жив: считаем это сбоем
			err = errors.New("цикл завершился без отмены контекста")
		}

		if policy.ResetAfter > 0 && time.Since(started) >= policy.ResetAfter {
			failures = 0
			b.Reset()
		}
		failures++

		var perr *PanicError
		if errors.As(err, &perr) {
			log.Error("Цикл %s упал: %v\n%s", name, perr.Value, perr.Stack)
		} else {
			log.Error("Цикл %s завершился с ошибкой: %v", name, err)
		}

		if failures > policy.MaxRestarts {
			return fmt.Errorf("%s: %w (%d): %v", name, ErrRestartsExhausted, policy.MaxRestarts, err)
		}

		wait := b.NextBackOff()
		log.Warn("Перезапуск %s через %v (попытка %d/%d)", name, wait, failures, policy.MaxRestarts)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}

func runProtected(ctx context.Context, loop Loop) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	return loop(ctx)
}
