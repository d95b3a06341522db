package supervisor

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastPolicy(restarts int) Policy {
	return Policy{
		MaxRestarts:    restarts,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
	}
}

func TestRunRestartsAfterPanic(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls int32
	err := Run(ctx, "test", fastPolicy(3), func(ctx context.Context) error {
		if atomic.AddInt32(&calls, 1) < 3 {
			panic("сбой тика")
		}
		cancel()
		<-ctx.Done()
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestRunGivesUpAfterMaxRestarts(t *testing.T) {
	boom := errors.New("boom")
	var calls int32

	err := Run(context.Background(), "test", fastPolicy(2), func(context.Context) error {
		atomic.AddInt32(&calls, 1)
		return boom
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRestartsExhausted)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestRunStopsOnCancelDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	policy := Policy{MaxRestarts: 10, InitialBackoff: time.Hour, MaxBackoff: time.Hour}

	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, "test", policy, func(context.Context) error {
			return errors.New("сбой")
		})
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("супервизор не остановился")
	}
}

func TestPanicErrorKeepsValue(t *testing.T) {
	err := runProtected(context.Background(), func(context.Context) error {
		panic(42)
	})

	var perr *PanicError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, 42, perr.Value)
	assert.NotEmpty(t, perr.Stack)
}
