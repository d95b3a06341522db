package game

import (
	"context"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/annel0/arena-shooter/internal/eventbus"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func msec(n int64) time.Duration { return time.Duration(n) * time.Millisecond }

type capturePublisher struct {
	mu     sync.Mutex
	events []*eventbus.Envelope
}

func (c *capturePublisher) Publish(_ context.Context, ev *eventbus.Envelope) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
	return nil
}

func (c *capturePublisher) types() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.events))
	for _, ev := range c.events {
		out = append(out, ev.EventType)
	}
	return out
}

func newTestEngine(t *testing.T, clock Clock, pub EventPublisher, metrics *Metrics) *Engine {
	t.Helper()
	e, err := NewEngine(Options{
		Tuning:    DefaultTuning(),
		Clock:     clock,
		Rand:      rand.New(rand.NewSource(1)),
		Publisher: pub,
		Metrics:   metrics,
	})
	require.NoError(t, err)
	return e
}

func startEngine(t *testing.T, e *Engine) (context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()
	t.Cleanup(cancel)
	return cancel, done
}

func TestNewEngineRejectsBadTuning(t *testing.T) {
	tuning := DefaultTuning()
	tuning.TickRate = 0
	_, err := NewEngine(Options{Tuning: tuning})
	assert.ErrorIs(t, err, errInvalidTuning)
}

func TestEngineStepUsesMeasuredDelta(t *testing.T) {
	clock := &ManualClock{}
	e := newTestEngine(t, clock, nil, nil)
	p, _ := e.world.AddPlayer("p1", "")
	e.Step()

	p.position = mgl64.Vec2{5, 5}
	p.controls[AxisRight].Value = 1
	p.controls[AxisRight].Pressed = true

	// Опоздавший тик двигает игрока на измеренное, а не номинальное время
	clock.Advance(100 * time.Millisecond)
	e.Step()

	assert.InDelta(t, 5.15, p.Position()[0], 1e-9)
}

func TestEngineCommands(t *testing.T) {
	e := newTestEngine(t, &ManualClock{}, nil, nil)
	startEngine(t, e)
	ctx := context.Background()

	added, err := e.AddPlayer(ctx, "u1", "Alice")
	require.NoError(t, err)
	assert.True(t, added)

	added, err = e.AddPlayer(ctx, "u1", "Alice")
	require.NoError(t, err)
	assert.False(t, added)

	require.NoError(t, e.SetInputs(ctx, "u1", map[string]bool{"up": true}))
	require.NoError(t, e.Fire(ctx, "ghost", mgl64.Vec2{1, 1}))

	revived, err := e.Revive(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, revived)

	snap, err := e.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Players, 1)
	assert.Equal(t, "Alice", snap.Players[0].Name)

	stats, err := e.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Players)

	removed, err := e.RemovePlayer(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, removed)

	assert.Equal(t, mgl64.Vec2{10, 10}, e.PlayAreaDimensions())
}

func TestEngineStopsOnCancel(t *testing.T) {
	e := newTestEngine(t, &ManualClock{}, nil, nil)
	cancel, done := startEngine(t, e)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("движок не остановился")
	}

	_, err := e.AddPlayer(context.Background(), "u1", "")
	assert.ErrorIs(t, err, ErrEngineStopped)
	assert.ErrorIs(t, e.Fire(context.Background(), "u1", mgl64.Vec2{}), ErrEngineStopped)
}

func TestEngineRequestHonoursContext(t *testing.T) {
	e := newTestEngine(t, &ManualClock{}, nil, nil)
	// Run не запущен: ответа не будет
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := e.Snapshot(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestEnginePublishesEvents(t *testing.T) {
	pub := &capturePublisher{}
	e := newTestEngine(t, &ManualClock{}, pub, nil)
	startEngine(t, e)
	ctx := context.Background()

	_, err := e.AddPlayer(ctx, "u1", "")
	require.NoError(t, err)
	_, err = e.RemovePlayer(ctx, "u1")
	require.NoError(t, err)

	require.Eventually(t, func() bool { return len(pub.types()) == 2 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"PlayerJoined", "PlayerLeft"}, pub.types())

	pub.mu.Lock()
	ev, err := DecodeEvent(pub.events[0])
	pub.mu.Unlock()
	require.NoError(t, err)
	assert.Equal(t, "u1", ev.PlayerID)
	assert.Equal(t, EventSource, pub.events[0].Source)
}

func TestEngineMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	clock := &ManualClock{}
	e := newTestEngine(t, clock, nil, metrics)

	e.handleCommand(addPlayerCmd{id: "u1", reply: newReply[bool]()})
	e.Step()
	clock.Advance(msec(8))
	e.Step()

	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.ticks))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.players))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.entities))

	count, err := testutil.GatherAndCount(reg, "arena_engine_ticks_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestPanickingCommandFailsWaitingCaller(t *testing.T) {
	e := newTestEngine(t, &ManualClock{}, nil, nil)
	// Без мира любая команда с обращением к нему паникует
	e.world = nil

	ownerDone := make(chan any, 1)
	go func() {
		defer func() { ownerDone <- recover() }()
		e.handleCommand(<-e.inbox)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	revived, err := e.Revive(ctx, "u1")
	assert.False(t, revived)
	assert.ErrorIs(t, err, ErrCommandFailed)
	assert.NotErrorIs(t, err, context.DeadlineExceeded)

	// Паника не проглатывается: её должен увидеть супервизор
	assert.NotNil(t, <-ownerDone)
}

func TestHandleCommandRepanicsAfterFailingReply(t *testing.T) {
	e := newTestEngine(t, &ManualClock{}, nil, nil)
	e.world = nil

	reply := newReply[Snapshot]()
	assert.Panics(t, func() { e.handleCommand(snapshotCmd{reply: reply}) })

	out := <-reply
	assert.ErrorIs(t, out.err, ErrCommandFailed)
}
