package broadcast

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/annel0/arena-shooter/internal/game"
	"github.com/annel0/arena-shooter/internal/protocol"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSource struct {
	snap game.Snapshot
	err  error
}

func (s *stubSource) Snapshot(context.Context) (game.Snapshot, error) { return s.snap, s.err }

type recordingPublisher struct {
	mu      sync.Mutex
	frames  [][]byte
	clients int
	err     error
}

func (p *recordingPublisher) Broadcast(_ context.Context, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.frames = append(p.frames, data)
	return nil
}

func (p *recordingPublisher) ClientCount() int { return p.clients }

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.frames)
}

func TestBroadcastOnceEncodesReport(t *testing.T) {
	src := &stubSource{snap: game.Snapshot{Tick: 9, Players: []game.PlayerSnapshot{{ID: "u1", Name: "Alice"}}}}
	pub := &recordingPublisher{clients: 1}
	s := NewScheduler(src, pub, time.Second, nil)
	s.now = func() time.Time { return time.UnixMilli(5000) }

	require.NoError(t, s.BroadcastOnce(context.Background()))
	require.Equal(t, 1, pub.count())

	env, err := protocol.DecodeEnvelope(pub.frames[0])
	require.NoError(t, err)
	assert.Equal(t, protocol.MsgGameStateReport, env.Type)

	report, err := protocol.DecodePayload[game.GameStateReport](env)
	require.NoError(t, err)
	assert.Equal(t, int64(5000), report.Timestamp)
	assert.Equal(t, uint64(9), report.State.Tick)
	assert.Equal(t, "Alice", report.State.Players[0].Name)
}

func TestBroadcastSkipsWithoutClients(t *testing.T) {
	reg := prometheus.NewRegistry()
	pub := &recordingPublisher{}
	s := NewScheduler(&stubSource{}, pub, time.Second, reg)

	require.NoError(t, s.BroadcastOnce(context.Background()))
	assert.Zero(t, pub.count())
	assert.Equal(t, 1.0, testutil.ToFloat64(s.skipped))
}

func TestRunStopsWhenEngineStops(t *testing.T) {
	src := &stubSource{err: game.ErrEngineStopped}
	s := NewScheduler(src, &recordingPublisher{clients: 1}, time.Millisecond, nil)

	err := s.Run(context.Background())
	assert.ErrorIs(t, err, game.ErrEngineStopped)
}

func TestRunSurvivesPublishErrors(t *testing.T) {
	pub := &recordingPublisher{clients: 1, err: errors.New("сокет закрыт")}
	s := NewScheduler(&stubSource{}, pub, time.Millisecond, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	assert.NoError(t, s.Run(ctx))
	assert.Greater(t, testutil.ToFloat64(s.failed), 0.0)
}

func TestRunPushesPeriodically(t *testing.T) {
	pub := &recordingPublisher{clients: 2}
	s := NewScheduler(&stubSource{}, pub, 2*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool { return pub.count() >= 3 }, time.Second, time.Millisecond)
	cancel()
	assert.NoError(t, <-done)
}

func TestSchedulerWithEngine(t *testing.T) {
	engine, err := game.NewEngine(game.Options{Tuning: game.DefaultTuning(), Clock: &game.ManualClock{}})
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = engine.Run(ctx) }()

	_, err = engine.AddPlayer(ctx, "u1", "Alice")
	require.NoError(t, err)

	pub := &recordingPublisher{clients: 1}
	s := NewScheduler(engine, pub, time.Second, nil)
	require.NoError(t, s.BroadcastOnce(ctx))

	env, err := protocol.DecodeEnvelope(pub.frames[0])
	require.NoError(t, err)
	report, err := protocol.DecodePayload[game.GameStateReport](env)
	require.NoError(t, err)
	require.Len(t, report.State.Players, 1)
	assert.Equal(t, "u1", report.State.Players[0].ID)
}
