package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGame struct {
	mu      sync.Mutex
	players map[string]string
	removed []string
	err     error
}

func newFakeGame() *fakeGame { return &fakeGame{players: make(map[string]string)} }

func (g *fakeGame) AddPlayer(_ context.Context, id, name string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return false, g.err
	}
	if _, ok := g.players[id]; ok {
		return false, nil
	}
	g.players[id] = name
	return true, nil
}

func (g *fakeGame) RemovePlayer(_ context.Context, id string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return false, g.err
	}
	g.removed = append(g.removed, id)
	_, ok := g.players[id]
	delete(g.players, id)
	return ok, nil
}

func TestRegistryAddIsIdempotent(t *testing.T) {
	game := newFakeGame()
	r := NewRegistry(game)
	ctx := context.Background()
	r.RegisterConnection("c1", "alice")

	added, err := r.TryAddPlayer(ctx, "c1", "Alice")
	require.NoError(t, err)
	assert.True(t, added)

	added, err = r.TryAddPlayer(ctx, "c1", "Alice")
	require.NoError(t, err)
	assert.False(t, added)
}

func TestRegistryUnknownConnection(t *testing.T) {
	r := NewRegistry(newFakeGame())

	_, err := r.TryAddPlayer(context.Background(), "nope", "")
	assert.ErrorIs(t, err, ErrUnknownConnection)

	_, err = r.RemovePlayer(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrUnknownConnection)

	user, err := r.UnregisterConnection(context.Background(), "nope")
	assert.NoError(t, err)
	assert.Empty(t, user)
}

func TestRegistryRemovesPlayerOnLastConnection(t *testing.T) {
	game := newFakeGame()
	r := NewRegistry(game)
	ctx := context.Background()

	r.RegisterConnection("c1", "alice")
	r.RegisterConnection("c2", "alice")
	_, err := r.TryAddPlayer(ctx, "c1", "Alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"c1", "c2"}, r.Connections("alice"))

	user, err := r.UnregisterConnection(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "alice", user)
	assert.Empty(t, game.removed)

	_, err = r.UnregisterConnection(ctx, "c2")
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, game.removed)
	assert.Zero(t, r.Count())
	assert.Empty(t, r.Connections("alice"))
}

func TestRegistryRebindConnection(t *testing.T) {
	r := NewRegistry(newFakeGame())
	r.RegisterConnection("c1", "alice")
	r.RegisterConnection("c1", "bob")

	user, ok := r.UserOf("c1")
	require.True(t, ok)
	assert.Equal(t, "bob", user)
	assert.Empty(t, r.Connections("alice"))
	assert.Equal(t, 1, r.Count())
}

func TestRegistryWrapsGameErrors(t *testing.T) {
	game := newFakeGame()
	game.err = errors.New("движок остановлен")
	r := NewRegistry(game)
	r.RegisterConnection("c1", "alice")

	_, err := r.TryAddPlayer(context.Background(), "c1", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, game.err)
}

func TestRegistryConcurrentConnections(t *testing.T) {
	r := NewRegistry(newFakeGame())
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			conn := string(rune('A' + i))
			r.RegisterConnection(conn, "shared")
			_, _ = r.TryAddPlayer(context.Background(), conn, "")
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 50, r.Count())
	assert.Len(t, r.Connections("shared"), 50)
}

// gatedGame задерживает удаление игрока до сигнала release.
type gatedGame struct {
	*fakeGame
	entered chan struct{}
	release chan struct{}
}

func (g *gatedGame) RemovePlayer(ctx context.Context, id string) (bool, error) {
	close(g.entered)
	<-g.release
	return g.fakeGame.RemovePlayer(ctx, id)
}

func (g *fakeGame) has(id string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.players[id]
	return ok
}

func TestRegistryReconnectDuringRemoval(t *testing.T) {
	game := &gatedGame{fakeGame: newFakeGame(), entered: make(chan struct{}), release: make(chan struct{})}
	r := NewRegistry(game)
	ctx := context.Background()

	r.RegisterConnection("a", "u1")
	_, err := r.TryAddPlayer(ctx, "a", "Alice")
	require.NoError(t, err)

	unregistered := make(chan error, 1)
	go func() {
		_, err := r.UnregisterConnection(ctx, "a")
		unregistered <- err
	}()
	<-game.entered

	r.RegisterConnection("b", "u1")
	type addResult struct {
		added bool
		err   error
	}
	addDone := make(chan addResult, 1)
	go func() {
		added, err := r.TryAddPlayer(ctx, "b", "Alice")
		addDone <- addResult{added, err}
	}()

	close(game.release)
	require.NoError(t, <-unregistered)
	res := <-addDone
	require.NoError(t, res.err)
	assert.True(t, res.added)

	assert.Equal(t, []string{"b"}, r.Connections("u1"))
	assert.True(t, game.has("u1"))
}

func TestRegistrySkipsRemovalAfterReconnect(t *testing.T) {
	game := newFakeGame()
	r := NewRegistry(game)
	ctx := context.Background()

	r.RegisterConnection("a", "u1")
	_, err := r.TryAddPlayer(ctx, "a", "Alice")
	require.NoError(t, err)

	// Очередь к игре занята: отключение успевает отвязать "a", но ждёт
	r.gameMu.Lock()
	unregistered := make(chan error, 1)
	go func() {
		_, err := r.UnregisterConnection(ctx, "a")
		unregistered <- err
	}()
	require.Eventually(t, func() bool { return r.Count() == 0 }, time.Second, 5*time.Millisecond)

	r.RegisterConnection("b", "u1")
	r.gameMu.Unlock()
	require.NoError(t, <-unregistered)

	assert.True(t, game.has("u1"))
	assert.Empty(t, game.removed)
}
