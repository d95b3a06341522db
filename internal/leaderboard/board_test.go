package leaderboard

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/annel0/arena-shooter/internal/eventbus"
	"github.com/annel0/arena-shooter/internal/game"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestMemoryBoard проверяет подсчёт и сортировку в памяти
func TestMemoryBoard(t *testing.T) {
	board := NewMemoryBoard()
	ctx := context.Background()

	t.Run("Record and rank", func(t *testing.T) {
		if err := board.SetName(ctx, "alice", "Alice"); err != nil {
			t.Fatalf("Ошибка сохранения имени: %v", err)
		}
		_ = board.RecordDefeat(ctx, "bob", "alice")
		_ = board.RecordDefeat(ctx, "carol", "alice")
		_ = board.RecordDefeat(ctx, "alice", "bob")

		top, err := board.Top(ctx, 10)
		if err != nil {
			t.Fatalf("Ошибка чтения таблицы: %v", err)
		}
		if len(top) != 3 {
			t.Fatalf("Ожидалось 3 строки, получено %d", len(top))
		}
		if top[0].PlayerID != "alice" || top[0].Kills != 2 || top[0].Deaths != 1 || top[0].Name != "Alice" {
			t.Errorf("Неверный лидер: %+v", top[0])
		}
		if top[1].PlayerID != "bob" || top[2].PlayerID != "carol" {
			t.Errorf("Неверный порядок: %+v", top)
		}
	})

	t.Run("Limit", func(t *testing.T) {
		top, _ := board.Top(ctx, 1)
		if len(top) != 1 {
			t.Errorf("Ожидалась 1 строка, получено %d", len(top))
		}
	})

	t.Run("Self hit is not a kill", func(t *testing.T) {
		b := NewMemoryBoard()
		_ = b.RecordDefeat(ctx, "dave", "dave")
		top, _ := b.Top(ctx, 0)
		if len(top) != 1 || top[0].Kills != 0 || top[0].Deaths != 1 {
			t.Errorf("Неверная строка: %+v", top)
		}
	})
}

func TestListenFeedsBoard(t *testing.T) {
	bus := eventbus.NewMemoryBus(16)
	defer bus.Close()
	board := NewMemoryBoard()

	_, err := Listen(context.Background(), bus, board)
	require.NoError(t, err)

	publish := func(ev game.Event) {
		env, err := ev.Envelope(time.Now())
		require.NoError(t, err)
		require.NoError(t, bus.Publish(context.Background(), env))
	}
	publish(game.Event{Type: game.EventPlayerJoined, PlayerID: "u1", Name: "Alice"})
	publish(game.Event{Type: game.EventPlayerDefeated, PlayerID: "u2", ByID: "u1"})
	publish(game.Event{Type: game.EventPlayerLeft, PlayerID: "u2"})

	require.Eventually(t, func() bool {
		top, _ := board.Top(context.Background(), 0)
		return len(top) == 2 && top[0].Kills == 1
	}, time.Second, 5*time.Millisecond)

	top, _ := board.Top(context.Background(), 0)
	assert.Equal(t, "Alice", top[0].Name)
	assert.Equal(t, int64(1), top[1].Deaths)
}

// TestRedisBoard требует живой Redis: ARENA_TEST_REDIS=localhost:6379
func TestRedisBoard(t *testing.T) {
	addr := os.Getenv("ARENA_TEST_REDIS")
	if addr == "" {
		t.Skip("ARENA_TEST_REDIS не задан")
	}
	ctx := context.Background()
	prefix := "arena:test:" + uuid.NewString() + ":"
	board, err := NewRedisBoard(ctx, RedisConfig{Addr: addr, KeyPrefix: prefix})
	require.NoError(t, err)
	defer func() {
		board.client.Del(ctx, board.killsKey, board.deathsKey, board.namesKey)
		board.Close()
	}()

	require.NoError(t, board.SetName(ctx, "alice", "Alice"))
	require.NoError(t, board.RecordDefeat(ctx, "bob", "alice"))
	require.NoError(t, board.RecordDefeat(ctx, "bob", "alice"))
	require.NoError(t, board.RecordDefeat(ctx, "alice", "bob"))

	top, err := board.Top(ctx, 10)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, Entry{PlayerID: "alice", Name: "Alice", Kills: 2, Deaths: 1}, top[0])
	assert.Equal(t, Entry{PlayerID: "bob", Name: "bob", Kills: 1, Deaths: 2}, top[1])
}
