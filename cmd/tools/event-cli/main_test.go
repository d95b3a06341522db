package main

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/annel0/arena-shooter/internal/eventbus"
	"github.com/annel0/arena-shooter/internal/game"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStringList(t *testing.T) {
	assert.Nil(t, parseStringList(""))
	assert.Equal(t, []string{"a", "b"}, parseStringList(" a, ,b "))
}

func TestFormatEvent(t *testing.T) {
	env := &eventbus.Envelope{Timestamp: time.Date(2024, 1, 1, 12, 0, 1, 0, time.UTC)}
	line := formatEvent(env, game.Event{
		Type:     game.EventPlayerDefeated,
		Tick:     42,
		PlayerID: "bob",
		ByID:     "alice",
		Position: game.Vector{X: 1, Y: 2.5},
	})
	assert.Contains(t, line, "12:00:01.000")
	assert.Contains(t, line, "#42")
	assert.Contains(t, line, "by alice")
	assert.Contains(t, line, "(1.00, 2.50)")
}

func TestWatchStopsAtLimit(t *testing.T) {
	bus := eventbus.NewMemoryBus(16)
	defer bus.Close()

	var got []game.Event
	done := make(chan error, 1)
	go func() {
		done <- watch(context.Background(), bus, watchOptions{Players: []string{"alice"}, Limit: 2},
			func(_ *eventbus.Envelope, ev game.Event) { got = append(got, ev) })
	}()

	// Подписка создаётся асинхронно; публикуем, пока watch не завершится
	events := []game.Event{
		{Type: game.EventPlayerJoined, PlayerID: "bob"},
		{Type: game.EventPlayerJoined, PlayerID: "alice"},
		{Type: game.EventPlayerDefeated, PlayerID: "bob", ByID: "alice"},
	}
	deadline := time.After(2 * time.Second)
	for {
		for _, ev := range events {
			env, err := ev.Envelope(time.Now())
			require.NoError(t, err)
			_ = bus.Publish(context.Background(), env)
		}
		select {
		case err := <-done:
			require.NoError(t, err)
			require.Len(t, got, 2)
			for _, ev := range got {
				assert.True(t, ev.PlayerID == "alice" || ev.ByID == "alice")
			}
			return
		case <-deadline:
			t.Fatal("watch не остановился по лимиту")
		case <-time.After(20 * time.Millisecond):
		}
	}
}

func TestTypeCounter(t *testing.T) {
	c := newTypeCounter()
	c.add(game.Event{Type: game.EventPlayerJoined, PlayerID: "a"})
	c.add(game.Event{Type: game.EventPlayerDefeated, PlayerID: "b", ByID: "a"})
	c.add(game.Event{Type: game.EventPlayerDefeated, PlayerID: "a", ByID: "a"})

	var buf bytes.Buffer
	c.print(&buf)
	out := buf.String()
	assert.Contains(t, out, "PlayerDefeated")
	assert.Contains(t, out, "🏆 Kills")
	assert.Equal(t, 1, c.kills["a"])
}
