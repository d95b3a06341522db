package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/annel0/arena-shooter/internal/eventbus"
	"github.com/annel0/arena-shooter/internal/game"
)

const timeFormat = "15:04:05.000"

func main() {
	var (
		natsURL    = flag.String("nats", "nats://127.0.0.1:4222", "NATS server URL")
		stream     = flag.String("stream", "", "JetStream stream (default ARENA_EVENTS)")
		command    = flag.String("cmd", "tail", "Command: tail, stats")
		eventTypes = flag.String("types", "", "Event types filter (comma-separated)")
		players    = flag.String("players", "", "Player IDs filter (comma-separated)")
		limit      = flag.Int("limit", 0, "Stop after N events (0 = until interrupted)")
		duration   = flag.Duration("for", 0, "Stop after this long (0 = until interrupted)")
	)
	flag.Parse()

	bus, err := eventbus.NewJetStreamBus(eventbus.JetStreamConfig{
		URL:    *natsURL,
		Stream: *stream,
		Name:   "arena-event-cli",
	})
	if err != nil {
		log.Fatalf("❌ Failed to connect to NATS: %v", err)
	}
	defer bus.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if *duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *duration)
		defer cancel()
	}

	opts := watchOptions{
		Types:   parseStringList(*eventTypes),
		Players: parseStringList(*players),
		Limit:   *limit,
	}

	switch *command {
	case "tail":
		fmt.Printf("🎬 Tailing arena events from %s\n", *natsURL)
		err = watch(ctx, bus, opts, func(env *eventbus.Envelope, ev game.Event) {
			fmt.Println(formatEvent(env, ev))
		})
	case "stats":
		counter := newTypeCounter()
		err = watch(ctx, bus, opts, func(_ *eventbus.Envelope, ev game.Event) {
			counter.add(ev)
		})
		counter.print(os.Stdout)
	default:
		fmt.Printf("❌ Unknown command: %s\n", *command)
		fmt.Println("Available commands: tail, stats")
		os.Exit(1)
	}
	if err != nil {
		log.Fatalf("❌ %s failed: %v", *command, err)
	}
}

type watchOptions struct {
	Types   []string
	Players []string
	Limit   int
}

// watch подписывается на события арены и вызывает fn до отмены ctx
// или до Limit событий.
func watch(ctx context.Context, bus eventbus.EventBus, opts watchOptions, fn func(*eventbus.Envelope, game.Event)) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		mu   sync.Mutex
		seen int
	)
	filter := eventbus.Filter{Types: opts.Types, Sources: []string{game.EventSource}}
	sub, err := bus.Subscribe(ctx, filter, func(_ context.Context, env *eventbus.Envelope) {
		ev, err := game.DecodeEvent(env)
		if err != nil {
			log.Printf("⚠️  %v", err)
			return
		}
		if !matchPlayer(ev, opts.Players) {
			return
		}

		mu.Lock()
		defer mu.Unlock()
		if opts.Limit > 0 && seen >= opts.Limit {
			return
		}
		fn(env, ev)
		seen++
		if opts.Limit > 0 && seen >= opts.Limit {
			cancel()
		}
	})
	if err != nil {
		return err
	}
	defer sub.Unsubscribe()

	<-ctx.Done()
	return nil
}

func matchPlayer(ev game.Event, players []string) bool {
	if len(players) == 0 {
		return true
	}
	for _, p := range players {
		if ev.PlayerID == p || ev.ByID == p {
			return true
		}
	}
	return false
}

// formatEvent одна строка на событие
func formatEvent(env *eventbus.Envelope, ev game.Event) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] #%d %-15s %s", env.Timestamp.Format(timeFormat), ev.Tick, ev.Type, ev.PlayerID)
	if ev.Name != "" {
		fmt.Fprintf(&b, " (%s)", ev.Name)
	}
	if ev.ByID != "" {
		fmt.Fprintf(&b, " by %s", ev.ByID)
	}
	fmt.Fprintf(&b, " at (%.2f, %.2f)", ev.Position.X, ev.Position.Y)
	return b.String()
}

// typeCounter считает события по типам и победы по игрокам
type typeCounter struct {
	mu      sync.Mutex
	started time.Time
	types   map[game.EventType]int
	kills   map[string]int
}

func newTypeCounter() *typeCounter {
	return &typeCounter{
		started: time.Now(),
		types:   make(map[game.EventType]int),
		kills:   make(map[string]int),
	}
}

func (c *typeCounter) add(ev game.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.types[ev.Type]++
	if ev.Type == game.EventPlayerDefeated && ev.ByID != "" && ev.ByID != ev.PlayerID {
		c.kills[ev.ByID]++
	}
}

func (c *typeCounter) print(w io.Writer) {
	c.mu.Lock()
	defer c.mu.Unlock()

	fmt.Fprintf(w, "📊 Events over %s\n", time.Since(c.started).Round(time.Second))
	types := make([]string, 0, len(c.types))
	for t := range c.types {
		types = append(types, string(t))
	}
	sort.Strings(types)
	for _, t := range types {
		fmt.Fprintf(w, "  %-15s %d\n", t, c.types[game.EventType(t)])
	}

	players := make([]string, 0, len(c.kills))
	for p := range c.kills {
		players = append(players, p)
	}
	sort.Slice(players, func(i, j int) bool {
		if c.kills[players[i]] != c.kills[players[j]] {
			return c.kills[players[i]] > c.kills[players[j]]
		}
		return players[i] < players[j]
	})
	if len(players) > 0 {
		fmt.Fprintln(w, "🏆 Kills")
		for _, p := range players {
			fmt.Fprintf(w, "  %-15s %d\n", p, c.kills[p])
		}
	}
}

// parseStringList парсит строку с разделителями-запятыми
func parseStringList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
