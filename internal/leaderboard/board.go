package leaderboard

import (
	"context"
	"sort"
	"sync"
)

// Entry строка таблицы лидеров
type Entry struct {
	PlayerID string `json:"playerId"`
	Name     string `json:"name"`
	Kills    int64  `json:"kills"`
	Deaths   int64  `json:"deaths"`
}

// Board хранилище счёта, переживающее выход игрока с арены.
type Board interface {
	// RecordDefeat засчитывает поражение victim и очко killer
	RecordDefeat(ctx context.Context, victimID, killerID string) error
	// SetName запоминает отображаемое имя
	SetName(ctx context.Context, playerID, name string) error
	// Top лучшие n по убийствам; при равенстве меньше смертей выше
	Top(ctx context.Context, n int) ([]Entry, error)
}

// MemoryBoard таблица лидеров в памяти процесса
type MemoryBoard struct {
	mu      sync.RWMutex
	entries map[string]*Entry
}

// NewMemoryBoard создаёт пустую таблицу.
func NewMemoryBoard() *MemoryBoard {
	return &MemoryBoard{entries: make(map[string]*Entry)}
}

func (b *MemoryBoard) entry(id string) *Entry {
	e, ok := b.entries[id]
	if !ok {
		e = &Entry{PlayerID: id, Name: id}
		b.entries[id] = e
	}
	return e
}

func (b *MemoryBoard) RecordDefeat(_ context.Context, victimID, killerID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entry(victimID).Deaths++
	if killerID != "" && killerID != victimID {
		b.entry(killerID).Kills++
	}
	return nil
}

func (b *MemoryBoard) SetName(_ context.Context, playerID, name string) error {
	if name == "" {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entry(playerID).Name = name
	return nil
}

func (b *MemoryBoard) Top(_ context.Context, n int) ([]Entry, error) {
	b.mu.RLock()
	out := make([]Entry, 0, len(b.entries))
	for _, e := range b.entries {
		out = append(out, *e)
	}
	b.mu.RUnlock()

	sortEntries(out)
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out, nil
}

func sortEntries(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Kills != b.Kills {
			return a.Kills > b.Kills
		}
		if a.Deaths != b.Deaths {
			return a.Deaths < b.Deaths
		}
		return a.PlayerID < b.PlayerID
	})
}
