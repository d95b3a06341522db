package game

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/annel0/arena-shooter/internal/eventbus"
	"github.com/google/uuid"
)

// EventSource имя источника в конверте шины событий
const EventSource = "arena"

// EventType тип доменного события арены
type EventType string

const (
	EventPlayerJoined   EventType = "PlayerJoined"
	EventPlayerLeft     EventType = "PlayerLeft"
	EventPlayerDefeated EventType = "PlayerDefeated"
	EventPlayerRevived  EventType = "PlayerRevived"
)

// Event доменное событие. Для PlayerDefeated ByID содержит стрелка.
type Event struct {
	Type     EventType `json:"type"`
	Tick     uint64    `json:"tick"`
	PlayerID string    `json:"playerId"`
	Name     string    `json:"name,omitempty"`
	ByID     string    `json:"byId,omitempty"`
	Position Vector    `json:"position"`
}

// Envelope упаковывает событие в конверт шины. Поражения идут с высоким
// приоритетом: по ним считается таблица лидеров, терять их нельзя.
func (e Event) Envelope(at time.Time) (*eventbus.Envelope, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("сериализация события %s: %w", e.Type, err)
	}
	priority := 1
	if e.Type == EventPlayerDefeated {
		priority = 7
	}
	return &eventbus.Envelope{
		ID:        uuid.NewString(),
		Timestamp: at.UTC(),
		Source:    EventSource,
		EventType: string(e.Type),
		Version:   1,
		Priority:  priority,
		Payload:   payload,
	}, nil
}

// DecodeEvent разбирает событие из конверта.
func DecodeEvent(env *eventbus.Envelope) (Event, error) {
	var e Event
	if err := json.Unmarshal(env.Payload, &e); err != nil {
		return Event{}, fmt.Errorf("разбор события %s (%s): %w", env.EventType, env.ID, err)
	}
	return e, nil
}
