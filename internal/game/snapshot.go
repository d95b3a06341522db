package game

import (
	"sort"
	"time"

	"github.com/go-gl/mathgl/mgl64"
)

// Vector двумерный вектор в том виде, в каком он уходит клиенту
type Vector struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// VectorOf переводит mgl64.Vec2 в DTO.
func VectorOf(v mgl64.Vec2) Vector { return Vector{X: v[0], Y: v[1]} }

// Vec2 обратное преобразование
func (v Vector) Vec2() mgl64.Vec2 { return mgl64.Vec2{v.X, v.Y} }

// PlayerSnapshot состояние игрока на момент снапшота
type PlayerSnapshot struct {
	ID                string  `json:"id"`
	Name              string  `json:"name"`
	Position          Vector  `json:"position"`
	Direction         Vector  `json:"direction"`
	Radius            float64 `json:"radius"`
	Score             int     `json:"score"`
	Deaths            int     `json:"deaths"`
	Defeated          bool    `json:"defeated"`
	CollisionsEnabled bool    `json:"collisionsEnabled"`
}

// ProjectileSnapshot состояние снаряда
type ProjectileSnapshot struct {
	ID        uint64 `json:"id"`
	FirerID   string `json:"firerId"`
	Direction Vector `json:"direction"`
	Impacted  bool   `json:"impacted"`
}

// EntitySnapshot сущность из живой коллекции. Заполнено ровно одно из
// полей Player/Projectile.
type EntitySnapshot struct {
	EntityType        string              `json:"entityType"`
	Position          Vector              `json:"position"`
	Radius            float64             `json:"radius"`
	CollisionsEnabled bool                `json:"collisionsEnabled"`
	Player            *PlayerSnapshot     `json:"player,omitempty"`
	Projectile        *ProjectileSnapshot `json:"projectile,omitempty"`
}

// Snapshot полная (не инкрементальная) копия состояния. Не разделяет
// памяти с World, поэтому её можно сериализовать вне владельца.
type Snapshot struct {
	Tick      uint64           `json:"tick"`
	ArenaSize Vector           `json:"arenaSize"`
	Entities  []EntitySnapshot `json:"entities"`
	Players   []PlayerSnapshot `json:"players"` // Все зарегистрированные, по id
}

// GameStateReport периодический отчёт, рассылаемый всем подключениям.
type GameStateReport struct {
	Timestamp int64    `json:"timestamp"` // Unix, миллисекунды
	State     Snapshot `json:"state"`
}

// NewReport упаковывает снапшот с меткой времени.
func NewReport(at time.Time, s Snapshot) GameStateReport {
	return GameStateReport{Timestamp: at.UnixMilli(), State: s}
}

// Stats сводка для /api/stats и метрик.
type Stats struct {
	Tick             uint64        `json:"tick"`
	Players          int           `json:"players"`
	Entities         int           `json:"entities"`
	Projectiles      int           `json:"projectiles"`
	Pending          int           `json:"pending"`
	LastTickDuration time.Duration `json:"lastTickDurationNs"`
	Overruns         uint64        `json:"overruns"`
}

func snapshotPlayer(p *Player) PlayerSnapshot {
	return PlayerSnapshot{
		ID:                p.id,
		Name:              p.name,
		Position:          VectorOf(p.position),
		Direction:         VectorOf(p.direction),
		Radius:            p.Radius(),
		Score:             p.score,
		Deaths:            p.deaths,
		Defeated:          p.defeated,
		CollisionsEnabled: p.collisionsEnabled,
	}
}

func snapshotEntity(e Entity) EntitySnapshot {
	s := EntitySnapshot{
		EntityType:        e.Type().String(),
		Position:          VectorOf(e.Position()),
		Radius:            e.Radius(),
		CollisionsEnabled: e.CollisionsEnabled(),
	}
	switch v := e.(type) {
	case *Player:
		ps := snapshotPlayer(v)
		s.Player = &ps
	case *Projectile:
		s.Projectile = &ProjectileSnapshot{
			ID:        v.id,
			FirerID:   v.firer.id,
			Direction: VectorOf(v.direction),
			Impacted:  v.impacted,
		}
	}
	return s
}

func sortPlayers(players []PlayerSnapshot) {
	sort.Slice(players, func(i, j int) bool { return players[i].ID < players[j].ID })
}
