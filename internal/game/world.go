package game

import (
	"math/rand"
	"time"

	"github.com/annel0/arena-shooter/internal/logging"
	"github.com/go-gl/mathgl/mgl64"
)

// StepResult итог одного тика
type StepResult struct {
	Tick       uint64
	Entities   int
	Spawned    int
	Removed    int
	Inserted   int
	Collisions int
	Defeats    int
}

// World авторитетное состояние арены: игроки по идентичности и живая
// коллекция сущностей. Не потокобезопасен: им владеет ровно одна
// горутина (Engine.Run) либо тест.
type World struct {
	tuning  *Tuning
	rng     *rand.Rand
	log     *logging.Logger
	players map[string]*Player
	state   GameState

	tick             uint64
	nextProjectileID uint64
	spawned          int
	defeats          int
	events           []Event
}

// NewWorld создаёт пустую арену. rng задаёт точки появления.
func NewWorld(tuning Tuning, rng *rand.Rand) *World {
	return &World{
		tuning:  &tuning,
		rng:     rng,
		log:     logging.GetGameLogger(),
		players: make(map[string]*Player),
	}
}

// Tuning константы арены
func (w *World) Tuning() Tuning { return *w.tuning }

// State живая коллекция
func (w *World) State() *GameState { return &w.state }

// Player ищет игрока по идентичности.
func (w *World) Player(id string) (*Player, bool) {
	p, ok := w.players[id]
	return p, ok
}

// PlayerCount число зарегистрированных игроков
func (w *World) PlayerCount() int { return len(w.players) }

// AddPlayer регистрирует нового игрока в случайной точке появления.
// Повторная регистрация той же идентичности ничего не делает.
func (w *World) AddPlayer(id, name string) (*Player, bool) {
	if p, ok := w.players[id]; ok {
		return p, false
	}
	if name == "" {
		name = id
	}
	p := NewPlayer(id, name, w.randomSpawn(), w.tuning)
	w.players[id] = p
	w.state.Queue(p)
	w.emit(Event{Type: EventPlayerJoined, PlayerID: id, Name: name, Position: VectorOf(p.position)})
	w.log.Debug("Игрок %s (%s) появился в %.2f,%.2f", id, name, p.position[0], p.position[1])
	return p, true
}

// RemovePlayer убирает игрока из карты и из коллекции сущностей.
func (w *World) RemovePlayer(id string) bool {
	p, ok := w.players[id]
	if !ok {
		return false
	}
	delete(w.players, id)
	w.state.Remove(p)
	w.emit(Event{Type: EventPlayerLeft, PlayerID: id, Name: p.name, Position: VectorOf(p.position)})
	w.log.Debug("Игрок %s покинул арену (очки %d, поражения %d)", id, p.score, p.deaths)
	return true
}

// SetInputs передаёт состояние кнопок игроку. Неизвестная идентичность
// не ошибка: сообщение могло прийти после отключения.
func (w *World) SetInputs(id string, inputs map[string]bool) bool {
	p, ok := w.players[id]
	if !ok {
		return false
	}
	p.SetInputs(inputs)
	return true
}

// Fire запрашивает выстрел в точку target.
func (w *World) Fire(id string, target mgl64.Vec2) bool {
	p, ok := w.players[id]
	if !ok {
		return false
	}
	return p.TryFireProjectile(target)
}

// Revive возвращает повергнутого игрока в случайной точке появления.
func (w *World) Revive(id string) bool {
	p, ok := w.players[id]
	if !ok || !p.defeated {
		return false
	}
	p.Revive(w.randomSpawn())
	w.emit(Event{Type: EventPlayerRevived, PlayerID: id, Name: p.name, Position: VectorOf(p.position)})
	return true
}

// SpawnProjectile путь создания снаряда изнутри тика: снаряд попадает в
// очередь и участвует в столкновениях уже в этом тике.
func (w *World) SpawnProjectile(firer *Player, target mgl64.Vec2) {
	w.nextProjectileID++
	projectile, err := NewProjectile(w.nextProjectileID, firer, firer.position, target, w.tuning)
	if err != nil {
		w.log.Warn("Выстрел игрока %s отклонён: %v", firer.id, err)
		return
	}
	w.state.Queue(projectile)
	w.spawned++
}

// Step выполняет один тик: обновление, зачистка, вставка очереди,
// столкновения. Порядок фаз менять нельзя.
func (w *World) Step(now time.Duration, delta float64) StepResult {
	w.tick++
	w.spawned = 0
	w.defeats = 0

	tick := &Tick{Number: w.tick, Now: now, Delta: delta, Spawner: w}
	w.state.update(tick)
	removed := w.state.sweep()
	inserted := w.state.drain()
	collisions := DetectCollisions(w.state.entities, w.onCollision)

	return StepResult{
		Tick:       w.tick,
		Entities:   len(w.state.entities),
		Spawned:    w.spawned,
		Removed:    removed,
		Inserted:   inserted,
		Collisions: collisions,
		Defeats:    w.defeats,
	}
}

func (w *World) onCollision(self, other Entity, point mgl64.Vec2) {
	if !collide(self, other, point) {
		return
	}
	victim := self.(*Player)
	by := other.(*Projectile).firer
	w.defeats++
	w.emit(Event{Type: EventPlayerDefeated, PlayerID: victim.id, Name: victim.name, ByID: by.id, Position: VectorOf(victim.position)})
	w.log.Debug("Игрок %s повержен игроком %s", victim.id, by.id)
}

// Snapshot глубокая копия состояния для рассылки.
func (w *World) Snapshot() Snapshot {
	s := Snapshot{
		Tick:      w.tick,
		ArenaSize: VectorOf(w.tuning.ArenaSize),
		Entities:  make([]EntitySnapshot, 0, len(w.state.entities)),
		Players:   make([]PlayerSnapshot, 0, len(w.players)),
	}
	for _, e := range w.state.entities {
		s.Entities = append(s.Entities, snapshotEntity(e))
	}
	for _, p := range w.players {
		s.Players = append(s.Players, snapshotPlayer(p))
	}
	sortPlayers(s.Players)
	return s
}

// Stats сводка без тайминга тиков
func (w *World) Stats() Stats {
	projectiles := 0
	for _, e := range w.state.entities {
		if e.Type() == EntityTypeProjectile {
			projectiles++
		}
	}
	return Stats{
		Tick:        w.tick,
		Players:     len(w.players),
		Entities:    len(w.state.entities),
		Projectiles: projectiles,
		Pending:     len(w.state.staged),
	}
}

// DrainEvents забирает накопленные события.
func (w *World) DrainEvents() []Event {
	if len(w.events) == 0 {
		return nil
	}
	events := w.events
	w.events = nil
	return events
}

func (w *World) emit(e Event) {
	e.Tick = w.tick
	w.events = append(w.events, e)
}

func (w *World) randomSpawn() mgl64.Vec2 {
	margin := w.tuning.SpawnMargin
	size := w.tuning.ArenaSize
	return mgl64.Vec2{
		margin + w.rng.Float64()*(size[0]-2*margin),
		margin + w.rng.Float64()*(size[1]-2*margin),
	}
}
