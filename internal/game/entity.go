package game

import (
	"time"

	"github.com/go-gl/mathgl/mgl64"
)

// EntityType тип симулируемого объекта
type EntityType uint8

const (
	EntityTypePlayer EntityType = iota
	EntityTypeProjectile
)

// String имя типа для снапшотов
func (t EntityType) String() string {
	switch t {
	case EntityTypePlayer:
		return "Player"
	case EntityTypeProjectile:
		return "Projectile"
	default:
		return "Unknown"
	}
}

// Entity общий интерфейс объектов симуляции. Набор вариантов закрыт
// (Player, Projectile): sealed() не даёт реализовать его вне пакета,
// а разбор столкновений идёт явным switch по паре типов.
type Entity interface {
	Type() EntityType
	Radius() float64
	Position() mgl64.Vec2
	CollisionsEnabled() bool

	// Update продвигает объект на один тик
	Update(tick *Tick)
	// ShouldDestroy сообщает, что объект нужно убрать при следующей зачистке
	ShouldDestroy() bool

	sealed()
}

// Spawner путь создания новых объектов изнутри тика.
type Spawner interface {
	SpawnProjectile(firer *Player, target mgl64.Vec2)
}

// Tick параметры одного шага симуляции.
type Tick struct {
	Number  uint64
	Now     time.Duration // Показание часов движка на момент тика
	Delta   float64       // Измеренное время с прошлого тика, секунды
	Spawner Spawner
}
