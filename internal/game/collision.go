package game

import (
	"github.com/annel0/arena-shooter/internal/vec"
	"github.com/go-gl/mathgl/mgl64"
)

// CollisionFunc получает уведомление о столкновении self с other.
type CollisionFunc func(self, other Entity, point mgl64.Vec2)

// DetectCollisions перебирает каждую неупорядоченную пару сущностей один
// раз и для пересекающихся пар уведомляет обоих участников с одной и той
// же точкой контакта. Флаг CollisionsEnabled проверяется заново для каждой
// пары: игрок, повергнутый в середине прохода, дальше не участвует.
// Возвращает число найденных столкновений.
func DetectCollisions(entities []Entity, notify CollisionFunc) int {
	found := 0
	for i := 0; i < len(entities); i++ {
		first := entities[i]
		for j := i + 1; j < len(entities); j++ {
			if !first.CollisionsEnabled() {
				break
			}
			second := entities[j]
			if !second.CollisionsEnabled() {
				continue
			}

			radii := first.Radius() + second.Radius()
			if vec.DistanceSq(first.Position(), second.Position()) >= radii*radii {
				continue
			}

			point := vec.ContactPoint(first.Position(), first.Radius(), second.Position(), second.Radius())
			notify(first, second, point)
			notify(second, first, point)
			found++
		}
	}
	return found
}

// collide применяет последствия столкновения для self. Возвращает true,
// если self оказался повергнутым игроком.
func collide(self, other Entity, point mgl64.Vec2) bool {
	switch s := self.(type) {
	case *Player:
		switch o := other.(type) {
		case *Projectile:
			return s.hitBy(o)
		case *Player:
			if o.position != point {
				s.pushAwayFrom(o, point)
			}
		}
	case *Projectile:
		if o, ok := other.(*Player); ok {
			s.strike(o)
		}
	}
	return false
}
