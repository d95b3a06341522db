package game

import (
	"errors"

	"github.com/annel0/arena-shooter/internal/vec"
	"github.com/go-gl/mathgl/mgl64"
)

// ErrDegenerateAim цель совпадает с точкой выстрела
var ErrDegenerateAim = errors.New("нулевой вектор прицеливания")

// Projectile снаряд, летящий по прямой с постоянной скоростью.
type Projectile struct {
	id        uint64
	firer     *Player // Неизменяемая ссылка на стрелка
	tuning    *Tuning
	position  mgl64.Vec2
	direction mgl64.Vec2
	impacted  bool
}

// NewProjectile создаёт снаряд в точке origin, летящий к target.
func NewProjectile(id uint64, firer *Player, origin, target mgl64.Vec2, tuning *Tuning) (*Projectile, error) {
	direction, ok := vec.Normalized(target.Sub(origin))
	if !ok {
		return nil, ErrDegenerateAim
	}
	return &Projectile{
		id:        id,
		firer:     firer,
		tuning:    tuning,
		position:  origin,
		direction: direction,
	}, nil
}

func (p *Projectile) sealed() {}

func (p *Projectile) Type() EntityType        { return EntityTypeProjectile }
func (p *Projectile) Radius() float64         { return p.tuning.ProjectileRadius }
func (p *Projectile) Position() mgl64.Vec2    { return p.position }
func (p *Projectile) CollisionsEnabled() bool { return true }

func (p *Projectile) ID() uint64            { return p.id }
func (p *Projectile) Firer() *Player        { return p.firer }
func (p *Projectile) Direction() mgl64.Vec2 { return p.direction }
func (p *Projectile) Impacted() bool        { return p.impacted }

// Update сдвигает снаряд вдоль направления
func (p *Projectile) Update(tick *Tick) {
	p.position = p.position.Add(p.direction.Mul(p.tuning.ProjectileSpeed * tick.Delta))
}

// ShouldDestroy снаряд попал в цель или вылетел за арену
func (p *Projectile) ShouldDestroy() bool {
	return p.impacted || !vec.Inside(p.position, p.tuning.ArenaSize)
}

// strike попадание в игрока; по собственному стрелку снаряд не срабатывает.
func (p *Projectile) strike(player *Player) {
	if player != p.firer {
		p.impacted = true
	}
}
