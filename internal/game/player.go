package game

import (
	"sync"
	"time"

	"github.com/annel0/arena-shooter/internal/vec"
	"github.com/go-gl/mathgl/mgl64"
)

// fireAction отложенный запрос на выстрел
type fireAction struct {
	target mgl64.Vec2
}

// Player игрок на арене. Принадлежит World; снаряды держат на него
// только ссылку стрелка.
type Player struct {
	id     string
	name   string
	tuning *Tuning

	position  mgl64.Vec2
	direction mgl64.Vec2 // Последнее направление движения

	score             int
	deaths            int
	defeated          bool
	collisionsEnabled bool

	controls [axisCount]PlayerControl

	// Слот на один отложенный выстрел. Пишут обработчики запросов,
	// читает тик симуляции, поэтому у слота свой мьютекс.
	fireMu         sync.Mutex
	pendingFire    *fireAction
	lastProjectile time.Duration
	hasFired       bool
}

// NewPlayer создаёт живого игрока в указанной позиции.
func NewPlayer(id, name string, position mgl64.Vec2, tuning *Tuning) *Player {
	p := &Player{
		id:                id,
		name:              name,
		tuning:            tuning,
		collisionsEnabled: true,
	}
	for i := range p.controls {
		p.controls[i] = PlayerControl{Acceleration: tuning.ControlAcceleration}
	}
	p.position = p.clampToArena(position)
	return p
}

func (p *Player) sealed() {}

// Type всегда EntityTypePlayer
func (p *Player) Type() EntityType { return EntityTypePlayer }

// Radius радиус игрока
func (p *Player) Radius() float64 { return p.tuning.PlayerRadius }

// Position текущая позиция
func (p *Player) Position() mgl64.Vec2 { return p.position }

// CollisionsEnabled ложно, пока игрок повержен
func (p *Player) CollisionsEnabled() bool { return p.collisionsEnabled }

// ShouldDestroy игроки удаляются только через World.RemovePlayer
func (p *Player) ShouldDestroy() bool { return false }

func (p *Player) ID() string                   { return p.id }
func (p *Player) Name() string                 { return p.name }
func (p *Player) Direction() mgl64.Vec2        { return p.direction }
func (p *Player) Score() int                   { return p.score }
func (p *Player) Deaths() int                  { return p.deaths }
func (p *Player) Defeated() bool               { return p.defeated }
func (p *Player) Control(a Axis) PlayerControl { return p.controls[a] }

// HasPendingFire сообщает, занят ли слот выстрела.
func (p *Player) HasPendingFire() bool {
	p.fireMu.Lock()
	defer p.fireMu.Unlock()
	return p.pendingFire != nil
}

// Update продвигает оси управления, движение и отложенный выстрел.
func (p *Player) Update(tick *Tick) {
	for i := range p.controls {
		p.controls[i].Update(tick.Delta)
	}
	p.UpdateMovement(tick.Delta)
	p.checkIfShouldFire(tick)
}

// UpdateMovement сдвигает игрока по текущим значениям осей на dt секунд
// и прижимает позицию к [radius, arena-radius].
func (p *Player) UpdateMovement(dt float64) {
	// Скорость: сначала спринт, затем подкрадывание. Порядок важен:
	// при обеих нажатых осях получается скорость подкрадывания.
	speed := p.tuning.BaseSpeed
	sprinting := p.controls[AxisSprinting].Value
	speed = speed*(1-sprinting) + p.tuning.SprintSpeed*sprinting
	sneaking := p.controls[AxisSneaking].Value
	speed = speed*(1-sneaking) + p.tuning.SneakSpeed*sneaking

	direction := vec.Zero
	direction = direction.Add(vec.Up.Mul(p.controls[AxisUp].Value))
	direction = direction.Add(vec.Down.Mul(p.controls[AxisDown].Value))
	direction = direction.Add(vec.Left.Mul(p.controls[AxisLeft].Value))
	direction = direction.Add(vec.Right.Mul(p.controls[AxisRight].Value))

	// По диагонали не быстрее, чем вдоль оси
	direction = vec.LimitLength(direction, 1)
	p.direction = direction

	p.position = p.clampToArena(p.position.Add(direction.Mul(speed * dt)))
}

func (p *Player) clampToArena(pos mgl64.Vec2) mgl64.Vec2 {
	r := p.tuning.PlayerRadius
	return vec.Clamp(pos,
		mgl64.Vec2{r, r},
		mgl64.Vec2{p.tuning.ArenaSize[0] - r, p.tuning.ArenaSize[1] - r},
	)
}

// checkIfShouldFire разрешает отложенный выстрел с учётом интервала.
func (p *Player) checkIfShouldFire(tick *Tick) {
	p.fireMu.Lock()
	defer p.fireMu.Unlock()

	if p.pendingFire == nil {
		return
	}

	target := p.pendingFire.target
	if target == p.position {
		// Нулевой вектор прицеливания: запрос выбрасывается
		p.pendingFire = nil
		return
	}

	if p.hasFired && tick.Now-p.lastProjectile < p.tuning.FireInterval {
		// Ещё рано; запрос остаётся в слоте до следующего тика
		return
	}

	p.pendingFire = nil
	tick.Spawner.SpawnProjectile(p, target)
	p.lastProjectile = tick.Now
	p.hasFired = true
}

// TryFireProjectile ставит выстрел в слот. Повергнутый игрок не стреляет,
// а запрос при занятом слоте молча отбрасывается.
func (p *Player) TryFireProjectile(target mgl64.Vec2) bool {
	if p.defeated {
		return false
	}

	p.fireMu.Lock()
	defer p.fireMu.Unlock()

	if p.pendingFire != nil {
		return false
	}
	p.pendingFire = &fireAction{target: target}
	return true
}

// SetInputs обновляет флаги нажатия для осей из карты; остальные оси
// не трогаются. Неизвестные имена игнорируются.
func (p *Player) SetInputs(inputs map[string]bool) {
	if p.defeated {
		return
	}
	for name, pressed := range inputs {
		if axis, ok := ParseAxis(name); ok {
			p.controls[axis].Pressed = pressed
		}
	}
}

// Defeat переводит игрока в состояние «повержен». Оси отпускаются, но
// значения затухают постепенно в следующих тиках.
func (p *Player) Defeat() {
	p.defeated = true
	p.collisionsEnabled = false
	p.deaths++
	for i := range p.controls {
		p.controls[i].Pressed = false
	}

	p.fireMu.Lock()
	p.pendingFire = nil
	p.fireMu.Unlock()
}

// Revive возвращает игрока в игру в указанной позиции с мгновенно
// сброшенными осями.
func (p *Player) Revive(position mgl64.Vec2) {
	p.defeated = false
	p.collisionsEnabled = true
	p.position = p.clampToArena(position)
	p.direction = vec.Zero
	for i := range p.controls {
		p.controls[i].Reset()
	}
}

// hitBy попадание чужого снаряда: игрок повержен, стрелок получает очко.
func (p *Player) hitBy(projectile *Projectile) bool {
	if projectile.firer == p {
		return false
	}
	p.Defeat()
	projectile.firer.score++
	return true
}

// pushAwayFrom грубое расталкивание двух игроков без физики.
func (p *Player) pushAwayFrom(other *Player, point mgl64.Vec2) {
	radii := p.Radius() + other.Radius()
	if vec.DistanceSq(p.position, other.position) >= radii*radii {
		return
	}
	away, ok := vec.Normalized(point.Sub(other.position))
	if !ok {
		return
	}
	p.position = p.clampToArena(point.Add(away.Mul(p.Radius())))
}
