package game

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-gl/mathgl/mgl64"
)

// Tuning содержит игровые константы. Значения по умолчанию соответствуют
// последней версии арены: 10×10, 128 тиков/с, отчёт 60 раз/с.
type Tuning struct {
	ArenaSize mgl64.Vec2 // Размер арены в игровых единицах

	TickRate   int // Частота симуляции (Гц)
	ReportRate int // Частота рассылки снапшотов (Гц)

	PlayerRadius     float64
	ProjectileRadius float64
	ProjectileSpeed  float64 // единиц в секунду

	BaseSpeed           float64 // единиц в секунду
	SprintSpeed         float64
	SneakSpeed          float64
	ControlAcceleration float64 // прирост значения оси управления в секунду

	FireInterval time.Duration // Минимальный интервал между выстрелами
	SpawnMargin  float64       // Отступ точки появления от стен
}

// DefaultTuning возвращает стандартный набор констант.
func DefaultTuning() Tuning {
	return Tuning{
		ArenaSize:           mgl64.Vec2{10, 10},
		TickRate:            128,
		ReportRate:          60,
		PlayerRadius:        0.08,
		ProjectileRadius:    0.01,
		ProjectileSpeed:     12,
		BaseSpeed:           1.5,
		SprintSpeed:         3,
		SneakSpeed:          0.6,
		ControlAcceleration: 3,
		FireInterval:        250 * time.Millisecond,
		SpawnMargin:         1,
	}
}

// TickPeriod целевой период одного тика симуляции.
func (t Tuning) TickPeriod() time.Duration {
	return time.Second / time.Duration(t.TickRate)
}

// ReportPeriod период рассылки снапшотов.
func (t Tuning) ReportPeriod() time.Duration {
	return time.Second / time.Duration(t.ReportRate)
}

var errInvalidTuning = errors.New("некорректные игровые константы")

// Validate проверяет согласованность констант.
func (t Tuning) Validate() error {
	switch {
	case t.ArenaSize[0] <= 0 || t.ArenaSize[1] <= 0:
		return fmt.Errorf("%w: размер арены %v", errInvalidTuning, t.ArenaSize)
	case t.TickRate <= 0 || t.ReportRate <= 0:
		return fmt.Errorf("%w: частоты должны быть > 0 (tick=%d, report=%d)", errInvalidTuning, t.TickRate, t.ReportRate)
	case t.PlayerRadius < 0 || t.ProjectileRadius < 0:
		return fmt.Errorf("%w: радиусы не могут быть отрицательными", errInvalidTuning)
	case 2*t.PlayerRadius > t.ArenaSize[0] || 2*t.PlayerRadius > t.ArenaSize[1]:
		return fmt.Errorf("%w: игрок радиуса %.2f не помещается в арену %v", errInvalidTuning, t.PlayerRadius, t.ArenaSize)
	case t.ProjectileSpeed <= 0:
		return fmt.Errorf("%w: скорость снаряда должна быть > 0", errInvalidTuning)
	case t.BaseSpeed < 0 || t.SprintSpeed < 0 || t.SneakSpeed < 0 || t.ControlAcceleration <= 0:
		return fmt.Errorf("%w: скорости и ускорение", errInvalidTuning)
	case t.FireInterval < 0:
		return fmt.Errorf("%w: интервал стрельбы %v", errInvalidTuning, t.FireInterval)
	case t.SpawnMargin < 0 || 2*t.SpawnMargin > t.ArenaSize[0] || 2*t.SpawnMargin > t.ArenaSize[1]:
		return fmt.Errorf("%w: отступ появления %.2f", errInvalidTuning, t.SpawnMargin)
	}
	return nil
}
