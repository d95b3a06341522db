package vec

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
)

func TestNormalized(t *testing.T) {
	n, ok := Normalized(mgl64.Vec2{3, 4})
	assert.True(t, ok)
	assert.InDelta(t, 0.6, n[0], 1e-12)
	assert.InDelta(t, 0.8, n[1], 1e-12)

	n, ok = Normalized(Zero)
	assert.False(t, ok, "нулевой вектор нельзя нормализовать")
	assert.False(t, math.IsNaN(n[0]) || math.IsNaN(n[1]))
	assert.Equal(t, Zero, n)
}

func TestLimitLength(t *testing.T) {
	short := mgl64.Vec2{0.5, 0}
	assert.Equal(t, short, LimitLength(short, 1))

	diag := LimitLength(mgl64.Vec2{1, 1}, 1)
	assert.InDelta(t, 1.0, diag.Len(), 1e-12)
	assert.InDelta(t, diag[0], diag[1], 1e-12)
}

func TestClampAndInside(t *testing.T) {
	min := mgl64.Vec2{0.08, 0.08}
	max := mgl64.Vec2{9.92, 9.92}

	assert.Equal(t, mgl64.Vec2{0.08, 9.92}, Clamp(mgl64.Vec2{-3, 42}, min, max))
	assert.Equal(t, mgl64.Vec2{5, 5}, Clamp(mgl64.Vec2{5, 5}, min, max))

	size := mgl64.Vec2{10, 10}
	assert.True(t, Inside(mgl64.Vec2{0, 10}, size))
	assert.False(t, Inside(mgl64.Vec2{10.01, 5}, size))
	assert.False(t, Inside(mgl64.Vec2{5, -0.01}, size))
}

func TestContactPoint(t *testing.T) {
	// Центры (0,0) r=1 и (1.5,0) r=1: граничные точки 1 и 0.5, середина 0.75
	p := ContactPoint(mgl64.Vec2{0, 0}, 1, mgl64.Vec2{1.5, 0}, 1)
	assert.True(t, ApproxEqual(mgl64.Vec2{0.75, 0}, p, 1e-12), "got %v", p)

	// Совпадающие центры: берётся центр первого
	c := mgl64.Vec2{2, 3}
	assert.Equal(t, c, ContactPoint(c, 0.08, c, 0.01))
}

func TestDistanceSq(t *testing.T) {
	assert.InDelta(t, 25.0, DistanceSq(mgl64.Vec2{1, 1}, mgl64.Vec2{4, 5}), 1e-12)
}
