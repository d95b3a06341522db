package vec

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Zero нулевой вектор
var Zero = mgl64.Vec2{0, 0}

// Единичные направления осей управления (Y растёт вверх)
var (
	Up    = mgl64.Vec2{0, 1}
	Down  = mgl64.Vec2{0, -1}
	Left  = mgl64.Vec2{-1, 0}
	Right = mgl64.Vec2{1, 0}
)

// Normalized возвращает единичный вектор того же направления.
// Для нулевого вектора возвращается Zero и ok=false: mgl64.Normalize
// в этом случае даёт NaN.
func Normalized(v mgl64.Vec2) (mgl64.Vec2, bool) {
	length := v.Len()
	if length == 0 {
		return Zero, false
	}
	return mgl64.Vec2{v[0] / length, v[1] / length}, true
}

// LimitLength приводит вектор к единичной длине, только если он длиннее max.
func LimitLength(v mgl64.Vec2, max float64) mgl64.Vec2 {
	length := v.Len()
	if length <= max || length == 0 {
		return v
	}
	return v.Mul(max / length)
}

// DistanceSq квадрат расстояния между точками
func DistanceSq(a, b mgl64.Vec2) float64 {
	d := b.Sub(a)
	return d.Dot(d)
}

// Clamp ограничивает каждую координату отрезком [min, max] этой оси.
func Clamp(v, min, max mgl64.Vec2) mgl64.Vec2 {
	return mgl64.Vec2{
		mgl64.Clamp(v[0], min[0], max[0]),
		mgl64.Clamp(v[1], min[1], max[1]),
	}
}

// Inside проверяет, что точка лежит в прямоугольнике [0, size] по обеим осям.
func Inside(v, size mgl64.Vec2) bool {
	return v[0] >= 0 && v[1] >= 0 && v[0] <= size[0] && v[1] <= size[1]
}

// ContactPoint вычисляет точку касания двух окружностей: середину между
// граничными точками каждой окружности вдоль оси a→b. При совпадающих
// центрах возвращается центр a.
func ContactPoint(a mgl64.Vec2, ra float64, b mgl64.Vec2, rb float64) mgl64.Vec2 {
	axis, ok := Normalized(b.Sub(a))
	if !ok {
		return a
	}
	pointA := a.Add(axis.Mul(ra))
	pointB := b.Sub(axis.Mul(rb))
	return pointA.Add(pointB).Mul(0.5)
}

// ApproxEqual сравнивает векторы с допуском eps по каждой оси.
func ApproxEqual(a, b mgl64.Vec2, eps float64) bool {
	return math.Abs(a[0]-b[0]) <= eps && math.Abs(a[1]-b[1]) <= eps
}
