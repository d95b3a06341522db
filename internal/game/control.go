package game

import "github.com/go-gl/mathgl/mgl64"

// Axis ось управления игрока
type Axis uint8

const (
	AxisUp Axis = iota
	AxisDown
	AxisLeft
	AxisRight
	AxisSprinting
	AxisSneaking

	axisCount
)

var axisNames = [axisCount]string{"up", "down", "left", "right", "sprinting", "sneaking"}

// String имя оси в том виде, в каком его присылает клиент
func (a Axis) String() string {
	if a < axisCount {
		return axisNames[a]
	}
	return "unknown"
}

// ParseAxis ищет ось по имени из клиентского сообщения.
func ParseAxis(name string) (Axis, bool) {
	for i, n := range axisNames {
		if n == name {
			return Axis(i), true
		}
	}
	return 0, false
}

// Axes перечисляет все оси управления по порядку.
func Axes() []Axis {
	axes := make([]Axis, axisCount)
	for i := range axes {
		axes[i] = Axis(i)
	}
	return axes
}

// PlayerControl аналоговое значение оси в [0,1]: растёт, пока кнопка
// нажата, и убывает, пока отпущена.
type PlayerControl struct {
	Acceleration float64
	Pressed      bool
	Value        float64
}

// Update продвигает значение на dt секунд.
func (c *PlayerControl) Update(dt float64) {
	if c.Pressed {
		c.Value += c.Acceleration * dt
	} else {
		c.Value -= c.Acceleration * dt
	}
	c.Value = mgl64.Clamp(c.Value, 0, 1)
}

// Reset мгновенно отпускает ось.
func (c *PlayerControl) Reset() {
	c.Pressed = false
	c.Value = 0
}
