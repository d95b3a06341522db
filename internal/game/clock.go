package game

import (
	"sync"
	"time"
)

// Clock монотонные часы движка: время, прошедшее с момента старта.
type Clock interface {
	Now() time.Duration
}

type monotonicClock struct {
	start time.Time
}

// NewMonotonicClock часы на основе монотонной составляющей time.Time.
func NewMonotonicClock() Clock {
	return &monotonicClock{start: time.Now()}
}

func (c *monotonicClock) Now() time.Duration {
	return time.Since(c.start)
}

// ManualClock часы, которые двигаются только вручную. Нужны для
// детерминированных тестов и повторов.
type ManualClock struct {
	mu  sync.Mutex
	now time.Duration
}

// Now текущее показание
func (c *ManualClock) Now() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance сдвигает часы вперёд и возвращает новое показание.
func (c *ManualClock) Advance(d time.Duration) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now += d
	return c.now
}
