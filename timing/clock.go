package timing

import (
	"fmt"
	"sync"
)

// Clock holds the current virtual time. Only the run loop moves it, and only
// forward. Reads are safe from any goroutine.
type Clock struct {
	lock sync.RWMutex
	now  VTime
}

// Now returns the current virtual time.
func (c *Clock) Now() VTime {
	c.lock.RLock()
	defer c.lock.RUnlock()

	return c.now
}

// AdvanceTo moves the clock to t. Moving backwards panics with
// ErrTimeRegression.
func (c *Clock) AdvanceTo(t VTime) {
	c.lock.Lock()
	defer c.lock.Unlock()

	if t < c.now {
		panic(fmt.Errorf("%w: cannot move from %s to %s",
			ErrTimeRegression, c.now, t))
	}

	c.now = t
}

// Reset puts the clock back at time zero.
func (c *Clock) Reset() {
	c.lock.Lock()
	c.now = 0
	c.lock.Unlock()
}
