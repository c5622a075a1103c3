package clock

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Provider supplies timestamps and unique identifiers to the store.
type Provider interface {
	Now() time.Time
	NewID() string
}

// System reads the wall clock in UTC and never returns a time earlier than one
// it already returned, so a clock step backwards cannot reorder events.
type System struct {
	mu   sync.Mutex
	last time.Time
}

func NewSystem() *System {
	return &System{}
}

func (c *System) Now() time.Time {
	now := time.Now().UTC()
	c.mu.Lock()
	defer c.mu.Unlock()
	if now.Before(c.last) {
		now = c.last
	}
	c.last = now
	return now
}

func (c *System) NewID() string {
	return uuid.NewString()
}

// Manual is a Provider whose time only moves when told to.
type Manual struct {
	mu   sync.Mutex
	now  time.Time
	tick time.Duration
}

// NewManual starts at start; every Now call advances by tick afterwards.
func NewManual(start time.Time, tick time.Duration) *Manual {
	return &Manual{now: start.UTC(), tick: tick}
}

func (c *Manual) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now
	c.now = c.now.Add(c.tick)
	return now
}

// Advance moves the clock forward by d.
func (c *Manual) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *Manual) NewID() string {
	return uuid.NewString()
}
