// Package chess defines the game entities the relay arbitrates: the per-side
// countdown clock and the draw-by-rule bookkeeping.
package chess

import (
	"fmt"
	"sync"

	"github.com/tecu23/chess-relay/internal/color"
)

// DefaultInitialSeconds is the time each side starts with.
const DefaultInitialSeconds = 300

// Clock manages the countdown for both players. It only moves when told to:
// the session's ticker calls Tick once per elapsed interval for the side on turn.
type Clock struct {
	initial int64

	whiteSeconds int64
	blackSeconds int64

	mutex sync.RWMutex
}

// ClockTick is a snapshot of both sides after a tick
type ClockTick struct {
	White       int64
	Black       int64
	ActiveColor color.Color
}

// NewClock creates a new chess clock where both sides hold initialSeconds
func NewClock(initialSeconds int64) *Clock {
	if initialSeconds <= 0 {
		initialSeconds = DefaultInitialSeconds
	}

	return &Clock{
		initial:      initialSeconds,
		whiteSeconds: initialSeconds,
		blackSeconds: initialSeconds,
	}
}

// Reset puts both sides back to the configured initial time
func (c *Clock) Reset() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.whiteSeconds = c.initial
	c.blackSeconds = c.initial
}

// Tick takes one second from active and reports the new state. The
// remaining time never drops below zero.
func (c *Clock) Tick(active color.Color) ClockTick {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if active == color.White {
		if c.whiteSeconds > 0 {
			c.whiteSeconds--
		}
	} else if c.blackSeconds > 0 {
		c.blackSeconds--
	}

	return ClockTick{
		White:       c.whiteSeconds,
		Black:       c.blackSeconds,
		ActiveColor: active,
	}
}

// Remaining returns the seconds left for the given side
func (c *Clock) Remaining(side color.Color) int64 {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	if side == color.White {
		return c.whiteSeconds
	}
	return c.blackSeconds
}

// IsTimeUp checks if a player has run out of time
func (c *Clock) IsTimeUp(side color.Color) bool {
	return c.Remaining(side) <= 0
}

// FormatClockTime formats a number of seconds as "m:ss"
func FormatClockTime(seconds int64) string {
	if seconds < 0 {
		seconds = 0
	}

	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}
