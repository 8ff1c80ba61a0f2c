/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package hunt

import (
	"fmt"
	"time"
)

const (
	DefaultDuration = 30 * time.Minute
	TickInterval    = time.Second
)

// Countdown is the session timer. Remaining only ever decreases while armed
// and never drops below zero.
type Countdown struct {
	Total     int
	Remaining int
	Armed     bool
}

func NewCountdown(total int) Countdown {
	return Countdown{Total: total, Remaining: total}
}

// Arm resets the countdown to its full length and starts it.
func (c *Countdown) Arm() {
	c.Remaining = c.Total
	c.Armed = true
}

func (c *Countdown) Disarm() {
	c.Armed = false
}

// Tick consumes one second. It reports true on the tick that reaches zero,
// which also disarms the countdown.
func (c *Countdown) Tick() bool {
	if !c.Armed {
		return false
	}
	if c.Remaining > 0 {
		c.Remaining--
	}
	if c.Remaining == 0 {
		c.Armed = false
		return true
	}
	return false
}

func (c Countdown) String() string {
	return FormatClock(c.Remaining)
}

// FormatClock renders whole seconds as zero-padded MM:SS.
func FormatClock(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}
