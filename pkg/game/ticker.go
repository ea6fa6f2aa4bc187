package game

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Ticker is the repeating deadline owned by a session. Every schedule carries
// a generation number; Reset and Cancel bump it, so a tick that was already
// in flight when the schedule changed can be recognised with Live and ignored.
type Ticker struct {
	clock    clockwork.Clock
	interval time.Duration
	onTick   func(generation uint64)

	mu         sync.Mutex
	generation uint64
	running    bool
	timer      clockwork.Timer
	stop       chan struct{}
}

// NewTicker creates a stopped ticker
func NewTicker(clock clockwork.Clock, interval time.Duration, onTick func(generation uint64)) *Ticker {
	if interval <= 0 {
		interval = time.Second
	}

	return &Ticker{
		clock:    clock,
		interval: interval,
		onTick:   onTick,
	}
}

// Reset drops any pending tick and starts a fresh full interval
func (t *Ticker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stopLocked()
	t.generation++
	t.running = true
	t.scheduleLocked(t.generation)
}

// Cancel stops the ticker. Ticks already in flight become stale.
func (t *Ticker) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stopLocked()
	t.generation++
	t.running = false
}

// Fire delivers the pending tick right away, as if the interval had elapsed,
// and schedules the next one.
func (t *Ticker) Fire() {
	t.mu.Lock()
	if !t.running {
		t.mu.Unlock()
		return
	}
	t.stopLocked()
	generation := t.generation
	t.mu.Unlock()

	t.fire(generation)
}

// Live reports whether generation is the current schedule of a running ticker
func (t *Ticker) Live(generation uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.running && t.generation == generation
}

// Running reports whether a tick is scheduled
func (t *Ticker) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.running
}

func (t *Ticker) fire(generation uint64) {
	if !t.Live(generation) {
		return
	}

	t.onTick(generation)

	t.mu.Lock()
	defer t.mu.Unlock()

	// The callback may have reset or cancelled the ticker.
	if t.running && t.generation == generation {
		t.stopLocked()
		t.scheduleLocked(generation)
	}
}

func (t *Ticker) scheduleLocked(generation uint64) {
	timer := t.clock.NewTimer(t.interval)
	stop := make(chan struct{})
	t.timer = timer
	t.stop = stop

	go func() {
		select {
		case <-timer.Chan():
			t.fire(generation)
		case <-stop:
		}
	}()
}

func (t *Ticker) stopLocked() {
	if t.timer == nil {
		return
	}

	t.timer.Stop()
	close(t.stop)
	t.timer = nil
	t.stop = nil
}
