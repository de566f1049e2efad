package timeutil

import (
	"sync"
	"time"
)

// Recurring runs a callback at a fixed interval. Unlike a self-rescheduling
// timer callback, the rescheduling is owned here: Reset restarts the current
// interval and Stop cancels the task for good. A Reset that lands while the
// callback runs replaces the chain instead of adding one, so at most one
// chain is ever armed.
type Recurring struct {
	interval time.Duration
	fn       func()

	mu      sync.Mutex
	timer   *time.Timer
	gen     uint64
	stopped bool
}

// NewRecurring creates a recurring task; it does not fire until Start or
// Reset is called.
func NewRecurring(interval time.Duration, fn func()) *Recurring {
	return &Recurring{interval: interval, fn: fn}
}

// Start arms the task. Calling Start on an armed task restarts the interval.
func (r *Recurring) Start() {
	r.Reset()
}

// Reset restarts the current interval without firing the callback. The
// generation bump invalidates any in-flight tick so its trailing re-arm
// cannot start a second timer chain.
func (r *Recurring) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return
	}
	if r.timer != nil {
		r.timer.Stop()
	}
	r.gen++
	r.timer = time.AfterFunc(r.interval, r.tickFunc(r.gen))
}

// Stop cancels the task; idempotent
func (r *Recurring) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopped = true
	r.gen++
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
}

func (r *Recurring) tickFunc(gen uint64) func() {
	return func() { r.tick(gen) }
}

func (r *Recurring) tick(gen uint64) {
	r.mu.Lock()
	if r.stopped || gen != r.gen {
		r.mu.Unlock()
		return
	}
	r.mu.Unlock()

	r.fn()

	r.mu.Lock()
	defer r.mu.Unlock()
	// A Reset or Stop issued while fn ran owns the chain now
	if r.stopped || gen != r.gen {
		return
	}
	r.timer = time.AfterFunc(r.interval, r.tickFunc(gen))
}

// Watchdog is a resettable one-shot inactivity timer: the callback fires
// once per arming if Reset is not called again within the interval. Used for
// the domain keep-alive, where every outbound send re-arms the timer.
type Watchdog struct {
	interval time.Duration
	fn       func()

	mu      sync.Mutex
	timer   *time.Timer
	stopped bool
}

// NewWatchdog creates a watchdog; it is disarmed until the first Reset
func NewWatchdog(interval time.Duration, fn func()) *Watchdog {
	return &Watchdog{interval: interval, fn: fn}
}

// Reset (re)arms the watchdog for a full interval
func (w *Watchdog) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.interval, w.tick)
}

// Disarm cancels a pending fire without stopping the watchdog; a later
// Reset re-arms it.
func (w *Watchdog) Disarm() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
}

// Stop disarms the watchdog permanently; idempotent
func (w *Watchdog) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stopped = true
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
}

func (w *Watchdog) tick() {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.timer = nil
	w.mu.Unlock()

	w.fn()
}
