package election

import (
	"sync"
	"time"
)

// Signal is a level-triggered event flag: Set raises it, and it stays raised
// until the observer calls Clear. Wait blocks for at most the given bound,
// so a stopping observer notices promptly without a dedicated cancellation
// channel.
type Signal struct {
	mu   sync.Mutex
	set  bool
	wake chan struct{}
}

// NewSignal creates a cleared signal
func NewSignal() *Signal {
	return &Signal{wake: make(chan struct{}, 1)}
}

// Set raises the signal
func (s *Signal) Set() {
	s.mu.Lock()
	s.set = true
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// IsSet reports whether the signal is raised
func (s *Signal) IsSet() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.set
}

// Clear lowers the signal after the observer has handled it
func (s *Signal) Clear() {
	s.mu.Lock()
	s.set = false
	s.mu.Unlock()

	select {
	case <-s.wake:
	default:
	}
}

// Wait blocks until the signal is raised or the bound elapses, and reports
// whether it is raised.
func (s *Signal) Wait(bound time.Duration) bool {
	if s.IsSet() {
		return true
	}

	timer := time.NewTimer(bound)
	defer timer.Stop()

	select {
	case <-s.wake:
		// Re-raise the wake token so a Clear can drain it
		select {
		case s.wake <- struct{}{}:
		default:
		}
		return s.IsSet()
	case <-timer.C:
		return s.IsSet()
	}
}
