package transport

import (
	"fmt"
	"sync"
)

// Sender serializes publishes on one send-direction connection and recovers
// from broker failures in place: a failed publish closes the connection,
// rebuilds it while still holding the send lock, and retries exactly once.
// A second failure propagates to the caller as a non-fatal error.
type Sender struct {
	dialer Dialer

	// OnRetry, if set, is invoked whenever a publish goes through the
	// rebuild path. Used for metrics.
	OnRetry func()

	mu     sync.Mutex
	conn   Conn
	closed bool
}

// NewSender dials the initial connection
func NewSender(dialer Dialer) (*Sender, error) {
	conn, err := dialer.Dial()
	if err != nil {
		return nil, fmt.Errorf("failed to open send connection: %v", err)
	}
	return &Sender{dialer: dialer, conn: conn}, nil
}

// Publish sends one message, rebuilding the connection and retrying once on
// failure.
func (s *Sender) Publish(subject string, body []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	if s.conn != nil {
		if err := s.conn.Publish(subject, body); err == nil {
			return nil
		}
		s.conn.Close()
		s.conn = nil
	}

	if s.OnRetry != nil {
		s.OnRetry()
	}

	conn, err := s.dialer.Dial()
	if err != nil {
		return fmt.Errorf("failed to rebuild send connection: %v", err)
	}
	s.conn = conn

	if err := s.conn.Publish(subject, body); err != nil {
		return fmt.Errorf("send failed after connection rebuild: %v", err)
	}
	return nil
}

// Close tears the connection down; idempotent
func (s *Sender) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.conn != nil {
		err := s.conn.Close()
		s.conn = nil
		return err
	}
	return nil
}
