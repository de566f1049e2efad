package transport

import (
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Broker is an in-process topic broker. It implements Dialer, so a single
// Broker stands in for an external message broker in tests and
// single-process emulation. Subjects are dot-separated tokens with NATS
// wildcard semantics: "*" matches one token, ">" matches the rest.
type Broker struct {
	mu     sync.RWMutex
	subs   map[*memorySub]struct{}
	closed bool
}

// NewBroker creates a new in-process broker
func NewBroker() *Broker {
	return &Broker{
		subs: make(map[*memorySub]struct{}),
	}
}

// Dial returns a new connection to the broker
func (b *Broker) Dial() (Conn, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, ErrClosed
	}
	return &memoryConn{broker: b, subs: make(map[*memorySub]struct{})}, nil
}

// Close shuts the broker down and cancels every subscription
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for sub := range b.subs {
		sub.close()
	}
	b.subs = make(map[*memorySub]struct{})
}

func (b *Broker) publish(subject string, body []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrClosed
	}

	// Copy once so subscribers never alias the caller's buffer
	msg := make([]byte, len(body))
	copy(msg, body)

	for sub := range b.subs {
		if !sub.matches(subject) {
			continue
		}
		select {
		case sub.ch <- Delivery{Subject: subject, Body: msg}:
		default:
			// Subscriber buffer full, skip
		}
	}
	return nil
}

func (b *Broker) subscribe(sub *memorySub) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}
	b.subs[sub] = struct{}{}
	return nil
}

func (b *Broker) unsubscribe(sub *memorySub) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[sub]; ok {
		delete(b.subs, sub)
		sub.close()
	}
}

type memoryConn struct {
	broker *Broker

	mu     sync.Mutex
	subs   map[*memorySub]struct{}
	closed bool
}

func (c *memoryConn) Publish(subject string, body []byte) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.mu.Unlock()
	return c.broker.publish(subject, body)
}

func (c *memoryConn) Subscribe(subjects ...string) (Subscription, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}

	sub := &memorySub{
		conn:     c,
		queue:    uuid.NewString(),
		subjects: subjects,
		ch:       make(chan Delivery, 64),
	}
	if err := c.broker.subscribe(sub); err != nil {
		return nil, err
	}
	c.subs[sub] = struct{}{}
	return sub, nil
}

func (c *memoryConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	for sub := range c.subs {
		c.broker.unsubscribe(sub)
	}
	c.subs = make(map[*memorySub]struct{})
	return nil
}

type memorySub struct {
	conn     *memoryConn
	queue    string
	subjects []string
	ch       chan Delivery

	closeOnce sync.Once
}

func (s *memorySub) Queue() string             { return s.queue }
func (s *memorySub) Messages() <-chan Delivery { return s.ch }

func (s *memorySub) Cancel() error {
	s.conn.broker.unsubscribe(s)
	return nil
}

func (s *memorySub) close() {
	s.closeOnce.Do(func() { close(s.ch) })
}

func (s *memorySub) matches(subject string) bool {
	for _, pattern := range s.subjects {
		if SubjectMatches(pattern, subject) {
			return true
		}
	}
	return false
}

// SubjectMatches reports whether a dot-separated subject matches a pattern.
// "*" matches exactly one token and ">" matches one or more trailing tokens.
func SubjectMatches(pattern, subject string) bool {
	if pattern == subject {
		return true
	}
	pt := strings.Split(pattern, ".")
	st := strings.Split(subject, ".")

	for i, tok := range pt {
		if tok == ">" {
			return i < len(st)
		}
		if i >= len(st) {
			return false
		}
		if tok != "*" && tok != st[i] {
			return false
		}
	}
	return len(pt) == len(st)
}
