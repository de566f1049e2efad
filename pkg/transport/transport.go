package transport

import "errors"

// ErrClosed is returned by operations on a closed connection
var ErrClosed = errors.New("transport: connection closed")

// Delivery is one inbound message
type Delivery struct {
	Subject string
	Body    []byte
}

// Subscription is a bound receive queue. Queue returns an opaque identity
// token unique to this subscription; the election engine uses it to ignore
// self-delivery and as the collision tie-break.
type Subscription interface {
	Queue() string
	Messages() <-chan Delivery
	Cancel() error
}

// Conn is one connection to the broker. Send and receive paths use separate
// Conns so a failure on one side never tears down the other.
type Conn interface {
	Publish(subject string, body []byte) error
	Subscribe(subjects ...string) (Subscription, error)
	Close() error
}

// Dialer opens broker connections. Components hold a Dialer rather than a
// Conn so a failed connection can be rebuilt in place.
type Dialer interface {
	Dial() (Conn, error)
}
