package transport

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

// NATSDialer opens connections to a NATS server
type NATSDialer struct {
	URL  string
	Name string // connection name reported to the server
}

// Dial connects to the server. Reconnects are left to the explicit
// rebuild-and-retry logic of the callers, so automatic reconnection is
// capped rather than infinite.
func (d *NATSDialer) Dial() (Conn, error) {
	opts := []nats.Option{
		nats.Name(d.Name),
		nats.ReconnectWait(time.Second),
		nats.MaxReconnects(2),
	}
	nc, err := nats.Connect(d.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %v", d.URL, err)
	}
	return &natsConn{nc: nc}, nil
}

type natsConn struct {
	nc *nats.Conn
}

func (c *natsConn) Publish(subject string, body []byte) error {
	if err := c.nc.Publish(subject, body); err != nil {
		return err
	}
	// Flush so broker failures surface at the call site, where the
	// rebuild-and-retry path can handle them.
	return c.nc.Flush()
}

func (c *natsConn) Subscribe(subjects ...string) (Subscription, error) {
	msgCh := make(chan *nats.Msg, 64)
	subs := make([]*nats.Subscription, 0, len(subjects))
	for _, subject := range subjects {
		s, err := c.nc.ChanSubscribe(subject, msgCh)
		if err != nil {
			for _, prev := range subs {
				_ = prev.Unsubscribe()
			}
			return nil, fmt.Errorf("failed to subscribe to %s: %v", subject, err)
		}
		subs = append(subs, s)
	}

	ns := &natsSub{
		queue: uuid.NewString(),
		subs:  subs,
		out:   make(chan Delivery, 64),
		quit:  make(chan struct{}),
	}
	go ns.pump(msgCh)
	return ns, nil
}

func (c *natsConn) Close() error {
	c.nc.Close()
	return nil
}

type natsSub struct {
	queue string
	subs  []*nats.Subscription
	out   chan Delivery
	quit  chan struct{}
}

func (s *natsSub) Queue() string             { return s.queue }
func (s *natsSub) Messages() <-chan Delivery { return s.out }

func (s *natsSub) Cancel() error {
	var firstErr error
	for _, sub := range s.subs {
		if err := sub.Unsubscribe(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	close(s.quit)
	return firstErr
}

func (s *natsSub) pump(in <-chan *nats.Msg) {
	defer close(s.out)
	for {
		select {
		case msg, ok := <-in:
			if !ok {
				return
			}
			select {
			case s.out <- Delivery{Subject: msg.Subject, Body: msg.Data}:
			case <-s.quit:
				return
			}
		case <-s.quit:
			return
		}
	}
}
