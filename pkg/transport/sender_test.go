package transport

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flakyConn fails a fixed number of publishes before working
type flakyConn struct {
	failures  *int
	published *[]string
	closed    bool
}

func (c *flakyConn) Publish(subject string, body []byte) error {
	if *c.failures > 0 {
		*c.failures--
		return errors.New("broker unreachable")
	}
	*c.published = append(*c.published, subject+":"+string(body))
	return nil
}

func (c *flakyConn) Subscribe(subjects ...string) (Subscription, error) {
	return nil, errors.New("not implemented")
}

func (c *flakyConn) Close() error {
	c.closed = true
	return nil
}

type flakyDialer struct {
	failures  int
	published []string
	dials     int
	conns     []*flakyConn
}

func (d *flakyDialer) Dial() (Conn, error) {
	d.dials++
	conn := &flakyConn{failures: &d.failures, published: &d.published}
	d.conns = append(d.conns, conn)
	return conn, nil
}

func TestSenderPublishHappyPath(t *testing.T) {
	dialer := &flakyDialer{}
	s, err := NewSender(dialer)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Publish("a", []byte("1")))
	assert.Equal(t, []string{"a:1"}, dialer.published)
	assert.Equal(t, 1, dialer.dials)
}

func TestSenderRebuildsAndRetriesOnce(t *testing.T) {
	dialer := &flakyDialer{failures: 1}
	s, err := NewSender(dialer)
	require.NoError(t, err)
	defer s.Close()

	retries := 0
	s.OnRetry = func() { retries++ }

	require.NoError(t, s.Publish("a", []byte("1")))
	assert.Equal(t, []string{"a:1"}, dialer.published)
	assert.Equal(t, 2, dialer.dials, "failed publish should rebuild the connection")
	assert.Equal(t, 1, retries)
	assert.True(t, dialer.conns[0].closed, "broken connection should be closed")
}

func TestSenderGivesUpAfterSecondFailure(t *testing.T) {
	dialer := &flakyDialer{failures: 2}
	s, err := NewSender(dialer)
	require.NoError(t, err)
	defer s.Close()

	err = s.Publish("a", []byte("1"))
	assert.Error(t, err)
	assert.Empty(t, dialer.published)

	// The rebuilt connection stays for the next attempt
	require.NoError(t, s.Publish("a", []byte("2")))
	assert.Equal(t, []string{"a:2"}, dialer.published)
}

func TestSenderClosedRejectsPublish(t *testing.T) {
	dialer := &flakyDialer{}
	s, err := NewSender(dialer)
	require.NoError(t, err)

	require.NoError(t, s.Close())
	assert.NoError(t, s.Close()) // idempotent
	assert.ErrorIs(t, s.Publish("a", nil), ErrClosed)
}
