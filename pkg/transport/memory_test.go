package transport

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubjectMatches(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		subject string
		want    bool
	}{
		{"exact", "c.all", "c.all", true},
		{"exact mismatch", "c.all", "c.1001", false},
		{"single token wildcard", "c.*.discover", "c.1.discover", true},
		{"wildcard consumes one token only", "c.*.discover", "c.1.2.discover", false},
		{"tail wildcard", "root.c.>", "root.c.inter_domain.dead_port", true},
		{"tail wildcard needs a tail", "root.c.>", "root.c", false},
		{"prefix is not a match", "c.1001", "c.1001.extra", false},
		{"subject shorter than pattern", "c.1.discover", "c.1", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SubjectMatches(tt.pattern, tt.subject))
		})
	}
}

func TestBrokerRouting(t *testing.T) {
	broker := NewBroker()
	defer broker.Close()

	conn, err := broker.Dial()
	require.NoError(t, err)
	defer conn.Close()

	sub, err := conn.Subscribe("c.5.discover", "c.all")
	require.NoError(t, err)
	assert.NotEmpty(t, sub.Queue())

	other, err := conn.Subscribe("c.9.discover")
	require.NoError(t, err)
	assert.NotEqual(t, sub.Queue(), other.Queue())

	require.NoError(t, conn.Publish("c.5.discover", []byte("one")))
	require.NoError(t, conn.Publish("c.all", []byte("two")))
	require.NoError(t, conn.Publish("c.9.discover", []byte("three")))

	got := recvN(t, sub.Messages(), 2)
	assert.ElementsMatch(t, []string{"one", "two"}, got)

	assert.Equal(t, []string{"three"}, recvN(t, other.Messages(), 1))
}

func TestBrokerCancelClosesChannel(t *testing.T) {
	broker := NewBroker()
	defer broker.Close()

	conn, err := broker.Dial()
	require.NoError(t, err)
	sub, err := conn.Subscribe("x")
	require.NoError(t, err)

	require.NoError(t, sub.Cancel())
	_, open := <-sub.Messages()
	assert.False(t, open)

	// Publishing after cancel reaches nobody but does not error
	assert.NoError(t, conn.Publish("x", []byte("late")))
}

func TestConnCloseRejectsFurtherUse(t *testing.T) {
	broker := NewBroker()
	defer broker.Close()

	conn, err := broker.Dial()
	require.NoError(t, err)
	sub, err := conn.Subscribe("x")
	require.NoError(t, err)

	require.NoError(t, conn.Close())
	assert.NoError(t, conn.Close()) // idempotent

	assert.ErrorIs(t, conn.Publish("x", []byte("a")), ErrClosed)
	_, err = conn.Subscribe("y")
	assert.ErrorIs(t, err, ErrClosed)

	_, open := <-sub.Messages()
	assert.False(t, open)
}

func TestClosedBrokerRefusesDial(t *testing.T) {
	broker := NewBroker()
	broker.Close()
	_, err := broker.Dial()
	assert.ErrorIs(t, err, ErrClosed)
}

func recvN(t *testing.T, ch <-chan Delivery, n int) []string {
	t.Helper()
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		select {
		case d := <-ch:
			out = append(out, string(d.Body))
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for delivery %d of %d", i+1, n)
		}
	}
	return out
}
