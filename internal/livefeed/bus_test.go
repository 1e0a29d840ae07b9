package livefeed

import (
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForwardDeliversPayloads(t *testing.T) {
	in := make(chan *redis.Message, 2)
	out := make(chan []byte)
	done := make(chan struct{})

	in <- &redis.Message{Payload: "one"}
	in <- &redis.Message{Payload: "two"}
	close(in)
	go forward(in, out, done)

	assert.Equal(t, []byte("one"), <-out)
	assert.Equal(t, []byte("two"), <-out)

	_, open := <-out
	assert.False(t, open, "out must close when the source closes")
}

func TestForwardReleasesBlockedSendOnDone(t *testing.T) {
	in := make(chan *redis.Message, 1)
	out := make(chan []byte) // no receiver, the send blocks
	done := make(chan struct{})

	in <- &redis.Message{Payload: "stranded"}
	exited := make(chan struct{})
	go func() {
		forward(in, out, done)
		close(exited)
	}()

	// Give the goroutine time to park on the send.
	time.Sleep(20 * time.Millisecond)
	close(done)

	select {
	case <-exited:
	case <-time.After(time.Second):
		t.Fatal("forward goroutine leaked after done closed")
	}

	select {
	case _, open := <-out:
		require.False(t, open, "out must be closed, not carry data")
	case <-time.After(time.Second):
		t.Fatal("out never closed")
	}
}
