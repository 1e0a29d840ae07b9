package livefeed

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recv(t *testing.T, events <-chan StreamEvent) StreamEvent {
	t.Helper()
	select {
	case evt, ok := <-events:
		if !ok {
			t.Fatal("stream closed unexpectedly")
		}
		return evt
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for stream event")
	}
	return StreamEvent{}
}

func TestStreamConnectedFirstThenForwards(t *testing.T) {
	bus := NewMemoryBus()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	snapshot := map[string]int{"count": 3}
	events, err := OpenStream(ctx, bus, StreamOptions{
		Channel:           Channel("s1"),
		Snapshot:          snapshot,
		TTL:               time.Hour,
		HeartbeatInterval: time.Hour, // keep heartbeats out of the way
	})
	require.NoError(t, err)

	first := recv(t, events)
	assert.Equal(t, EventConnected, first.Name)
	assert.Equal(t, snapshot, first.Data)

	require.NoError(t, bus.Publish(ctx, Channel("s1"), []byte(`{"type":"new_attendance"}`)))
	evt := recv(t, events)
	assert.Equal(t, EventNewAttendance, evt.Name)
	raw, ok := evt.Data.(json.RawMessage)
	require.True(t, ok, "forwarded payloads stay raw JSON")
	assert.JSONEq(t, `{"type":"new_attendance"}`, string(raw))
}

func TestStreamHeartbeat(t *testing.T) {
	bus := NewMemoryBus()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := OpenStream(ctx, bus, StreamOptions{
		Channel:           Channel("s2"),
		TTL:               time.Hour,
		HeartbeatInterval: 10 * time.Millisecond,
	})
	require.NoError(t, err)

	assert.Equal(t, EventConnected, recv(t, events).Name)
	hb := recv(t, events)
	assert.Empty(t, hb.Name, "heartbeats carry no event name")
}

func TestStreamExpiryWarning(t *testing.T) {
	bus := NewMemoryBus()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := OpenStream(ctx, bus, StreamOptions{
		Channel:           Channel("s3"),
		TTL:               60 * time.Millisecond,
		HeartbeatInterval: time.Hour,
		ExpiryWarningLead: 20 * time.Millisecond,
	})
	require.NoError(t, err)

	assert.Equal(t, EventConnected, recv(t, events).Name)
	warn := recv(t, events)
	assert.Equal(t, EventSessionExpiring, warn.Name)
}

func TestStreamExpiryWarningSkippedWhenInsideLead(t *testing.T) {
	bus := NewMemoryBus()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := OpenStream(ctx, bus, StreamOptions{
		Channel:           Channel("s4"),
		TTL:               10 * time.Millisecond,
		HeartbeatInterval: time.Hour,
		ExpiryWarningLead: time.Minute, // remaining TTL already under the lead
	})
	require.NoError(t, err)

	assert.Equal(t, EventConnected, recv(t, events).Name)
	select {
	case evt := <-events:
		t.Fatalf("unexpected event %q; warning must be skipped", evt.Name)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestStreamTeardownOnCancel(t *testing.T) {
	bus := NewMemoryBus()
	ctx, cancel := context.WithCancel(context.Background())

	events, err := OpenStream(ctx, bus, StreamOptions{
		Channel:           Channel("s5"),
		TTL:               time.Hour,
		HeartbeatInterval: time.Hour,
	})
	require.NoError(t, err)
	assert.Equal(t, EventConnected, recv(t, events).Name)

	cancel()
	select {
	case _, ok := <-events:
		assert.False(t, ok, "stream channel must close after cancel")
	case <-time.After(time.Second):
		t.Fatal("stream did not close after cancel")
	}

	// the subscription was released: later publishes reach nobody
	bus.mu.Lock()
	remaining := len(bus.subs[Channel("s5")])
	bus.mu.Unlock()
	assert.Zero(t, remaining, "subscription must be removed on teardown")
}

func TestMultipleIndependentSubscribers(t *testing.T) {
	bus := NewMemoryBus()
	ctx := context.Background()

	sub1, err := bus.Subscribe(ctx, Channel("s6"))
	require.NoError(t, err)
	sub2, err := bus.Subscribe(ctx, Channel("s6"))
	require.NoError(t, err)

	require.NoError(t, bus.Publish(ctx, Channel("s6"), []byte("x")))
	assert.Equal(t, []byte("x"), <-sub1.Messages())
	assert.Equal(t, []byte("x"), <-sub2.Messages())

	// closing one leaves the other live
	require.NoError(t, sub1.Close())
	require.NoError(t, bus.Publish(ctx, Channel("s6"), []byte("y")))
	assert.Equal(t, []byte("y"), <-sub2.Messages())
	require.NoError(t, sub2.Close())
}
