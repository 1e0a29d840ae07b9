package livefeed

import (
	"context"
	"encoding/json"
	"time"
)

// Stream event names. Heartbeats carry no name.
const (
	EventConnected       = "connected"
	EventNewAttendance   = "new_attendance"
	EventSessionExpiring = "session_expiring"
)

// StreamEvent is one emission on an open live stream. A zero Name marks a
// heartbeat.
type StreamEvent struct {
	Name string
	Data any
}

// StreamOptions configure one subscription's stream task.
type StreamOptions struct {
	// Channel is the feed channel to subscribe to.
	Channel string
	// Snapshot is sent as the initial connected event so the viewer never
	// misses pre-connection state.
	Snapshot any
	// TTL is the session's remaining lifetime at subscribe time.
	TTL time.Duration
	// HeartbeatInterval defaults to 30s.
	HeartbeatInterval time.Duration
	// ExpiryWarningLead is how far before expiry the one-shot warning
	// fires; defaults to 5m. Warnings are skipped when TTL is already
	// inside the lead.
	ExpiryWarningLead time.Duration
}

// OpenStream subscribes to the channel and returns the stream's events.
// The subscription is established before the connected event is emitted, so
// no publish after a successful OpenStream is lost. Message forwarding, the
// heartbeat and the expiry warning are branches of a single task that ends
// when ctx is cancelled; teardown unsubscribes unconditionally and closes
// the returned channel.
func OpenStream(ctx context.Context, bus Bus, opts StreamOptions) (<-chan StreamEvent, error) {
	if opts.HeartbeatInterval <= 0 {
		opts.HeartbeatInterval = 30 * time.Second
	}
	if opts.ExpiryWarningLead <= 0 {
		opts.ExpiryWarningLead = 5 * time.Minute
	}

	sub, err := bus.Subscribe(ctx, opts.Channel)
	if err != nil {
		return nil, err
	}

	out := make(chan StreamEvent)
	go func() {
		defer close(out)
		defer sub.Close()

		heartbeat := time.NewTicker(opts.HeartbeatInterval)
		defer heartbeat.Stop()

		var expiry <-chan time.Time
		if opts.TTL > opts.ExpiryWarningLead {
			timer := time.NewTimer(opts.TTL - opts.ExpiryWarningLead)
			defer timer.Stop()
			expiry = timer.C
		}

		if !emit(ctx, out, StreamEvent{Name: EventConnected, Data: opts.Snapshot}) {
			return
		}

		for {
			select {
			case <-ctx.Done():
				return
			case payload, ok := <-sub.Messages():
				if !ok {
					return
				}
				// forwarded verbatim
				if !emit(ctx, out, StreamEvent{Name: EventNewAttendance, Data: json.RawMessage(payload)}) {
					return
				}
			case <-heartbeat.C:
				if !emit(ctx, out, StreamEvent{}) {
					return
				}
			case <-expiry:
				expiry = nil
				warning := map[string]any{"expiresInSeconds": int(opts.ExpiryWarningLead.Seconds())}
				if !emit(ctx, out, StreamEvent{Name: EventSessionExpiring, Data: warning}) {
					return
				}
			}
		}
	}()
	return out, nil
}

func emit(ctx context.Context, out chan<- StreamEvent, evt StreamEvent) bool {
	select {
	case out <- evt:
		return true
	case <-ctx.Done():
		return false
	}
}
