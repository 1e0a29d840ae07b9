// Package livefeed fans out attendance events to teachers watching a class
// session. Each session has its own broadcast channel; delivery is
// at-most-once with no replay for late or disconnected subscribers.
package livefeed

import (
	"context"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Bus is the publish/subscribe transport between the attendance recorder
// and open live streams.
type Bus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	// Subscribe opens an independent subscription on the channel. The
	// returned subscription must be closed by the caller.
	Subscribe(ctx context.Context, channel string) (Subscription, error)
}

// Subscription is one reader of a channel with its own lifecycle.
type Subscription interface {
	// Messages delivers payloads until the subscription closes.
	Messages() <-chan []byte
	// Close unsubscribes and releases the connection. Safe to call more
	// than once.
	Close() error
}

// Channel names the feed channel for a class session.
func Channel(sessionID string) string {
	return "attendance:" + sessionID
}

// RedisBus implements Bus on redis pub/sub.
type RedisBus struct {
	client *redis.Client
}

// NewRedisBus wraps an existing client.
func NewRedisBus(client *redis.Client) *RedisBus {
	return &RedisBus{client: client}
}

func (b *RedisBus) Publish(ctx context.Context, channel string, payload []byte) error {
	return b.client.Publish(ctx, channel, payload).Err()
}

func (b *RedisBus) Subscribe(ctx context.Context, channel string) (Subscription, error) {
	pubsub := b.client.Subscribe(ctx, channel)
	// Confirm the subscription before handing it out so no publish that
	// follows a successful Subscribe is missed.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, err
	}

	sub := &redisSubscription{
		pubsub: pubsub,
		out:    make(chan []byte),
		done:   make(chan struct{}),
	}
	go forward(pubsub.Channel(), sub.out, sub.done)
	return sub, nil
}

type redisSubscription struct {
	pubsub    *redis.PubSub
	out       chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

// forward copies payloads from the pubsub channel until it closes. A send
// blocked on a receiver that already went away is released by done, so a
// publish racing a Close cannot strand the goroutine.
func forward(in <-chan *redis.Message, out chan<- []byte, done <-chan struct{}) {
	defer close(out)
	for msg := range in {
		select {
		case out <- []byte(msg.Payload):
		case <-done:
			return
		}
	}
}

func (s *redisSubscription) Messages() <-chan []byte { return s.out }

func (s *redisSubscription) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		err = s.pubsub.Close()
	})
	return err
}

// MemoryBus is a process-local Bus for development and tests.
type MemoryBus struct {
	mu   sync.Mutex
	subs map[string][]*memorySubscription
}

// NewMemoryBus creates an empty bus.
func NewMemoryBus() *MemoryBus {
	return &MemoryBus{subs: make(map[string][]*memorySubscription)}
}

func (b *MemoryBus) Publish(_ context.Context, channel string, payload []byte) error {
	b.mu.Lock()
	subs := append([]*memorySubscription(nil), b.subs[channel]...)
	b.mu.Unlock()
	for _, sub := range subs {
		sub.deliver(payload)
	}
	return nil
}

func (b *MemoryBus) Subscribe(_ context.Context, channel string) (Subscription, error) {
	sub := &memorySubscription{
		bus:     b,
		channel: channel,
		out:     make(chan []byte, 16),
	}
	b.mu.Lock()
	b.subs[channel] = append(b.subs[channel], sub)
	b.mu.Unlock()
	return sub, nil
}

type memorySubscription struct {
	bus       *MemoryBus
	channel   string
	out       chan []byte
	mu        sync.Mutex
	closed    bool
	closeOnce sync.Once
}

func (s *memorySubscription) deliver(payload []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.out <- payload:
	default: // slow consumer, drop
	}
}

func (s *memorySubscription) Messages() <-chan []byte { return s.out }

func (s *memorySubscription) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		close(s.out)
		s.mu.Unlock()

		s.bus.mu.Lock()
		subs := s.bus.subs[s.channel]
		for i, sub := range subs {
			if sub == s {
				s.bus.subs[s.channel] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
		s.bus.mu.Unlock()
	})
	return nil
}
