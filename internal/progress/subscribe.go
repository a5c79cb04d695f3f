package progress

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// Subscription wraps a single-channel Redis pub/sub subscription, used by
// the gateway (C7) to attach one subscriber task per broker channel (§5
// "one subscriber task per broker channel").
type Subscription struct {
	ps *redis.PubSub
}

// Subscribe opens a subscription on the given channel.
// Callers are expected to already have normalised the channel (via
// ChannelFor or Normalize) rather than construct it by concatenation.
func (f *Fabric) Subscribe(ctx context.Context, channel string) *Subscription {
	return &Subscription{ps: f.rdb.Subscribe(ctx, channel)}
}

// Channel returns the receive channel of raw pub/sub messages.
func (s *Subscription) Channel() <-chan *redis.Message {
	return s.ps.Channel()
}

// Close unsubscribes and releases the underlying connection.
func (s *Subscription) Close() error {
	return s.ps.Close()
}
