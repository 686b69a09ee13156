package notify

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/todomini/todomini-server/pkg/logger"
)

// RedisNotifier fans folder changes out across server instances. Publish
// goes through a Redis channel "<prefix><folder>"; a single pattern
// subscription per process relays every message to a local Broadcaster,
// which serves Subscribe.
type RedisNotifier struct {
	client *redis.Client
	prefix string
	local  *Broadcaster
	pubsub *redis.PubSub
	done   chan struct{}
	once   sync.Once
}

// NewRedisNotifier subscribes to "<prefix>*" and starts relaying. The
// subscription is confirmed before it returns, so no publish issued after
// NewRedisNotifier returns can be missed. Prefix may be empty.
func NewRedisNotifier(ctx context.Context, client *redis.Client, prefix string) (*RedisNotifier, error) {
	if prefix == "" {
		prefix = "todo:changed:"
	}
	ps := client.PSubscribe(ctx, prefix+"*")
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("psubscribe %s*: %w", prefix, err)
	}
	n := &RedisNotifier{
		client: client,
		prefix: prefix,
		local:  NewBroadcaster(),
		pubsub: ps,
		done:   make(chan struct{}),
	}
	go n.relay()
	return n, nil
}

func (n *RedisNotifier) relay() {
	defer close(n.done)
	for msg := range n.pubsub.Channel() {
		folder := strings.TrimPrefix(msg.Channel, n.prefix)
		n.local.deliver(folder, "redis")
	}
}

func (n *RedisNotifier) Publish(ctx context.Context, folder string) error {
	if err := n.client.Publish(ctx, n.prefix+folder, "1").Err(); err != nil {
		return fmt.Errorf("publish %s: %w", folder, err)
	}
	return nil
}

func (n *RedisNotifier) Subscribe(folder string) (<-chan struct{}, func()) {
	return n.local.Subscribe(folder)
}

// Close stops relaying and waits for the relay goroutine to exit.
func (n *RedisNotifier) Close() error {
	var err error
	n.once.Do(func() {
		err = n.pubsub.Close()
		<-n.done
		logger.Debugf("redis notifier closed (prefix=%s)", n.prefix)
	})
	return err
}
