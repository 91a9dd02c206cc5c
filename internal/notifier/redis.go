package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/leadkeeper/internal/logging"
	"github.com/dmitrijs2005/leadkeeper/internal/models"
	"github.com/redis/go-redis/v9"
)

// RedisTransport carries entries between processes over a pub/sub channel.
// It is also the gateway's broadcaster.
type RedisTransport struct {
	client  *redis.Client
	channel string
	log     logging.Logger
}

func NewRedisTransport(client *redis.Client, channel string, l logging.Logger) *RedisTransport {
	return &RedisTransport{client: client, channel: channel, log: l.With("module", "notifier", "transport", "redis")}
}

func (t *RedisTransport) Name() string { return "redis" }

// Publish announces a stored entry.
func (t *RedisTransport) Publish(ctx context.Context, e models.Entry) error {
	b, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to encode entry: %w", err)
	}
	if err := t.client.Publish(ctx, t.channel, b).Err(); err != nil {
		return fmt.Errorf("failed to publish entry: %w", err)
	}
	return nil
}

func (t *RedisTransport) Subscribe(ctx context.Context, deliver func(models.Entry)) (Subscription, error) {
	ps := t.client.Subscribe(ctx, t.channel)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", t.channel, err)
	}

	sub := &redisSubscription{ps: ps, done: make(chan struct{})}
	ch := ps.Channel()

	go func() {
		defer close(sub.done)
		for {
			select {
			case msg, ok := <-ch:
				if !ok {
					return
				}
				t.handle(ctx, msg.Payload, deliver)
			case <-ctx.Done():
				return
			}
		}
	}()

	return sub, nil
}

func (t *RedisTransport) handle(ctx context.Context, payload string, deliver func(models.Entry)) {
	e, err := decodeEntry([]byte(payload))
	if err != nil {
		t.log.Warn(ctx, "dropping message", "error", err)
		return
	}
	deliver(e)
}

type redisSubscription struct {
	ps   *redis.PubSub
	done chan struct{}
	once sync.Once
	err  error
}

func (s *redisSubscription) Close() error {
	s.once.Do(func() {
		s.err = s.ps.Close()
		<-s.done
	})
	return s.err
}
