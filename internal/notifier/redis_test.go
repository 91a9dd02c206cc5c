package notifier

import (
	"context"
	"testing"
	"time"

	"github.com/dmitrijs2005/leadkeeper/internal/logging"
	"github.com/dmitrijs2005/leadkeeper/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func unreachableRedis(t *testing.T) *redis.Client {
	t.Helper()
	c := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestRedisTransport_Handle(t *testing.T) {
	tr := NewRedisTransport(unreachableRedis(t), "leadkeeper:entries", logging.Nop())
	assert.Equal(t, "redis", tr.Name())

	c := &collector{}
	tr.handle(context.Background(), `{"id":3,"name":"Kim","phone":"010-1234-5678","created_at":"2024-05-01T09:00:00Z"}`, c.deliver)
	tr.handle(context.Background(), `garbage`, c.deliver)

	require.Equal(t, 1, c.len())
	assert.Equal(t, []int64{3}, c.ids())
}

func TestRedisTransport_UnreachableServer(t *testing.T) {
	tr := NewRedisTransport(unreachableRedis(t), "leadkeeper:entries", logging.Nop())
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	err := tr.Publish(ctx, models.Entry{ID: 1, Name: "Kim", Phone: "01012345678"})
	assert.ErrorContains(t, err, "failed to publish entry")

	_, err = tr.Subscribe(ctx, func(models.Entry) {})
	assert.ErrorContains(t, err, "failed to subscribe")
}
