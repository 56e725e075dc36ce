package messaging

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// GoRedisClient adapts a go-redis client to the RedisClient interface
// used by RedisEventBus.
type GoRedisClient struct {
	client *redis.Client
}

// NewGoRedisClient wraps an existing go-redis client.
func NewGoRedisClient(client *redis.Client) *GoRedisClient {
	return &GoRedisClient{client: client}
}

// Publish implements RedisClient.
func (c *GoRedisClient) Publish(ctx context.Context, channel string, message interface{}) error {
	return c.client.Publish(ctx, channel, message).Err()
}

// Subscribe implements RedisClient. The returned channel closes when the
// context is cancelled.
func (c *GoRedisClient) Subscribe(ctx context.Context, channels ...string) (<-chan RedisMessage, error) {
	sub := c.client.Subscribe(ctx, channels...)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, err
	}

	out := make(chan RedisMessage)
	go func() {
		defer close(out)
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				select {
				case out <- RedisMessage{Channel: msg.Channel, Payload: msg.Payload}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

// Close implements RedisClient.
func (c *GoRedisClient) Close() error {
	return c.client.Close()
}
