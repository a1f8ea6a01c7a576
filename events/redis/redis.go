package redis

import (
	"context"

	"github.com/redis/go-redis/v9"
	"github.com/zlnvch/wire/logging"
)

// RedisBroker publishes events over redis pub/sub.
type RedisBroker struct {
	client redis.UniversalClient
	logger logging.Logger
}

func NewRedisBroker(client redis.UniversalClient, logger logging.Logger) *RedisBroker {
	return &RedisBroker{client: client, logger: logger}
}

func (redisBroker *RedisBroker) Publish(ctx context.Context, channel string, message []byte) error {
	if err := redisBroker.client.Publish(ctx, channel, message).Err(); err != nil {
		return err
	}
	return nil
}

func (redisBroker *RedisBroker) Subscribe(ctx context.Context, channel string, handler func(message []byte)) error {
	pubsub := redisBroker.client.Subscribe(ctx, channel)
	// Ensure subscription is established
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		redisBroker.logger.Warn(ctx, "pubsub channel closed", "channel", channel, "error", err)
		return err
	}

	ch := pubsub.Channel()

	go func() {
		defer pubsub.Close()

		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				handler([]byte(msg.Payload))
			}
		}
	}()

	return nil
}
