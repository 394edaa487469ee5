package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"tasktracker/internal/models"
	"tasktracker/pkg/logger"
)

const DefaultChannel = "tasktracker:task-events"

// ErrNoSubscribers means a publish reached no hub, not even the local one.
var ErrNoSubscribers = errors.New("no subscribers on task event channel")

// RedisRelay fans events out to every process subscribed to one Redis
// pub/sub channel.
type RedisRelay struct {
	client  *redis.Client
	channel string
}

func NewRedisRelay(client *redis.Client, channel string) *RedisRelay {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisRelay{client: client, channel: channel}
}

func (r *RedisRelay) Publish(ctx context.Context, event models.TaskEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode task event: %w", err)
	}
	receivers, err := r.client.Publish(ctx, r.channel, data).Result()
	if err != nil {
		return err
	}
	if receivers == 0 {
		return ErrNoSubscribers
	}
	return nil
}

// Subscribe blocks, calling deliver for every event received, until ctx is
// done or the subscription fails.
func (r *RedisRelay) Subscribe(ctx context.Context, deliver func(models.TaskEvent)) error {
	pubsub := r.client.Subscribe(ctx, r.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", r.channel, err)
	}
	logger.SystemLogger.Info("Subscribed to task events", zap.String("channel", r.channel))

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var event models.TaskEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				logger.ErrorLogger.Error("Error decoding relayed task event", zap.Error(err))
				continue
			}
			deliver(event)
		}
	}
}
