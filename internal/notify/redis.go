package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/MarkoPoloResearchLab/ticketengine/pkg/fanout"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const (
	// DefaultRedisChannel is the pub/sub channel signals go to when none is configured.
	DefaultRedisChannel = "ticketengine.signals"

	publishTimeout = 2 * time.Second
)

// RedisPublisher publishes every signal as JSON on one pub/sub channel.
type RedisPublisher struct {
	client  redis.UniversalClient
	channel string
	logger  *zap.Logger
}

// NewRedisPublisher wraps a connected client. Empty channel selects DefaultRedisChannel.
func NewRedisPublisher(client redis.UniversalClient, channel string, logger *zap.Logger) *RedisPublisher {
	if channel == "" {
		channel = DefaultRedisChannel
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisPublisher{client: client, channel: channel, logger: logger}
}

// Notify implements fanout.Fanout. Failures are logged and dropped.
func (publisher *RedisPublisher) Notify(ctx context.Context, signal fanout.Signal) {
	payload, err := json.Marshal(signal)
	if err != nil {
		publisher.logger.Error("encode signal", zap.Error(err))
		return
	}
	publishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := publisher.client.Publish(publishCtx, publisher.channel, payload).Err(); err != nil {
		publisher.logger.Warn("redis publish failed",
			zap.String("channel", publisher.channel),
			zap.String("topic", signal.Topic),
			zap.Error(err),
		)
	}
}
