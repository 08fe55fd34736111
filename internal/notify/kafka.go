package notify

import (
	"context"
	"encoding/json"
	"io"

	"github.com/MarkoPoloResearchLab/ticketengine/pkg/fanout"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// DefaultKafkaTopic is used when no topic is configured.
const DefaultKafkaTopic = "ticketengine.signals"

// MessageWriter is the part of kafka.Writer the publisher needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, messages ...kafka.Message) error
	io.Closer
}

// KafkaPublisher streams signals to a topic, keyed by order id so one order's signals stay ordered.
type KafkaPublisher struct {
	writer MessageWriter
	logger *zap.Logger
}

// NewKafkaWriter builds an async writer for the brokers and topic.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	if topic == "" {
		topic = DefaultKafkaTopic
	}
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		Async:                  true,
		AllowAutoTopicCreation: true,
	}
}

// NewKafkaPublisher wraps writer.
func NewKafkaPublisher(writer MessageWriter, logger *zap.Logger) *KafkaPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &KafkaPublisher{writer: writer, logger: logger}
}

// Notify implements fanout.Fanout.
func (publisher *KafkaPublisher) Notify(ctx context.Context, signal fanout.Signal) {
	payload, err := json.Marshal(signal)
	if err != nil {
		publisher.logger.Error("encode signal", zap.Error(err))
		return
	}
	key := signal.OrderID
	if key == "" && len(signal.UserIDs) > 0 {
		key = signal.UserIDs[0]
	}
	message := kafka.Message{
		Key:     []byte(key),
		Value:   payload,
		Headers: []kafka.Header{{Key: "topic", Value: []byte(signal.Topic)}},
	}
	if err := publisher.writer.WriteMessages(context.WithoutCancel(ctx), message); err != nil {
		publisher.logger.Warn("kafka publish failed", zap.String("topic", signal.Topic), zap.Error(err))
	}
}

// Close flushes pending messages.
func (publisher *KafkaPublisher) Close() error {
	return publisher.writer.Close()
}
