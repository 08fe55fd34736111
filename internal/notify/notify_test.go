package notify

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/MarkoPoloResearchLab/ticketengine/pkg/fanout"
	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func testSignal() fanout.Signal {
	return fanout.Signal{
		Topic:   fanout.TopicOrderUpdated,
		OrderID: "order-1",
		Status:  "DRIVER_ASSIGNED",
		UserIDs: []string{"customer-1", "driver-1"},
		At:      time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
	}
}

func receive(test *testing.T, channel <-chan fanout.Signal) fanout.Signal {
	test.Helper()
	select {
	case signal := <-channel:
		return signal
	case <-time.After(time.Second):
		test.Fatal("timed out waiting for signal")
		return fanout.Signal{}
	}
}

func TestHubDeliversToAudienceAndDashboards(test *testing.T) {
	test.Parallel()
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	customer := hub.Subscribe(ctx, "customer-1")
	stranger := hub.Subscribe(ctx, "customer-2")
	dashboard := hub.SubscribeAll(ctx)

	hub.Notify(ctx, testSignal())

	assert.Equal(test, "order-1", receive(test, customer).OrderID)
	assert.Equal(test, "order-1", receive(test, dashboard).OrderID)
	select {
	case signal := <-stranger:
		test.Fatalf("unexpected signal for stranger: %+v", signal)
	default:
	}
}

func TestHubDropsWhenSubscriberIsFull(test *testing.T) {
	test.Parallel()
	core, logs := observer.New(zapcore.DebugLevel)
	hub := NewHub(WithHubBuffer(1), WithHubLogger(zap.New(core)))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	channel := hub.Subscribe(ctx, "driver-1")

	hub.Notify(ctx, testSignal())
	hub.Notify(ctx, testSignal())

	receive(test, channel)
	assert.Equal(test, 1, logs.FilterMessage("subscriber buffer full").Len())
}

func TestHubClosesChannelOnCancel(test *testing.T) {
	test.Parallel()
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	channel := hub.Subscribe(ctx, "driver-1")
	require.Equal(test, 1, hub.SubscriberCount("driver-1"))

	cancel()
	select {
	case _, ok := <-channel:
		assert.False(test, ok)
	case <-time.After(time.Second):
		test.Fatal("channel was not closed")
	}
	assert.Equal(test, 0, hub.SubscriberCount("driver-1"))
}

func TestRedisPublisherPublishesJSON(test *testing.T) {
	test.Parallel()
	server, err := miniredis.Run()
	require.NoError(test, err)
	test.Cleanup(server.Close)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	test.Cleanup(func() { _ = client.Close() })
	ctx := context.Background()

	subscription := client.Subscribe(ctx, "signals")
	test.Cleanup(func() { _ = subscription.Close() })
	_, err = subscription.Receive(ctx)
	require.NoError(test, err)

	NewRedisPublisher(client, "signals", nil).Notify(ctx, testSignal())

	receiveCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	message, err := subscription.ReceiveMessage(receiveCtx)
	require.NoError(test, err)
	var decoded fanout.Signal
	require.NoError(test, json.Unmarshal([]byte(message.Payload), &decoded))
	assert.Equal(test, testSignal().OrderID, decoded.OrderID)
	assert.Equal(test, []string{"customer-1", "driver-1"}, decoded.UserIDs)
}

func TestRedisPublisherLogsFailures(test *testing.T) {
	test.Parallel()
	server, err := miniredis.Run()
	require.NoError(test, err)
	client := redis.NewClient(&redis.Options{Addr: server.Addr(), MaxRetries: -1})
	test.Cleanup(func() { _ = client.Close() })
	server.Close()
	core, logs := observer.New(zapcore.WarnLevel)

	NewRedisPublisher(client, "", zap.New(core)).Notify(context.Background(), testSignal())

	entries := logs.FilterMessage("redis publish failed").All()
	require.Len(test, entries, 1)
	assert.Equal(test, DefaultRedisChannel, entries[0].ContextMap()["channel"])
}

type recordingWriter struct {
	mutex    sync.Mutex
	messages []kafka.Message
	err      error
}

func (writer *recordingWriter) WriteMessages(_ context.Context, messages ...kafka.Message) error {
	writer.mutex.Lock()
	defer writer.mutex.Unlock()
	if writer.err != nil {
		return writer.err
	}
	writer.messages = append(writer.messages, messages...)
	return nil
}

func (writer *recordingWriter) Close() error { return nil }

func TestKafkaPublisherKeysByOrder(test *testing.T) {
	test.Parallel()
	writer := &recordingWriter{}
	publisher := NewKafkaPublisher(writer, nil)

	publisher.Notify(context.Background(), testSignal())
	publisher.Notify(context.Background(), fanout.Signal{Topic: fanout.TopicAvailabilityUpdated, UserIDs: []string{"store-1"}})

	require.Len(test, writer.messages, 2)
	assert.Equal(test, "order-1", string(writer.messages[0].Key))
	assert.Equal(test, "store-1", string(writer.messages[1].Key))
	assert.Equal(test, fanout.TopicOrderUpdated, string(writer.messages[0].Headers[0].Value))
	var decoded fanout.Signal
	require.NoError(test, json.Unmarshal(writer.messages[0].Value, &decoded))
	assert.Equal(test, "DRIVER_ASSIGNED", decoded.Status)
	require.NoError(test, publisher.Close())
}

func TestKafkaPublisherSwallowsErrors(test *testing.T) {
	test.Parallel()
	core, logs := observer.New(zapcore.WarnLevel)
	publisher := NewKafkaPublisher(&recordingWriter{err: errors.New("broker down")}, zap.New(core))

	publisher.Notify(context.Background(), testSignal())

	assert.Equal(test, 1, logs.FilterMessage("kafka publish failed").Len())
}

func TestNewKafkaWriterDefaults(test *testing.T) {
	test.Parallel()
	writer := NewKafkaWriter([]string{"localhost:9092"}, "")
	assert.Equal(test, DefaultKafkaTopic, writer.Topic)
	assert.True(test, writer.Async)
	assert.Equal(test, "localhost:9092", writer.Addr.String())
}
