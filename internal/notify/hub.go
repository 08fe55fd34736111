// Package notify carries fanout signals to observers: connected SSE clients, Redis subscribers and
// Kafka consumers.
package notify

import (
	"context"
	"sync"

	"github.com/MarkoPoloResearchLab/ticketengine/pkg/fanout"
	"go.uber.org/zap"
)

const (
	defaultSubscriberBuffer = 16
	everyoneKey             = "*"
)

// Hub keeps in-process subscriber channels keyed by user id. Sends never block: a subscriber whose
// buffer is full misses the signal and refreshes on the next one.
type Hub struct {
	mutex       sync.RWMutex
	subscribers map[string][]chan fanout.Signal
	buffer      int
	logger      *zap.Logger
}

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithHubBuffer sets the per-subscriber channel capacity.
func WithHubBuffer(size int) HubOption {
	return func(hub *Hub) {
		if size > 0 {
			hub.buffer = size
		}
	}
}

// WithHubLogger sets the logger for dropped signals.
func WithHubLogger(logger *zap.Logger) HubOption {
	return func(hub *Hub) {
		if logger != nil {
			hub.logger = logger
		}
	}
}

// NewHub constructs an empty hub.
func NewHub(options ...HubOption) *Hub {
	hub := &Hub{
		subscribers: make(map[string][]chan fanout.Signal),
		buffer:      defaultSubscriberBuffer,
		logger:      zap.NewNop(),
	}
	for _, option := range options {
		if option != nil {
			option(hub)
		}
	}
	return hub
}

// Subscribe registers a channel receiving signals addressed to userID. The channel is closed once
// ctx is done.
func (hub *Hub) Subscribe(ctx context.Context, userID string) <-chan fanout.Signal {
	return hub.subscribe(ctx, userID)
}

// SubscribeAll registers a channel receiving every signal.
func (hub *Hub) SubscribeAll(ctx context.Context) <-chan fanout.Signal {
	return hub.subscribe(ctx, everyoneKey)
}

func (hub *Hub) subscribe(ctx context.Context, key string) <-chan fanout.Signal {
	channel := make(chan fanout.Signal, hub.buffer)
	hub.mutex.Lock()
	hub.subscribers[key] = append(hub.subscribers[key], channel)
	hub.mutex.Unlock()

	go func() {
		<-ctx.Done()
		hub.remove(key, channel)
	}()
	return channel
}

// Notify implements fanout.Fanout.
func (hub *Hub) Notify(_ context.Context, signal fanout.Signal) {
	hub.mutex.RLock()
	defer hub.mutex.RUnlock()
	delivered := make(map[chan fanout.Signal]struct{})
	keys := append(append([]string{}, signal.UserIDs...), everyoneKey)
	for _, key := range keys {
		for _, channel := range hub.subscribers[key] {
			if _, ok := delivered[channel]; ok {
				continue
			}
			delivered[channel] = struct{}{}
			select {
			case channel <- signal:
			default:
				hub.logger.Debug("subscriber buffer full", zap.String("topic", signal.Topic), zap.String("subscriber", key))
			}
		}
	}
}

// SubscriberCount reports how many channels listen for userID.
func (hub *Hub) SubscriberCount(userID string) int {
	hub.mutex.RLock()
	defer hub.mutex.RUnlock()
	return len(hub.subscribers[userID])
}

func (hub *Hub) remove(key string, channel chan fanout.Signal) {
	hub.mutex.Lock()
	defer hub.mutex.Unlock()
	channels := hub.subscribers[key]
	for index, candidate := range channels {
		if candidate == channel {
			hub.subscribers[key] = append(channels[:index], channels[index+1:]...)
			close(channel)
			break
		}
	}
	if len(hub.subscribers[key]) == 0 {
		delete(hub.subscribers, key)
	}
}
