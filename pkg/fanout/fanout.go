// Package fanout defines the "something changed" signal the engine emits to observers.
package fanout

import (
	"context"
	"time"
)

// Signal topics.
const (
	TopicOrderUpdated        = "order.updated"
	TopicTicketOrderUpdated  = "ticket.order.updated"
	TopicAvailabilityUpdated = "availability.updated"
)

// Signal identifies what changed and who should refresh. It carries no state beyond that.
type Signal struct {
	Topic   string    `json:"topic"`
	OrderID string    `json:"order_id,omitempty"`
	Status  string    `json:"status,omitempty"`
	UserIDs []string  `json:"user_ids,omitempty"`
	At      time.Time `json:"at"`
}

// Fanout delivers signals at most best-effort. Implementations must not block the caller for long
// and never report delivery failures back.
type Fanout interface {
	Notify(ctx context.Context, signal Signal)
}

// Nop discards every signal.
type Nop struct{}

// Notify implements Fanout.
func (Nop) Notify(context.Context, Signal) {}

// Multi forwards a signal to every backend in order.
type Multi []Fanout

// Notify implements Fanout.
func (multi Multi) Notify(ctx context.Context, signal Signal) {
	for _, backend := range multi {
		if backend != nil {
			backend.Notify(ctx, signal)
		}
	}
}

// Audience drops empty and repeated user ids.
func Audience(userIDs ...string) []string {
	seen := make(map[string]struct{}, len(userIDs))
	audience := make([]string, 0, len(userIDs))
	for _, userID := range userIDs {
		if userID == "" {
			continue
		}
		if _, ok := seen[userID]; ok {
			continue
		}
		seen[userID] = struct{}{}
		audience = append(audience, userID)
	}
	return audience
}
