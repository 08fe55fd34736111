package delivery

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/MarkoPoloResearchLab/ticketengine/pkg/fanout"
	"github.com/MarkoPoloResearchLab/ticketengine/pkg/identity"
)

type stubStore struct {
	mutex   sync.Mutex
	orders  map[string]Order
	ratings map[string]Rating
}

func newStubStore(test *testing.T) *stubStore {
	test.Helper()
	return &stubStore{orders: map[string]Order{}, ratings: map[string]Rating{}}
}

func (store *stubStore) CreateOrder(_ context.Context, order Order) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	store.orders[order.ID] = order
	return nil
}

func (store *stubStore) GetOrder(_ context.Context, id string) (Order, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	order, ok := store.orders[id]
	if !ok {
		return Order{}, ErrOrderNotFound
	}
	return order, nil
}

func (store *stubStore) UpdateOrderStatus(_ context.Context, change StatusChange) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	order, ok := store.orders[change.OrderID]
	if !ok {
		return ErrOrderNotFound
	}
	if order.Status != change.From {
		return ErrStaleOrder
	}
	order.Status = change.To
	order.UpdatedAt = change.At
	if change.DriverID != "" {
		order.DriverID = change.DriverID
	}
	store.orders[change.OrderID] = order
	return nil
}

func (store *stubStore) CreateRating(_ context.Context, rating Rating) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	if _, ok := store.ratings[rating.OrderID]; ok {
		return ErrRatingExists
	}
	store.ratings[rating.OrderID] = rating
	return nil
}

func (store *stubStore) GetRating(_ context.Context, orderID string) (Rating, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	rating, ok := store.ratings[orderID]
	if !ok {
		return Rating{}, ErrRatingNotFound
	}
	return rating, nil
}

func (store *stubStore) put(order Order) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	store.orders[order.ID] = order
}

type recordingFanout struct {
	mutex   sync.Mutex
	signals []fanout.Signal
}

func (recorder *recordingFanout) Notify(_ context.Context, signal fanout.Signal) {
	recorder.mutex.Lock()
	defer recorder.mutex.Unlock()
	recorder.signals = append(recorder.signals, signal)
}

func (recorder *recordingFanout) last() fanout.Signal {
	recorder.mutex.Lock()
	defer recorder.mutex.Unlock()
	if len(recorder.signals) == 0 {
		return fanout.Signal{}
	}
	return recorder.signals[len(recorder.signals)-1]
}

func fixedClock() time.Time {
	return time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
}

func mustService(test *testing.T, store Store, options ...ServiceOption) *Service {
	test.Helper()
	options = append([]ServiceOption{WithClock(fixedClock)}, options...)
	service, err := NewService(store, options...)
	if err != nil {
		test.Fatalf("service init failed: %v", err)
	}
	counter := 0
	service.newID = func() string {
		counter++
		return "order-" + strconv.Itoa(counter)
	}
	return service
}

func mustActor(test *testing.T, userID string, role identity.Role) identity.Actor {
	test.Helper()
	actor, err := identity.NewActor(userID, role)
	if err != nil {
		test.Fatalf("actor: %v", err)
	}
	return actor
}

func foodOrder(status Status) Order {
	return Order{
		ID:         "food-1",
		Type:       OrderTypeFood,
		Status:     status,
		CustomerID: "customer-1",
		StoreID:    "store-1",
		DriverID:   "driver-1",
	}
}
