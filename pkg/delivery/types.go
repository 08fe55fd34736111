package delivery

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Status is the delivery lifecycle of a customer order.
type Status string

const (
	StatusWaitingStoreConfirm Status = "WAITING_STORE_CONFIRM"
	StatusConfirmedCooking    Status = "CONFIRMED_COOKING"
	StatusSearchingDriver     Status = "SEARCHING_DRIVER"
	StatusDriverAssigned      Status = "DRIVER_ASSIGNED"
	StatusOnDelivery          Status = "ON_DELIVERY"
	StatusCompleted           Status = "COMPLETED"
	StatusRejected            Status = "REJECTED"
	StatusCancelled           Status = "CANCELLED"
)

// ParseStatus validates a requested or stored status.
func ParseStatus(raw string) (Status, error) {
	switch status := Status(strings.ToUpper(strings.TrimSpace(raw))); status {
	case StatusWaitingStoreConfirm, StatusConfirmedCooking, StatusSearchingDriver, StatusDriverAssigned,
		StatusOnDelivery, StatusCompleted, StatusRejected, StatusCancelled:
		return status, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, raw)
	}
}

// Terminal reports whether no transition may leave the status.
func (status Status) Terminal() bool {
	return status == StatusCompleted || status == StatusRejected || status == StatusCancelled
}

// String returns the stored representation.
func (status Status) String() string {
	return string(status)
}

// OrderType distinguishes store orders from plain courier jobs.
type OrderType string

const (
	OrderTypeFood    OrderType = "FOOD"
	OrderTypeCourier OrderType = "COURIER"
)

// ParseOrderType validates an order type.
func ParseOrderType(raw string) (OrderType, error) {
	switch orderType := OrderType(strings.ToUpper(strings.TrimSpace(raw))); orderType {
	case OrderTypeFood, OrderTypeCourier:
		return orderType, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidOrderType, raw)
	}
}

// InitialStatus is where a new order of this type starts.
func (orderType OrderType) InitialStatus() Status {
	if orderType == OrderTypeCourier {
		return StatusSearchingDriver
	}
	return StatusWaitingStoreConfirm
}

// String returns the stored representation.
func (orderType OrderType) String() string {
	return string(orderType)
}

// Order is the part of a customer order the state machine owns.
type Order struct {
	ID         string
	Type       OrderType
	Status     Status
	CustomerID string
	StoreID    string
	DriverID   string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Participants returns the users who observe the order.
func (order Order) Participants() []string {
	return []string{order.CustomerID, order.StoreID, order.DriverID}
}

// CreateInput describes a new order.
type CreateInput struct {
	Type    OrderType
	StoreID string
}

// Rating is the single review a customer leaves on a completed order.
type Rating struct {
	ID         string
	OrderID    string
	CustomerID string
	Score      int
	Comment    string
	CreatedAt  time.Time
}

// StatusChange is a compare-and-set on an order's status.
type StatusChange struct {
	OrderID  string
	From     Status
	To       Status
	DriverID string
	At       time.Time
}

// Store persists orders and ratings.
type Store interface {
	CreateOrder(ctx context.Context, order Order) error
	GetOrder(ctx context.Context, id string) (Order, error)
	// UpdateOrderStatus writes change.To only while the order is still in change.From and returns
	// ErrStaleOrder otherwise. A non-empty DriverID is written with the status.
	UpdateOrderStatus(ctx context.Context, change StatusChange) error
	// CreateRating returns ErrRatingExists when the order already has a rating.
	CreateRating(ctx context.Context, rating Rating) error
	GetRating(ctx context.Context, orderID string) (Rating, error)
}
