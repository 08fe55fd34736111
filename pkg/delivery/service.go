package delivery

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/MarkoPoloResearchLab/ticketengine/pkg/fanout"
	"github.com/MarkoPoloResearchLab/ticketengine/pkg/identity"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	minimumScore     = 1
	maximumScore     = 5
	maxCommentLength = 500
)

// Service enforces who may move a delivery order where, and records ratings.
type Service struct {
	store  Store
	policy TransitionPolicy
	fanout fanout.Fanout
	logger *zap.Logger
	nowFn  func() time.Time
	newID  func() string
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithPolicy selects the transition policy.
func WithPolicy(policy TransitionPolicy) ServiceOption {
	return func(service *Service) {
		if policy != nil {
			service.policy = policy
		}
	}
}

// WithFanout wires the observer notification backend.
func WithFanout(backend fanout.Fanout) ServiceOption {
	return func(service *Service) {
		if backend != nil {
			service.fanout = backend
		}
	}
}

// WithLogger wires a zap logger.
func WithLogger(logger *zap.Logger) ServiceOption {
	return func(service *Service) {
		if logger != nil {
			service.logger = logger
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) ServiceOption {
	return func(service *Service) {
		if now != nil {
			service.nowFn = now
		}
	}
}

// NewService wires the state machine. The default policy is StrictPolicy.
func NewService(store Store, options ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store dependency is nil", ErrInvalidServiceConfig)
	}
	service := &Service{
		store:  store,
		policy: StrictPolicy{},
		fanout: fanout.Nop{},
		logger: zap.NewNop(),
		nowFn:  time.Now,
		newID:  uuid.NewString,
	}
	for _, option := range options {
		if option != nil {
			option(service)
		}
	}
	return service, nil
}

// Policy returns the active transition policy.
func (service *Service) Policy() TransitionPolicy {
	return service.policy
}

// Create opens an order for a customer.
func (service *Service) Create(ctx context.Context, actor identity.Actor, input CreateInput) (Order, error) {
	if err := actor.Require(identity.RoleCustomer); err != nil {
		return Order{}, err
	}
	orderType, err := ParseOrderType(input.Type.String())
	if err != nil {
		return Order{}, err
	}
	storeID := strings.TrimSpace(input.StoreID)
	if orderType == OrderTypeFood && storeID == "" {
		return Order{}, fmt.Errorf("%w: food orders need a store", ErrInvalidOrder)
	}
	if orderType == OrderTypeCourier {
		storeID = ""
	}
	now := service.nowFn().UTC()
	order := Order{
		ID:         service.newID(),
		Type:       orderType,
		Status:     orderType.InitialStatus(),
		CustomerID: actor.UserID,
		StoreID:    storeID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := service.store.CreateOrder(ctx, order); err != nil {
		return Order{}, err
	}
	service.notify(ctx, order)
	return order, nil
}

// Get returns an order to one of its participants or an admin. Drivers may also see orders that are
// still waiting for a driver.
func (service *Service) Get(ctx context.Context, actor identity.Actor, orderID string) (Order, error) {
	if actor.UserID == "" {
		return Order{}, identity.ErrUnauthorized
	}
	order, err := service.store.GetOrder(ctx, strings.TrimSpace(orderID))
	if err != nil {
		return Order{}, err
	}
	if actor.Is(identity.RoleDriver) && order.DriverID == "" && order.Status == StatusSearchingDriver {
		return order, nil
	}
	if !participates(actor, order) {
		return Order{}, fmt.Errorf("%w: not a participant of order %s", identity.ErrForbidden, order.ID)
	}
	return order, nil
}

// Transition moves an order to newStatus on behalf of actor. The write only lands if the order is
// still in the status that was checked, otherwise ErrStaleOrder is returned.
func (service *Service) Transition(ctx context.Context, orderID string, actor identity.Actor, newStatus Status) (Order, error) {
	if actor.UserID == "" {
		return Order{}, identity.ErrUnauthorized
	}
	target, err := ParseStatus(newStatus.String())
	if err != nil {
		return Order{}, err
	}
	if !RoleMayWrite(actor.Role, target) {
		return Order{}, fmt.Errorf("%w: role %s cannot set %s", identity.ErrForbidden, actor.Role, target)
	}
	order, err := service.store.GetOrder(ctx, strings.TrimSpace(orderID))
	if err != nil {
		return Order{}, err
	}
	if order.Status.Terminal() {
		return Order{}, fmt.Errorf("%w: %s", ErrTerminalOrder, order.Status)
	}
	claim, err := authorize(actor, order, target)
	if err != nil {
		return Order{}, err
	}
	if !service.policy.Allows(order.Status, target) {
		return Order{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, order.Status, target)
	}
	change := StatusChange{OrderID: order.ID, From: order.Status, To: target, At: service.nowFn().UTC()}
	if claim {
		change.DriverID = actor.UserID
	}
	if err := service.store.UpdateOrderStatus(ctx, change); err != nil {
		return Order{}, err
	}
	previous := order.Status
	order.Status = target
	order.UpdatedAt = change.At
	if claim {
		order.DriverID = actor.UserID
	}
	service.logger.Debug("order transitioned",
		zap.String("order_id", order.ID),
		zap.String("from", previous.String()),
		zap.String("to", target.String()),
		zap.String("actor_role", actor.Role.String()),
		zap.String("policy", service.policy.Name()),
	)
	service.notify(ctx, order)
	return order, nil
}

// SubmitRating records the single rating of a completed order.
func (service *Service) SubmitRating(ctx context.Context, actor identity.Actor, orderID string, score int, comment string) (Rating, error) {
	if err := actor.Require(identity.RoleCustomer); err != nil {
		return Rating{}, err
	}
	if score < minimumScore || score > maximumScore {
		return Rating{}, ErrInvalidScore
	}
	comment = strings.TrimSpace(comment)
	if utf8.RuneCountInString(comment) > maxCommentLength {
		return Rating{}, fmt.Errorf("%w: comment longer than %d characters", ErrInvalidOrder, maxCommentLength)
	}
	order, err := service.store.GetOrder(ctx, strings.TrimSpace(orderID))
	if err != nil {
		return Rating{}, err
	}
	if order.CustomerID != actor.UserID {
		return Rating{}, fmt.Errorf("%w: order belongs to another customer", identity.ErrForbidden)
	}
	if order.Status != StatusCompleted {
		return Rating{}, fmt.Errorf("%w: status %s", ErrOrderNotCompleted, order.Status)
	}
	if _, err := service.store.GetRating(ctx, order.ID); err == nil {
		return Rating{}, ErrRatingExists
	} else if !errors.Is(err, ErrRatingNotFound) {
		return Rating{}, err
	}
	rating := Rating{
		ID:         service.newID(),
		OrderID:    order.ID,
		CustomerID: actor.UserID,
		Score:      score,
		Comment:    comment,
		CreatedAt:  service.nowFn().UTC(),
	}
	if err := service.store.CreateRating(ctx, rating); err != nil {
		return Rating{}, err
	}
	return rating, nil
}

// GetRating returns the rating of an order to its participants.
func (service *Service) GetRating(ctx context.Context, actor identity.Actor, orderID string) (Rating, error) {
	order, err := service.Get(ctx, actor, orderID)
	if err != nil {
		return Rating{}, err
	}
	return service.store.GetRating(ctx, order.ID)
}

func (service *Service) notify(ctx context.Context, order Order) {
	service.fanout.Notify(ctx, fanout.Signal{
		Topic:   fanout.TopicOrderUpdated,
		OrderID: order.ID,
		Status:  order.Status.String(),
		UserIDs: fanout.Audience(order.Participants()...),
		At:      service.nowFn().UTC(),
	})
}

// authorize checks that the actor owns its side of the order. It reports whether a driver is
// claiming an unassigned order.
func authorize(actor identity.Actor, order Order, target Status) (bool, error) {
	switch actor.Role {
	case identity.RoleAdmin:
		return false, nil
	case identity.RoleCustomer:
		if order.CustomerID == actor.UserID {
			return false, nil
		}
	case identity.RoleStore:
		if order.StoreID != "" && order.StoreID == actor.UserID {
			return false, nil
		}
	case identity.RoleDriver:
		if order.DriverID == actor.UserID {
			return false, nil
		}
		if order.DriverID == "" && target == StatusDriverAssigned {
			return true, nil
		}
	}
	return false, fmt.Errorf("%w: %s %s does not own order %s", identity.ErrForbidden, actor.Role, actor.UserID, order.ID)
}

func participates(actor identity.Actor, order Order) bool {
	if actor.Is(identity.RoleAdmin) {
		return true
	}
	for _, participant := range order.Participants() {
		if participant != "" && participant == actor.UserID {
			return true
		}
	}
	return false
}
