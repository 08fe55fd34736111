package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MarkoPoloResearchLab/ticketengine/pkg/fanout"
	"github.com/MarkoPoloResearchLab/ticketengine/pkg/identity"
	"github.com/MarkoPoloResearchLab/ticketengine/pkg/ledger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// errAlreadyApplied aborts a unit of work whose effect another delivery already committed.
var errAlreadyApplied = errors.New("payment already applied")

// Service creates ticket purchase orders and reconciles gateway notifications against them.
type Service struct {
	store    Store
	ledger   *ledger.Service
	gateway  Gateway
	verifier SignatureVerifier
	policy   PurchasePolicy
	fanout   fanout.Fanout
	logger   *zap.Logger
	nowFn    func() time.Time
	newID    func() string
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithPurchasePolicy overrides the purchase terms. Non-positive fields keep their defaults.
func WithPurchasePolicy(policy PurchasePolicy) ServiceOption {
	return func(service *Service) {
		if policy.MinimumQuantity > 0 {
			service.policy.MinimumQuantity = policy.MinimumQuantity
		}
		if policy.PricePerTicket > 0 {
			service.policy.PricePerTicket = policy.PricePerTicket
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

// WithIDGenerator overrides the uuid generator used for order ids.
func WithIDGenerator(newID func() string) ServiceOption {
	return func(service *Service) {
		if newID != nil {
			service.newID = newID
		}
	}
}

// NewService wires the reconciler.
func NewService(store Store, ledgerService *ledger.Service, gateway Gateway, verifier SignatureVerifier, options ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store dependency is nil", ErrInvalidServiceConfig)
	}
	if ledgerService == nil {
		return nil, fmt.Errorf("%w: ledger dependency is nil", ErrInvalidServiceConfig)
	}
	if gateway == nil {
		return nil, fmt.Errorf("%w: gateway dependency is nil", ErrInvalidServiceConfig)
	}
	if verifier.serverKey == "" {
		return nil, fmt.Errorf("%w: signature verifier has no key", ErrInvalidServiceConfig)
	}
	service := &Service{
		store:    store,
		ledger:   ledgerService,
		gateway:  gateway,
		verifier: verifier,
		policy:   DefaultPurchasePolicy(),
		fanout:   fanout.Nop{},
		logger:   zap.NewNop(),
		nowFn:    time.Now,
		newID:    uuid.NewString,
	}
	for _, option := range options {
		if option != nil {
			option(service)
		}
	}
	return service, nil
}

// Policy returns the active purchase terms.
func (service *Service) Policy() PurchasePolicy {
	return service.policy
}

// CreatePurchase opens a PENDING ticket order for a driver or store. The gateway is asked for
// payment instructions first, so a gateway failure persists nothing.
func (service *Service) CreatePurchase(ctx context.Context, actor identity.Actor, quantity int64, method PaymentMethod) (TicketOrder, error) {
	if err := actor.Require(identity.RoleDriver, identity.RoleStore); err != nil {
		return TicketOrder{}, err
	}
	userID, err := ledger.NewUserID(actor.UserID)
	if err != nil {
		return TicketOrder{}, err
	}
	totalAmount, err := service.policy.Total(quantity)
	if err != nil {
		return TicketOrder{}, err
	}
	method, err = ParsePaymentMethod(method.String())
	if err != nil {
		return TicketOrder{}, err
	}
	now := service.nowFn().UTC()
	order := TicketOrder{
		ID:              service.newID(),
		UserID:          userID,
		Quantity:        quantity,
		PricePerTicket:  service.policy.PricePerTicket,
		TotalAmount:     totalAmount,
		Status:          OrderStatusPending,
		PaymentMethod:   method,
		MidtransOrderID: externalOrderPrefix + service.newID(),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	payload, err := service.gateway.Charge(ctx, ChargeRequest{
		OrderID:     order.MidtransOrderID,
		GrossAmount: order.TotalAmount,
		Method:      method,
		Quantity:    quantity,
		UnitPrice:   order.PricePerTicket,
		CustomerID:  userID.String(),
	})
	if err != nil {
		service.logger.Warn("payment gateway charge failed", zap.String("external_order_id", order.MidtransOrderID), zap.Error(err))
		return TicketOrder{}, fmt.Errorf("%w: %w", ErrGatewayFailure, err)
	}
	order.PaymentPayload = payload
	if err := service.store.CreateTicketOrder(ctx, order); err != nil {
		return TicketOrder{}, err
	}
	service.logger.Info("ticket order created",
		zap.String("ticket_order_id", order.ID),
		zap.String("user_id", userID.String()),
		zap.Int64("quantity", quantity),
		zap.Int64("total_amount", order.TotalAmount),
	)
	return order, nil
}

// GetTicketOrder returns an order visible to its buyer or an admin.
func (service *Service) GetTicketOrder(ctx context.Context, actor identity.Actor, id string) (TicketOrder, error) {
	if actor.UserID == "" {
		return TicketOrder{}, identity.ErrUnauthorized
	}
	order, err := service.store.GetTicketOrder(ctx, strings.TrimSpace(id))
	if err != nil {
		return TicketOrder{}, err
	}
	if order.UserID.String() != actor.UserID && !actor.Is(identity.RoleAdmin) {
		return TicketOrder{}, fmt.Errorf("%w: ticket order belongs to another user", identity.ErrForbidden)
	}
	return order, nil
}

// ListTicketOrders lists the actor's own orders, newest first.
func (service *Service) ListTicketOrders(ctx context.Context, actor identity.Actor, limit int) ([]TicketOrder, error) {
	userID, err := ledger.NewUserID(actor.UserID)
	if err != nil {
		return nil, identity.ErrUnauthorized
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	return service.store.ListTicketOrders(ctx, userID, limit)
}

// HandleNotification applies a gateway notification at most once. Only ErrInvalidSignature and
// storage failures are returned as errors; every other case is an acknowledged Outcome.
func (service *Service) HandleNotification(ctx context.Context, notification Notification) (Outcome, error) {
	if err := service.verifier.Verify(notification); err != nil {
		service.logger.Warn("payment notification rejected", zap.String("external_order_id", notification.OrderID))
		return "", err
	}
	classification := Classify(notification)
	var (
		outcome Outcome
		order   TicketOrder
	)
	err := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		found, err := transactionStore.FindTicketOrderByExternalID(ctx, notification.OrderID)
		if errors.Is(err, ErrUnknownTicketOrder) {
			outcome = OutcomeUnknownOrder
			return nil
		}
		if err != nil {
			return err
		}
		order = found
		if order.Status.Terminal() {
			outcome = OutcomeDuplicate
			return nil
		}
		switch classification {
		case ClassificationSuccess:
			if !notification.Amount().Equal(decimal.NewFromInt(order.TotalAmount)) {
				outcome = OutcomeAmountMismatch
				return transactionStore.RecordPaymentStatus(ctx, order.ID, notification.TransactionStatus)
			}
			paidAt := service.nowFn().UTC()
			if err := transactionStore.ResolveTicketOrder(ctx, order.ID, Resolution{
				Status:    OrderStatusPaid,
				RawStatus: notification.TransactionStatus,
				PaidAt:    &paidAt,
			}); err != nil {
				return alreadyApplied(err)
			}
			quantity, err := ledger.NewQuantity(order.Quantity)
			if err != nil {
				return err
			}
			description := fmt.Sprintf(purchaseDescriptionFormat, order.Quantity, order.MidtransOrderID)
			if _, err := service.ledger.WithStore(transactionStore.LedgerStore()).Credit(ctx, order.UserID, quantity, ledger.TransactionPurchase, description, order.ID); err != nil {
				return alreadyApplied(err)
			}
			order.Status = OrderStatusPaid
			outcome = OutcomeCredited
			return nil
		case ClassificationCancellation:
			if err := transactionStore.ResolveTicketOrder(ctx, order.ID, Resolution{
				Status:    OrderStatusCancelled,
				RawStatus: notification.TransactionStatus,
			}); err != nil {
				return alreadyApplied(err)
			}
			order.Status = OrderStatusCancelled
			outcome = OutcomeCancelled
			return nil
		default:
			outcome = OutcomeRecorded
			return transactionStore.RecordPaymentStatus(ctx, order.ID, notification.TransactionStatus)
		}
	})
	if errors.Is(err, errAlreadyApplied) {
		outcome = OutcomeDuplicate
		err = nil
	}
	if err != nil {
		service.logger.Error("payment notification failed",
			zap.String("external_order_id", notification.OrderID),
			zap.String("transaction_status", notification.TransactionStatus),
			zap.Error(err),
		)
		return "", err
	}
	service.logger.Info("payment notification handled",
		zap.String("external_order_id", notification.OrderID),
		zap.String("transaction_status", notification.TransactionStatus),
		zap.String("outcome", string(outcome)),
	)
	if outcome == OutcomeCredited || outcome == OutcomeCancelled {
		service.fanout.Notify(ctx, fanout.Signal{
			Topic:   fanout.TopicTicketOrderUpdated,
			OrderID: order.ID,
			Status:  order.Status.String(),
			UserIDs: fanout.Audience(order.UserID.String()),
			At:      service.nowFn().UTC(),
		})
	}
	return outcome, nil
}

func alreadyApplied(err error) error {
	if errors.Is(err, ErrTicketOrderClosed) || errors.Is(err, ledger.ErrDuplicateReference) {
		return fmt.Errorf("%w: %v", errAlreadyApplied, err)
	}
	return err
}
