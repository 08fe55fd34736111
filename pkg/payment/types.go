package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/MarkoPoloResearchLab/ticketengine/pkg/ledger"
)

// OrderStatus is the lifecycle of a ticket purchase order.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusPaid      OrderStatus = "PAID"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

// ParseOrderStatus validates a stored status.
func ParseOrderStatus(raw string) (OrderStatus, error) {
	switch status := OrderStatus(strings.ToUpper(strings.TrimSpace(raw))); status {
	case OrderStatusPending, OrderStatusPaid, OrderStatusCancelled:
		return status, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidOrderStatus, raw)
	}
}

// Terminal reports whether the status accepts no further change.
func (status OrderStatus) Terminal() bool {
	return status == OrderStatusPaid || status == OrderStatusCancelled
}

// String returns the stored representation.
func (status OrderStatus) String() string {
	return string(status)
}

// PaymentMethod selects how the buyer pays.
type PaymentMethod string

const (
	PaymentMethodManual  PaymentMethod = "manual"
	PaymentMethodQRIS    PaymentMethod = "qris"
	PaymentMethodGoPay   PaymentMethod = "gopay"
	PaymentMethodBCA     PaymentMethod = "bca"
	PaymentMethodBNI     PaymentMethod = "bni"
	PaymentMethodBRI     PaymentMethod = "bri"
	PaymentMethodPermata PaymentMethod = "permata"
)

// ParsePaymentMethod validates a requested method. Empty input selects qris.
func ParsePaymentMethod(raw string) (PaymentMethod, error) {
	trimmed := strings.ToLower(strings.TrimSpace(raw))
	if trimmed == "" {
		return PaymentMethodQRIS, nil
	}
	switch method := PaymentMethod(trimmed); method {
	case PaymentMethodManual, PaymentMethodQRIS, PaymentMethodGoPay, PaymentMethodBCA, PaymentMethodBNI, PaymentMethodBRI, PaymentMethodPermata:
		return method, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidPaymentMethod, raw)
	}
}

// BankTransfer reports whether the method is a virtual account transfer.
func (method PaymentMethod) BankTransfer() bool {
	switch method {
	case PaymentMethodBCA, PaymentMethodBNI, PaymentMethodBRI, PaymentMethodPermata:
		return true
	default:
		return false
	}
}

// String returns the wire name.
func (method PaymentMethod) String() string {
	return string(method)
}

// TicketOrder is one attempt to buy tickets. It leaves PENDING at most once.
type TicketOrder struct {
	ID               string
	UserID           ledger.UserID
	Quantity         int64
	PricePerTicket   int64
	TotalAmount      int64
	Status           OrderStatus
	PaymentMethod    PaymentMethod
	PaymentPayload   json.RawMessage
	MidtransOrderID  string
	PaymentStatusRaw string
	PaidAt           *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Outcome names what a notification did. Every outcome is acknowledged to the gateway.
type Outcome string

const (
	OutcomeCredited       Outcome = "credited"
	OutcomeCancelled      Outcome = "cancelled"
	OutcomeRecorded       Outcome = "recorded"
	OutcomeDuplicate      Outcome = "duplicate"
	OutcomeUnknownOrder   Outcome = "unknown_order"
	OutcomeAmountMismatch Outcome = "amount_mismatch"
)

// PurchasePolicy holds the configurable purchase terms.
type PurchasePolicy struct {
	MinimumQuantity int64
	PricePerTicket  int64
}

// Total prices quantity tickets. The quantity must reach the minimum and the total must fit in an
// int64.
func (policy PurchasePolicy) Total(quantity int64) (int64, error) {
	if quantity <= 0 || quantity < policy.MinimumQuantity {
		return 0, fmt.Errorf("%w: minimum purchase is %d tickets", ErrInvalidQuantity, max(policy.MinimumQuantity, 1))
	}
	if policy.PricePerTicket > 0 && quantity > math.MaxInt64/policy.PricePerTicket {
		return 0, fmt.Errorf("%w: %d tickets exceed the largest payable total", ErrInvalidQuantity, quantity)
	}
	return quantity * policy.PricePerTicket, nil
}

// DefaultPurchasePolicy returns the standard terms.
func DefaultPurchasePolicy() PurchasePolicy {
	return PurchasePolicy{MinimumQuantity: defaultMinimumQuantity, PricePerTicket: defaultPricePerTicket}
}

// Resolution is the terminal write applied to a pending order.
type Resolution struct {
	Status    OrderStatus
	RawStatus string
	PaidAt    *time.Time
}

// Store persists ticket orders. LedgerStore must share the unit of work of the Store it came from.
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, txStore Store) error) error
	CreateTicketOrder(ctx context.Context, order TicketOrder) error
	GetTicketOrder(ctx context.Context, id string) (TicketOrder, error)
	// FindTicketOrderByExternalID locks the row for the rest of the unit where the database supports it.
	FindTicketOrderByExternalID(ctx context.Context, externalID string) (TicketOrder, error)
	ListTicketOrders(ctx context.Context, userID ledger.UserID, limit int) ([]TicketOrder, error)
	// ResolveTicketOrder moves a PENDING order to a terminal status and returns ErrTicketOrderClosed
	// when the order already left PENDING.
	ResolveTicketOrder(ctx context.Context, id string, resolution Resolution) error
	RecordPaymentStatus(ctx context.Context, id string, rawStatus string) error
	LedgerStore() ledger.Store
}
