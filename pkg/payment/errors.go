package payment

import "errors"

// Errors returned by the payment reconciler and ticket purchase flow.
var (
	ErrInvalidNotification  = errors.New("invalid payment notification")
	ErrInvalidSignature     = errors.New("invalid payment signature")
	ErrInvalidQuantity      = errors.New("invalid ticket purchase quantity")
	ErrInvalidPaymentMethod = errors.New("invalid payment method")
	ErrInvalidOrderStatus   = errors.New("invalid ticket order status")
	ErrUnknownTicketOrder   = errors.New("unknown ticket order")
	ErrTicketOrderClosed    = errors.New("ticket order already closed")
	ErrGatewayFailure       = errors.New("payment gateway failure")
	ErrInvalidServiceConfig = errors.New("invalid payment service config")
)
