package delivery

import "errors"

// Errors returned by the delivery order state machine.
var (
	ErrInvalidStatus        = errors.New("invalid order status")
	ErrInvalidOrderType     = errors.New("invalid order type")
	ErrInvalidOrder         = errors.New("invalid order")
	ErrInvalidPolicy        = errors.New("invalid transition policy")
	ErrInvalidScore         = errors.New("rating score must be between 1 and 5")
	ErrOrderNotFound        = errors.New("order not found")
	ErrTerminalOrder        = errors.New("order is in a terminal state")
	ErrInvalidTransition    = errors.New("transition not allowed from current state")
	ErrStaleOrder           = errors.New("order changed concurrently")
	ErrOrderNotCompleted    = errors.New("order is not completed")
	ErrRatingExists         = errors.New("order already rated")
	ErrRatingNotFound       = errors.New("rating not found")
	ErrInvalidServiceConfig = errors.New("invalid delivery service config")
)
