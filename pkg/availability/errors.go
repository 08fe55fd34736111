package availability

import "errors"

// Errors returned by the availability gate.
var (
	ErrInvalidStatus        = errors.New("invalid availability status")
	ErrInvalidPatch         = errors.New("invalid availability patch")
	ErrProfileNotFound      = errors.New("profile not found")
	ErrProfileNotApproved   = errors.New("profile not approved")
	ErrInsufficientTickets  = errors.New("insufficient tickets")
	ErrInvalidServiceConfig = errors.New("invalid availability service config")
)
