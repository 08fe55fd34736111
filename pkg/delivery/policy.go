package delivery

import (
	"fmt"
	"strings"

	"github.com/MarkoPoloResearchLab/ticketengine/pkg/identity"
)

const (
	PolicyStrict     = "strict"
	PolicyPermissive = "permissive"
)

// TransitionPolicy decides whether a non-terminal order may move between two statuses.
// Terminal orders are rejected before any policy is consulted.
type TransitionPolicy interface {
	Name() string
	Allows(from Status, to Status) bool
}

// StrictPolicy only allows the next step of the happy path, plus cancellation.
type StrictPolicy struct{}

var strictNext = map[Status][]Status{
	StatusWaitingStoreConfirm: {StatusConfirmedCooking, StatusRejected},
	StatusConfirmedCooking:    {StatusSearchingDriver},
	StatusSearchingDriver:     {StatusDriverAssigned},
	StatusDriverAssigned:      {StatusOnDelivery},
	StatusOnDelivery:          {StatusCompleted},
}

// Name implements TransitionPolicy.
func (StrictPolicy) Name() string { return PolicyStrict }

// Allows implements TransitionPolicy.
func (StrictPolicy) Allows(from Status, to Status) bool {
	if from.Terminal() {
		return false
	}
	if to == StatusCancelled {
		return true
	}
	for _, next := range strictNext[from] {
		if next == to {
			return true
		}
	}
	return false
}

// PermissivePolicy accepts any status from a non-terminal order, including skips and backward moves.
type PermissivePolicy struct{}

// Name implements TransitionPolicy.
func (PermissivePolicy) Name() string { return PolicyPermissive }

// Allows implements TransitionPolicy.
func (PermissivePolicy) Allows(from Status, _ Status) bool {
	return !from.Terminal()
}

// ParsePolicy resolves a configured policy name. Empty selects strict.
func ParsePolicy(raw string) (TransitionPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", PolicyStrict:
		return StrictPolicy{}, nil
	case PolicyPermissive:
		return PermissivePolicy{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidPolicy, raw)
	}
}

var roleTargets = map[identity.Role][]Status{
	identity.RoleStore:    {StatusConfirmedCooking, StatusRejected, StatusSearchingDriver, StatusCancelled},
	identity.RoleDriver:   {StatusDriverAssigned, StatusOnDelivery, StatusCompleted, StatusCancelled},
	identity.RoleCustomer: {StatusCancelled},
}

// RoleMayWrite reports whether a role may ever write the status.
func RoleMayWrite(role identity.Role, to Status) bool {
	if role == identity.RoleAdmin {
		return true
	}
	for _, allowed := range roleTargets[role] {
		if allowed == to {
			return true
		}
	}
	return false
}
