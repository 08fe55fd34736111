package identity

import (
	"errors"
	"fmt"
	"strings"
)

// Errors shared by every component that checks who is calling.
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrInvalidRole  = errors.New("invalid role")
)

// Role is the marketplace role attached to a session.
type Role string

const (
	RoleCustomer Role = "CUSTOMER"
	RoleDriver   Role = "DRIVER"
	RoleStore    Role = "STORE"
	RoleAdmin    Role = "ADMIN"
)

// ParseRole normalizes a raw role claim.
func ParseRole(raw string) (Role, error) {
	switch role := Role(strings.ToUpper(strings.TrimSpace(raw))); role {
	case RoleCustomer, RoleDriver, RoleStore, RoleAdmin:
		return role, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidRole, raw)
	}
}

// String returns the role name.
func (role Role) String() string {
	return string(role)
}

// Actor is the caller of an operation, supplied by the session collaborator and trusted as-is.
type Actor struct {
	UserID string
	Role   Role
}

// NewActor validates the pair extracted from a session.
func NewActor(userID string, role Role) (Actor, error) {
	trimmed := strings.TrimSpace(userID)
	if trimmed == "" {
		return Actor{}, fmt.Errorf("%w: empty user id", ErrUnauthorized)
	}
	if _, err := ParseRole(role.String()); err != nil {
		return Actor{}, err
	}
	return Actor{UserID: trimmed, Role: role}, nil
}

// Is reports whether the actor holds one of the given roles.
func (actor Actor) Is(roles ...Role) bool {
	for _, role := range roles {
		if actor.Role == role {
			return true
		}
	}
	return false
}

// Require returns ErrForbidden unless the actor holds one of the given roles.
func (actor Actor) Require(roles ...Role) error {
	if actor.UserID == "" {
		return ErrUnauthorized
	}
	if !actor.Is(roles...) {
		return fmt.Errorf("%w: role %s", ErrForbidden, actor.Role)
	}
	return nil
}
