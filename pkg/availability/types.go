package availability

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/MarkoPoloResearchLab/ticketengine/pkg/identity"
	"github.com/MarkoPoloResearchLab/ticketengine/pkg/ledger"
)

// Status is whether a driver or store is taking work.
type Status string

const (
	StatusActive   Status = "ACTIVE"
	StatusInactive Status = "INACTIVE"
)

// ParseStatus validates an availability status.
func ParseStatus(raw string) (Status, error) {
	switch status := Status(strings.ToUpper(strings.TrimSpace(raw))); status {
	case StatusActive, StatusInactive:
		return status, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, raw)
	}
}

// String returns the stored representation.
func (status Status) String() string {
	return string(status)
}

// ProfileStatus is the approval state owned by profile management.
type ProfileStatus string

const (
	ProfilePending  ProfileStatus = "PENDING"
	ProfileApproved ProfileStatus = "APPROVED"
	ProfileRejected ProfileStatus = "REJECTED"
)

// Record is the availability of one driver or store.
type Record struct {
	UserID      string
	Role        identity.Role
	Status      Status
	Region      string
	Note        string
	LocationURL *string
	Latitude    *float64
	Longitude   *float64
	OpenDays    string
	OpenTime    string
	CloseTime   string
	UpdatedAt   time.Time
}

// NewRecord returns the defaults used when no record exists yet.
func NewRecord(userID string, role identity.Role) Record {
	return Record{UserID: userID, Role: role, Status: StatusInactive}
}

// Patch is a partial update. Nil fields are left alone.
type Patch struct {
	Status      *Status
	Region      *string
	Note        *string
	LocationURL *string
	Latitude    *float64
	Longitude   *float64
	OpenDays    *string
	OpenTime    *string
	CloseTime   *string
}

// Store persists availability records and exposes profile approval and the ticket ledger.
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, txStore Store) error) error
	// GetOrCreateAvailability locks the row for the rest of the unit where the database supports it.
	GetOrCreateAvailability(ctx context.Context, userID string, role identity.Role) (Record, error)
	SaveAvailability(ctx context.Context, record Record) error
	GetProfileStatus(ctx context.Context, userID string, role identity.Role) (ProfileStatus, error)
	LedgerStore() ledger.Store
}
