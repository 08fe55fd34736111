package availability

import (
	"context"
	"fmt"
	"time"

	"github.com/MarkoPoloResearchLab/ticketengine/pkg/fanout"
	"github.com/MarkoPoloResearchLab/ticketengine/pkg/identity"
	"github.com/MarkoPoloResearchLab/ticketengine/pkg/ledger"
)

// Service gates availability changes on profile approval and, for stores, on the ticket balance.
type Service struct {
	store  Store
	ledger *ledger.Service
	fanout fanout.Fanout
	nowFn  func() time.Time
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithFanout wires the observer notification backend.
func WithFanout(backend fanout.Fanout) ServiceOption {
	return func(service *Service) {
		if backend != nil {
			service.fanout = backend
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

// NewService wires the gate.
func NewService(store Store, ledgerService *ledger.Service, options ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store dependency is nil", ErrInvalidServiceConfig)
	}
	if ledgerService == nil {
		return nil, fmt.Errorf("%w: ledger dependency is nil", ErrInvalidServiceConfig)
	}
	service := &Service{store: store, ledger: ledgerService, fanout: fanout.Nop{}, nowFn: time.Now}
	for _, option := range options {
		if option != nil {
			option(service)
		}
	}
	return service, nil
}

// GetAvailability returns the actor's record, creating it with defaults on first access.
func (service *Service) GetAvailability(ctx context.Context, actor identity.Actor) (Record, error) {
	if err := actor.Require(identity.RoleDriver, identity.RoleStore); err != nil {
		return Record{}, err
	}
	return service.store.GetOrCreateAvailability(ctx, actor.UserID, actor.Role)
}

// SetAvailability merges patch into the actor's record. The profile must be approved, and a store
// that ends up ACTIVE must hold at least one ticket.
func (service *Service) SetAvailability(ctx context.Context, actor identity.Actor, patch Patch) (Record, error) {
	if err := actor.Require(identity.RoleDriver, identity.RoleStore); err != nil {
		return Record{}, err
	}
	if err := patch.Validate(); err != nil {
		return Record{}, err
	}
	var saved Record
	err := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		profileStatus, err := transactionStore.GetProfileStatus(ctx, actor.UserID, actor.Role)
		if err != nil {
			return err
		}
		if profileStatus != ProfileApproved {
			return fmt.Errorf("%w: profile is %s", ErrProfileNotApproved, profileStatus)
		}
		current, err := transactionStore.GetOrCreateAvailability(ctx, actor.UserID, actor.Role)
		if err != nil {
			return err
		}
		merged := Merge(current, patch)
		if actor.Role == identity.RoleStore && merged.Status == StatusActive {
			userID, err := ledger.NewUserID(actor.UserID)
			if err != nil {
				return err
			}
			balance, err := service.ledger.WithStore(transactionStore.LedgerStore()).Balance(ctx, userID)
			if err != nil {
				return err
			}
			if balance <= 0 {
				return fmt.Errorf("%w: store balance is %d", ErrInsufficientTickets, balance)
			}
		}
		merged.UpdatedAt = service.nowFn().UTC()
		if err := transactionStore.SaveAvailability(ctx, merged); err != nil {
			return err
		}
		saved = merged
		return nil
	})
	if err != nil {
		return Record{}, err
	}
	service.fanout.Notify(ctx, fanout.Signal{
		Topic:   fanout.TopicAvailabilityUpdated,
		Status:  saved.Status.String(),
		UserIDs: fanout.Audience(saved.UserID),
		At:      saved.UpdatedAt,
	})
	return saved, nil
}
