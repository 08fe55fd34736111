package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Service contains the domain logic over a Store.
type Service struct {
	store  Store
	nowFn  func() time.Time
	logger OperationLogger
}

// NewService wires a Service.
func NewService(store Store, now func() time.Time, options ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store dependency is nil", ErrInvalidServiceConfig)
	}
	if now == nil {
		return nil, fmt.Errorf("%w: clock dependency is nil", ErrInvalidServiceConfig)
	}
	service := &Service{store: store, nowFn: now}
	for _, option := range options {
		if option != nil {
			option(service)
		}
	}
	return service, nil
}

// WithStore returns a copy of the service bound to store, typically a transactional store
// handed out by another component's WithTx so that a credit joins that unit of work.
func (service *Service) WithStore(store Store) *Service {
	bound := *service
	bound.store = store
	return &bound
}

// Balance returns the current balance, creating the row on first access.
func (service *Service) Balance(ctx context.Context, userID UserID) (Tickets, error) {
	return service.store.GetOrCreateBalance(ctx, userID)
}

// Credit adds tickets and records the matching transaction in one atomic step.
// Only PURCHASE and ADJUST credits exist; consumption is always a debit.
func (service *Service) Credit(ctx context.Context, userID UserID, quantity Quantity, transactionType TransactionType, description string, referenceID string) (Tickets, error) {
	balance, operationError := service.credit(ctx, userID, quantity, transactionType, description, referenceID)
	service.logOperation(ctx, OperationLog{
		Operation:   operationCredit,
		UserID:      userID,
		Type:        transactionType,
		Amount:      quantity.Credit(),
		ReferenceID: referenceID,
		Balance:     balance,
		Error:       operationError,
	})
	return balance, operationError
}

func (service *Service) credit(ctx context.Context, userID UserID, quantity Quantity, transactionType TransactionType, description string, referenceID string) (Tickets, error) {
	if transactionType != TransactionPurchase && transactionType != TransactionAdjust {
		return 0, fmt.Errorf("%w: %s cannot credit", ErrInvalidTransactionType, transactionType)
	}
	var balance Tickets
	err := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		newBalance, err := transactionStore.AddToBalance(ctx, userID, quantity)
		if err != nil {
			return err
		}
		if err := transactionStore.InsertTransaction(ctx, Transaction{
			UserID:      userID,
			Type:        transactionType,
			Amount:      quantity.Credit(),
			Description: describe(description, transactionType),
			ReferenceID: strings.TrimSpace(referenceID),
			CreatedAt:   service.nowFn().UTC(),
		}); err != nil {
			return err
		}
		balance = newBalance
		return nil
	})
	if err != nil {
		return 0, err
	}
	return balance, nil
}

// Debit consumes tickets. The sufficiency check and the decrement are one conditional
// statement, so two concurrent debits can never both spend the same tickets.
func (service *Service) Debit(ctx context.Context, userID UserID, quantity Quantity, description string) (Tickets, error) {
	balance, operationError := service.debit(ctx, userID, quantity, TransactionConsume, description)
	service.logOperation(ctx, OperationLog{
		Operation: operationDebit,
		UserID:    userID,
		Type:      TransactionConsume,
		Amount:    quantity.Debit(),
		Balance:   balance,
		Error:     operationError,
	})
	return balance, operationError
}

func (service *Service) debit(ctx context.Context, userID UserID, quantity Quantity, transactionType TransactionType, description string) (Tickets, error) {
	var balance Tickets
	err := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		newBalance, err := transactionStore.SubtractFromBalance(ctx, userID, quantity)
		if err != nil {
			return err
		}
		if err := transactionStore.InsertTransaction(ctx, Transaction{
			UserID:      userID,
			Type:        transactionType,
			Amount:      quantity.Debit(),
			Description: describe(description, transactionType),
			CreatedAt:   service.nowFn().UTC(),
		}); err != nil {
			return err
		}
		balance = newBalance
		return nil
	})
	if err != nil {
		return 0, err
	}
	return balance, nil
}

func (service *Service) logOperation(ctx context.Context, entry OperationLog) {
	if service.logger == nil {
		return
	}
	if entry.Status == "" {
		if entry.Error != nil {
			entry.Status = operationStatusError
		} else {
			entry.Status = operationStatusOK
		}
	}
	service.logger.LogOperation(ctx, entry)
}

func describe(description string, transactionType TransactionType) string {
	trimmed := strings.TrimSpace(description)
	if trimmed != "" {
		return trimmed
	}
	switch transactionType {
	case TransactionPurchase:
		return defaultPurchaseDescription
	case TransactionConsume:
		return defaultConsumeDescription
	default:
		return defaultAdjustDescription
	}
}
