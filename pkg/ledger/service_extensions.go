package ledger

import (
	"context"
	"fmt"
)

// Adjust applies an administrative correction. Positive deltas credit, negative deltas debit
// with the same sufficiency guarantee as Debit; both are recorded as ADJUST.
func (service *Service) Adjust(ctx context.Context, userID UserID, delta int64, description string) (Tickets, error) {
	if delta == 0 {
		operationError := fmt.Errorf("%w: delta must be non-zero", ErrInvalidAdjustment)
		service.logOperation(ctx, OperationLog{Operation: operationAdjust, UserID: userID, Type: TransactionAdjust, Error: operationError})
		return 0, operationError
	}
	var (
		quantity       Quantity
		balance        Tickets
		operationError error
	)
	if delta > 0 {
		quantity, operationError = NewQuantity(delta)
		if operationError == nil {
			balance, operationError = service.credit(ctx, userID, quantity, TransactionAdjust, description, "")
		}
	} else {
		quantity, operationError = NewQuantity(-delta)
		if operationError == nil {
			balance, operationError = service.debit(ctx, userID, quantity, TransactionAdjust, description)
		}
	}
	service.logOperation(ctx, OperationLog{
		Operation: operationAdjust,
		UserID:    userID,
		Type:      TransactionAdjust,
		Amount:    Tickets(delta),
		Balance:   balance,
		Error:     operationError,
	})
	return balance, operationError
}

// ListTransactions lists the newest transactions of a user.
func (service *Service) ListTransactions(ctx context.Context, userID UserID, limit int) ([]Transaction, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	return service.store.ListTransactions(ctx, userID, limit)
}

// Audit reads the balance and the log sum inside one unit so they describe the same state.
func (service *Service) Audit(ctx context.Context, userID UserID) (Audit, error) {
	audit := Audit{UserID: userID}
	err := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		balance, err := transactionStore.GetOrCreateBalance(ctx, userID)
		if err != nil {
			return err
		}
		sum, err := transactionStore.SumTransactions(ctx, userID)
		if err != nil {
			return err
		}
		audit.Balance = balance
		audit.LedgerSum = sum
		return nil
	})
	if err != nil {
		return Audit{}, err
	}
	return audit, nil
}
