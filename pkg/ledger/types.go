package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Tickets is a signed ticket amount. Balances are never negative; transaction amounts are
// positive for credits and negative for debits.
type Tickets int64

// Int64 returns the raw amount.
func (tickets Tickets) Int64() int64 {
	return int64(tickets)
}

// Quantity is a strictly positive number of tickets moved by one operation.
type Quantity struct {
	value int64
}

// NewQuantity validates a ticket quantity.
func NewQuantity(raw int64) (Quantity, error) {
	if raw <= 0 {
		return Quantity{}, fmt.Errorf("%w: must be greater than zero", ErrInvalidQuantity)
	}
	return Quantity{value: raw}, nil
}

// Int64 returns the raw quantity.
func (quantity Quantity) Int64() int64 {
	return quantity.value
}

// Credit is the signed amount recorded for a credit of this quantity.
func (quantity Quantity) Credit() Tickets {
	return Tickets(quantity.value)
}

// Debit is the signed amount recorded for a debit of this quantity.
func (quantity Quantity) Debit() Tickets {
	return Tickets(-quantity.value)
}

// UserID identifies a ledger owner.
type UserID struct {
	value string
}

// NewUserID validates and normalizes a user id.
func NewUserID(raw string) (UserID, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return UserID{}, fmt.Errorf("%w: empty value", ErrInvalidUserID)
	}
	return UserID{value: trimmed}, nil
}

// String returns the normalized identifier.
func (id UserID) String() string {
	return id.value
}

// TransactionType enumerates ledger transaction kinds.
type TransactionType string

const (
	TransactionPurchase TransactionType = "PURCHASE"
	TransactionConsume  TransactionType = "CONSUME"
	TransactionAdjust   TransactionType = "ADJUST"
)

// ParseTransactionType validates a stored or requested transaction type.
func ParseTransactionType(raw string) (TransactionType, error) {
	switch transactionType := TransactionType(strings.ToUpper(strings.TrimSpace(raw))); transactionType {
	case TransactionPurchase, TransactionConsume, TransactionAdjust:
		return transactionType, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidTransactionType, raw)
	}
}

// String returns the stored representation.
func (transactionType TransactionType) String() string {
	return string(transactionType)
}

// Transaction is one immutable line of a user's ledger.
type Transaction struct {
	ID          string
	UserID      UserID
	Type        TransactionType
	Amount      Tickets
	Description string
	ReferenceID string
	CreatedAt   time.Time
}

// Audit compares the denormalized balance with the sum of the transaction log.
type Audit struct {
	UserID    UserID
	Balance   Tickets
	LedgerSum Tickets
}

// Consistent reports whether the balance can be reconstructed from the log.
func (audit Audit) Consistent() bool {
	return audit.Balance == audit.LedgerSum
}

// Err returns ErrInconsistentLedger when the audit failed.
func (audit Audit) Err() error {
	if audit.Consistent() {
		return nil
	}
	return fmt.Errorf("%w: user %s balance=%d sum=%d", ErrInconsistentLedger, audit.UserID.String(), audit.Balance, audit.LedgerSum)
}

// Store is the persistence contract used by Service. Balance mutations are single atomic
// statements; WithTx makes a mutation and its transaction row commit together.
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, txStore Store) error) error
	GetOrCreateBalance(ctx context.Context, userID UserID) (Tickets, error)
	AddToBalance(ctx context.Context, userID UserID, quantity Quantity) (Tickets, error)
	// SubtractFromBalance decrements only when the balance covers the quantity and returns
	// ErrInsufficientFunds otherwise, leaving the balance untouched.
	SubtractFromBalance(ctx context.Context, userID UserID, quantity Quantity) (Tickets, error)
	InsertTransaction(ctx context.Context, transaction Transaction) error
	ListTransactions(ctx context.Context, userID UserID, limit int) ([]Transaction, error)
	SumTransactions(ctx context.Context, userID UserID) (Tickets, error)
}
