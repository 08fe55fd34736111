package gormstore

import (
	"context"
	"time"

	"github.com/MarkoPoloResearchLab/ticketengine/pkg/ledger"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LedgerStore implements ledger.Store using GORM.
type LedgerStore struct {
	db *gorm.DB
}

// WithTx executes fn within a transaction. Inside an outer transaction gorm uses a savepoint, so
// the unit joins the caller's.
func (store *LedgerStore) WithTx(ctx context.Context, fn func(ctx context.Context, txStore ledger.Store) error) error {
	return store.db.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		return fn(ctx, &LedgerStore{db: transaction})
	})
}

func (store *LedgerStore) GetOrCreateBalance(ctx context.Context, userID ledger.UserID) (ledger.Tickets, error) {
	if err := store.ensureBalance(ctx, userID); err != nil {
		return 0, err
	}
	return store.readBalance(ctx, userID)
}

func (store *LedgerStore) AddToBalance(ctx context.Context, userID ledger.UserID, quantity ledger.Quantity) (ledger.Tickets, error) {
	if err := store.ensureBalance(ctx, userID); err != nil {
		return 0, err
	}
	err := store.db.WithContext(ctx).
		Model(&TicketBalance{}).
		Where("user_id = ?", userID.String()).
		Update("balance", gorm.Expr("balance + ?", quantity.Int64())).Error
	if err != nil {
		return 0, wrapStoreError(errorSubjectBalance, errorCodeUpdate, err)
	}
	return store.readBalance(ctx, userID)
}

// SubtractFromBalance decrements in one conditional statement; a row that no longer covers the
// quantity is not touched and ErrInsufficientFunds is returned.
func (store *LedgerStore) SubtractFromBalance(ctx context.Context, userID ledger.UserID, quantity ledger.Quantity) (ledger.Tickets, error) {
	if err := store.ensureBalance(ctx, userID); err != nil {
		return 0, err
	}
	result := store.db.WithContext(ctx).
		Model(&TicketBalance{}).
		Where("user_id = ? AND balance >= ?", userID.String(), quantity.Int64()).
		Update("balance", gorm.Expr("balance - ?", quantity.Int64()))
	if result.Error != nil {
		return 0, wrapStoreError(errorSubjectBalance, errorCodeUpdate, result.Error)
	}
	if result.RowsAffected == 0 {
		return 0, ledger.ErrInsufficientFunds
	}
	return store.readBalance(ctx, userID)
}

func (store *LedgerStore) InsertTransaction(ctx context.Context, transaction ledger.Transaction) error {
	row := TicketTransaction{
		UserID:      transaction.UserID.String(),
		Type:        transaction.Type.String(),
		Amount:      transaction.Amount.Int64(),
		Description: transaction.Description,
		ReferenceID: optionalString(transaction.ReferenceID),
		CreatedAt:   transaction.CreatedAt.UTC(),
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	err := store.db.WithContext(ctx).Create(&row).Error
	if isUniqueViolation(err, constraintTransactionReference) {
		return wrapStoreError(errorSubjectTransaction, errorCodeDuplicate, ledger.ErrDuplicateReference)
	}
	if err != nil {
		return wrapStoreError(errorSubjectTransaction, errorCodeInsert, err)
	}
	return nil
}

func (store *LedgerStore) ListTransactions(ctx context.Context, userID ledger.UserID, limit int) ([]ledger.Transaction, error) {
	var rows []TicketTransaction
	err := store.db.WithContext(ctx).
		Where("user_id = ?", userID.String()).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectTransaction, errorCodeList, err)
	}
	transactions := make([]ledger.Transaction, 0, len(rows))
	for _, row := range rows {
		transaction, err := mapTransaction(row)
		if err != nil {
			return nil, wrapStoreError(errorSubjectTransaction, errorCodeInvalid, err)
		}
		transactions = append(transactions, transaction)
	}
	return transactions, nil
}

func (store *LedgerStore) SumTransactions(ctx context.Context, userID ledger.UserID) (ledger.Tickets, error) {
	var sum sqlSum
	err := store.db.WithContext(ctx).
		Model(&TicketTransaction{}).
		Select("coalesce(sum(amount),0) as total").
		Where("user_id = ?", userID.String()).
		Scan(&sum).Error
	if err != nil {
		return 0, wrapStoreError(errorSubjectTransaction, errorCodeSum, err)
	}
	return ledger.Tickets(sum.Total), nil
}

func (store *LedgerStore) ensureBalance(ctx context.Context, userID ledger.UserID) error {
	now := time.Now().UTC()
	err := store.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "user_id"}}, DoNothing: true}).
		Create(&TicketBalance{UserID: userID.String(), CreatedAt: now, UpdatedAt: now}).Error
	if err != nil {
		return wrapStoreError(errorSubjectBalance, errorCodeCreate, err)
	}
	return nil
}

func (store *LedgerStore) readBalance(ctx context.Context, userID ledger.UserID) (ledger.Tickets, error) {
	var row TicketBalance
	err := store.db.WithContext(ctx).Where("user_id = ?", userID.String()).Take(&row).Error
	if err != nil {
		return 0, wrapStoreError(errorSubjectBalance, errorCodeGet, err)
	}
	if row.Balance < 0 {
		return 0, wrapStoreError(errorSubjectBalance, errorCodeInvalid, ledger.ErrInvalidBalance)
	}
	return ledger.Tickets(row.Balance), nil
}

type sqlSum struct {
	Total int64
}

func mapTransaction(row TicketTransaction) (ledger.Transaction, error) {
	userID, err := ledger.NewUserID(row.UserID)
	if err != nil {
		return ledger.Transaction{}, err
	}
	transactionType, err := ledger.ParseTransactionType(row.Type)
	if err != nil {
		return ledger.Transaction{}, err
	}
	return ledger.Transaction{
		ID:          row.ID,
		UserID:      userID,
		Type:        transactionType,
		Amount:      ledger.Tickets(row.Amount),
		Description: row.Description,
		ReferenceID: stringOrEmpty(row.ReferenceID),
		CreatedAt:   row.CreatedAt.UTC(),
	}, nil
}
