package gormstore

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/MarkoPoloResearchLab/ticketengine/pkg/ledger"
	"github.com/MarkoPoloResearchLab/ticketengine/pkg/payment"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PaymentStore implements payment.Store using GORM.
type PaymentStore struct {
	db *gorm.DB
}

// WithTx executes fn within a transaction.
func (store *PaymentStore) WithTx(ctx context.Context, fn func(ctx context.Context, txStore payment.Store) error) error {
	return store.db.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		return fn(ctx, &PaymentStore{db: transaction})
	})
}

// LedgerStore shares this store's connection or transaction.
func (store *PaymentStore) LedgerStore() ledger.Store {
	return &LedgerStore{db: store.db}
}

func (store *PaymentStore) CreateTicketOrder(ctx context.Context, order payment.TicketOrder) error {
	row := TicketOrder{
		ID:               order.ID,
		UserID:           order.UserID.String(),
		Quantity:         order.Quantity,
		PricePerTicket:   order.PricePerTicket,
		TotalAmount:      order.TotalAmount,
		Status:           order.Status.String(),
		PaymentMethod:    order.PaymentMethod.String(),
		PaymentPayload:   datatypesJSON(order.PaymentPayload),
		MidtransOrderID:  order.MidtransOrderID,
		PaymentStatusRaw: order.PaymentStatusRaw,
		PaidAt:           order.PaidAt,
		CreatedAt:        order.CreatedAt,
		UpdatedAt:        order.UpdatedAt,
	}
	err := store.db.WithContext(ctx).Create(&row).Error
	if isUniqueViolation(err, constraintTicketOrderExternal) {
		return wrapStoreError(errorSubjectTicketOrder, errorCodeDuplicate, err)
	}
	if err != nil {
		return wrapStoreError(errorSubjectTicketOrder, errorCodeCreate, err)
	}
	return nil
}

func (store *PaymentStore) GetTicketOrder(ctx context.Context, id string) (payment.TicketOrder, error) {
	var row TicketOrder
	err := store.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error
	if err != nil {
		return payment.TicketOrder{}, ticketOrderLookupError(err)
	}
	return mapTicketOrder(row)
}

// FindTicketOrderByExternalID takes a row lock on postgres; sqlite serializes writers on its own.
func (store *PaymentStore) FindTicketOrderByExternalID(ctx context.Context, externalID string) (payment.TicketOrder, error) {
	var row TicketOrder
	err := store.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: lockingStrengthUpdate}).
		Where("midtrans_order_id = ?", externalID).
		Take(&row).Error
	if err != nil {
		return payment.TicketOrder{}, ticketOrderLookupError(err)
	}
	return mapTicketOrder(row)
}

func (store *PaymentStore) ListTicketOrders(ctx context.Context, userID ledger.UserID, limit int) ([]payment.TicketOrder, error) {
	var rows []TicketOrder
	err := store.db.WithContext(ctx).
		Where("user_id = ?", userID.String()).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectTicketOrder, errorCodeList, err)
	}
	orders := make([]payment.TicketOrder, 0, len(rows))
	for _, row := range rows {
		order, err := mapTicketOrder(row)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, nil
}

// ResolveTicketOrder only updates a row that is still PENDING.
func (store *PaymentStore) ResolveTicketOrder(ctx context.Context, id string, resolution payment.Resolution) error {
	result := store.db.WithContext(ctx).
		Model(&TicketOrder{}).
		Where("id = ? AND status = ?", id, payment.OrderStatusPending.String()).
		Updates(map[string]any{
			"status":             resolution.Status.String(),
			"payment_status_raw": resolution.RawStatus,
			"paid_at":            resolution.PaidAt,
			"updated_at":         time.Now().UTC(),
		})
	if result.Error != nil {
		return wrapStoreError(errorSubjectTicketOrder, errorCodeUpdateStatus, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectTicketOrder, errorCodeUpdateStatus, payment.ErrTicketOrderClosed)
	}
	return nil
}

func (store *PaymentStore) RecordPaymentStatus(ctx context.Context, id string, rawStatus string) error {
	err := store.db.WithContext(ctx).
		Model(&TicketOrder{}).
		Where("id = ?", id).
		Updates(map[string]any{"payment_status_raw": rawStatus, "updated_at": time.Now().UTC()}).Error
	if err != nil {
		return wrapStoreError(errorSubjectTicketOrder, errorCodeUpdate, err)
	}
	return nil
}

func ticketOrderLookupError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return wrapStoreError(errorSubjectTicketOrder, errorCodeGet, payment.ErrUnknownTicketOrder)
	}
	return wrapStoreError(errorSubjectTicketOrder, errorCodeGet, err)
}

func mapTicketOrder(row TicketOrder) (payment.TicketOrder, error) {
	userID, err := ledger.NewUserID(row.UserID)
	if err != nil {
		return payment.TicketOrder{}, wrapStoreError(errorSubjectTicketOrder, errorCodeInvalid, err)
	}
	status, err := payment.ParseOrderStatus(row.Status)
	if err != nil {
		return payment.TicketOrder{}, wrapStoreError(errorSubjectTicketOrder, errorCodeInvalid, err)
	}
	var paidAt *time.Time
	if row.PaidAt != nil {
		value := row.PaidAt.UTC()
		paidAt = &value
	}
	return payment.TicketOrder{
		ID:               row.ID,
		UserID:           userID,
		Quantity:         row.Quantity,
		PricePerTicket:   row.PricePerTicket,
		TotalAmount:      row.TotalAmount,
		Status:           status,
		PaymentMethod:    payment.PaymentMethod(row.PaymentMethod),
		PaymentPayload:   json.RawMessage(row.PaymentPayload),
		MidtransOrderID:  row.MidtransOrderID,
		PaymentStatusRaw: row.PaymentStatusRaw,
		PaidAt:           paidAt,
		CreatedAt:        row.CreatedAt.UTC(),
		UpdatedAt:        row.UpdatedAt.UTC(),
	}, nil
}
