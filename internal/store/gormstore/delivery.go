package gormstore

import (
	"context"
	"errors"

	"github.com/MarkoPoloResearchLab/ticketengine/pkg/delivery"
	"gorm.io/gorm"
)

// DeliveryStore implements delivery.Store using GORM.
type DeliveryStore struct {
	db *gorm.DB
}

func (store *DeliveryStore) CreateOrder(ctx context.Context, order delivery.Order) error {
	row := CustomerOrder{
		ID:         order.ID,
		Type:       order.Type.String(),
		Status:     order.Status.String(),
		CustomerID: order.CustomerID,
		StoreID:    optionalString(order.StoreID),
		DriverID:   optionalString(order.DriverID),
		CreatedAt:  order.CreatedAt,
		UpdatedAt:  order.UpdatedAt,
	}
	if err := store.db.WithContext(ctx).Create(&row).Error; err != nil {
		return wrapStoreError(errorSubjectOrder, errorCodeCreate, err)
	}
	return nil
}

func (store *DeliveryStore) GetOrder(ctx context.Context, id string) (delivery.Order, error) {
	var row CustomerOrder
	err := store.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return delivery.Order{}, wrapStoreError(errorSubjectOrder, errorCodeGet, delivery.ErrOrderNotFound)
	}
	if err != nil {
		return delivery.Order{}, wrapStoreError(errorSubjectOrder, errorCodeGet, err)
	}
	return mapCustomerOrder(row)
}

// UpdateOrderStatus is a compare-and-set on the prior status. A driver claim additionally requires
// the order to be unassigned.
func (store *DeliveryStore) UpdateOrderStatus(ctx context.Context, change delivery.StatusChange) error {
	updates := map[string]any{"status": change.To.String(), "updated_at": change.At}
	query := store.db.WithContext(ctx).
		Model(&CustomerOrder{}).
		Where("id = ? AND status = ?", change.OrderID, change.From.String())
	if change.DriverID != "" {
		updates["driver_id"] = change.DriverID
		query = query.Where("driver_id IS NULL")
	}
	result := query.Updates(updates)
	if result.Error != nil {
		return wrapStoreError(errorSubjectOrder, errorCodeUpdateStatus, result.Error)
	}
	if result.RowsAffected == 1 {
		return nil
	}
	var count int64
	if err := store.db.WithContext(ctx).Model(&CustomerOrder{}).Where("id = ?", change.OrderID).Count(&count).Error; err != nil {
		return wrapStoreError(errorSubjectOrder, errorCodeLookup, err)
	}
	if count == 0 {
		return wrapStoreError(errorSubjectOrder, errorCodeUpdateStatus, delivery.ErrOrderNotFound)
	}
	return wrapStoreError(errorSubjectOrder, errorCodeUpdateStatus, delivery.ErrStaleOrder)
}

func (store *DeliveryStore) CreateRating(ctx context.Context, rating delivery.Rating) error {
	row := OrderRating{
		ID:         rating.ID,
		OrderID:    rating.OrderID,
		CustomerID: rating.CustomerID,
		Score:      rating.Score,
		Comment:    rating.Comment,
		CreatedAt:  rating.CreatedAt,
	}
	err := store.db.WithContext(ctx).Create(&row).Error
	if isUniqueViolation(err, constraintRatingOrder) {
		return wrapStoreError(errorSubjectRating, errorCodeDuplicate, delivery.ErrRatingExists)
	}
	if err != nil {
		return wrapStoreError(errorSubjectRating, errorCodeCreate, err)
	}
	return nil
}

func (store *DeliveryStore) GetRating(ctx context.Context, orderID string) (delivery.Rating, error) {
	var row OrderRating
	err := store.db.WithContext(ctx).Where("order_id = ?", orderID).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return delivery.Rating{}, wrapStoreError(errorSubjectRating, errorCodeGet, delivery.ErrRatingNotFound)
	}
	if err != nil {
		return delivery.Rating{}, wrapStoreError(errorSubjectRating, errorCodeGet, err)
	}
	return delivery.Rating{
		ID:         row.ID,
		OrderID:    row.OrderID,
		CustomerID: row.CustomerID,
		Score:      row.Score,
		Comment:    row.Comment,
		CreatedAt:  row.CreatedAt.UTC(),
	}, nil
}

func mapCustomerOrder(row CustomerOrder) (delivery.Order, error) {
	orderType, err := delivery.ParseOrderType(row.Type)
	if err != nil {
		return delivery.Order{}, wrapStoreError(errorSubjectOrder, errorCodeInvalid, err)
	}
	status, err := delivery.ParseStatus(row.Status)
	if err != nil {
		return delivery.Order{}, wrapStoreError(errorSubjectOrder, errorCodeInvalid, err)
	}
	return delivery.Order{
		ID:         row.ID,
		Type:       orderType,
		Status:     status,
		CustomerID: row.CustomerID,
		StoreID:    stringOrEmpty(row.StoreID),
		DriverID:   stringOrEmpty(row.DriverID),
		CreatedAt:  row.CreatedAt.UTC(),
		UpdatedAt:  row.UpdatedAt.UTC(),
	}, nil
}
