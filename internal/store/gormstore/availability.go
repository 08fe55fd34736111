package gormstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MarkoPoloResearchLab/ticketengine/pkg/availability"
	"github.com/MarkoPoloResearchLab/ticketengine/pkg/identity"
	"github.com/MarkoPoloResearchLab/ticketengine/pkg/ledger"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AvailabilityStore implements availability.Store using GORM.
type AvailabilityStore struct {
	db *gorm.DB
}

// WithTx executes fn within a transaction.
func (store *AvailabilityStore) WithTx(ctx context.Context, fn func(ctx context.Context, txStore availability.Store) error) error {
	return store.db.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		return fn(ctx, &AvailabilityStore{db: transaction})
	})
}

// LedgerStore shares this store's connection or transaction.
func (store *AvailabilityStore) LedgerStore() ledger.Store {
	return &LedgerStore{db: store.db}
}

// GetOrCreateAvailability inserts the default row if missing and returns it locked on postgres.
func (store *AvailabilityStore) GetOrCreateAvailability(ctx context.Context, userID string, role identity.Role) (availability.Record, error) {
	now := time.Now().UTC()
	defaults := availability.NewRecord(userID, role)
	err := store.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "user_id"}, {Name: "role"}}, DoNothing: true}).
		Create(&Availability{UserID: userID, Role: role.String(), Status: defaults.Status.String(), CreatedAt: now, UpdatedAt: now}).Error
	if err != nil {
		return availability.Record{}, wrapStoreError(errorSubjectAvailability, errorCodeCreate, err)
	}
	var row Availability
	err = store.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: lockingStrengthUpdate}).
		Where("user_id = ? AND role = ?", userID, role.String()).
		Take(&row).Error
	if err != nil {
		return availability.Record{}, wrapStoreError(errorSubjectAvailability, errorCodeGet, err)
	}
	return mapAvailability(row)
}

func (store *AvailabilityStore) SaveAvailability(ctx context.Context, record availability.Record) error {
	result := store.db.WithContext(ctx).
		Model(&Availability{}).
		Where("user_id = ? AND role = ?", record.UserID, record.Role.String()).
		Updates(map[string]any{
			"status":       record.Status.String(),
			"region":       record.Region,
			"note":         record.Note,
			"location_url": record.LocationURL,
			"latitude":     record.Latitude,
			"longitude":    record.Longitude,
			"open_days":    record.OpenDays,
			"open_time":    record.OpenTime,
			"close_time":   record.CloseTime,
			"updated_at":   record.UpdatedAt,
		})
	if result.Error != nil {
		return wrapStoreError(errorSubjectAvailability, errorCodeSave, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectAvailability, errorCodeSave, fmt.Errorf("no availability row for %s %s", record.Role, record.UserID))
	}
	return nil
}

func (store *AvailabilityStore) GetProfileStatus(ctx context.Context, userID string, role identity.Role) (availability.ProfileStatus, error) {
	return (&ProfileStore{db: store.db}).GetProfileStatus(ctx, userID, role)
}

func mapAvailability(row Availability) (availability.Record, error) {
	role, err := identity.ParseRole(row.Role)
	if err != nil {
		return availability.Record{}, wrapStoreError(errorSubjectAvailability, errorCodeInvalid, err)
	}
	status, err := availability.ParseStatus(row.Status)
	if err != nil {
		return availability.Record{}, wrapStoreError(errorSubjectAvailability, errorCodeInvalid, err)
	}
	return availability.Record{
		UserID:      row.UserID,
		Role:        role,
		Status:      status,
		Region:      row.Region,
		Note:        row.Note,
		LocationURL: row.LocationURL,
		Latitude:    row.Latitude,
		Longitude:   row.Longitude,
		OpenDays:    row.OpenDays,
		OpenTime:    row.OpenTime,
		CloseTime:   row.CloseTime,
		UpdatedAt:   row.UpdatedAt.UTC(),
	}, nil
}

// ProfileStore reads and writes profile approval state.
type ProfileStore struct {
	db *gorm.DB
}

func (store *ProfileStore) GetProfileStatus(ctx context.Context, userID string, role identity.Role) (availability.ProfileStatus, error) {
	var row Profile
	err := store.db.WithContext(ctx).Where("user_id = ? AND role = ?", userID, role.String()).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", wrapStoreError(errorSubjectProfile, errorCodeGet, availability.ErrProfileNotFound)
	}
	if err != nil {
		return "", wrapStoreError(errorSubjectProfile, errorCodeGet, err)
	}
	return availability.ProfileStatus(row.Status), nil
}

// SetProfileStatus upserts the approval state of a profile.
func (store *ProfileStore) SetProfileStatus(ctx context.Context, userID string, role identity.Role, status availability.ProfileStatus) error {
	now := time.Now().UTC()
	err := store.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "role"}},
			DoUpdates: clause.Assignments(map[string]any{"status": string(status), "updated_at": now}),
		}).
		Create(&Profile{UserID: userID, Role: role.String(), Status: string(status), CreatedAt: now, UpdatedAt: now}).Error
	if err != nil {
		return wrapStoreError(errorSubjectProfile, errorCodeSave, err)
	}
	return nil
}
