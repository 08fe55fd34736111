package gormstore

import (
	"errors"
	"fmt"

	"github.com/MarkoPoloResearchLab/ticketengine/pkg/ledger"
	gosqlite "github.com/glebarez/go-sqlite"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	constraintTransactionReference = "uniq_ticket_transactions_type_reference"
	constraintTicketOrderExternal  = "uniq_ticket_orders_midtrans_order_id"
	constraintRatingOrder          = "uniq_order_ratings_order_id"
	defaultPayloadJSON             = "{}"
	lockingStrengthUpdate          = "UPDATE"
	pgUniqueViolationCode          = "23505"
	sqliteConstraintCode           = 19
	errorOperationStore            = "store"
	errorSubjectAvailability       = "availability"
	errorSubjectBalance            = "balance"
	errorSubjectOrder              = "order"
	errorSubjectProfile            = "profile"
	errorSubjectRating             = "rating"
	errorSubjectTicketOrder        = "ticket_order"
	errorSubjectTransaction        = "transaction"
	errorCodeCreate                = "create"
	errorCodeDuplicate             = "duplicate"
	errorCodeGet                   = "get"
	errorCodeInsert                = "insert"
	errorCodeInvalid               = "invalid"
	errorCodeList                  = "list"
	errorCodeLookup                = "lookup"
	errorCodeSave                  = "save"
	errorCodeSum                   = "sum"
	errorCodeUpdate                = "update"
	errorCodeUpdateStatus          = "update_status"
)

// Store groups the per-component stores over one gorm.DB.
type Store struct {
	db *gorm.DB
}

// New returns a Store backed by gorm.DB.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Migrate creates or updates every table.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

// Ledger returns the ticket ledger store.
func (store *Store) Ledger() *LedgerStore {
	return &LedgerStore{db: store.db}
}

// Payments returns the ticket order store.
func (store *Store) Payments() *PaymentStore {
	return &PaymentStore{db: store.db}
}

// Delivery returns the delivery order store.
func (store *Store) Delivery() *DeliveryStore {
	return &DeliveryStore{db: store.db}
}

// Availability returns the availability store.
func (store *Store) Availability() *AvailabilityStore {
	return &AvailabilityStore{db: store.db}
}

// Profiles returns the profile approval store.
func (store *Store) Profiles() *ProfileStore {
	return &ProfileStore{db: store.db}
}

func wrapStoreError(subject string, code string, err error) error {
	return ledger.WrapError(errorOperationStore, subject, code, err)
}

func datatypesJSON(raw []byte) datatypes.JSON {
	if len(raw) == 0 {
		return datatypes.JSON([]byte(defaultPayloadJSON))
	}
	return datatypes.JSON(raw)
}

func optionalString(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

func stringOrEmpty(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

// isUniqueViolation reports whether err is a unique-key conflict. On postgres the constraint name
// must match; gorm's translated error and sqlite do not carry it.
func isUniqueViolation(err error, constraint string) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolationCode && pgErr.ConstraintName == constraint
	}
	var sqliteErr *gosqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code()&0xFF == sqliteConstraintCode
	}
	return false
}
