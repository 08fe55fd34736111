package gormstore

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// TicketBalance is the denormalized balance, one row per user.
type TicketBalance struct {
	UserID    string    `gorm:"primaryKey"`
	Balance   int64     `gorm:"not null;default:0;check:chk_ticket_balances_non_negative,balance >= 0"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (TicketBalance) TableName() string { return "ticket_balances" }

// TicketTransaction mirrors the append-only ticket_transactions table.
type TicketTransaction struct {
	ID          string    `gorm:"type:uuid;primaryKey"`
	UserID      string    `gorm:"not null;index:idx_ticket_transactions_user_created,priority:1"`
	Type        string    `gorm:"not null;index:uniq_ticket_transactions_type_reference,unique,priority:1"`
	Amount      int64     `gorm:"not null"`
	Description string    `gorm:"not null;default:''"`
	ReferenceID *string   `gorm:"index:uniq_ticket_transactions_type_reference,unique,priority:2"`
	CreatedAt   time.Time `gorm:"not null;index:idx_ticket_transactions_user_created,priority:2"`
}

func (TicketTransaction) TableName() string { return "ticket_transactions" }

func (transaction *TicketTransaction) BeforeCreate(tx *gorm.DB) error {
	if transaction.ID == "" {
		transaction.ID = uuid.NewString()
	}
	return nil
}

// TicketOrder mirrors the ticket_orders table.
type TicketOrder struct {
	ID               string         `gorm:"type:uuid;primaryKey"`
	UserID           string         `gorm:"not null;index:idx_ticket_orders_user_created,priority:1"`
	Quantity         int64          `gorm:"not null"`
	PricePerTicket   int64          `gorm:"not null"`
	TotalAmount      int64          `gorm:"not null"`
	Status           string         `gorm:"not null;default:PENDING"`
	PaymentMethod    string         `gorm:"not null"`
	PaymentPayload   datatypes.JSON `gorm:"not null"`
	MidtransOrderID  string         `gorm:"not null;index:uniq_ticket_orders_midtrans_order_id,unique"`
	PaymentStatusRaw string         `gorm:"not null;default:''"`
	PaidAt           *time.Time
	CreatedAt        time.Time `gorm:"not null;index:idx_ticket_orders_user_created,priority:2"`
	UpdatedAt        time.Time `gorm:"not null"`
}

func (TicketOrder) TableName() string { return "ticket_orders" }

// CustomerOrder holds the state-machine columns of a delivery order.
type CustomerOrder struct {
	ID         string    `gorm:"type:uuid;primaryKey"`
	Type       string    `gorm:"not null"`
	Status     string    `gorm:"not null;index"`
	CustomerID string    `gorm:"not null;index"`
	StoreID    *string   `gorm:"index"`
	DriverID   *string   `gorm:"index"`
	CreatedAt  time.Time `gorm:"not null"`
	UpdatedAt  time.Time `gorm:"not null"`
}

func (CustomerOrder) TableName() string { return "customer_orders" }

// OrderRating allows one row per order.
type OrderRating struct {
	ID         string    `gorm:"type:uuid;primaryKey"`
	OrderID    string    `gorm:"not null;index:uniq_order_ratings_order_id,unique"`
	CustomerID string    `gorm:"not null"`
	Score      int       `gorm:"not null;check:chk_order_ratings_score,score BETWEEN 1 AND 5"`
	Comment    string    `gorm:"not null;default:''"`
	CreatedAt  time.Time `gorm:"not null"`
}

func (OrderRating) TableName() string { return "order_ratings" }

func (rating *OrderRating) BeforeCreate(tx *gorm.DB) error {
	if rating.ID == "" {
		rating.ID = uuid.NewString()
	}
	return nil
}

// Profile is the approval state of a driver or store, written by profile management.
type Profile struct {
	UserID    string    `gorm:"primaryKey"`
	Role      string    `gorm:"primaryKey"`
	Status    string    `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (Profile) TableName() string { return "profiles" }

// Availability mirrors the availabilities table.
type Availability struct {
	UserID      string `gorm:"primaryKey"`
	Role        string `gorm:"primaryKey"`
	Status      string `gorm:"not null;default:INACTIVE"`
	Region      string `gorm:"not null;default:''"`
	Note        string `gorm:"not null;default:''"`
	LocationURL *string
	Latitude    *float64
	Longitude   *float64
	OpenDays    string    `gorm:"not null;default:''"`
	OpenTime    string    `gorm:"not null;default:''"`
	CloseTime   string    `gorm:"not null;default:''"`
	CreatedAt   time.Time `gorm:"not null"`
	UpdatedAt   time.Time `gorm:"not null"`
}

func (Availability) TableName() string { return "availabilities" }

// Models lists every table in migration order.
func Models() []any {
	return []any{
		&TicketBalance{},
		&TicketTransaction{},
		&TicketOrder{},
		&CustomerOrder{},
		&OrderRating{},
		&Profile{},
		&Availability{},
	}
}
