package payment

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Notification is a parsed payment-status event. It is only built by ParseNotification. Fields keep
// the bytes the gateway sent, since the signature covers them verbatim.
type Notification struct {
	OrderID           string
	TransactionStatus string
	FraudStatus       string
	StatusCode        string
	GrossAmount       string
	SignatureKey      string
	PaymentType       string
}

type notificationWire struct {
	OrderID           *string `json:"order_id"`
	TransactionStatus *string `json:"transaction_status"`
	FraudStatus       *string `json:"fraud_status"`
	StatusCode        *string `json:"status_code"`
	GrossAmount       *string `json:"gross_amount"`
	SignatureKey      *string `json:"signature_key"`
	PaymentType       *string `json:"payment_type"`
}

// ParseNotification decodes a webhook body. Required fields must be non-blank strings,
// status_code must be digits and gross_amount a decimal number. Unknown fields are ignored.
func ParseNotification(raw []byte) (Notification, error) {
	var wire notificationWire
	if err := json.Unmarshal(raw, &wire); err != nil {
		return Notification{}, fmt.Errorf("%w: %v", ErrInvalidNotification, err)
	}
	notification := Notification{
		OrderID:           valueOf(wire.OrderID),
		TransactionStatus: valueOf(wire.TransactionStatus),
		FraudStatus:       valueOf(wire.FraudStatus),
		StatusCode:        valueOf(wire.StatusCode),
		GrossAmount:       valueOf(wire.GrossAmount),
		SignatureKey:      valueOf(wire.SignatureKey),
		PaymentType:       valueOf(wire.PaymentType),
	}
	required := []struct {
		name  string
		value string
	}{
		{"order_id", notification.OrderID},
		{"transaction_status", notification.TransactionStatus},
		{"status_code", notification.StatusCode},
		{"gross_amount", notification.GrossAmount},
		{"signature_key", notification.SignatureKey},
	}
	for _, field := range required {
		if strings.TrimSpace(field.value) == "" {
			return Notification{}, fmt.Errorf("%w: missing %s", ErrInvalidNotification, field.name)
		}
	}
	if !isDigits(notification.StatusCode) {
		return Notification{}, fmt.Errorf("%w: status_code %q", ErrInvalidNotification, notification.StatusCode)
	}
	if _, err := decimal.NewFromString(notification.GrossAmount); err != nil {
		return Notification{}, fmt.Errorf("%w: gross_amount %q", ErrInvalidNotification, notification.GrossAmount)
	}
	return notification, nil
}

// Amount returns the gross amount as a decimal. ParseNotification guarantees it parses.
func (notification Notification) Amount() decimal.Decimal {
	amount, err := decimal.NewFromString(notification.GrossAmount)
	if err != nil {
		return decimal.Zero
	}
	return amount
}

func valueOf(pointer *string) string {
	if pointer == nil {
		return ""
	}
	return *pointer
}

func isDigits(value string) bool {
	if value == "" {
		return false
	}
	for _, character := range value {
		if character < '0' || character > '9' {
			return false
		}
	}
	return true
}
