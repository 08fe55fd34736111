package httpapi

import (
	"encoding/json"
	"time"

	"github.com/MarkoPoloResearchLab/ticketengine/pkg/availability"
	"github.com/MarkoPoloResearchLab/ticketengine/pkg/delivery"
	"github.com/MarkoPoloResearchLab/ticketengine/pkg/ledger"
	"github.com/MarkoPoloResearchLab/ticketengine/pkg/payment"
)

type purchaseRequest struct {
	Quantity      int64  `json:"quantity"`
	PaymentMethod string `json:"payment_method"`
}

type consumeRequest struct {
	Quantity    int64  `json:"quantity"`
	Description string `json:"description"`
}

type adjustRequest struct {
	UserID      string `json:"user_id"`
	Delta       int64  `json:"delta"`
	Description string `json:"description"`
}

type createOrderRequest struct {
	Type    string `json:"type"`
	StoreID string `json:"store_id"`
}

type transitionRequest struct {
	Status string `json:"status"`
}

type ratingRequest struct {
	Score   int    `json:"score"`
	Comment string `json:"comment"`
}

type availabilityRequest struct {
	Status      *string  `json:"status"`
	Region      *string  `json:"region"`
	Note        *string  `json:"note"`
	LocationURL *string  `json:"location_url"`
	Latitude    *float64 `json:"latitude"`
	Longitude   *float64 `json:"longitude"`
	OpenDays    *string  `json:"open_days"`
	OpenTime    *string  `json:"open_time"`
	CloseTime   *string  `json:"close_time"`
}

func (request availabilityRequest) patch() (availability.Patch, error) {
	patch := availability.Patch{
		Region:      request.Region,
		Note:        request.Note,
		LocationURL: request.LocationURL,
		Latitude:    request.Latitude,
		Longitude:   request.Longitude,
		OpenDays:    request.OpenDays,
		OpenTime:    request.OpenTime,
		CloseTime:   request.CloseTime,
	}
	if request.Status != nil {
		status, err := availability.ParseStatus(*request.Status)
		if err != nil {
			return availability.Patch{}, err
		}
		patch.Status = &status
	}
	return patch, nil
}

type transactionPayload struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	Amount      int64     `json:"amount"`
	Description string    `json:"description"`
	ReferenceID string    `json:"reference_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func newTransactionPayloads(transactions []ledger.Transaction) []transactionPayload {
	payloads := make([]transactionPayload, 0, len(transactions))
	for _, transaction := range transactions {
		payloads = append(payloads, transactionPayload{
			ID:          transaction.ID,
			Type:        transaction.Type.String(),
			Amount:      transaction.Amount.Int64(),
			Description: transaction.Description,
			ReferenceID: transaction.ReferenceID,
			CreatedAt:   transaction.CreatedAt,
		})
	}
	return payloads
}

type ticketOrderPayload struct {
	ID               string          `json:"id"`
	UserID           string          `json:"user_id"`
	Quantity         int64           `json:"quantity"`
	PricePerTicket   int64           `json:"price_per_ticket"`
	TotalAmount      int64           `json:"total_amount"`
	Status           string          `json:"status"`
	PaymentMethod    string          `json:"payment_method"`
	PaymentPayload   json.RawMessage `json:"payment_payload,omitempty"`
	MidtransOrderID  string          `json:"midtrans_order_id"`
	PaymentStatusRaw string          `json:"payment_status_raw,omitempty"`
	PaidAt           *time.Time      `json:"paid_at,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
}

func newTicketOrderPayload(order payment.TicketOrder) ticketOrderPayload {
	return ticketOrderPayload{
		ID:               order.ID,
		UserID:           order.UserID.String(),
		Quantity:         order.Quantity,
		PricePerTicket:   order.PricePerTicket,
		TotalAmount:      order.TotalAmount,
		Status:           order.Status.String(),
		PaymentMethod:    order.PaymentMethod.String(),
		PaymentPayload:   order.PaymentPayload,
		MidtransOrderID:  order.MidtransOrderID,
		PaymentStatusRaw: order.PaymentStatusRaw,
		PaidAt:           order.PaidAt,
		CreatedAt:        order.CreatedAt,
	}
}

type orderPayload struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	Status     string    `json:"status"`
	CustomerID string    `json:"customer_id"`
	StoreID    string    `json:"store_id,omitempty"`
	DriverID   string    `json:"driver_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func newOrderPayload(order delivery.Order) orderPayload {
	return orderPayload{
		ID:         order.ID,
		Type:       order.Type.String(),
		Status:     order.Status.String(),
		CustomerID: order.CustomerID,
		StoreID:    order.StoreID,
		DriverID:   order.DriverID,
		CreatedAt:  order.CreatedAt,
		UpdatedAt:  order.UpdatedAt,
	}
}

type ratingPayload struct {
	ID         string    `json:"id"`
	OrderID    string    `json:"order_id"`
	CustomerID string    `json:"customer_id"`
	Score      int       `json:"score"`
	Comment    string    `json:"comment,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

func newRatingPayload(rating delivery.Rating) ratingPayload {
	return ratingPayload{
		ID:         rating.ID,
		OrderID:    rating.OrderID,
		CustomerID: rating.CustomerID,
		Score:      rating.Score,
		Comment:    rating.Comment,
		CreatedAt:  rating.CreatedAt,
	}
}

type availabilityPayload struct {
	UserID      string    `json:"user_id"`
	Role        string    `json:"role"`
	Status      string    `json:"status"`
	Region      string    `json:"region"`
	Note        string    `json:"note"`
	LocationURL *string   `json:"location_url"`
	Latitude    *float64  `json:"latitude"`
	Longitude   *float64  `json:"longitude"`
	OpenDays    string    `json:"open_days,omitempty"`
	OpenTime    string    `json:"open_time,omitempty"`
	CloseTime   string    `json:"close_time,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func newAvailabilityPayload(record availability.Record) availabilityPayload {
	return availabilityPayload{
		UserID:      record.UserID,
		Role:        record.Role.String(),
		Status:      record.Status.String(),
		Region:      record.Region,
		Note:        record.Note,
		LocationURL: record.LocationURL,
		Latitude:    record.Latitude,
		Longitude:   record.Longitude,
		OpenDays:    record.OpenDays,
		OpenTime:    record.OpenTime,
		CloseTime:   record.CloseTime,
		UpdatedAt:   record.UpdatedAt,
	}
}
