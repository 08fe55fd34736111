package payment

import (
	"context"
	"encoding/json"
)

// ChargeRequest asks a gateway for payment instructions.
type ChargeRequest struct {
	OrderID     string
	GrossAmount int64
	Method      PaymentMethod
	Quantity    int64
	UnitPrice   int64
	CustomerID  string
}

// Gateway produces the opaque instructions shown to the payer.
type Gateway interface {
	Charge(ctx context.Context, request ChargeRequest) (json.RawMessage, error)
}

// ManualGateway returns static transfer instructions. Settlement arrives through the same
// notification channel as any other gateway.
type ManualGateway struct {
	Instructions string
}

type manualInstructions struct {
	PaymentType  string `json:"payment_type"`
	OrderID      string `json:"order_id"`
	GrossAmount  int64  `json:"gross_amount"`
	Method       string `json:"method"`
	Instructions string `json:"instructions,omitempty"`
}

// Charge implements Gateway.
func (gateway ManualGateway) Charge(_ context.Context, request ChargeRequest) (json.RawMessage, error) {
	payload, err := json.Marshal(manualInstructions{
		PaymentType:  PaymentMethodManual.String(),
		OrderID:      request.OrderID,
		GrossAmount:  request.GrossAmount,
		Method:       request.Method.String(),
		Instructions: gateway.Instructions,
	})
	if err != nil {
		return nil, err
	}
	return payload, nil
}
