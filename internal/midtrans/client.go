// Package midtrans requests payment instructions from the Midtrans Core API.
package midtrans

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/MarkoPoloResearchLab/ticketengine/pkg/payment"
	"go.uber.org/zap"
)

const (
	// SandboxBaseURL is the Core API host for sandbox keys.
	SandboxBaseURL = "https://api.sandbox.midtrans.com"
	// ProductionBaseURL is the Core API host for production keys.
	ProductionBaseURL = "https://api.midtrans.com"

	chargePath         = "/v2/charge"
	defaultHTTPTimeout = 15 * time.Second
	maxResponseBytes   = 1 << 20
	itemName           = "Ticket"
	qrisAcquirer       = "gopay"
)

var (
	ErrMissingServerKey = errors.New("midtrans: server key is required")
	ErrChargeRejected   = errors.New("midtrans: charge rejected")
)

// Client implements payment.Gateway over the Core API charge endpoint.
type Client struct {
	serverKey  string
	baseURL    string
	httpClient *http.Client
	fallback   payment.Gateway
	logger     *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API host.
func WithBaseURL(baseURL string) Option {
	return func(client *Client) {
		if trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/"); trimmed != "" {
			client.baseURL = trimmed
		}
	}
}

// WithHTTPClient overrides the transport.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(client *Client) {
		if httpClient != nil {
			client.httpClient = httpClient
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(client *Client) {
		if logger != nil {
			client.logger = logger
		}
	}
}

// NewClient builds a sandbox client unless WithBaseURL says otherwise. Manual purchases bypass the
// API and get static instructions.
func NewClient(serverKey string, options ...Option) (*Client, error) {
	serverKey = strings.TrimSpace(serverKey)
	if serverKey == "" {
		return nil, ErrMissingServerKey
	}
	client := &Client{
		serverKey:  serverKey,
		baseURL:    SandboxBaseURL,
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
		fallback:   payment.ManualGateway{},
		logger:     zap.NewNop(),
	}
	for _, option := range options {
		if option != nil {
			option(client)
		}
	}
	return client, nil
}

type transactionDetails struct {
	OrderID     string `json:"order_id"`
	GrossAmount int64  `json:"gross_amount"`
}

type itemDetail struct {
	ID       string `json:"id"`
	Price    int64  `json:"price"`
	Quantity int64  `json:"quantity"`
	Name     string `json:"name"`
}

type customerDetails struct {
	FirstName string `json:"first_name"`
}

type bankTransfer struct {
	Bank string `json:"bank"`
}

type qrisOptions struct {
	Acquirer string `json:"acquirer"`
}

type chargeBody struct {
	PaymentType        string             `json:"payment_type"`
	TransactionDetails transactionDetails `json:"transaction_details"`
	ItemDetails        []itemDetail       `json:"item_details"`
	CustomerDetails    *customerDetails   `json:"customer_details,omitempty"`
	BankTransfer       *bankTransfer      `json:"bank_transfer,omitempty"`
	QRIS               *qrisOptions       `json:"qris,omitempty"`
}

type chargeStatus struct {
	StatusCode    string `json:"status_code"`
	StatusMessage string `json:"status_message"`
}

func buildChargeBody(request payment.ChargeRequest) (chargeBody, error) {
	body := chargeBody{
		TransactionDetails: transactionDetails{OrderID: request.OrderID, GrossAmount: request.GrossAmount},
		ItemDetails: []itemDetail{{
			ID:       request.OrderID,
			Price:    request.UnitPrice,
			Quantity: request.Quantity,
			Name:     itemName,
		}},
	}
	if request.CustomerID != "" {
		body.CustomerDetails = &customerDetails{FirstName: request.CustomerID}
	}
	switch {
	case request.Method == payment.PaymentMethodQRIS:
		body.PaymentType = "qris"
		body.QRIS = &qrisOptions{Acquirer: qrisAcquirer}
	case request.Method == payment.PaymentMethodGoPay:
		body.PaymentType = "gopay"
	case request.Method.BankTransfer():
		body.PaymentType = "bank_transfer"
		body.BankTransfer = &bankTransfer{Bank: request.Method.String()}
	default:
		return chargeBody{}, fmt.Errorf("%w: %q", payment.ErrInvalidPaymentMethod, request.Method)
	}
	return body, nil
}

// Charge implements payment.Gateway. The response body is returned as the payment payload.
func (client *Client) Charge(ctx context.Context, request payment.ChargeRequest) (json.RawMessage, error) {
	if request.Method == payment.PaymentMethodManual {
		return client.fallback.Charge(ctx, request)
	}
	body, err := buildChargeBody(request)
	if err != nil {
		return nil, err
	}
	encoded, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	httpRequest, err := http.NewRequestWithContext(ctx, http.MethodPost, client.baseURL+chargePath, bytes.NewReader(encoded))
	if err != nil {
		return nil, err
	}
	httpRequest.Header.Set("Accept", "application/json")
	httpRequest.Header.Set("Content-Type", "application/json")
	httpRequest.SetBasicAuth(client.serverKey, "")

	response, err := client.httpClient.Do(httpRequest)
	if err != nil {
		return nil, fmt.Errorf("midtrans charge: %w", err)
	}
	defer response.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(response.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("midtrans charge: read body: %w", err)
	}
	if response.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("%w: http %d", ErrChargeRejected, response.StatusCode)
	}
	var status chargeStatus
	if err := json.Unmarshal(raw, &status); err != nil {
		return nil, fmt.Errorf("midtrans charge: decode: %w", err)
	}
	// The API answers 200 with the real outcome in status_code.
	if !strings.HasPrefix(status.StatusCode, "2") {
		return nil, fmt.Errorf("%w: %s %s", ErrChargeRejected, status.StatusCode, status.StatusMessage)
	}
	client.logger.Debug("midtrans charge created",
		zap.String("order_id", request.OrderID),
		zap.String("payment_type", body.PaymentType),
		zap.String("status_code", status.StatusCode),
	)
	return json.RawMessage(raw), nil
}
