// Package config holds the validated runtime settings of ticketd.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MarkoPoloResearchLab/ticketengine/pkg/delivery"
	"github.com/MarkoPoloResearchLab/ticketengine/pkg/payment"
)

const (
	GatewayManual        = "manual"
	GatewayMidtrans      = "midtrans"
	DefaultSessionIssuer = "ticketengine"

	defaultListenAddr     = ":8080"
	defaultDatabaseURL    = "sqlite:///tmp/ticketengine.db"
	defaultAllowedOrigin  = "http://localhost:3000"
	defaultSessionCookie  = "app_session"
	defaultRequestTimeout = 10 * time.Second
)

var ErrInvalidConfig = errors.New("invalid configuration")

// Config aggregates runtime settings for the HTTP server and its collaborators.
type Config struct {
	ListenAddr        string
	DatabaseURL       string
	AllowedOrigins    []string
	SessionSigningKey string
	SessionIssuer     string
	SessionCookieName string

	PaymentGateway    string
	MidtransServerKey string
	MidtransBaseURL   string
	TicketPrice       int64
	MinimumPurchase   int64
	TransitionPolicy  string

	RedisAddr    string
	RedisChannel string
	KafkaBrokers []string
	KafkaTopic   string

	RequestTimeout time.Duration
	PricingBands   []PricingBand
}

// Validate fills defaults and rejects settings the server cannot run with.
func (cfg *Config) Validate() error {
	cfg.ListenAddr = defaultIfEmpty(cfg.ListenAddr, defaultListenAddr)
	cfg.DatabaseURL = defaultIfEmpty(cfg.DatabaseURL, defaultDatabaseURL)
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{defaultAllowedOrigin}
	}
	cfg.SessionIssuer = defaultIfEmpty(cfg.SessionIssuer, DefaultSessionIssuer)
	cfg.SessionCookieName = defaultIfEmpty(cfg.SessionCookieName, defaultSessionCookie)
	cfg.PaymentGateway = strings.ToLower(defaultIfEmpty(cfg.PaymentGateway, GatewayManual))
	cfg.TransitionPolicy = strings.ToLower(defaultIfEmpty(cfg.TransitionPolicy, delivery.PolicyStrict))
	if cfg.TicketPrice == 0 {
		cfg.TicketPrice = payment.DefaultPurchasePolicy().PricePerTicket
	}
	if cfg.MinimumPurchase == 0 {
		cfg.MinimumPurchase = payment.DefaultPurchasePolicy().MinimumQuantity
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	if len(cfg.PricingBands) == 0 {
		cfg.PricingBands = DefaultPricingBands()
	}

	if len(cfg.SessionSigningKey) == 0 {
		return fmt.Errorf("%w: jwt signing key is required", ErrInvalidConfig)
	}
	if strings.TrimSpace(cfg.MidtransServerKey) == "" {
		return fmt.Errorf("%w: midtrans server key is required to verify payment notifications", ErrInvalidConfig)
	}
	switch cfg.PaymentGateway {
	case GatewayManual, GatewayMidtrans:
	default:
		return fmt.Errorf("%w: unknown payment gateway %q", ErrInvalidConfig, cfg.PaymentGateway)
	}
	if _, err := delivery.ParsePolicy(cfg.TransitionPolicy); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if cfg.TicketPrice < 0 {
		return fmt.Errorf("%w: ticket price must be positive", ErrInvalidConfig)
	}
	if cfg.MinimumPurchase < 0 {
		return fmt.Errorf("%w: minimum purchase must be positive", ErrInvalidConfig)
	}
	if err := validateBands(cfg.PricingBands); err != nil {
		return err
	}
	return nil
}

// PurchasePolicy returns the ticket pricing the payment service enforces.
func (cfg Config) PurchasePolicy() payment.PurchasePolicy {
	return payment.PurchasePolicy{MinimumQuantity: cfg.MinimumPurchase, PricePerTicket: cfg.TicketPrice}
}

func defaultIfEmpty(value string, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return strings.TrimSpace(value)
}

// ParseList splits comma-delimited values, dropping blanks.
func ParseList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return []string{}
	}
	parts := strings.Split(raw, ",")
	normalized := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			normalized = append(normalized, trimmed)
		}
	}
	return normalized
}
