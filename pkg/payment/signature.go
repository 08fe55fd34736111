package payment

import (
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"
)

// SignatureVerifier checks the gateway's keyed digest
// hex(sha512(order_id + status_code + gross_amount + serverKey)).
type SignatureVerifier struct {
	serverKey string
}

// NewSignatureVerifier requires the shared server key.
func NewSignatureVerifier(serverKey string) (SignatureVerifier, error) {
	trimmed := strings.TrimSpace(serverKey)
	if trimmed == "" {
		return SignatureVerifier{}, fmt.Errorf("%w: server key is empty", ErrInvalidServiceConfig)
	}
	return SignatureVerifier{serverKey: trimmed}, nil
}

// Sign computes the expected signature for the given fields.
func (verifier SignatureVerifier) Sign(orderID string, statusCode string, grossAmount string) string {
	digest := sha512.Sum512([]byte(orderID + statusCode + grossAmount + verifier.serverKey))
	return hex.EncodeToString(digest[:])
}

// Verify returns ErrInvalidSignature unless the supplied signature matches exactly.
func (verifier SignatureVerifier) Verify(notification Notification) error {
	expected := verifier.Sign(notification.OrderID, notification.StatusCode, notification.GrossAmount)
	if subtle.ConstantTimeCompare([]byte(expected), []byte(notification.SignatureKey)) != 1 {
		return ErrInvalidSignature
	}
	return nil
}
