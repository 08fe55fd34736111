package ledger

import (
	"errors"
	"testing"
)

func TestNewQuantityRejectsNonPositive(test *testing.T) {
	test.Parallel()
	for _, raw := range []int64{0, -1} {
		if _, err := NewQuantity(raw); !errors.Is(err, ErrInvalidQuantity) {
			test.Fatalf("expected ErrInvalidQuantity for %d, got %v", raw, err)
		}
	}
	quantity := mustQuantity(test, 4)
	if quantity.Credit() != 4 || quantity.Debit() != -4 {
		test.Fatalf("unexpected signed amounts: %d %d", quantity.Credit(), quantity.Debit())
	}
}

func TestNewUserIDTrims(test *testing.T) {
	test.Parallel()
	userID := mustUserID(test, "  driver-9 ")
	if userID.String() != "driver-9" {
		test.Fatalf("expected trimmed id, got %q", userID.String())
	}
	if _, err := NewUserID("   "); !errors.Is(err, ErrInvalidUserID) {
		test.Fatalf("expected ErrInvalidUserID, got %v", err)
	}
}

func TestParseTransactionType(test *testing.T) {
	test.Parallel()
	parsed, err := ParseTransactionType("purchase")
	if err != nil || parsed != TransactionPurchase {
		test.Fatalf("expected PURCHASE, got %s (%v)", parsed, err)
	}
	if _, err := ParseTransactionType("refund"); !errors.Is(err, ErrInvalidTransactionType) {
		test.Fatalf("expected ErrInvalidTransactionType, got %v", err)
	}
}
