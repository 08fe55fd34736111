package audit

import (
	"context"
	"errors"
	"testing"

	"github.com/MarkoPoloResearchLab/ticketengine/pkg/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogOperationSuccess(test *testing.T) {
	test.Parallel()
	core, logs := observer.New(zapcore.InfoLevel)
	logger := NewZapOperationLogger(zap.New(core))
	userID, err := ledger.NewUserID("driver-1")
	require.NoError(test, err)

	logger.LogOperation(context.Background(), ledger.OperationLog{
		Operation:   "credit",
		UserID:      userID,
		Type:        ledger.TransactionPurchase,
		Amount:      10,
		ReferenceID: "order-1",
		Balance:     10,
		Status:      "ok",
	})

	entries := logs.All()
	require.Len(test, entries, 1)
	assert.Equal(test, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(test, "ledger", entries[0].LoggerName)
	fields := entries[0].ContextMap()
	assert.Equal(test, "driver-1", fields["user_id"])
	assert.Equal(test, "PURCHASE", fields["type"])
	assert.Equal(test, "order-1", fields["reference_id"])
	assert.EqualValues(test, 10, fields["balance"])
}

func TestLogOperationFailure(test *testing.T) {
	test.Parallel()
	core, logs := observer.New(zapcore.InfoLevel)
	logger := NewZapOperationLogger(zap.New(core))

	logger.LogOperation(context.Background(), ledger.OperationLog{
		Operation: "debit",
		Amount:    -8,
		Status:    "error",
		Error:     ledger.ErrInsufficientFunds,
	})

	entries := logs.FilterMessage("ledger operation failed").All()
	require.Len(test, entries, 1)
	assert.Equal(test, zapcore.WarnLevel, entries[0].Level)
	assert.Contains(test, entries[0].ContextMap()["error"], "insufficient")
	_, hasReference := entries[0].ContextMap()["reference_id"]
	assert.False(test, hasReference)
}

func TestNilLoggerDiscards(test *testing.T) {
	test.Parallel()
	assert.NotPanics(test, func() {
		NewZapOperationLogger(nil).LogOperation(context.Background(), ledger.OperationLog{Status: "error", Error: errors.New("boom")})
	})
}
