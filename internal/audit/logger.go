// Package audit writes ledger operations to the structured log.
package audit

import (
	"context"

	"github.com/MarkoPoloResearchLab/ticketengine/pkg/ledger"
	"go.uber.org/zap"
)

const statusOK = "ok"

// ZapOperationLogger implements ledger.OperationLogger.
type ZapOperationLogger struct {
	logger *zap.Logger
}

// NewZapOperationLogger names the logger "ledger". A nil logger discards entries.
func NewZapOperationLogger(logger *zap.Logger) *ZapOperationLogger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ZapOperationLogger{logger: logger.Named("ledger")}
}

// LogOperation implements ledger.OperationLogger. Failures are logged at warn level.
func (operationLogger *ZapOperationLogger) LogOperation(_ context.Context, entry ledger.OperationLog) {
	fields := []zap.Field{
		zap.String("operation", entry.Operation),
		zap.String("user_id", entry.UserID.String()),
		zap.Int64("amount", int64(entry.Amount)),
		zap.Int64("balance", int64(entry.Balance)),
		zap.String("status", entry.Status),
	}
	if entry.Type != "" {
		fields = append(fields, zap.String("type", string(entry.Type)))
	}
	if entry.ReferenceID != "" {
		fields = append(fields, zap.String("reference_id", entry.ReferenceID))
	}
	if entry.Error != nil || entry.Status != statusOK {
		fields = append(fields, zap.Error(entry.Error))
		operationLogger.logger.Warn("ledger operation failed", fields...)
		return
	}
	operationLogger.logger.Info("ledger operation", fields...)
}
