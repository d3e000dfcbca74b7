package zaplog

import (
	"context"

	"github.com/openarena/wallet/pkg/wallet"
	"go.uber.org/zap"
)

// OperationLogger adapts wallet service operation callbacks onto zap.
type OperationLogger struct {
	logger *zap.Logger
}

// NewOperationLogger wires the adapter.
func NewOperationLogger(logger *zap.Logger) *OperationLogger {
	return &OperationLogger{logger: logger}
}

// LogOperation writes one structured entry per wallet operation.
func (operationLogger *OperationLogger) LogOperation(_ context.Context, entry wallet.OperationLog) {
	fields := []zap.Field{
		zap.String("operation", entry.Operation),
		zap.String("account_id", entry.AccountID.String()),
		zap.String("status", entry.Status),
		zap.Int64("amount_cents", entry.Amount.Int64()),
	}
	if entry.TransactionID.String() != "" {
		fields = append(fields, zap.String("transaction_id", entry.TransactionID.String()))
	}
	if entry.Type.String() != "" {
		fields = append(fields, zap.String("type", entry.Type.String()))
	}
	if entry.IdempotencyKey != nil {
		fields = append(fields, zap.String("idempotency_key", entry.IdempotencyKey.String()))
	}
	if entry.Error != nil {
		operationLogger.logger.Warn("wallet operation failed", append(fields, zap.Error(entry.Error))...)
		return
	}
	operationLogger.logger.Info("wallet operation", fields...)
}
