// Package oplog adapts zap to the billing operation-log callback.
package oplog

import (
	"context"

	"go.uber.org/zap"

	"github.com/caribevillas/billing/pkg/billing"
)

// Logger emits one structured log line per billing operation.
type Logger struct {
	logger *zap.Logger
}

// New returns a Logger writing through the supplied zap logger.
func New(logger *zap.Logger) *Logger {
	return &Logger{logger: logger}
}

// LogOperation implements billing.OperationLogger.
func (operationLogger *Logger) LogOperation(_ context.Context, entry billing.OperationLog) {
	fields := []zap.Field{
		zap.String("operation", entry.Operation),
		zap.String("status", entry.Status),
	}
	if entry.ReservationID != "" {
		fields = append(fields, zap.String("reservation_id", entry.ReservationID))
	}
	if entry.ExpenseID != "" {
		fields = append(fields, zap.String("expense_id", entry.ExpenseID))
	}
	if entry.AbonoID != "" {
		fields = append(fields, zap.String("abono_id", entry.AbonoID))
	}
	if entry.InvoiceNumber != "" {
		fields = append(fields, zap.String("invoice_number", entry.InvoiceNumber))
	}
	if !entry.Amount.IsZero() {
		fields = append(fields, zap.String("amount", entry.Amount.String()))
	}
	if entry.UserID != "" {
		fields = append(fields, zap.String("user_id", entry.UserID))
	}
	if entry.Error != nil {
		fields = append(fields, zap.Error(entry.Error))
		operationLogger.logger.Warn("billing operation failed", fields...)
		return
	}
	operationLogger.logger.Info("billing operation", fields...)
}
