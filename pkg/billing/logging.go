package billing

import (
	"context"

	"github.com/shopspring/decimal"
)

// ServiceOption configures a Service instance.
type ServiceOption func(*Service)

// OperationLogger records domain-level events emitted by Service operations.
type OperationLogger interface {
	LogOperation(ctx context.Context, entry OperationLog)
}

// OperationLog describes a state-changing billing operation.
type OperationLog struct {
	Operation     string
	ReservationID string
	ExpenseID     string
	AbonoID       string
	InvoiceNumber string
	Amount        decimal.Decimal
	UserID        string
	Status        string
	Error         error
}

// WithOperationLogger wires a logger that receives callbacks for every operation.
func WithOperationLogger(logger OperationLogger) ServiceOption {
	return func(service *Service) {
		service.logger = logger
	}
}

// WithIDGenerator overrides record id generation (tests use this to get
// deterministic ids).
func WithIDGenerator(generate func() string) ServiceOption {
	return func(service *Service) {
		if generate != nil {
			service.idFn = generate
		}
	}
}
