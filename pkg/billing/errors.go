package billing

import (
	"errors"
	"fmt"
)

// Domain-level error values returned by the billing service.
var (
	ErrReservationNotFound      = errors.New("reservation not found")
	ErrExpenseNotFound          = errors.New("expense not found")
	ErrAbonoNotFound            = errors.New("abono not found")
	ErrVillaNotFound            = errors.New("villa not found")
	ErrInvoiceNumberTaken       = errors.New("invoice number already in use")
	ErrManualNumberForbidden    = errors.New("manual invoice numbers require the admin role")
	ErrCounterExhausted         = errors.New("invoice counter exhausted")
	ErrInvalidInvoiceNumber     = errors.New("invalid invoice number")
	ErrInvalidAmount            = errors.New("invalid amount")
	ErrInvalidCurrency          = errors.New("invalid currency")
	ErrInvalidRole              = errors.New("invalid role")
	ErrInvalidIdentity          = errors.New("invalid identity")
	ErrInvalidPaymentStatus     = errors.New("invalid payment status")
	ErrInvalidReservationStatus = errors.New("invalid reservation status")
	ErrInvalidCategory          = errors.New("invalid expense category")
	ErrInvalidTarget            = errors.New("invalid abono target")
	ErrInvalidReservation       = errors.New("invalid reservation payload")
	ErrInvalidServiceConfig     = errors.New("invalid service config")
)

// OperationError wraps a failure with a stable operation code.
type OperationError struct {
	operation string
	subject   string
	code      string
	err       error
}

// Error returns the formatted error message.
func (operationError OperationError) Error() string {
	return fmt.Sprintf("%s.%s.%s: %v", operationError.operation, operationError.subject, operationError.code, operationError.err)
}

// Unwrap returns the underlying error.
func (operationError OperationError) Unwrap() error {
	return operationError.err
}

// Operation returns the operation segment.
func (operationError OperationError) Operation() string {
	return operationError.operation
}

// Subject returns the subject segment.
func (operationError OperationError) Subject() string {
	return operationError.subject
}

// Code returns the stable error code segment.
func (operationError OperationError) Code() string {
	return operationError.code
}

// WrapError wraps an error with operation, subject, and code metadata.
func WrapError(operation string, subject string, code string, err error) error {
	if err == nil {
		return nil
	}
	return OperationError{
		operation: operation,
		subject:   subject,
		code:      code,
		err:       err,
	}
}
