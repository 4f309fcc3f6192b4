package billing

import (
	"context"
	"errors"
	"sync"
	"testing"
)

type recorderLogger struct {
	mu      sync.Mutex
	entries []OperationLog
}

func (recorder *recorderLogger) LogOperation(_ context.Context, entry OperationLog) {
	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	recorder.entries = append(recorder.entries, entry)
}

func (recorder *recorderLogger) last(test *testing.T) OperationLog {
	test.Helper()
	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	if len(recorder.entries) == 0 {
		test.Fatal("no operations logged")
	}
	return recorder.entries[len(recorder.entries)-1]
}

func TestOperationLoggerReceivesSuccess(test *testing.T) {
	test.Parallel()

	store := newStubStore(test)
	seedVilla(store)
	recorder := &recorderLogger{}
	service, err := NewService(store, func() int64 { return 1700000000 }, WithOperationLogger(recorder))
	if err != nil {
		test.Fatalf("service init: %v", err)
	}
	caller := mustIdentity(test, "user-1", RoleEmployee)

	reservation, err := service.CreateReservation(context.Background(), villaReservationInput(test), caller)
	if err != nil {
		test.Fatalf("unexpected error: %v", err)
	}

	entry := recorder.last(test)
	if entry.Operation != operationCreateReservation {
		test.Fatalf("operation = %q, want %q", entry.Operation, operationCreateReservation)
	}
	if entry.Status != operationStatusOK {
		test.Fatalf("status = %q, want ok", entry.Status)
	}
	if entry.ReservationID != reservation.ID {
		test.Fatalf("reservation id = %q, want %q", entry.ReservationID, reservation.ID)
	}
	if entry.InvoiceNumber != reservation.InvoiceNumber {
		test.Fatalf("invoice number = %q, want %q", entry.InvoiceNumber, reservation.InvoiceNumber)
	}
	if entry.UserID != "user-1" {
		test.Fatalf("user id = %q, want user-1", entry.UserID)
	}
}

func TestOperationLoggerReceivesFailure(test *testing.T) {
	test.Parallel()

	store := newStubStore(test)
	recorder := &recorderLogger{}
	service, err := NewService(store, func() int64 { return 1700000000 }, WithOperationLogger(recorder))
	if err != nil {
		test.Fatalf("service init: %v", err)
	}
	caller := mustIdentity(test, "user-1", RoleEmployee)

	if _, err := service.AllocateInvoiceNumber(context.Background(), "1700", caller); !errors.Is(err, ErrManualNumberForbidden) {
		test.Fatalf("err = %v, want ErrManualNumberForbidden", err)
	}

	entry := recorder.last(test)
	if entry.Operation != operationAllocateNumber {
		test.Fatalf("operation = %q, want %q", entry.Operation, operationAllocateNumber)
	}
	if entry.Status != operationStatusError {
		test.Fatalf("status = %q, want error", entry.Status)
	}
	if !errors.Is(entry.Error, ErrManualNumberForbidden) {
		test.Fatalf("entry error = %v, want ErrManualNumberForbidden", entry.Error)
	}
}

func TestNewServiceRejectsNilDependencies(test *testing.T) {
	test.Parallel()

	if _, err := NewService(nil, func() int64 { return 0 }); !errors.Is(err, ErrInvalidServiceConfig) {
		test.Fatalf("err = %v, want ErrInvalidServiceConfig", err)
	}
	if _, err := NewService(newStubStore(test), nil); !errors.Is(err, ErrInvalidServiceConfig) {
		test.Fatalf("err = %v, want ErrInvalidServiceConfig", err)
	}
}
