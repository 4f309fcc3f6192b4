package billing

import (
	"context"
	"fmt"
	"strconv"
)

// AllocateInvoiceNumber issues the next invoice number, or claims a
// manually chosen one (admin only). The whole read-probe-write runs in
// one transaction so concurrent callers cannot hand out the same
// number.
func (service *Service) AllocateInvoiceNumber(ctx context.Context, manualNumber string, caller Identity) (string, error) {
	var allocated string
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		number, err := service.allocateNumber(ctx, transactionStore, manualNumber, caller.Role)
		if err != nil {
			return err
		}
		allocated = number
		return nil
	})
	service.logOperation(ctx, OperationLog{
		Operation:     operationAllocateNumber,
		InvoiceNumber: allocated,
		UserID:        caller.UserID,
		Error:         operationError,
	})
	if operationError != nil {
		return "", operationError
	}
	return allocated, nil
}

// IsInvoiceNumberAvailable reports whether a number is free in all
// three numbered streams.
func (service *Service) IsInvoiceNumberAvailable(ctx context.Context, rawNumber string) (bool, error) {
	number, err := NewInvoiceNumber(rawNumber)
	if err != nil {
		return false, err
	}
	inUse, err := service.numberInUse(ctx, service.store, number.String())
	if err != nil {
		return false, err
	}
	return !inUse, nil
}

func (service *Service) allocateNumber(ctx context.Context, store Store, manualNumber string, role Role) (string, error) {
	if manualNumber != "" {
		return service.claimManualNumber(ctx, store, manualNumber, role)
	}
	return service.nextFreeNumber(ctx, store)
}

// nextFreeNumber probes upward from the counter. Manually claimed
// numbers may sit ahead of the counter, so candidates are checked for
// existence before being handed out.
func (service *Service) nextFreeNumber(ctx context.Context, store Store) (string, error) {
	candidate, err := store.CounterValue(ctx)
	if err != nil {
		return "", err
	}
	for attempt := 0; attempt < MaxProbeAttempts; attempt++ {
		number := strconv.FormatInt(candidate, 10)
		inUse, err := service.numberInUse(ctx, store, number)
		if err != nil {
			return "", err
		}
		if !inUse {
			if err := store.SetCounterValue(ctx, candidate+1); err != nil {
				return "", err
			}
			return number, nil
		}
		candidate++
	}
	return "", WrapError(operationAllocateNumber, "counter", "exhausted",
		fmt.Errorf("%w: no free number within %d probes", ErrCounterExhausted, MaxProbeAttempts))
}

func (service *Service) claimManualNumber(ctx context.Context, store Store, rawNumber string, role Role) (string, error) {
	number, err := NewInvoiceNumber(rawNumber)
	if err != nil {
		return "", err
	}
	if role != RoleAdmin {
		return "", fmt.Errorf("%w: caller role is %q", ErrManualNumberForbidden, role)
	}
	inUse, err := service.numberInUse(ctx, store, number.String())
	if err != nil {
		return "", err
	}
	if inUse {
		return "", fmt.Errorf("%w: %s", ErrInvoiceNumberTaken, number)
	}
	// Keep automatic allocation from walking into a manual pick later:
	// a manual number at or past the counter advances it.
	value, err := strconv.ParseInt(number.String(), 10, 64)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidInvoiceNumber, rawNumber)
	}
	current, err := store.CounterValue(ctx)
	if err != nil {
		return "", err
	}
	if value >= current {
		if err := store.SetCounterValue(ctx, value+1); err != nil {
			return "", err
		}
	}
	return number.String(), nil
}

// numberInUse checks the shared number namespace: reservations,
// reservation abonos, and expense abonos.
func (service *Service) numberInUse(ctx context.Context, store Store, number string) (bool, error) {
	exists, err := store.ReservationNumberExists(ctx, number)
	if err != nil || exists {
		return exists, err
	}
	exists, err = store.ReservationAbonoNumberExists(ctx, number)
	if err != nil || exists {
		return exists, err
	}
	return store.ExpenseAbonoNumberExists(ctx, number)
}
