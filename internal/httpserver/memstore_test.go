package httpserver

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/caribevillas/billing/pkg/billing"
)

// memStore is a minimal in-memory billing.Store for handler tests.
type memStore struct {
	counter           int64
	reservations      map[string]billing.Reservation
	expenses          map[string]billing.Expense
	expenseOrder      []string
	reservationAbonos map[string]billing.Abono
	expenseAbonos     map[string]billing.Abono
	villaOwners       map[string]billing.VillaOwner
	commissions       []billing.Commission
	villas            map[string]billing.VillaInfo
}

func newMemStore() *memStore {
	return &memStore{
		counter:           billing.CounterSeed,
		reservations:      map[string]billing.Reservation{},
		expenses:          map[string]billing.Expense{},
		reservationAbonos: map[string]billing.Abono{},
		expenseAbonos:     map[string]billing.Abono{},
		villaOwners:       map[string]billing.VillaOwner{},
		villas:            map[string]billing.VillaInfo{},
	}
}

func (store *memStore) WithTx(ctx context.Context, fn func(ctx context.Context, txStore billing.Store) error) error {
	return fn(ctx, store)
}

func (store *memStore) CounterValue(context.Context) (int64, error) { return store.counter, nil }

func (store *memStore) SetCounterValue(_ context.Context, next int64) error {
	store.counter = next
	return nil
}

func (store *memStore) ReservationNumberExists(_ context.Context, invoiceNumber string) (bool, error) {
	for _, reservation := range store.reservations {
		if reservation.InvoiceNumber == invoiceNumber {
			return true, nil
		}
	}
	return false, nil
}

func (store *memStore) ReservationAbonoNumberExists(_ context.Context, invoiceNumber string) (bool, error) {
	for _, abono := range store.reservationAbonos {
		if abono.InvoiceNumber == invoiceNumber {
			return true, nil
		}
	}
	return false, nil
}

func (store *memStore) ExpenseAbonoNumberExists(_ context.Context, invoiceNumber string) (bool, error) {
	for _, abono := range store.expenseAbonos {
		if abono.InvoiceNumber == invoiceNumber {
			return true, nil
		}
	}
	return false, nil
}

func (store *memStore) InsertReservation(_ context.Context, reservation billing.Reservation) error {
	store.reservations[reservation.ID] = reservation
	return nil
}

func (store *memStore) GetReservation(_ context.Context, reservationID string) (billing.Reservation, error) {
	reservation, ok := store.reservations[reservationID]
	if !ok {
		return billing.Reservation{}, fmt.Errorf("%w: %s", billing.ErrReservationNotFound, reservationID)
	}
	return reservation, nil
}

func (store *memStore) UpdateReservation(_ context.Context, reservation billing.Reservation) error {
	if _, ok := store.reservations[reservation.ID]; !ok {
		return fmt.Errorf("%w: %s", billing.ErrReservationNotFound, reservation.ID)
	}
	store.reservations[reservation.ID] = reservation
	return nil
}

func (store *memStore) DeleteReservation(_ context.Context, reservationID string) error {
	if _, ok := store.reservations[reservationID]; !ok {
		return fmt.Errorf("%w: %s", billing.ErrReservationNotFound, reservationID)
	}
	delete(store.reservations, reservationID)
	return nil
}

func (store *memStore) InsertExpense(_ context.Context, expense billing.Expense) error {
	store.expenses[expense.ID] = expense
	store.expenseOrder = append(store.expenseOrder, expense.ID)
	return nil
}

func (store *memStore) GetExpense(_ context.Context, expenseID string) (billing.Expense, error) {
	expense, ok := store.expenses[expenseID]
	if !ok {
		return billing.Expense{}, fmt.Errorf("%w: %s", billing.ErrExpenseNotFound, expenseID)
	}
	return expense, nil
}

func (store *memStore) ListReservationExpenses(_ context.Context, reservationID string, category billing.ExpenseCategory) ([]billing.Expense, error) {
	var matches []billing.Expense
	for _, expenseID := range store.expenseOrder {
		expense, ok := store.expenses[expenseID]
		if !ok || expense.RelatedReservationID != reservationID {
			continue
		}
		if category != "" && expense.Category != category {
			continue
		}
		matches = append(matches, expense)
	}
	return matches, nil
}

func (store *memStore) UpdateExpenseAmount(_ context.Context, expenseID string, amount decimal.Decimal) error {
	expense, ok := store.expenses[expenseID]
	if !ok {
		return fmt.Errorf("%w: %s", billing.ErrExpenseNotFound, expenseID)
	}
	expense.Amount = amount
	store.expenses[expenseID] = expense
	return nil
}

func (store *memStore) UpdateExpenseStatus(_ context.Context, expenseID string, status billing.PaymentStatus) error {
	expense, ok := store.expenses[expenseID]
	if !ok {
		return fmt.Errorf("%w: %s", billing.ErrExpenseNotFound, expenseID)
	}
	expense.PaymentStatus = status
	store.expenses[expenseID] = expense
	return nil
}

func (store *memStore) UpdateExpenseTotals(_ context.Context, expenseID string, totalPaid, balanceDue decimal.Decimal, status billing.PaymentStatus) error {
	expense, ok := store.expenses[expenseID]
	if !ok {
		return fmt.Errorf("%w: %s", billing.ErrExpenseNotFound, expenseID)
	}
	expense.TotalPaid = totalPaid
	expense.BalanceDue = balanceDue
	expense.PaymentStatus = status
	store.expenses[expenseID] = expense
	return nil
}

func (store *memStore) PropagateExpenseDate(_ context.Context, reservationID string, expenseDateUnixUTC int64) error {
	for expenseID, expense := range store.expenses {
		if expense.RelatedReservationID == reservationID {
			expense.ExpenseDate = expenseDateUnixUTC
			store.expenses[expenseID] = expense
		}
	}
	return nil
}

func (store *memStore) DeleteReservationExpenses(_ context.Context, reservationID string) error {
	for expenseID, expense := range store.expenses {
		if expense.RelatedReservationID == reservationID {
			delete(store.expenses, expenseID)
		}
	}
	return nil
}

func (store *memStore) InsertReservationAbono(_ context.Context, abono billing.Abono) error {
	store.reservationAbonos[abono.ID] = abono
	return nil
}

func (store *memStore) GetReservationAbono(_ context.Context, reservationID, abonoID string) (billing.Abono, error) {
	abono, ok := store.reservationAbonos[abonoID]
	if !ok || abono.ReservationID != reservationID {
		return billing.Abono{}, fmt.Errorf("%w: %s", billing.ErrAbonoNotFound, abonoID)
	}
	return abono, nil
}

func (store *memStore) ListReservationAbonos(_ context.Context, reservationID string) ([]billing.Abono, error) {
	var matches []billing.Abono
	for _, abono := range store.reservationAbonos {
		if abono.ReservationID == reservationID {
			matches = append(matches, abono)
		}
	}
	return matches, nil
}

func (store *memStore) DeleteReservationAbono(_ context.Context, reservationID, abonoID string) error {
	abono, ok := store.reservationAbonos[abonoID]
	if !ok || abono.ReservationID != reservationID {
		return fmt.Errorf("%w: %s", billing.ErrAbonoNotFound, abonoID)
	}
	delete(store.reservationAbonos, abonoID)
	return nil
}

func (store *memStore) DeleteReservationAbonos(_ context.Context, reservationID string) error {
	for abonoID, abono := range store.reservationAbonos {
		if abono.ReservationID == reservationID {
			delete(store.reservationAbonos, abonoID)
		}
	}
	return nil
}

func (store *memStore) InsertExpenseAbono(_ context.Context, abono billing.Abono) error {
	store.expenseAbonos[abono.ID] = abono
	return nil
}

func (store *memStore) GetExpenseAbono(_ context.Context, expenseID, abonoID string) (billing.Abono, error) {
	abono, ok := store.expenseAbonos[abonoID]
	if !ok || abono.ExpenseID != expenseID {
		return billing.Abono{}, fmt.Errorf("%w: %s", billing.ErrAbonoNotFound, abonoID)
	}
	return abono, nil
}

func (store *memStore) ListExpenseAbonos(_ context.Context, expenseID string) ([]billing.Abono, error) {
	var matches []billing.Abono
	for _, abono := range store.expenseAbonos {
		if abono.ExpenseID == expenseID {
			matches = append(matches, abono)
		}
	}
	return matches, nil
}

func (store *memStore) DeleteExpenseAbono(_ context.Context, expenseID, abonoID string) error {
	abono, ok := store.expenseAbonos[abonoID]
	if !ok || abono.ExpenseID != expenseID {
		return fmt.Errorf("%w: %s", billing.ErrAbonoNotFound, abonoID)
	}
	delete(store.expenseAbonos, abonoID)
	return nil
}

func (store *memStore) FindVillaOwner(_ context.Context, name string) (billing.VillaOwner, bool, error) {
	owner, ok := store.villaOwners[name]
	return owner, ok, nil
}

func (store *memStore) InsertVillaOwner(_ context.Context, owner billing.VillaOwner) error {
	store.villaOwners[owner.Name] = owner
	return nil
}

func (store *memStore) UpdateVillaOwnerTotals(_ context.Context, ownerID string, totalOwed, balanceDue decimal.Decimal) error {
	for name, owner := range store.villaOwners {
		if owner.ID == ownerID {
			owner.TotalOwed = totalOwed
			owner.BalanceDue = balanceDue
			store.villaOwners[name] = owner
		}
	}
	return nil
}

func (store *memStore) InsertCommission(_ context.Context, commission billing.Commission) error {
	store.commissions = append(store.commissions, commission)
	return nil
}

func (store *memStore) MarkCommissionsInvoiceDeleted(_ context.Context, reservationID string, deletedAtUnixUTC int64) error {
	for index, commission := range store.commissions {
		if commission.ReservationID == reservationID {
			store.commissions[index].State = billing.CommissionInvoiceDeleted
			store.commissions[index].DeletedAtUnixUTC = deletedAtUnixUTC
		}
	}
	return nil
}

func (store *memStore) GetVilla(_ context.Context, villaID string) (billing.VillaInfo, error) {
	villa, ok := store.villas[villaID]
	if !ok {
		return billing.VillaInfo{}, fmt.Errorf("%w: %s", billing.ErrVillaNotFound, villaID)
	}
	return villa, nil
}
