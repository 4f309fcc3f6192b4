package billing

import (
	"context"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
)

// stubStore is an in-memory Store used by the service tests. Injected
// errors simulate store failures per method.
type stubStore struct {
	counter            int64
	counterInitialized bool

	reservations      []Reservation
	expenses          []Expense
	reservationAbonos []Abono
	expenseAbonos     []Abono
	villaOwners       []VillaOwner
	commissions       []Commission
	villas            map[string]VillaInfo

	counterErr          error
	insertExpenseErr    error
	insertCommissionErr error
}

func newStubStore(test *testing.T) *stubStore {
	test.Helper()
	return &stubStore{villas: map[string]VillaInfo{}}
}

func (store *stubStore) WithTx(ctx context.Context, fn func(ctx context.Context, txStore Store) error) error {
	return fn(ctx, store)
}

func (store *stubStore) CounterValue(context.Context) (int64, error) {
	if store.counterErr != nil {
		return 0, store.counterErr
	}
	if !store.counterInitialized {
		store.counter = CounterSeed
		store.counterInitialized = true
	}
	return store.counter, nil
}

func (store *stubStore) SetCounterValue(_ context.Context, next int64) error {
	if store.counterErr != nil {
		return store.counterErr
	}
	store.counter = next
	store.counterInitialized = true
	return nil
}

func (store *stubStore) ReservationNumberExists(_ context.Context, invoiceNumber string) (bool, error) {
	for _, reservation := range store.reservations {
		if reservation.InvoiceNumber == invoiceNumber {
			return true, nil
		}
	}
	return false, nil
}

func (store *stubStore) ReservationAbonoNumberExists(_ context.Context, invoiceNumber string) (bool, error) {
	for _, abono := range store.reservationAbonos {
		if abono.InvoiceNumber == invoiceNumber {
			return true, nil
		}
	}
	return false, nil
}

func (store *stubStore) ExpenseAbonoNumberExists(_ context.Context, invoiceNumber string) (bool, error) {
	for _, abono := range store.expenseAbonos {
		if abono.InvoiceNumber == invoiceNumber {
			return true, nil
		}
	}
	return false, nil
}

func (store *stubStore) InsertReservation(_ context.Context, reservation Reservation) error {
	store.reservations = append(store.reservations, reservation)
	return nil
}

func (store *stubStore) GetReservation(_ context.Context, reservationID string) (Reservation, error) {
	for _, reservation := range store.reservations {
		if reservation.ID == reservationID {
			return reservation, nil
		}
	}
	return Reservation{}, fmt.Errorf("%w: %s", ErrReservationNotFound, reservationID)
}

func (store *stubStore) UpdateReservation(_ context.Context, updated Reservation) error {
	for index, reservation := range store.reservations {
		if reservation.ID == updated.ID {
			store.reservations[index] = updated
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrReservationNotFound, updated.ID)
}

func (store *stubStore) DeleteReservation(_ context.Context, reservationID string) error {
	for index, reservation := range store.reservations {
		if reservation.ID == reservationID {
			store.reservations = append(store.reservations[:index], store.reservations[index+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrReservationNotFound, reservationID)
}

func (store *stubStore) InsertExpense(_ context.Context, expense Expense) error {
	if store.insertExpenseErr != nil {
		return store.insertExpenseErr
	}
	store.expenses = append(store.expenses, expense)
	return nil
}

func (store *stubStore) GetExpense(_ context.Context, expenseID string) (Expense, error) {
	for _, expense := range store.expenses {
		if expense.ID == expenseID {
			return expense, nil
		}
	}
	return Expense{}, fmt.Errorf("%w: %s", ErrExpenseNotFound, expenseID)
}

func (store *stubStore) ListReservationExpenses(_ context.Context, reservationID string, category ExpenseCategory) ([]Expense, error) {
	var matches []Expense
	for _, expense := range store.expenses {
		if expense.RelatedReservationID != reservationID {
			continue
		}
		if category != "" && expense.Category != category {
			continue
		}
		matches = append(matches, expense)
	}
	return matches, nil
}

func (store *stubStore) UpdateExpenseAmount(_ context.Context, expenseID string, amount decimal.Decimal) error {
	for index, expense := range store.expenses {
		if expense.ID == expenseID {
			store.expenses[index].Amount = amount
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrExpenseNotFound, expenseID)
}

func (store *stubStore) UpdateExpenseStatus(_ context.Context, expenseID string, status PaymentStatus) error {
	for index, expense := range store.expenses {
		if expense.ID == expenseID {
			store.expenses[index].PaymentStatus = status
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrExpenseNotFound, expenseID)
}

func (store *stubStore) UpdateExpenseTotals(_ context.Context, expenseID string, totalPaid, balanceDue decimal.Decimal, status PaymentStatus) error {
	for index, expense := range store.expenses {
		if expense.ID == expenseID {
			store.expenses[index].TotalPaid = totalPaid
			store.expenses[index].BalanceDue = balanceDue
			store.expenses[index].PaymentStatus = status
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrExpenseNotFound, expenseID)
}

func (store *stubStore) PropagateExpenseDate(_ context.Context, reservationID string, expenseDateUnixUTC int64) error {
	for index, expense := range store.expenses {
		if expense.RelatedReservationID == reservationID {
			store.expenses[index].ExpenseDate = expenseDateUnixUTC
		}
	}
	return nil
}

func (store *stubStore) DeleteReservationExpenses(_ context.Context, reservationID string) error {
	kept := store.expenses[:0]
	for _, expense := range store.expenses {
		if expense.RelatedReservationID != reservationID {
			kept = append(kept, expense)
		}
	}
	store.expenses = kept
	return nil
}

func (store *stubStore) InsertReservationAbono(_ context.Context, abono Abono) error {
	store.reservationAbonos = append(store.reservationAbonos, abono)
	return nil
}

func (store *stubStore) GetReservationAbono(_ context.Context, reservationID, abonoID string) (Abono, error) {
	for _, abono := range store.reservationAbonos {
		if abono.ReservationID == reservationID && abono.ID == abonoID {
			return abono, nil
		}
	}
	return Abono{}, fmt.Errorf("%w: %s", ErrAbonoNotFound, abonoID)
}

func (store *stubStore) ListReservationAbonos(_ context.Context, reservationID string) ([]Abono, error) {
	var matches []Abono
	for _, abono := range store.reservationAbonos {
		if abono.ReservationID == reservationID {
			matches = append(matches, abono)
		}
	}
	return matches, nil
}

func (store *stubStore) DeleteReservationAbono(_ context.Context, reservationID, abonoID string) error {
	for index, abono := range store.reservationAbonos {
		if abono.ReservationID == reservationID && abono.ID == abonoID {
			store.reservationAbonos = append(store.reservationAbonos[:index], store.reservationAbonos[index+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrAbonoNotFound, abonoID)
}

func (store *stubStore) DeleteReservationAbonos(_ context.Context, reservationID string) error {
	kept := store.reservationAbonos[:0]
	for _, abono := range store.reservationAbonos {
		if abono.ReservationID != reservationID {
			kept = append(kept, abono)
		}
	}
	store.reservationAbonos = kept
	return nil
}

func (store *stubStore) InsertExpenseAbono(_ context.Context, abono Abono) error {
	store.expenseAbonos = append(store.expenseAbonos, abono)
	return nil
}

func (store *stubStore) GetExpenseAbono(_ context.Context, expenseID, abonoID string) (Abono, error) {
	for _, abono := range store.expenseAbonos {
		if abono.ExpenseID == expenseID && abono.ID == abonoID {
			return abono, nil
		}
	}
	return Abono{}, fmt.Errorf("%w: %s", ErrAbonoNotFound, abonoID)
}

func (store *stubStore) ListExpenseAbonos(_ context.Context, expenseID string) ([]Abono, error) {
	var matches []Abono
	for _, abono := range store.expenseAbonos {
		if abono.ExpenseID == expenseID {
			matches = append(matches, abono)
		}
	}
	return matches, nil
}

func (store *stubStore) DeleteExpenseAbono(_ context.Context, expenseID, abonoID string) error {
	for index, abono := range store.expenseAbonos {
		if abono.ExpenseID == expenseID && abono.ID == abonoID {
			store.expenseAbonos = append(store.expenseAbonos[:index], store.expenseAbonos[index+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrAbonoNotFound, abonoID)
}

func (store *stubStore) FindVillaOwner(_ context.Context, name string) (VillaOwner, bool, error) {
	for _, owner := range store.villaOwners {
		if owner.Name == name {
			return owner, true, nil
		}
	}
	return VillaOwner{}, false, nil
}

func (store *stubStore) InsertVillaOwner(_ context.Context, owner VillaOwner) error {
	store.villaOwners = append(store.villaOwners, owner)
	return nil
}

func (store *stubStore) UpdateVillaOwnerTotals(_ context.Context, ownerID string, totalOwed, balanceDue decimal.Decimal) error {
	for index, owner := range store.villaOwners {
		if owner.ID == ownerID {
			store.villaOwners[index].TotalOwed = totalOwed
			store.villaOwners[index].BalanceDue = balanceDue
			return nil
		}
	}
	return fmt.Errorf("villa owner %s not found", ownerID)
}

func (store *stubStore) InsertCommission(_ context.Context, commission Commission) error {
	if store.insertCommissionErr != nil {
		return store.insertCommissionErr
	}
	store.commissions = append(store.commissions, commission)
	return nil
}

func (store *stubStore) MarkCommissionsInvoiceDeleted(_ context.Context, reservationID string, deletedAtUnixUTC int64) error {
	for index, commission := range store.commissions {
		if commission.ReservationID == reservationID {
			store.commissions[index].State = CommissionInvoiceDeleted
			store.commissions[index].DeletedAtUnixUTC = deletedAtUnixUTC
		}
	}
	return nil
}

func (store *stubStore) GetVilla(_ context.Context, villaID string) (VillaInfo, error) {
	villa, ok := store.villas[villaID]
	if !ok {
		return VillaInfo{}, fmt.Errorf("%w: %s", ErrVillaNotFound, villaID)
	}
	return villa, nil
}

func (store *stubStore) mustExpense(test *testing.T, expenseID string) Expense {
	test.Helper()
	expense, err := store.GetExpense(context.Background(), expenseID)
	if err != nil {
		test.Fatalf("expense %s: %v", expenseID, err)
	}
	return expense
}

func (store *stubStore) expensesByCategory(test *testing.T, reservationID string, category ExpenseCategory) []Expense {
	test.Helper()
	expenses, err := store.ListReservationExpenses(context.Background(), reservationID, category)
	if err != nil {
		test.Fatalf("list expenses: %v", err)
	}
	return expenses
}

func mustNewService(test *testing.T, store Store) *Service {
	test.Helper()
	sequence := 0
	service, err := NewService(store, func() int64 { return 1700000000 }, WithIDGenerator(func() string {
		sequence++
		return fmt.Sprintf("id-%04d", sequence)
	}))
	if err != nil {
		test.Fatalf("service init: %v", err)
	}
	return service
}

func mustIdentity(test *testing.T, userID string, role Role) Identity {
	test.Helper()
	identity, err := NewIdentity(userID, role.String())
	if err != nil {
		test.Fatalf("identity: %v", err)
	}
	return identity
}

func money(test *testing.T, value string) decimal.Decimal {
	test.Helper()
	parsed, err := decimal.NewFromString(value)
	if err != nil {
		test.Fatalf("parse amount %q: %v", value, err)
	}
	return parsed
}
