package billing

import (
	"context"

	"github.com/shopspring/decimal"
)

// ObligationGraph is the dependency fan-out of one reservation: the
// owner-payout expense, every supplier-payout expense, and the
// deposit-return expense, each with the sum of its abonos. It is built
// fresh from current data on every reconciliation pass, which is what
// makes the pass order-independent.
type ObligationGraph struct {
	ReservationID string
	Deposit       decimal.Decimal
	Owner         *Expense
	OwnerPaid     decimal.Decimal
	Suppliers     []Expense
	SupplierPaid  []decimal.Decimal
	DepositReturn *Expense
}

// OwnerSettled reports whether the owner obligation itself is covered.
func (graph ObligationGraph) OwnerSettled() bool {
	return graph.Owner != nil && graph.OwnerPaid.Cmp(graph.Owner.Amount) >= 0
}

// SuppliersSettled reports whether every supplier obligation is covered.
func (graph ObligationGraph) SuppliersSettled() bool {
	for index, supplier := range graph.Suppliers {
		if graph.SupplierPaid[index].Cmp(supplier.Amount) < 0 {
			return false
		}
	}
	return true
}

// DepositSettled reports whether the deposit gate is open: no deposit
// was held, or the deposit-return expense is paid.
func (graph ObligationGraph) DepositSettled() bool {
	if graph.Deposit.IsZero() {
		return true
	}
	return graph.DepositReturn != nil && graph.DepositReturn.PaymentStatus == PaymentPaid
}

// DeriveOwnerStatus is the owner-payout state machine: paid when the
// owner amount, every supplier, and the deposit gate are all settled,
// otherwise pending. Owner payouts are never partial.
func DeriveOwnerStatus(graph ObligationGraph) PaymentStatus {
	if graph.OwnerSettled() && graph.SuppliersSettled() && graph.DepositSettled() {
		return PaymentPaid
	}
	return PaymentPending
}

// DeriveExpenseStatus is the three-state rule for every non-owner
// expense.
func DeriveExpenseStatus(amount, totalPaid decimal.Decimal) PaymentStatus {
	if totalPaid.Cmp(amount) >= 0 {
		return PaymentPaid
	}
	if totalPaid.IsPositive() {
		return PaymentPartial
	}
	return PaymentPending
}

// loadObligationGraph gathers the reservation's dependent expenses and
// their abono sums in one pass.
func (service *Service) loadObligationGraph(ctx context.Context, store Store, reservationID string, deposit decimal.Decimal) (ObligationGraph, error) {
	graph := ObligationGraph{ReservationID: reservationID, Deposit: deposit}

	ownerExpenses, err := store.ListReservationExpenses(ctx, reservationID, CategoryOwnerPayout)
	if err != nil {
		return ObligationGraph{}, err
	}
	if len(ownerExpenses) > 0 {
		owner := ownerExpenses[0]
		graph.Owner = &owner
		abonos, err := store.ListExpenseAbonos(ctx, owner.ID)
		if err != nil {
			return ObligationGraph{}, err
		}
		graph.OwnerPaid = SumAbonos(abonos)
	}

	suppliers, err := store.ListReservationExpenses(ctx, reservationID, CategorySupplierPayout)
	if err != nil {
		return ObligationGraph{}, err
	}
	graph.Suppliers = suppliers
	graph.SupplierPaid = make([]decimal.Decimal, len(suppliers))
	for index, supplier := range suppliers {
		abonos, err := store.ListExpenseAbonos(ctx, supplier.ID)
		if err != nil {
			return ObligationGraph{}, err
		}
		graph.SupplierPaid[index] = SumAbonos(abonos)
	}

	depositExpenses, err := store.ListReservationExpenses(ctx, reservationID, CategoryDepositReturn)
	if err != nil {
		return ObligationGraph{}, err
	}
	if len(depositExpenses) > 0 {
		depositExpense := depositExpenses[0]
		graph.DepositReturn = &depositExpense
	}
	return graph, nil
}

// reconcileOwner re-derives and persists the owner-payout status from
// the full current state. Safe to run any number of times.
func (service *Service) reconcileOwner(ctx context.Context, store Store, reservationID string, deposit decimal.Decimal) error {
	graph, err := service.loadObligationGraph(ctx, store, reservationID, deposit)
	if err != nil {
		return err
	}
	if graph.Owner == nil {
		return nil
	}
	status := DeriveOwnerStatus(graph)
	return store.UpdateExpenseTotals(ctx, graph.Owner.ID, graph.OwnerPaid,
		ExpenseBalance(graph.Owner.Amount, graph.OwnerPaid), status)
}

// recomputeExpense refreshes one expense's paid total, balance, and
// status after an abono change, then reconciles the owner payout when
// the expense participates in a reservation's obligation graph.
func (service *Service) recomputeExpense(ctx context.Context, store Store, expense Expense) error {
	abonos, err := store.ListExpenseAbonos(ctx, expense.ID)
	if err != nil {
		return err
	}
	totalPaid := SumAbonos(abonos)

	if expense.Category == CategoryOwnerPayout {
		deposit, err := service.reservationDeposit(ctx, store, expense.RelatedReservationID)
		if err != nil {
			return err
		}
		if expense.RelatedReservationID != "" {
			return service.reconcileOwner(ctx, store, expense.RelatedReservationID, deposit)
		}
		// Owner payout with no linked reservation has no gates.
		status := DeriveOwnerStatusStandalone(expense.Amount, totalPaid)
		return store.UpdateExpenseTotals(ctx, expense.ID, totalPaid, ExpenseBalance(expense.Amount, totalPaid), status)
	}

	status := DeriveExpenseStatus(expense.Amount, totalPaid)
	if err := store.UpdateExpenseTotals(ctx, expense.ID, totalPaid, ExpenseBalance(expense.Amount, totalPaid), status); err != nil {
		return err
	}
	if expense.Category == CategorySupplierPayout && expense.RelatedReservationID != "" {
		deposit, err := service.reservationDeposit(ctx, store, expense.RelatedReservationID)
		if err != nil {
			return err
		}
		return service.reconcileOwner(ctx, store, expense.RelatedReservationID, deposit)
	}
	return nil
}

// DeriveOwnerStatusStandalone collapses the gating to the owner amount
// alone, for owner payouts that are not linked to a reservation.
func DeriveOwnerStatusStandalone(amount, totalPaid decimal.Decimal) PaymentStatus {
	if totalPaid.Cmp(amount) >= 0 {
		return PaymentPaid
	}
	return PaymentPending
}

func (service *Service) reservationDeposit(ctx context.Context, store Store, reservationID string) (decimal.Decimal, error) {
	if reservationID == "" {
		return decimal.Zero, nil
	}
	reservation, err := store.GetReservation(ctx, reservationID)
	if err != nil {
		return decimal.Zero, err
	}
	return reservation.Deposit, nil
}
