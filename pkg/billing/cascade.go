package billing

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// cascadeOnCreate derives the expense obligations a new reservation
// implies: an owner payout when a villa is booked (even at zero owner
// price, so the obligation stays visible), a solo-services container
// when services are sold without a villa, and one supplier payout per
// costed service line in either case.
func (service *Service) cascadeOnCreate(ctx context.Context, store Store, reservation Reservation, caller Identity) error {
	now := service.nowFn()

	if reservation.VillaID != "" {
		villa, err := store.GetVilla(ctx, reservation.VillaID)
		if err != nil {
			return err
		}
		ownerExpense := Expense{
			ID:                   service.idFn(),
			Category:             CategoryOwnerPayout,
			Description:          fmt.Sprintf("Owner payout villa %s - Invoice #%s", villa.Code, reservation.InvoiceNumber),
			Amount:               reservation.OwnerPrice,
			Currency:             reservation.Currency,
			ExpenseDate:          reservation.ReservationDate,
			PaymentStatus:        PaymentPending,
			Notes:                ownerPayoutNotes(reservation),
			RelatedReservationID: reservation.ID,
			ServicesDetails:      reservation.ExtraServices,
			BalanceDue:           reservation.OwnerPrice,
			CreatedBy:            caller.UserID,
			CreatedAtUnixUTC:     now,
			UpdatedAtUnixUTC:     now,
		}
		if err := store.InsertExpense(ctx, ownerExpense); err != nil {
			return err
		}
		if reservation.OwnerPrice.IsPositive() {
			if err := service.accrueVillaOwner(ctx, store, villa, reservation.OwnerPrice, caller); err != nil {
				return err
			}
		}
	} else if len(reservation.ExtraServices) > 0 {
		totalServicesCost := decimal.Zero
		for _, line := range reservation.ExtraServices {
			totalServicesCost = totalServicesCost.Add(line.SupplierTotal())
		}
		containerExpense := Expense{
			ID:                   service.idFn(),
			Category:             CategorySoloServices,
			Description:          fmt.Sprintf("Services - Invoice #%s", reservation.InvoiceNumber),
			Amount:               totalServicesCost,
			Currency:             reservation.Currency,
			ExpenseDate:          reservation.ReservationDate,
			PaymentStatus:        PaymentPending,
			Notes:                soloServicesNotes(reservation, totalServicesCost),
			RelatedReservationID: reservation.ID,
			ServicesDetails:      reservation.ExtraServices,
			BalanceDue:           totalServicesCost,
			CreatedBy:            caller.UserID,
			CreatedAtUnixUTC:     now,
			UpdatedAtUnixUTC:     now,
		}
		if err := store.InsertExpense(ctx, containerExpense); err != nil {
			return err
		}
	}

	for _, line := range reservation.ExtraServices {
		if line.SupplierName == "" || !line.SupplierCost.IsPositive() {
			continue
		}
		if err := store.InsertExpense(ctx, service.newSupplierExpense(reservation, line, caller, now)); err != nil {
			return err
		}
	}
	return nil
}

// cascadeOnUpdate reacts to the field deltas of a reservation update.
// Each delta is handled independently; any of them can end in a
// reconciliation pass over the owner payout.
func (service *Service) cascadeOnUpdate(ctx context.Context, store Store, before, after Reservation, patch ReservationPatch, caller Identity) error {
	if patch.ReservationDate != nil && *patch.ReservationDate != before.ReservationDate {
		if err := store.PropagateExpenseDate(ctx, after.ID, after.ReservationDate); err != nil {
			return err
		}
	}

	if patch.DepositReturned != nil && before.Deposit.IsPositive() {
		if err := service.toggleDepositReturn(ctx, store, after, *patch.DepositReturned, caller); err != nil {
			return err
		}
		if err := service.reconcileOwner(ctx, store, after.ID, after.Deposit); err != nil {
			return err
		}
	}

	if patch.OwnerPrice != nil && !patch.OwnerPrice.Equal(before.OwnerPrice) {
		ownerExpenses, err := store.ListReservationExpenses(ctx, after.ID, CategoryOwnerPayout)
		if err != nil {
			return err
		}
		if len(ownerExpenses) > 0 {
			if err := store.UpdateExpenseAmount(ctx, ownerExpenses[0].ID, after.OwnerPrice); err != nil {
				return err
			}
			if err := service.reconcileOwner(ctx, store, after.ID, after.Deposit); err != nil {
				return err
			}
		}
	}

	if patch.ExtraServices != nil {
		if err := service.diffSupplierExpenses(ctx, store, after, caller); err != nil {
			return err
		}
		if err := service.reconcileOwner(ctx, store, after.ID, after.Deposit); err != nil {
			return err
		}
	}
	return nil
}

// toggleDepositReturn flips the deposit-return expense to paid when
// the deposit goes back to the customer, creating the expense on first
// toggle. Untoggling only flips it back to pending; the record is
// never deleted, to keep the history.
func (service *Service) toggleDepositReturn(ctx context.Context, store Store, reservation Reservation, returned bool, caller Identity) error {
	depositExpenses, err := store.ListReservationExpenses(ctx, reservation.ID, CategoryDepositReturn)
	if err != nil {
		return err
	}
	if returned {
		if len(depositExpenses) > 0 {
			return store.UpdateExpenseStatus(ctx, depositExpenses[0].ID, PaymentPaid)
		}
		now := service.nowFn()
		return store.InsertExpense(ctx, Expense{
			ID:                   service.idFn(),
			Category:             CategoryDepositReturn,
			Description:          fmt.Sprintf("Deposit return - Invoice #%s", reservation.InvoiceNumber),
			Amount:               reservation.Deposit,
			Currency:             reservation.Currency,
			ExpenseDate:          now,
			PaymentStatus:        PaymentPaid,
			RelatedReservationID: reservation.ID,
			BalanceDue:           reservation.Deposit,
			CreatedBy:            caller.UserID,
			CreatedAtUnixUTC:     now,
			UpdatedAtUnixUTC:     now,
		})
	}
	if len(depositExpenses) > 0 {
		return store.UpdateExpenseStatus(ctx, depositExpenses[0].ID, PaymentPending)
	}
	return nil
}

// diffSupplierExpenses aligns supplier-payout expenses with the
// reservation's current service lines, keyed by supplier name. A
// supplier present in both gets its amount refreshed; a new supplier
// gets a fresh pending expense. Expenses whose supplier disappeared
// from the lines are left in place.
func (service *Service) diffSupplierExpenses(ctx context.Context, store Store, reservation Reservation, caller Identity) error {
	existing, err := store.ListReservationExpenses(ctx, reservation.ID, CategorySupplierPayout)
	if err != nil {
		return err
	}
	bySupplier := make(map[string]Expense, len(existing))
	for _, expense := range existing {
		if name := supplierNameOf(expense); name != "" {
			bySupplier[name] = expense
		}
	}

	now := service.nowFn()
	for _, line := range reservation.ExtraServices {
		if line.SupplierName == "" {
			continue
		}
		newAmount := line.SupplierTotal()
		if expense, ok := bySupplier[line.SupplierName]; ok {
			if expense.Amount.Equal(newAmount) {
				continue
			}
			if err := store.UpdateExpenseAmount(ctx, expense.ID, newAmount); err != nil {
				return err
			}
			abonos, err := store.ListExpenseAbonos(ctx, expense.ID)
			if err != nil {
				return err
			}
			totalPaid := SumAbonos(abonos)
			if err := store.UpdateExpenseTotals(ctx, expense.ID, totalPaid,
				ExpenseBalance(newAmount, totalPaid), DeriveExpenseStatus(newAmount, totalPaid)); err != nil {
				return err
			}
		} else if line.SupplierCost.IsPositive() {
			if err := store.InsertExpense(ctx, service.newSupplierExpense(reservation, line, caller, now)); err != nil {
				return err
			}
		}
	}
	return nil
}

func (service *Service) newSupplierExpense(reservation Reservation, line ServiceLine, caller Identity, now int64) Expense {
	amount := line.SupplierTotal()
	return Expense{
		ID:                   service.idFn(),
		Category:             CategorySupplierPayout,
		Description:          fmt.Sprintf("Supplier payout: %s - %s - Invoice #%s", line.SupplierName, line.ServiceName, reservation.InvoiceNumber),
		Amount:               amount,
		Currency:             reservation.Currency,
		ExpenseDate:          reservation.ReservationDate,
		PaymentStatus:        PaymentPending,
		Notes:                fmt.Sprintf("Auto-generated. Customer: %s. Quantity: %d", reservation.CustomerName, line.Quantity),
		RelatedReservationID: reservation.ID,
		ServicesDetails:      []ServiceLine{line},
		BalanceDue:           amount,
		CreatedBy:            caller.UserID,
		CreatedAtUnixUTC:     now,
		UpdatedAtUnixUTC:     now,
	}
}

// accrueVillaOwner adds the owner price onto the villa owner's running
// payable, creating the aggregate on first sight of the owner.
func (service *Service) accrueVillaOwner(ctx context.Context, store Store, villa VillaInfo, ownerPrice decimal.Decimal, caller Identity) error {
	ownerName := fmt.Sprintf("Owner %s", villa.Code)
	owner, found, err := store.FindVillaOwner(ctx, ownerName)
	if err != nil {
		return err
	}
	if !found {
		return store.InsertVillaOwner(ctx, VillaOwner{
			ID:               service.idFn(),
			Name:             ownerName,
			Phone:            villa.Phone,
			Villas:           []string{villa.Code},
			TotalOwed:        ownerPrice,
			BalanceDue:       ownerPrice,
			Notes:            fmt.Sprintf("Auto-generated for %s", villa.Code),
			CreatedBy:        caller.UserID,
			CreatedAtUnixUTC: service.nowFn(),
		})
	}
	newTotal := owner.TotalOwed.Add(ownerPrice)
	return store.UpdateVillaOwnerTotals(ctx, owner.ID, newTotal, newTotal.Sub(owner.AmountPaid))
}

// createCommission records the flat booking fee for the creating user.
// Failures are logged and swallowed: the reservation write must stand.
func (service *Service) createCommission(ctx context.Context, reservation Reservation, caller Identity) {
	villaCode, villaName := "N/A", "N/A"
	if reservation.VillaID != "" {
		if villa, err := service.store.GetVilla(ctx, reservation.VillaID); err == nil {
			villaCode, villaName = villa.Code, villa.Name
		}
	}
	commission := Commission{
		ID:               service.idFn(),
		ReservationID:    reservation.ID,
		UserID:           caller.UserID,
		UserName:         caller.UserID,
		VillaCode:        villaCode,
		VillaName:        villaName,
		CustomerName:     reservation.CustomerName,
		ReservationDate:  reservation.ReservationDate,
		Amount:           DefaultCommissionAmount,
		Notes:            fmt.Sprintf("Commission for reservation #%s", reservation.InvoiceNumber),
		State:            CommissionActive,
		CreatedBy:        caller.UserID,
		CreatedAtUnixUTC: service.nowFn(),
	}
	if err := service.store.InsertCommission(ctx, commission); err != nil {
		service.logOperation(ctx, OperationLog{
			Operation:     operationCreateCommission,
			ReservationID: reservation.ID,
			Amount:        commission.Amount,
			UserID:        caller.UserID,
			Error:         err,
		})
	}
}

func supplierNameOf(expense Expense) string {
	if len(expense.ServicesDetails) > 0 {
		return expense.ServicesDetails[0].SupplierName
	}
	return ""
}

func ownerPayoutNotes(reservation Reservation) string {
	details := make([]string, 0, 4)
	if reservation.ExtraHours.IsPositive() {
		details = append(details, fmt.Sprintf("Extra hours: %s", reservation.ExtraHours.String()))
	}
	if reservation.ExtraPeople > 0 {
		details = append(details, fmt.Sprintf("Extra people: %d", reservation.ExtraPeople))
	}
	if reservation.IncludeITBIS {
		details = append(details, "ITBIS included")
	} else {
		details = append(details, "ITBIS excluded")
	}
	if len(reservation.ExtraServices) > 0 {
		details = append(details, fmt.Sprintf("Includes %d extra service(s)", len(reservation.ExtraServices)))
	}

	var notes strings.Builder
	fmt.Fprintf(&notes, "Auto-generated. Customer: %s. Owner total: %s %s",
		reservation.CustomerName, reservation.Currency, reservation.OwnerPrice.StringFixed(2))
	if len(details) > 0 {
		fmt.Fprintf(&notes, "\nDetails: %s", strings.Join(details, ", "))
	}
	for _, line := range reservation.ExtraServices {
		fmt.Fprintf(&notes, "\n- %s (supplier: %s) x%d = %s %s",
			line.ServiceName, line.SupplierName, line.Quantity, reservation.Currency, line.LineTotal.StringFixed(2))
	}
	return notes.String()
}

func soloServicesNotes(reservation Reservation, totalServicesCost decimal.Decimal) string {
	var notes strings.Builder
	fmt.Fprintf(&notes, "Auto-generated. Customer: %s. Services-only invoice. Supplier total: %s %s",
		reservation.CustomerName, reservation.Currency, totalServicesCost.StringFixed(2))
	for _, line := range reservation.ExtraServices {
		fmt.Fprintf(&notes, "\n- %s (supplier: %s) x%d = %s %s",
			line.ServiceName, line.SupplierName, line.Quantity, reservation.Currency, line.SupplierTotal().StringFixed(2))
	}
	return notes.String()
}
