package billing

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Store is the persistence contract used by Service. Implementations
// exchange plain record structs; no store-internal types cross this
// boundary. WithTx must give the closure a Store whose writes commit
// or roll back as one unit, and must hold the invoice counter row
// locked once CounterValue has been read inside the transaction.
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, txStore Store) error) error

	// Invoice counter singleton. CounterValue seeds the counter on
	// first use.
	CounterValue(ctx context.Context) (int64, error)
	SetCounterValue(ctx context.Context, next int64) error

	// Invoice number existence, one probe per numbered stream. The
	// allocator needs all three: the number namespace is shared.
	ReservationNumberExists(ctx context.Context, invoiceNumber string) (bool, error)
	ReservationAbonoNumberExists(ctx context.Context, invoiceNumber string) (bool, error)
	ExpenseAbonoNumberExists(ctx context.Context, invoiceNumber string) (bool, error)

	InsertReservation(ctx context.Context, reservation Reservation) error
	GetReservation(ctx context.Context, reservationID string) (Reservation, error)
	UpdateReservation(ctx context.Context, reservation Reservation) error
	DeleteReservation(ctx context.Context, reservationID string) error

	InsertExpense(ctx context.Context, expense Expense) error
	GetExpense(ctx context.Context, expenseID string) (Expense, error)
	// ListReservationExpenses filters by category; an empty category
	// returns every expense linked to the reservation.
	ListReservationExpenses(ctx context.Context, reservationID string, category ExpenseCategory) ([]Expense, error)
	UpdateExpenseAmount(ctx context.Context, expenseID string, amount decimal.Decimal) error
	UpdateExpenseStatus(ctx context.Context, expenseID string, status PaymentStatus) error
	UpdateExpenseTotals(ctx context.Context, expenseID string, totalPaid, balanceDue decimal.Decimal, status PaymentStatus) error
	PropagateExpenseDate(ctx context.Context, reservationID string, expenseDateUnixUTC int64) error
	DeleteReservationExpenses(ctx context.Context, reservationID string) error

	InsertReservationAbono(ctx context.Context, abono Abono) error
	GetReservationAbono(ctx context.Context, reservationID, abonoID string) (Abono, error)
	ListReservationAbonos(ctx context.Context, reservationID string) ([]Abono, error)
	DeleteReservationAbono(ctx context.Context, reservationID, abonoID string) error
	DeleteReservationAbonos(ctx context.Context, reservationID string) error

	InsertExpenseAbono(ctx context.Context, abono Abono) error
	GetExpenseAbono(ctx context.Context, expenseID, abonoID string) (Abono, error)
	ListExpenseAbonos(ctx context.Context, expenseID string) ([]Abono, error)
	DeleteExpenseAbono(ctx context.Context, expenseID, abonoID string) error

	FindVillaOwner(ctx context.Context, name string) (VillaOwner, bool, error)
	InsertVillaOwner(ctx context.Context, owner VillaOwner) error
	UpdateVillaOwnerTotals(ctx context.Context, ownerID string, totalOwed, balanceDue decimal.Decimal) error

	InsertCommission(ctx context.Context, commission Commission) error
	MarkCommissionsInvoiceDeleted(ctx context.Context, reservationID string, deletedAtUnixUTC int64) error

	GetVilla(ctx context.Context, villaID string) (VillaInfo, error)
}

// Service contains the billing domain logic over a Store.
type Service struct {
	store  Store
	nowFn  func() int64
	idFn   func() string
	logger OperationLogger
}

// NewService wires a Service.
func NewService(store Store, now func() int64, options ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store dependency is nil", ErrInvalidServiceConfig)
	}
	if now == nil {
		return nil, fmt.Errorf("%w: clock dependency is nil", ErrInvalidServiceConfig)
	}
	service := &Service{store: store, nowFn: now, idFn: uuid.NewString}
	for _, option := range options {
		if option != nil {
			option(service)
		}
	}
	return service, nil
}

// ReservationInput is the payload for CreateReservation.
type ReservationInput struct {
	// ManualInvoiceNumber, when set, requires the admin role.
	ManualInvoiceNumber string
	CustomerID          string
	CustomerName        string
	VillaID             string
	ReservationDate     int64
	Guests              int
	ExtraHours          decimal.Decimal
	ExtraPeople         int
	BasePrice           decimal.Decimal
	OwnerPrice          decimal.Decimal
	ExtraHoursCost      decimal.Decimal
	ExtraPeopleCost     decimal.Decimal
	ExtraServices       []ServiceLine
	Subtotal            decimal.Decimal
	Discount            decimal.Decimal
	IncludeITBIS        bool
	ITBISAmount         decimal.Decimal
	TotalAmount         decimal.Decimal
	Deposit             decimal.Decimal
	AmountPaid          decimal.Decimal
	Currency            string
	Status              string
	Notes               string
}

// ReservationPatch carries the fields UpdateReservation may change.
// Nil fields are left untouched.
type ReservationPatch struct {
	ReservationDate *int64
	OwnerPrice      *decimal.Decimal
	ExtraServices   *[]ServiceLine
	Subtotal        *decimal.Decimal
	Discount        *decimal.Decimal
	ITBISAmount     *decimal.Decimal
	TotalAmount     *decimal.Decimal
	Deposit         *decimal.Decimal
	DepositReturned *bool
	AmountPaid      *decimal.Decimal
	Status          *string
	Notes           *string
}

// AbonoInput is the payload for AddAbono.
type AbonoInput struct {
	Amount              decimal.Decimal
	Currency            string
	PaymentMethod       string
	PaymentDate         int64
	Notes               string
	ManualInvoiceNumber string
}

// CreateReservation stores a new reservation and derives its full
// obligation graph: owner payout (or solo-services container),
// supplier payouts, the villa-owner aggregate, and the booking
// commission.
func (service *Service) CreateReservation(ctx context.Context, input ReservationInput, caller Identity) (Reservation, error) {
	var created Reservation
	operationError := func() error {
		if err := validateReservationInput(input); err != nil {
			return err
		}
		currency, err := ParseCurrency(input.Currency)
		if err != nil {
			return err
		}
		status, err := ParseReservationStatus(input.Status)
		if err != nil {
			return err
		}
		return service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
			invoiceNumber, err := service.allocateNumber(ctx, transactionStore, input.ManualInvoiceNumber, caller.Role)
			if err != nil {
				return err
			}
			now := service.nowFn()
			reservation := Reservation{
				ID:              service.idFn(),
				InvoiceNumber:   invoiceNumber,
				CustomerID:      input.CustomerID,
				CustomerName:    input.CustomerName,
				VillaID:         input.VillaID,
				ReservationDate: input.ReservationDate,
				Guests:          input.Guests,
				ExtraHours:      input.ExtraHours,
				ExtraPeople:     input.ExtraPeople,
				BasePrice:       input.BasePrice,
				OwnerPrice:      input.OwnerPrice,
				ExtraHoursCost:  input.ExtraHoursCost,
				ExtraPeopleCost: input.ExtraPeopleCost,
				ExtraServices:   input.ExtraServices,
				Subtotal:        input.Subtotal,
				Discount:        input.Discount,
				IncludeITBIS:    input.IncludeITBIS,
				ITBISAmount:     input.ITBISAmount,
				TotalAmount:     input.TotalAmount,
				Deposit:         input.Deposit,
				AmountPaid:      input.AmountPaid,
				BalanceDue:      ReservationBalance(input.TotalAmount, input.Deposit, input.AmountPaid),
				Currency:        currency,
				Status:          status,
				Notes:           input.Notes,
				CreatedBy:       caller.UserID,
				CreatedAtUnixUTC: now,
				UpdatedAtUnixUTC: now,
			}
			if err := transactionStore.InsertReservation(ctx, reservation); err != nil {
				return err
			}
			if err := service.cascadeOnCreate(ctx, transactionStore, reservation, caller); err != nil {
				return err
			}
			created = reservation
			return nil
		})
	}()
	if operationError == nil {
		// Best-effort by contract: a commission failure must never roll
		// back the reservation it rewards.
		service.createCommission(ctx, created, caller)
	}
	service.logOperation(ctx, OperationLog{
		Operation:     operationCreateReservation,
		ReservationID: created.ID,
		InvoiceNumber: created.InvoiceNumber,
		Amount:        created.TotalAmount,
		UserID:        caller.UserID,
		Error:         operationError,
	})
	if operationError != nil {
		return Reservation{}, operationError
	}
	return created, nil
}

// UpdateReservation applies a patch and runs the cascade deltas the
// changed fields demand.
func (service *Service) UpdateReservation(ctx context.Context, reservationID string, patch ReservationPatch, caller Identity) (Reservation, error) {
	var updated Reservation
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		before, err := transactionStore.GetReservation(ctx, reservationID)
		if err != nil {
			return err
		}
		after, err := applyPatch(before, patch)
		if err != nil {
			return err
		}
		after.BalanceDue = ReservationBalance(after.TotalAmount, after.Deposit, after.AmountPaid)
		after.UpdatedAtUnixUTC = service.nowFn()
		if err := transactionStore.UpdateReservation(ctx, after); err != nil {
			return err
		}
		if err := service.cascadeOnUpdate(ctx, transactionStore, before, after, patch, caller); err != nil {
			return err
		}
		updated = after
		return nil
	})
	service.logOperation(ctx, OperationLog{
		Operation:     operationUpdateReservation,
		ReservationID: reservationID,
		InvoiceNumber: updated.InvoiceNumber,
		Amount:        updated.TotalAmount,
		UserID:        caller.UserID,
		Error:         operationError,
	})
	if operationError != nil {
		return Reservation{}, operationError
	}
	return updated, nil
}

// DeleteReservation removes the reservation with its derived expenses
// and abonos. Commissions are kept and flipped to invoice_deleted so
// payout history survives.
func (service *Service) DeleteReservation(ctx context.Context, reservationID string) error {
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		if _, err := transactionStore.GetReservation(ctx, reservationID); err != nil {
			return err
		}
		if err := transactionStore.DeleteReservationExpenses(ctx, reservationID); err != nil {
			return err
		}
		if err := transactionStore.DeleteReservationAbonos(ctx, reservationID); err != nil {
			return err
		}
		if err := transactionStore.MarkCommissionsInvoiceDeleted(ctx, reservationID, service.nowFn()); err != nil {
			return err
		}
		return transactionStore.DeleteReservation(ctx, reservationID)
	})
	service.logOperation(ctx, OperationLog{
		Operation:     operationDeleteReservation,
		ReservationID: reservationID,
		Error:         operationError,
	})
	return operationError
}

// AddAbono appends one partial payment to a reservation or an expense,
// numbering it and recomputing the target's paid totals and status.
func (service *Service) AddAbono(ctx context.Context, target AbonoTarget, targetID string, input AbonoInput, caller Identity) (Abono, error) {
	var created Abono
	operationError := func() error {
		if !input.Amount.IsPositive() {
			return fmt.Errorf("%w: abono amount must be positive", ErrInvalidAmount)
		}
		currency, err := ParseCurrency(input.Currency)
		if err != nil {
			return err
		}
		return service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
			invoiceNumber, err := service.allocateNumber(ctx, transactionStore, input.ManualInvoiceNumber, caller.Role)
			if err != nil {
				return err
			}
			paymentDate := input.PaymentDate
			if paymentDate == 0 {
				paymentDate = service.nowFn()
			}
			abono := Abono{
				ID:               service.idFn(),
				InvoiceNumber:    invoiceNumber,
				Amount:           input.Amount,
				Currency:         currency,
				PaymentMethod:    input.PaymentMethod,
				PaymentDate:      paymentDate,
				Notes:            input.Notes,
				CreatedBy:        caller.UserID,
				CreatedAtUnixUTC: service.nowFn(),
			}
			switch target {
			case TargetReservation:
				reservation, err := transactionStore.GetReservation(ctx, targetID)
				if err != nil {
					return err
				}
				abono.ReservationID = targetID
				if err := transactionStore.InsertReservationAbono(ctx, abono); err != nil {
					return err
				}
				reservation.AmountPaid = reservation.AmountPaid.Add(abono.Amount)
				reservation.BalanceDue = ReservationBalance(reservation.TotalAmount, reservation.Deposit, reservation.AmountPaid)
				reservation.UpdatedAtUnixUTC = service.nowFn()
				if err := transactionStore.UpdateReservation(ctx, reservation); err != nil {
					return err
				}
			case TargetExpense:
				expense, err := transactionStore.GetExpense(ctx, targetID)
				if err != nil {
					return err
				}
				abono.ExpenseID = targetID
				if err := transactionStore.InsertExpenseAbono(ctx, abono); err != nil {
					return err
				}
				if err := service.recomputeExpense(ctx, transactionStore, expense); err != nil {
					return err
				}
			default:
				return fmt.Errorf("%w: %q", ErrInvalidTarget, target)
			}
			created = abono
			return nil
		})
	}()
	service.logOperation(ctx, OperationLog{
		Operation:     operationAddAbono,
		ReservationID: created.ReservationID,
		ExpenseID:     created.ExpenseID,
		AbonoID:       created.ID,
		InvoiceNumber: created.InvoiceNumber,
		Amount:        input.Amount,
		UserID:        caller.UserID,
		Error:         operationError,
	})
	if operationError != nil {
		return Abono{}, operationError
	}
	return created, nil
}

// DeleteAbono removes one payment record and recomputes the target
// from the remaining abonos, never by patching a cached total.
func (service *Service) DeleteAbono(ctx context.Context, target AbonoTarget, targetID string, abonoID string) error {
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		switch target {
		case TargetReservation:
			abono, err := transactionStore.GetReservationAbono(ctx, targetID, abonoID)
			if err != nil {
				return err
			}
			if err := transactionStore.DeleteReservationAbono(ctx, targetID, abonoID); err != nil {
				return err
			}
			reservation, err := transactionStore.GetReservation(ctx, targetID)
			if err != nil {
				return err
			}
			reservation.AmountPaid = reservation.AmountPaid.Sub(abono.Amount)
			reservation.BalanceDue = ReservationBalance(reservation.TotalAmount, reservation.Deposit, reservation.AmountPaid)
			reservation.UpdatedAtUnixUTC = service.nowFn()
			return transactionStore.UpdateReservation(ctx, reservation)
		case TargetExpense:
			if _, err := transactionStore.GetExpenseAbono(ctx, targetID, abonoID); err != nil {
				return err
			}
			if err := transactionStore.DeleteExpenseAbono(ctx, targetID, abonoID); err != nil {
				return err
			}
			expense, err := transactionStore.GetExpense(ctx, targetID)
			if err != nil {
				return err
			}
			return service.recomputeExpense(ctx, transactionStore, expense)
		default:
			return fmt.Errorf("%w: %q", ErrInvalidTarget, target)
		}
	})
	service.logOperation(ctx, OperationLog{
		Operation: operationDeleteAbono,
		AbonoID:   abonoID,
		Error:     operationError,
	})
	return operationError
}

func (service *Service) logOperation(ctx context.Context, entry OperationLog) {
	if service.logger == nil {
		return
	}
	if entry.Status == "" {
		if entry.Error != nil {
			entry.Status = operationStatusError
		} else {
			entry.Status = operationStatusOK
		}
	}
	service.logger.LogOperation(ctx, entry)
}

func validateReservationInput(input ReservationInput) error {
	if input.CustomerName == "" {
		return fmt.Errorf("%w: customer name is required", ErrInvalidReservation)
	}
	if input.TotalAmount.IsNegative() {
		return fmt.Errorf("%w: total amount is negative", ErrInvalidReservation)
	}
	if input.Deposit.IsNegative() {
		return fmt.Errorf("%w: deposit is negative", ErrInvalidReservation)
	}
	if input.AmountPaid.IsNegative() {
		return fmt.Errorf("%w: amount paid is negative", ErrInvalidReservation)
	}
	if input.OwnerPrice.IsNegative() {
		return fmt.Errorf("%w: owner price is negative", ErrInvalidReservation)
	}
	return nil
}

func applyPatch(reservation Reservation, patch ReservationPatch) (Reservation, error) {
	if patch.ReservationDate != nil {
		reservation.ReservationDate = *patch.ReservationDate
	}
	if patch.OwnerPrice != nil {
		if patch.OwnerPrice.IsNegative() {
			return Reservation{}, fmt.Errorf("%w: owner price is negative", ErrInvalidReservation)
		}
		reservation.OwnerPrice = *patch.OwnerPrice
	}
	if patch.ExtraServices != nil {
		reservation.ExtraServices = *patch.ExtraServices
	}
	if patch.Subtotal != nil {
		reservation.Subtotal = *patch.Subtotal
	}
	if patch.Discount != nil {
		reservation.Discount = *patch.Discount
	}
	if patch.ITBISAmount != nil {
		reservation.ITBISAmount = *patch.ITBISAmount
	}
	if patch.TotalAmount != nil {
		if patch.TotalAmount.IsNegative() {
			return Reservation{}, fmt.Errorf("%w: total amount is negative", ErrInvalidReservation)
		}
		reservation.TotalAmount = *patch.TotalAmount
	}
	if patch.Deposit != nil {
		if patch.Deposit.IsNegative() {
			return Reservation{}, fmt.Errorf("%w: deposit is negative", ErrInvalidReservation)
		}
		reservation.Deposit = *patch.Deposit
	}
	if patch.DepositReturned != nil {
		reservation.DepositReturned = *patch.DepositReturned
	}
	if patch.AmountPaid != nil {
		if patch.AmountPaid.IsNegative() {
			return Reservation{}, fmt.Errorf("%w: amount paid is negative", ErrInvalidReservation)
		}
		reservation.AmountPaid = *patch.AmountPaid
	}
	if patch.Status != nil {
		status, err := ParseReservationStatus(*patch.Status)
		if err != nil {
			return Reservation{}, err
		}
		reservation.Status = status
	}
	if patch.Notes != nil {
		reservation.Notes = *patch.Notes
	}
	return reservation, nil
}
