package gormstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	gosqlite "github.com/glebarez/go-sqlite"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/caribevillas/billing/pkg/billing"
)

const (
	counterRowID          = 1
	pgUniqueViolationCode = "23505"
	sqliteConstraintCode  = 19

	errorOperationStore     = "store"
	errorSubjectCounter     = "counter"
	errorSubjectReservation = "reservation"
	errorSubjectExpense     = "expense"
	errorSubjectAbono       = "abono"
	errorSubjectOwner       = "villa_owner"
	errorSubjectCommission  = "commission"
	errorSubjectVilla       = "villa"
	errorCodeGet            = "get"
	errorCodeInsert         = "insert"
	errorCodeUpdate         = "update"
	errorCodeDelete         = "delete"
	errorCodeList           = "list"
	errorCodeProbe          = "probe"
	errorCodeDuplicate      = "duplicate"
	errorCodeInvalid        = "invalid"
)

// Store implements billing.Store using GORM.
type Store struct {
	db *gorm.DB
}

// New returns a Store backed by gorm.DB.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// WithTx executes fn within a transaction.
func (store *Store) WithTx(ctx context.Context, fn func(ctx context.Context, txStore billing.Store) error) error {
	return store.db.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		return fn(ctx, &Store{db: transaction})
	})
}

// CounterValue reads the invoice counter under a row lock, seeding the
// singleton row on first use.
func (store *Store) CounterValue(ctx context.Context) (int64, error) {
	var counter InvoiceCounter
	err := store.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Take(&counter, "id = ?", counterRowID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		counter = InvoiceCounter{ID: counterRowID, NextValue: billing.CounterSeed}
		if err := store.db.WithContext(ctx).Create(&counter).Error; err != nil {
			return 0, wrapStoreError(errorSubjectCounter, errorCodeInsert, err)
		}
		return counter.NextValue, nil
	}
	if err != nil {
		return 0, wrapStoreError(errorSubjectCounter, errorCodeGet, err)
	}
	return counter.NextValue, nil
}

func (store *Store) SetCounterValue(ctx context.Context, next int64) error {
	err := store.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{"next_value": next}),
		}).
		Create(&InvoiceCounter{ID: counterRowID, NextValue: next}).Error
	if err != nil {
		return wrapStoreError(errorSubjectCounter, errorCodeUpdate, err)
	}
	return nil
}

func (store *Store) ReservationNumberExists(ctx context.Context, invoiceNumber string) (bool, error) {
	return store.numberExists(ctx, &Reservation{}, invoiceNumber)
}

func (store *Store) ReservationAbonoNumberExists(ctx context.Context, invoiceNumber string) (bool, error) {
	return store.numberExists(ctx, &ReservationAbono{}, invoiceNumber)
}

func (store *Store) ExpenseAbonoNumberExists(ctx context.Context, invoiceNumber string) (bool, error) {
	return store.numberExists(ctx, &ExpenseAbono{}, invoiceNumber)
}

func (store *Store) numberExists(ctx context.Context, model interface{}, invoiceNumber string) (bool, error) {
	var count int64
	err := store.db.WithContext(ctx).
		Model(model).
		Where("invoice_number = ?", invoiceNumber).
		Count(&count).Error
	if err != nil {
		return false, wrapStoreError(errorSubjectCounter, errorCodeProbe, err)
	}
	return count > 0, nil
}

func (store *Store) InsertReservation(ctx context.Context, reservation billing.Reservation) error {
	model, err := toReservationModel(reservation)
	if err != nil {
		return wrapStoreError(errorSubjectReservation, errorCodeInvalid, err)
	}
	err = store.db.WithContext(ctx).Create(&model).Error
	if isUniqueViolation(err) {
		return wrapStoreError(errorSubjectReservation, errorCodeDuplicate, billing.ErrInvoiceNumberTaken)
	}
	if err != nil {
		return wrapStoreError(errorSubjectReservation, errorCodeInsert, err)
	}
	return nil
}

func (store *Store) GetReservation(ctx context.Context, reservationID string) (billing.Reservation, error) {
	var model Reservation
	err := store.db.WithContext(ctx).
		Take(&model, "reservation_id = ?", reservationID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return billing.Reservation{}, notFoundError(errorSubjectReservation, errorCodeGet, billing.ErrReservationNotFound, reservationID)
	}
	if err != nil {
		return billing.Reservation{}, wrapStoreError(errorSubjectReservation, errorCodeGet, err)
	}
	reservation, err := fromReservationModel(model)
	if err != nil {
		return billing.Reservation{}, wrapStoreError(errorSubjectReservation, errorCodeInvalid, err)
	}
	return reservation, nil
}

func (store *Store) UpdateReservation(ctx context.Context, reservation billing.Reservation) error {
	model, err := toReservationModel(reservation)
	if err != nil {
		return wrapStoreError(errorSubjectReservation, errorCodeInvalid, err)
	}
	result := store.db.WithContext(ctx).
		Model(&Reservation{}).
		Where("reservation_id = ?", reservation.ID).
		Select("*").
		Omit("reservation_id", "created_at").
		Updates(&model)
	if result.Error != nil {
		return wrapStoreError(errorSubjectReservation, errorCodeUpdate, result.Error)
	}
	if result.RowsAffected == 0 {
		return notFoundError(errorSubjectReservation, errorCodeUpdate, billing.ErrReservationNotFound, reservation.ID)
	}
	return nil
}

func (store *Store) DeleteReservation(ctx context.Context, reservationID string) error {
	result := store.db.WithContext(ctx).Delete(&Reservation{}, "reservation_id = ?", reservationID)
	if result.Error != nil {
		return wrapStoreError(errorSubjectReservation, errorCodeDelete, result.Error)
	}
	if result.RowsAffected == 0 {
		return notFoundError(errorSubjectReservation, errorCodeDelete, billing.ErrReservationNotFound, reservationID)
	}
	return nil
}

func (store *Store) InsertExpense(ctx context.Context, expense billing.Expense) error {
	model, err := toExpenseModel(expense)
	if err != nil {
		return wrapStoreError(errorSubjectExpense, errorCodeInvalid, err)
	}
	if err := store.db.WithContext(ctx).Create(&model).Error; err != nil {
		return wrapStoreError(errorSubjectExpense, errorCodeInsert, err)
	}
	return nil
}

func (store *Store) GetExpense(ctx context.Context, expenseID string) (billing.Expense, error) {
	var model Expense
	err := store.db.WithContext(ctx).Take(&model, "expense_id = ?", expenseID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return billing.Expense{}, notFoundError(errorSubjectExpense, errorCodeGet, billing.ErrExpenseNotFound, expenseID)
	}
	if err != nil {
		return billing.Expense{}, wrapStoreError(errorSubjectExpense, errorCodeGet, err)
	}
	expense, err := fromExpenseModel(model)
	if err != nil {
		return billing.Expense{}, wrapStoreError(errorSubjectExpense, errorCodeInvalid, err)
	}
	return expense, nil
}

func (store *Store) ListReservationExpenses(ctx context.Context, reservationID string, category billing.ExpenseCategory) ([]billing.Expense, error) {
	query := store.db.WithContext(ctx).
		Where("related_reservation_id = ?", reservationID).
		Order("created_at ASC")
	if category != "" {
		query = query.Where("category = ?", category.String())
	}
	var rows []Expense
	if err := query.Find(&rows).Error; err != nil {
		return nil, wrapStoreError(errorSubjectExpense, errorCodeList, err)
	}
	expenses := make([]billing.Expense, 0, len(rows))
	for _, row := range rows {
		expense, err := fromExpenseModel(row)
		if err != nil {
			return nil, wrapStoreError(errorSubjectExpense, errorCodeInvalid, err)
		}
		expenses = append(expenses, expense)
	}
	return expenses, nil
}

func (store *Store) UpdateExpenseAmount(ctx context.Context, expenseID string, amount decimal.Decimal) error {
	return store.updateExpenseColumns(ctx, expenseID, map[string]interface{}{
		"amount":     amount,
		"updated_at": time.Now().UTC(),
	})
}

func (store *Store) UpdateExpenseStatus(ctx context.Context, expenseID string, status billing.PaymentStatus) error {
	return store.updateExpenseColumns(ctx, expenseID, map[string]interface{}{
		"payment_status": status.String(),
		"updated_at":     time.Now().UTC(),
	})
}

func (store *Store) UpdateExpenseTotals(ctx context.Context, expenseID string, totalPaid, balanceDue decimal.Decimal, status billing.PaymentStatus) error {
	return store.updateExpenseColumns(ctx, expenseID, map[string]interface{}{
		"total_paid":     totalPaid,
		"balance_due":    balanceDue,
		"payment_status": status.String(),
		"updated_at":     time.Now().UTC(),
	})
}

func (store *Store) updateExpenseColumns(ctx context.Context, expenseID string, columns map[string]interface{}) error {
	result := store.db.WithContext(ctx).
		Model(&Expense{}).
		Where("expense_id = ?", expenseID).
		Updates(columns)
	if result.Error != nil {
		return wrapStoreError(errorSubjectExpense, errorCodeUpdate, result.Error)
	}
	if result.RowsAffected == 0 {
		return notFoundError(errorSubjectExpense, errorCodeUpdate, billing.ErrExpenseNotFound, expenseID)
	}
	return nil
}

func (store *Store) PropagateExpenseDate(ctx context.Context, reservationID string, expenseDateUnixUTC int64) error {
	err := store.db.WithContext(ctx).
		Model(&Expense{}).
		Where("related_reservation_id = ?", reservationID).
		Updates(map[string]interface{}{
			"expense_date": time.Unix(expenseDateUnixUTC, 0).UTC(),
			"updated_at":   time.Now().UTC(),
		}).Error
	if err != nil {
		return wrapStoreError(errorSubjectExpense, errorCodeUpdate, err)
	}
	return nil
}

// DeleteReservationExpenses removes the reservation's derived expenses
// together with their payment histories.
func (store *Store) DeleteReservationExpenses(ctx context.Context, reservationID string) error {
	err := store.db.WithContext(ctx).
		Where("expense_id IN (?)",
			store.db.Model(&Expense{}).Select("expense_id").Where("related_reservation_id = ?", reservationID)).
		Delete(&ExpenseAbono{}).Error
	if err != nil {
		return wrapStoreError(errorSubjectAbono, errorCodeDelete, err)
	}
	err = store.db.WithContext(ctx).
		Where("related_reservation_id = ?", reservationID).
		Delete(&Expense{}).Error
	if err != nil {
		return wrapStoreError(errorSubjectExpense, errorCodeDelete, err)
	}
	return nil
}

func (store *Store) InsertReservationAbono(ctx context.Context, abono billing.Abono) error {
	model := toReservationAbonoModel(abono)
	err := store.db.WithContext(ctx).Create(&model).Error
	if isUniqueViolation(err) {
		return wrapStoreError(errorSubjectAbono, errorCodeDuplicate, billing.ErrInvoiceNumberTaken)
	}
	if err != nil {
		return wrapStoreError(errorSubjectAbono, errorCodeInsert, err)
	}
	return nil
}

func (store *Store) GetReservationAbono(ctx context.Context, reservationID, abonoID string) (billing.Abono, error) {
	var model ReservationAbono
	err := store.db.WithContext(ctx).
		Take(&model, "reservation_id = ? AND abono_id = ?", reservationID, abonoID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return billing.Abono{}, notFoundError(errorSubjectAbono, errorCodeGet, billing.ErrAbonoNotFound, abonoID)
	}
	if err != nil {
		return billing.Abono{}, wrapStoreError(errorSubjectAbono, errorCodeGet, err)
	}
	return fromReservationAbonoModel(model), nil
}

func (store *Store) ListReservationAbonos(ctx context.Context, reservationID string) ([]billing.Abono, error) {
	var rows []ReservationAbono
	err := store.db.WithContext(ctx).
		Where("reservation_id = ?", reservationID).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectAbono, errorCodeList, err)
	}
	abonos := make([]billing.Abono, 0, len(rows))
	for _, row := range rows {
		abonos = append(abonos, fromReservationAbonoModel(row))
	}
	return abonos, nil
}

func (store *Store) DeleteReservationAbono(ctx context.Context, reservationID, abonoID string) error {
	result := store.db.WithContext(ctx).
		Delete(&ReservationAbono{}, "reservation_id = ? AND abono_id = ?", reservationID, abonoID)
	if result.Error != nil {
		return wrapStoreError(errorSubjectAbono, errorCodeDelete, result.Error)
	}
	if result.RowsAffected == 0 {
		return notFoundError(errorSubjectAbono, errorCodeDelete, billing.ErrAbonoNotFound, abonoID)
	}
	return nil
}

func (store *Store) DeleteReservationAbonos(ctx context.Context, reservationID string) error {
	err := store.db.WithContext(ctx).
		Delete(&ReservationAbono{}, "reservation_id = ?", reservationID).Error
	if err != nil {
		return wrapStoreError(errorSubjectAbono, errorCodeDelete, err)
	}
	return nil
}

func (store *Store) InsertExpenseAbono(ctx context.Context, abono billing.Abono) error {
	model := toExpenseAbonoModel(abono)
	err := store.db.WithContext(ctx).Create(&model).Error
	if isUniqueViolation(err) {
		return wrapStoreError(errorSubjectAbono, errorCodeDuplicate, billing.ErrInvoiceNumberTaken)
	}
	if err != nil {
		return wrapStoreError(errorSubjectAbono, errorCodeInsert, err)
	}
	return nil
}

func (store *Store) GetExpenseAbono(ctx context.Context, expenseID, abonoID string) (billing.Abono, error) {
	var model ExpenseAbono
	err := store.db.WithContext(ctx).
		Take(&model, "expense_id = ? AND abono_id = ?", expenseID, abonoID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return billing.Abono{}, notFoundError(errorSubjectAbono, errorCodeGet, billing.ErrAbonoNotFound, abonoID)
	}
	if err != nil {
		return billing.Abono{}, wrapStoreError(errorSubjectAbono, errorCodeGet, err)
	}
	return fromExpenseAbonoModel(model), nil
}

func (store *Store) ListExpenseAbonos(ctx context.Context, expenseID string) ([]billing.Abono, error) {
	var rows []ExpenseAbono
	err := store.db.WithContext(ctx).
		Where("expense_id = ?", expenseID).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectAbono, errorCodeList, err)
	}
	abonos := make([]billing.Abono, 0, len(rows))
	for _, row := range rows {
		abonos = append(abonos, fromExpenseAbonoModel(row))
	}
	return abonos, nil
}

func (store *Store) DeleteExpenseAbono(ctx context.Context, expenseID, abonoID string) error {
	result := store.db.WithContext(ctx).
		Delete(&ExpenseAbono{}, "expense_id = ? AND abono_id = ?", expenseID, abonoID)
	if result.Error != nil {
		return wrapStoreError(errorSubjectAbono, errorCodeDelete, result.Error)
	}
	if result.RowsAffected == 0 {
		return notFoundError(errorSubjectAbono, errorCodeDelete, billing.ErrAbonoNotFound, abonoID)
	}
	return nil
}

func (store *Store) FindVillaOwner(ctx context.Context, name string) (billing.VillaOwner, bool, error) {
	var model VillaOwner
	err := store.db.WithContext(ctx).Take(&model, "name = ?", name).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return billing.VillaOwner{}, false, nil
	}
	if err != nil {
		return billing.VillaOwner{}, false, wrapStoreError(errorSubjectOwner, errorCodeGet, err)
	}
	owner, err := fromVillaOwnerModel(model)
	if err != nil {
		return billing.VillaOwner{}, false, wrapStoreError(errorSubjectOwner, errorCodeInvalid, err)
	}
	return owner, true, nil
}

func (store *Store) InsertVillaOwner(ctx context.Context, owner billing.VillaOwner) error {
	model, err := toVillaOwnerModel(owner)
	if err != nil {
		return wrapStoreError(errorSubjectOwner, errorCodeInvalid, err)
	}
	if err := store.db.WithContext(ctx).Create(&model).Error; err != nil {
		return wrapStoreError(errorSubjectOwner, errorCodeInsert, err)
	}
	return nil
}

func (store *Store) UpdateVillaOwnerTotals(ctx context.Context, ownerID string, totalOwed, balanceDue decimal.Decimal) error {
	result := store.db.WithContext(ctx).
		Model(&VillaOwner{}).
		Where("owner_id = ?", ownerID).
		Updates(map[string]interface{}{
			"total_owed":  totalOwed,
			"balance_due": balanceDue,
		})
	if result.Error != nil {
		return wrapStoreError(errorSubjectOwner, errorCodeUpdate, result.Error)
	}
	return nil
}

func (store *Store) InsertCommission(ctx context.Context, commission billing.Commission) error {
	model := toCommissionModel(commission)
	if err := store.db.WithContext(ctx).Create(&model).Error; err != nil {
		return wrapStoreError(errorSubjectCommission, errorCodeInsert, err)
	}
	return nil
}

func (store *Store) MarkCommissionsInvoiceDeleted(ctx context.Context, reservationID string, deletedAtUnixUTC int64) error {
	deletedAt := time.Unix(deletedAtUnixUTC, 0).UTC()
	err := store.db.WithContext(ctx).
		Model(&Commission{}).
		Where("reservation_id = ?", reservationID).
		Updates(map[string]interface{}{
			"state":      billing.CommissionInvoiceDeleted.String(),
			"deleted_at": deletedAt,
		}).Error
	if err != nil {
		return wrapStoreError(errorSubjectCommission, errorCodeUpdate, err)
	}
	return nil
}

func (store *Store) GetVilla(ctx context.Context, villaID string) (billing.VillaInfo, error) {
	var model Villa
	err := store.db.WithContext(ctx).Take(&model, "villa_id = ?", villaID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return billing.VillaInfo{}, notFoundError(errorSubjectVilla, errorCodeGet, billing.ErrVillaNotFound, villaID)
	}
	if err != nil {
		return billing.VillaInfo{}, wrapStoreError(errorSubjectVilla, errorCodeGet, err)
	}
	return billing.VillaInfo{ID: model.VillaID, Code: model.Code, Name: model.Name, Phone: model.Phone}, nil
}

func wrapStoreError(subject string, code string, err error) error {
	return billing.WrapError(errorOperationStore, subject, code, err)
}

func notFoundError(subject string, code string, sentinel error, recordID string) error {
	return wrapStoreError(subject, code, fmt.Errorf("%w: %s", sentinel, recordID))
}

// serviceLine is the persisted shape of a billing.ServiceLine.
type serviceLine struct {
	ServiceID    string          `json:"service_id"`
	ServiceName  string          `json:"service_name"`
	SupplierName string          `json:"supplier_name"`
	Quantity     int             `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	SupplierCost decimal.Decimal `json:"supplier_cost"`
	LineTotal    decimal.Decimal `json:"line_total"`
}

func marshalServiceLines(lines []billing.ServiceLine) (datatypes.JSON, error) {
	persisted := make([]serviceLine, 0, len(lines))
	for _, line := range lines {
		persisted = append(persisted, serviceLine(line))
	}
	raw, err := json.Marshal(persisted)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}

func unmarshalServiceLines(raw datatypes.JSON) ([]billing.ServiceLine, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var persisted []serviceLine
	if err := json.Unmarshal(raw, &persisted); err != nil {
		return nil, err
	}
	lines := make([]billing.ServiceLine, 0, len(persisted))
	for _, line := range persisted {
		lines = append(lines, billing.ServiceLine(line))
	}
	return lines, nil
}

func toReservationModel(reservation billing.Reservation) (Reservation, error) {
	services, err := marshalServiceLines(reservation.ExtraServices)
	if err != nil {
		return Reservation{}, err
	}
	return Reservation{
		ReservationID:   reservation.ID,
		InvoiceNumber:   reservation.InvoiceNumber,
		CustomerID:      reservation.CustomerID,
		CustomerName:    reservation.CustomerName,
		VillaID:         reservation.VillaID,
		ReservationDate: time.Unix(reservation.ReservationDate, 0).UTC(),
		Guests:          reservation.Guests,
		ExtraHours:      reservation.ExtraHours,
		ExtraPeople:     reservation.ExtraPeople,
		BasePrice:       reservation.BasePrice,
		OwnerPrice:      reservation.OwnerPrice,
		ExtraHoursCost:  reservation.ExtraHoursCost,
		ExtraPeopleCost: reservation.ExtraPeopleCost,
		ExtraServices:   services,
		Subtotal:        reservation.Subtotal,
		Discount:        reservation.Discount,
		IncludeITBIS:    reservation.IncludeITBIS,
		ITBISAmount:     reservation.ITBISAmount,
		TotalAmount:     reservation.TotalAmount,
		Deposit:         reservation.Deposit,
		DepositReturned: reservation.DepositReturned,
		AmountPaid:      reservation.AmountPaid,
		BalanceDue:      reservation.BalanceDue,
		Currency:        reservation.Currency.String(),
		Status:          reservation.Status.String(),
		Notes:           reservation.Notes,
		CreatedBy:       reservation.CreatedBy,
		CreatedAt:       time.Unix(reservation.CreatedAtUnixUTC, 0).UTC(),
		UpdatedAt:       time.Unix(reservation.UpdatedAtUnixUTC, 0).UTC(),
	}, nil
}

func fromReservationModel(model Reservation) (billing.Reservation, error) {
	services, err := unmarshalServiceLines(model.ExtraServices)
	if err != nil {
		return billing.Reservation{}, err
	}
	currency, err := billing.ParseCurrency(model.Currency)
	if err != nil {
		return billing.Reservation{}, err
	}
	status, err := billing.ParseReservationStatus(model.Status)
	if err != nil {
		return billing.Reservation{}, err
	}
	return billing.Reservation{
		ID:               model.ReservationID,
		InvoiceNumber:    model.InvoiceNumber,
		CustomerID:       model.CustomerID,
		CustomerName:     model.CustomerName,
		VillaID:          model.VillaID,
		ReservationDate:  model.ReservationDate.Unix(),
		Guests:           model.Guests,
		ExtraHours:       model.ExtraHours,
		ExtraPeople:      model.ExtraPeople,
		BasePrice:        model.BasePrice,
		OwnerPrice:       model.OwnerPrice,
		ExtraHoursCost:   model.ExtraHoursCost,
		ExtraPeopleCost:  model.ExtraPeopleCost,
		ExtraServices:    services,
		Subtotal:         model.Subtotal,
		Discount:         model.Discount,
		IncludeITBIS:     model.IncludeITBIS,
		ITBISAmount:      model.ITBISAmount,
		TotalAmount:      model.TotalAmount,
		Deposit:          model.Deposit,
		DepositReturned:  model.DepositReturned,
		AmountPaid:       model.AmountPaid,
		BalanceDue:       model.BalanceDue,
		Currency:         currency,
		Status:           status,
		Notes:            model.Notes,
		CreatedBy:        model.CreatedBy,
		CreatedAtUnixUTC: model.CreatedAt.Unix(),
		UpdatedAtUnixUTC: model.UpdatedAt.Unix(),
	}, nil
}

func toExpenseModel(expense billing.Expense) (Expense, error) {
	services, err := marshalServiceLines(expense.ServicesDetails)
	if err != nil {
		return Expense{}, err
	}
	return Expense{
		ExpenseID:            expense.ID,
		Category:             expense.Category.String(),
		Description:          expense.Description,
		Amount:               expense.Amount,
		Currency:             expense.Currency.String(),
		ExpenseDate:          time.Unix(expense.ExpenseDate, 0).UTC(),
		PaymentStatus:        expense.PaymentStatus.String(),
		Notes:                expense.Notes,
		RelatedReservationID: expense.RelatedReservationID,
		ServicesDetails:      services,
		TotalPaid:            expense.TotalPaid,
		BalanceDue:           expense.BalanceDue,
		CreatedBy:            expense.CreatedBy,
		CreatedAt:            time.Unix(expense.CreatedAtUnixUTC, 0).UTC(),
		UpdatedAt:            time.Unix(expense.UpdatedAtUnixUTC, 0).UTC(),
	}, nil
}

func fromExpenseModel(model Expense) (billing.Expense, error) {
	services, err := unmarshalServiceLines(model.ServicesDetails)
	if err != nil {
		return billing.Expense{}, err
	}
	category, err := billing.ParseExpenseCategory(model.Category)
	if err != nil {
		return billing.Expense{}, err
	}
	currency, err := billing.ParseCurrency(model.Currency)
	if err != nil {
		return billing.Expense{}, err
	}
	status, err := billing.ParsePaymentStatus(model.PaymentStatus)
	if err != nil {
		return billing.Expense{}, err
	}
	return billing.Expense{
		ID:                   model.ExpenseID,
		Category:             category,
		Description:          model.Description,
		Amount:               model.Amount,
		Currency:             currency,
		ExpenseDate:          model.ExpenseDate.Unix(),
		PaymentStatus:        status,
		Notes:                model.Notes,
		RelatedReservationID: model.RelatedReservationID,
		ServicesDetails:      services,
		TotalPaid:            model.TotalPaid,
		BalanceDue:           model.BalanceDue,
		CreatedBy:            model.CreatedBy,
		CreatedAtUnixUTC:     model.CreatedAt.Unix(),
		UpdatedAtUnixUTC:     model.UpdatedAt.Unix(),
	}, nil
}

func toReservationAbonoModel(abono billing.Abono) ReservationAbono {
	return ReservationAbono{
		AbonoID:       abono.ID,
		ReservationID: abono.ReservationID,
		InvoiceNumber: abono.InvoiceNumber,
		Amount:        abono.Amount,
		Currency:      abono.Currency.String(),
		PaymentMethod: abono.PaymentMethod,
		PaymentDate:   time.Unix(abono.PaymentDate, 0).UTC(),
		Notes:         abono.Notes,
		CreatedBy:     abono.CreatedBy,
		CreatedAt:     time.Unix(abono.CreatedAtUnixUTC, 0).UTC(),
	}
}

func fromReservationAbonoModel(model ReservationAbono) billing.Abono {
	return billing.Abono{
		ID:               model.AbonoID,
		InvoiceNumber:    model.InvoiceNumber,
		Amount:           model.Amount,
		Currency:         billing.Currency(model.Currency),
		PaymentMethod:    model.PaymentMethod,
		PaymentDate:      model.PaymentDate.Unix(),
		Notes:            model.Notes,
		ReservationID:    model.ReservationID,
		CreatedBy:        model.CreatedBy,
		CreatedAtUnixUTC: model.CreatedAt.Unix(),
	}
}

func toExpenseAbonoModel(abono billing.Abono) ExpenseAbono {
	return ExpenseAbono{
		AbonoID:       abono.ID,
		ExpenseID:     abono.ExpenseID,
		InvoiceNumber: abono.InvoiceNumber,
		Amount:        abono.Amount,
		Currency:      abono.Currency.String(),
		PaymentMethod: abono.PaymentMethod,
		PaymentDate:   time.Unix(abono.PaymentDate, 0).UTC(),
		Notes:         abono.Notes,
		CreatedBy:     abono.CreatedBy,
		CreatedAt:     time.Unix(abono.CreatedAtUnixUTC, 0).UTC(),
	}
}

func fromExpenseAbonoModel(model ExpenseAbono) billing.Abono {
	return billing.Abono{
		ID:               model.AbonoID,
		InvoiceNumber:    model.InvoiceNumber,
		Amount:           model.Amount,
		Currency:         billing.Currency(model.Currency),
		PaymentMethod:    model.PaymentMethod,
		PaymentDate:      model.PaymentDate.Unix(),
		Notes:            model.Notes,
		ExpenseID:        model.ExpenseID,
		CreatedBy:        model.CreatedBy,
		CreatedAtUnixUTC: model.CreatedAt.Unix(),
	}
}

func toVillaOwnerModel(owner billing.VillaOwner) (VillaOwner, error) {
	villas, err := json.Marshal(owner.Villas)
	if err != nil {
		return VillaOwner{}, err
	}
	return VillaOwner{
		OwnerID:    owner.ID,
		Name:       owner.Name,
		Phone:      owner.Phone,
		Villas:     datatypes.JSON(villas),
		TotalOwed:  owner.TotalOwed,
		AmountPaid: owner.AmountPaid,
		BalanceDue: owner.BalanceDue,
		Notes:      owner.Notes,
		CreatedBy:  owner.CreatedBy,
		CreatedAt:  time.Unix(owner.CreatedAtUnixUTC, 0).UTC(),
	}, nil
}

func fromVillaOwnerModel(model VillaOwner) (billing.VillaOwner, error) {
	var villas []string
	if len(model.Villas) > 0 {
		if err := json.Unmarshal(model.Villas, &villas); err != nil {
			return billing.VillaOwner{}, err
		}
	}
	return billing.VillaOwner{
		ID:               model.OwnerID,
		Name:             model.Name,
		Phone:            model.Phone,
		Villas:           villas,
		TotalOwed:        model.TotalOwed,
		AmountPaid:       model.AmountPaid,
		BalanceDue:       model.BalanceDue,
		Notes:            model.Notes,
		CreatedBy:        model.CreatedBy,
		CreatedAtUnixUTC: model.CreatedAt.Unix(),
	}, nil
}

func toCommissionModel(commission billing.Commission) Commission {
	var deletedAt *time.Time
	if commission.DeletedAtUnixUTC != 0 {
		value := time.Unix(commission.DeletedAtUnixUTC, 0).UTC()
		deletedAt = &value
	}
	return Commission{
		CommissionID:    commission.ID,
		ReservationID:   commission.ReservationID,
		UserID:          commission.UserID,
		UserName:        commission.UserName,
		VillaCode:       commission.VillaCode,
		VillaName:       commission.VillaName,
		CustomerName:    commission.CustomerName,
		ReservationDate: time.Unix(commission.ReservationDate, 0).UTC(),
		Amount:          commission.Amount,
		Notes:           commission.Notes,
		State:           commission.State.String(),
		DeletedAt:       deletedAt,
		CreatedBy:       commission.CreatedBy,
		CreatedAt:       time.Unix(commission.CreatedAtUnixUTC, 0).UTC(),
	}
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolationCode
	}
	var sqliteErr *gosqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code()&0xFF == sqliteConstraintCode
	}
	return false
}
