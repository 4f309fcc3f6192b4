package gormstore

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// InvoiceCounter is the single-row table backing invoice numbering.
type InvoiceCounter struct {
	ID        int   `gorm:"primaryKey"`
	NextValue int64 `gorm:"not null"`
}

func (InvoiceCounter) TableName() string { return "invoice_counter" }

// Reservation mirrors the reservations table.
type Reservation struct {
	ReservationID   string          `gorm:"type:uuid;primaryKey"`
	InvoiceNumber   string          `gorm:"not null;uniqueIndex:uniq_reservation_invoice"`
	CustomerID      string          `gorm:""`
	CustomerName    string          `gorm:"not null"`
	VillaID         string          `gorm:"index"`
	ReservationDate time.Time       `gorm:"not null"`
	Guests          int             `gorm:"not null"`
	ExtraHours      decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	ExtraPeople     int             `gorm:"not null"`
	BasePrice       decimal.Decimal `gorm:"type:numeric(14,2);not null"`
	OwnerPrice      decimal.Decimal `gorm:"type:numeric(14,2);not null"`
	ExtraHoursCost  decimal.Decimal `gorm:"type:numeric(14,2);not null"`
	ExtraPeopleCost decimal.Decimal `gorm:"type:numeric(14,2);not null"`
	ExtraServices   datatypes.JSON  `gorm:"type:jsonb"`
	Subtotal        decimal.Decimal `gorm:"type:numeric(14,2);not null"`
	Discount        decimal.Decimal `gorm:"type:numeric(14,2);not null"`
	IncludeITBIS    bool            `gorm:"not null"`
	ITBISAmount     decimal.Decimal `gorm:"type:numeric(14,2);not null"`
	TotalAmount     decimal.Decimal `gorm:"type:numeric(14,2);not null"`
	Deposit         decimal.Decimal `gorm:"type:numeric(14,2);not null"`
	DepositReturned bool            `gorm:"not null"`
	AmountPaid      decimal.Decimal `gorm:"type:numeric(14,2);not null"`
	BalanceDue      decimal.Decimal `gorm:"type:numeric(14,2);not null"`
	Currency        string          `gorm:"not null"`
	Status          string          `gorm:"not null"`
	Notes           string          `gorm:""`
	CreatedBy       string          `gorm:""`
	CreatedAt       time.Time       `gorm:"not null"`
	UpdatedAt       time.Time       `gorm:"not null"`
}

func (Reservation) TableName() string { return "reservations" }

func (reservation *Reservation) BeforeCreate(tx *gorm.DB) error {
	if reservation.ReservationID == "" {
		reservation.ReservationID = uuid.NewString()
	}
	return nil
}

// Expense mirrors the expenses table.
type Expense struct {
	ExpenseID            string          `gorm:"type:uuid;primaryKey"`
	Category             string          `gorm:"not null;index:idx_expenses_reservation_category,priority:2"`
	Description          string          `gorm:""`
	Amount               decimal.Decimal `gorm:"type:numeric(14,2);not null"`
	Currency             string          `gorm:"not null"`
	ExpenseDate          time.Time       `gorm:"not null"`
	PaymentStatus        string          `gorm:"not null"`
	Notes                string          `gorm:""`
	RelatedReservationID string          `gorm:"index:idx_expenses_reservation_category,priority:1"`
	ServicesDetails      datatypes.JSON  `gorm:"type:jsonb"`
	TotalPaid            decimal.Decimal `gorm:"type:numeric(14,2);not null"`
	BalanceDue           decimal.Decimal `gorm:"type:numeric(14,2);not null"`
	CreatedBy            string          `gorm:""`
	CreatedAt            time.Time       `gorm:"not null"`
	UpdatedAt            time.Time       `gorm:"not null"`
}

func (Expense) TableName() string { return "expenses" }

func (expense *Expense) BeforeCreate(tx *gorm.DB) error {
	if expense.ExpenseID == "" {
		expense.ExpenseID = uuid.NewString()
	}
	return nil
}

// ReservationAbono mirrors the reservation_abonos table.
type ReservationAbono struct {
	AbonoID       string          `gorm:"type:uuid;primaryKey"`
	ReservationID string          `gorm:"type:uuid;not null;index"`
	InvoiceNumber string          `gorm:"not null;uniqueIndex:uniq_reservation_abono_invoice"`
	Amount        decimal.Decimal `gorm:"type:numeric(14,2);not null"`
	Currency      string          `gorm:"not null"`
	PaymentMethod string          `gorm:""`
	PaymentDate   time.Time       `gorm:"not null"`
	Notes         string          `gorm:""`
	CreatedBy     string          `gorm:""`
	CreatedAt     time.Time       `gorm:"not null"`
}

func (ReservationAbono) TableName() string { return "reservation_abonos" }

func (abono *ReservationAbono) BeforeCreate(tx *gorm.DB) error {
	if abono.AbonoID == "" {
		abono.AbonoID = uuid.NewString()
	}
	return nil
}

// ExpenseAbono mirrors the expense_abonos table.
type ExpenseAbono struct {
	AbonoID       string          `gorm:"type:uuid;primaryKey"`
	ExpenseID     string          `gorm:"type:uuid;not null;index"`
	InvoiceNumber string          `gorm:"not null;uniqueIndex:uniq_expense_abono_invoice"`
	Amount        decimal.Decimal `gorm:"type:numeric(14,2);not null"`
	Currency      string          `gorm:"not null"`
	PaymentMethod string          `gorm:""`
	PaymentDate   time.Time       `gorm:"not null"`
	Notes         string          `gorm:""`
	CreatedBy     string          `gorm:""`
	CreatedAt     time.Time       `gorm:"not null"`
}

func (ExpenseAbono) TableName() string { return "expense_abonos" }

func (abono *ExpenseAbono) BeforeCreate(tx *gorm.DB) error {
	if abono.AbonoID == "" {
		abono.AbonoID = uuid.NewString()
	}
	return nil
}

// VillaOwner mirrors the villa_owners aggregate table.
type VillaOwner struct {
	OwnerID    string          `gorm:"type:uuid;primaryKey"`
	Name       string          `gorm:"not null;uniqueIndex:uniq_villa_owner_name"`
	Phone      string          `gorm:""`
	Villas     datatypes.JSON  `gorm:"type:jsonb"`
	TotalOwed  decimal.Decimal `gorm:"type:numeric(14,2);not null"`
	AmountPaid decimal.Decimal `gorm:"type:numeric(14,2);not null"`
	BalanceDue decimal.Decimal `gorm:"type:numeric(14,2);not null"`
	Notes      string          `gorm:""`
	CreatedBy  string          `gorm:""`
	CreatedAt  time.Time       `gorm:"not null"`
}

func (VillaOwner) TableName() string { return "villa_owners" }

func (owner *VillaOwner) BeforeCreate(tx *gorm.DB) error {
	if owner.OwnerID == "" {
		owner.OwnerID = uuid.NewString()
	}
	return nil
}

// Commission mirrors the commissions table.
type Commission struct {
	CommissionID    string          `gorm:"type:uuid;primaryKey"`
	ReservationID   string          `gorm:"type:uuid;not null;index"`
	UserID          string          `gorm:"not null;index"`
	UserName        string          `gorm:""`
	VillaCode       string          `gorm:""`
	VillaName       string          `gorm:""`
	CustomerName    string          `gorm:""`
	ReservationDate time.Time       `gorm:"not null"`
	Amount          decimal.Decimal `gorm:"type:numeric(14,2);not null"`
	Notes           string          `gorm:""`
	State           string          `gorm:"not null"`
	DeletedAt       *time.Time      `gorm:""`
	CreatedBy       string          `gorm:""`
	CreatedAt       time.Time       `gorm:"not null"`
}

func (Commission) TableName() string { return "commissions" }

func (commission *Commission) BeforeCreate(tx *gorm.DB) error {
	if commission.CommissionID == "" {
		commission.CommissionID = uuid.NewString()
	}
	return nil
}

// Villa mirrors the villas catalog table. The billing engine only
// reads it.
type Villa struct {
	VillaID string `gorm:"type:uuid;primaryKey"`
	Code    string `gorm:"not null;uniqueIndex:uniq_villa_code"`
	Name    string `gorm:"not null"`
	Phone   string `gorm:""`
}

func (Villa) TableName() string { return "villas" }

// AutoMigrate creates or updates every billing table.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&InvoiceCounter{},
		&Reservation{},
		&Expense{},
		&ReservationAbono{},
		&ExpenseAbono{},
		&VillaOwner{},
		&Commission{},
		&Villa{},
	)
}
