package billing

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Role gates manual invoice numbering. The engine performs no other
// authorization.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleEmployee Role = "employee"
)

// ParseRole validates a role string.
func ParseRole(raw string) (Role, error) {
	switch Role(strings.TrimSpace(raw)) {
	case RoleAdmin:
		return RoleAdmin, nil
	case RoleEmployee:
		return RoleEmployee, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidRole, raw)
	}
}

// String returns the role name.
func (role Role) String() string {
	return string(role)
}

// Identity is the acting user as supplied by the caller.
type Identity struct {
	UserID string
	Role   Role
}

// NewIdentity validates and normalizes a caller identity.
func NewIdentity(userID string, role string) (Identity, error) {
	trimmed := strings.TrimSpace(userID)
	if trimmed == "" {
		return Identity{}, fmt.Errorf("%w: empty user id", ErrInvalidIdentity)
	}
	parsedRole, err := ParseRole(role)
	if err != nil {
		return Identity{}, err
	}
	return Identity{UserID: trimmed, Role: parsedRole}, nil
}

// Currency enumerates the supported invoice currencies.
type Currency string

const (
	CurrencyDOP Currency = "DOP"
	CurrencyUSD Currency = "USD"
)

// ParseCurrency validates a currency code, defaulting empty input to DOP.
func ParseCurrency(raw string) (Currency, error) {
	normalized := strings.ToUpper(strings.TrimSpace(raw))
	if normalized == "" {
		return CurrencyDOP, nil
	}
	switch Currency(normalized) {
	case CurrencyDOP:
		return CurrencyDOP, nil
	case CurrencyUSD:
		return CurrencyUSD, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidCurrency, raw)
	}
}

// String returns the currency code.
func (currency Currency) String() string {
	return string(currency)
}

// InvoiceNumber is the human-facing invoice identifier. It is globally
// unique across reservations, reservation abonos, and expense abonos.
type InvoiceNumber struct {
	value string
}

// NewInvoiceNumber validates an invoice number: non-empty decimal
// digits in canonical form (no leading zeros, no padding).
func NewInvoiceNumber(raw string) (InvoiceNumber, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return InvoiceNumber{}, fmt.Errorf("%w: empty value", ErrInvalidInvoiceNumber)
	}
	for _, character := range trimmed {
		if character < '0' || character > '9' {
			return InvoiceNumber{}, fmt.Errorf("%w: %q is not numeric", ErrInvalidInvoiceNumber, raw)
		}
	}
	if len(trimmed) > 1 && trimmed[0] == '0' {
		return InvoiceNumber{}, fmt.Errorf("%w: %q has leading zeros", ErrInvalidInvoiceNumber, raw)
	}
	return InvoiceNumber{value: trimmed}, nil
}

// String returns the canonical number.
func (number InvoiceNumber) String() string {
	return number.value
}

// IsZero reports whether no number was supplied.
func (number InvoiceNumber) IsZero() bool {
	return number.value == ""
}

// ReservationStatus defines the reservation lifecycle.
type ReservationStatus string

const (
	ReservationPending   ReservationStatus = "pending"
	ReservationConfirmed ReservationStatus = "confirmed"
	ReservationCompleted ReservationStatus = "completed"
	ReservationCancelled ReservationStatus = "cancelled"
)

// ParseReservationStatus validates a status string, defaulting empty
// input to confirmed.
func ParseReservationStatus(raw string) (ReservationStatus, error) {
	normalized := ReservationStatus(strings.TrimSpace(raw))
	if normalized == "" {
		return ReservationConfirmed, nil
	}
	switch normalized {
	case ReservationPending, ReservationConfirmed, ReservationCompleted, ReservationCancelled:
		return normalized, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidReservationStatus, raw)
	}
}

// String returns the status name.
func (status ReservationStatus) String() string {
	return string(status)
}

// PaymentStatus tracks how much of an obligation has been settled.
// Owner-payout expenses only ever move between pending and paid.
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPartial PaymentStatus = "partial"
	PaymentPaid    PaymentStatus = "paid"
)

// ParsePaymentStatus validates a payment status string.
func ParsePaymentStatus(raw string) (PaymentStatus, error) {
	switch PaymentStatus(strings.TrimSpace(raw)) {
	case PaymentPending:
		return PaymentPending, nil
	case PaymentPartial:
		return PaymentPartial, nil
	case PaymentPaid:
		return PaymentPaid, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidPaymentStatus, raw)
	}
}

// String returns the status name.
func (status PaymentStatus) String() string {
	return string(status)
}

// ExpenseCategory classifies an expense obligation. The first four are
// generated by the reservation cascade; the rest are plain operating
// categories entered by users.
type ExpenseCategory string

const (
	CategoryOwnerPayout    ExpenseCategory = "owner_payout"
	CategorySupplierPayout ExpenseCategory = "supplier_payout"
	CategorySoloServices   ExpenseCategory = "solo_services"
	CategoryDepositReturn  ExpenseCategory = "deposit_return"
	CategoryPremises       ExpenseCategory = "premises"
	CategoryPayroll        ExpenseCategory = "payroll"
	CategoryVariable       ExpenseCategory = "variable"
	CategoryCommitment     ExpenseCategory = "commitment"
	CategoryOther          ExpenseCategory = "other"
)

// ParseExpenseCategory validates a category string, defaulting empty
// input to other.
func ParseExpenseCategory(raw string) (ExpenseCategory, error) {
	normalized := ExpenseCategory(strings.TrimSpace(raw))
	if normalized == "" {
		return CategoryOther, nil
	}
	switch normalized {
	case CategoryOwnerPayout, CategorySupplierPayout, CategorySoloServices, CategoryDepositReturn,
		CategoryPremises, CategoryPayroll, CategoryVariable, CategoryCommitment, CategoryOther:
		return normalized, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidCategory, raw)
	}
}

// String returns the category name.
func (category ExpenseCategory) String() string {
	return string(category)
}

// AbonoTarget selects which record stream an abono belongs to.
type AbonoTarget string

const (
	TargetReservation AbonoTarget = "reservation"
	TargetExpense     AbonoTarget = "expense"
)

// ParseAbonoTarget validates an abono target string.
func ParseAbonoTarget(raw string) (AbonoTarget, error) {
	switch AbonoTarget(strings.TrimSpace(raw)) {
	case TargetReservation:
		return TargetReservation, nil
	case TargetExpense:
		return TargetExpense, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidTarget, raw)
	}
}

// CommissionState replaces the original boolean soft-delete flag.
type CommissionState string

const (
	CommissionActive         CommissionState = "active"
	CommissionInvoiceDeleted CommissionState = "invoice_deleted"
)

// String returns the state name.
func (state CommissionState) String() string {
	return string(state)
}

// ServiceLine is one extra-service line item on a reservation. Unit
// price is what the customer pays; supplier cost is what the business
// owes the vendor.
type ServiceLine struct {
	ServiceID    string
	ServiceName  string
	SupplierName string
	Quantity     int
	UnitPrice    decimal.Decimal
	SupplierCost decimal.Decimal
	LineTotal    decimal.Decimal
}

// SupplierTotal returns supplier cost times quantity.
func (line ServiceLine) SupplierTotal() decimal.Decimal {
	quantity := line.Quantity
	if quantity < 1 {
		quantity = 1
	}
	return line.SupplierCost.Mul(decimal.NewFromInt(int64(quantity)))
}

// Reservation is a booking/invoice header.
type Reservation struct {
	ID                string
	InvoiceNumber     string
	CustomerID        string
	CustomerName      string
	VillaID           string
	VillaCode         string
	ReservationDate   int64 // unix UTC
	Guests            int
	ExtraHours        decimal.Decimal
	ExtraPeople       int
	BasePrice         decimal.Decimal
	OwnerPrice        decimal.Decimal
	ExtraHoursCost    decimal.Decimal
	ExtraPeopleCost   decimal.Decimal
	ExtraServices     []ServiceLine
	Subtotal          decimal.Decimal
	Discount          decimal.Decimal
	IncludeITBIS      bool
	ITBISAmount       decimal.Decimal
	TotalAmount       decimal.Decimal
	Deposit           decimal.Decimal
	DepositReturned   bool
	AmountPaid        decimal.Decimal
	BalanceDue        decimal.Decimal
	Currency          Currency
	Status            ReservationStatus
	Notes             string
	CreatedBy         string
	CreatedAtUnixUTC  int64
	UpdatedAtUnixUTC  int64
}

// Expense is a payable obligation, either entered directly or derived
// from a reservation by the cascade generator.
type Expense struct {
	ID                   string
	Category             ExpenseCategory
	Description          string
	Amount               decimal.Decimal
	Currency             Currency
	ExpenseDate          int64 // unix UTC
	PaymentStatus        PaymentStatus
	Notes                string
	RelatedReservationID string
	ServicesDetails      []ServiceLine
	TotalPaid            decimal.Decimal
	BalanceDue           decimal.Decimal
	CreatedBy            string
	CreatedAtUnixUTC     int64
	UpdatedAtUnixUTC     int64
}

// Abono is one immutable partial-payment ledger entry. Exactly one of
// ReservationID and ExpenseID is set.
type Abono struct {
	ID               string
	InvoiceNumber    string
	Amount           decimal.Decimal
	Currency         Currency
	PaymentMethod    string
	PaymentDate      int64 // unix UTC
	Notes            string
	ReservationID    string
	ExpenseID        string
	CreatedBy        string
	CreatedAtUnixUTC int64
}

// VillaOwner is the running payable aggregate per villa owner.
type VillaOwner struct {
	ID               string
	Name             string
	Phone            string
	Villas           []string
	TotalOwed        decimal.Decimal
	AmountPaid       decimal.Decimal
	BalanceDue       decimal.Decimal
	Notes            string
	CreatedBy        string
	CreatedAtUnixUTC int64
}

// Commission is a flat fee owed to the user who booked a reservation.
// It survives reservation deletion in the invoice_deleted state so the
// payout history stays intact.
type Commission struct {
	ID               string
	ReservationID    string
	UserID           string
	UserName         string
	VillaCode        string
	VillaName        string
	CustomerName     string
	ReservationDate  int64 // unix UTC
	Amount           decimal.Decimal
	Notes            string
	State            CommissionState
	DeletedAtUnixUTC int64
	CreatedBy        string
	CreatedAtUnixUTC int64
}

// VillaInfo is the display snapshot the cascade embeds into expense
// descriptions. The engine never re-reads it afterwards.
type VillaInfo struct {
	ID    string
	Code  string
	Name  string
	Phone string
}
