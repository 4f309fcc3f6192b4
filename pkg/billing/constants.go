package billing

import "github.com/shopspring/decimal"

const (
	operationCreateReservation = "create_reservation"
	operationUpdateReservation = "update_reservation"
	operationDeleteReservation = "delete_reservation"
	operationAddAbono          = "add_abono"
	operationDeleteAbono       = "delete_abono"
	operationAllocateNumber    = "allocate_invoice_number"
	operationCreateCommission  = "create_commission"

	operationStatusOK    = "ok"
	operationStatusError = "error"

	// CounterSeed is the first invoice number ever issued.
	CounterSeed int64 = 1600

	// MaxProbeAttempts bounds the allocator's search for a free number.
	// Hitting the ceiling signals a corrupted counter, not bad luck.
	MaxProbeAttempts = 100
)

// DefaultCommissionAmount is the flat fee credited to the booking user
// per reservation.
var DefaultCommissionAmount = decimal.NewFromInt(250)
