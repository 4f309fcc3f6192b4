package billing

import "github.com/shopspring/decimal"

// ReservationBalance computes what the customer still owes. The
// deposit is held against the total rather than reducing it, so it is
// added back, and the result is clamped at zero: a client-facing
// invoice never shows a negative balance.
func ReservationBalance(totalAmount, deposit, amountPaid decimal.Decimal) decimal.Decimal {
	balance := totalAmount.Add(deposit).Sub(amountPaid)
	if balance.IsNegative() {
		return decimal.Zero
	}
	return balance
}

// ExpenseBalance computes what remains payable on an expense. Unlike
// ReservationBalance it is not clamped: overpaying a supplier
// legitimately yields a negative balance.
//
// Keep these two functions separate. Unifying them would silently
// change expense overpayment semantics.
func ExpenseBalance(amount, totalPaid decimal.Decimal) decimal.Decimal {
	return amount.Sub(totalPaid)
}

// SumAbonos totals a payment history.
func SumAbonos(abonos []Abono) decimal.Decimal {
	total := decimal.Zero
	for _, abono := range abonos {
		total = total.Add(abono.Amount)
	}
	return total
}
