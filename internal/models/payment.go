package models

import "github.com/shopspring/decimal"

// AllocationKind distinguishes how a payment applies to the pair's debt.
// It replaces the nil / empty / non-empty slice convention with an explicit
// tag so "no allocation" and "explicitly everything" cannot be confused.
type AllocationKind int

const (
	// AllocationUnallocated applies the payment to the pair's running
	// balance generally.
	AllocationUnallocated AllocationKind = iota

	// AllocationAllOutstanding records that the payment was explicitly for
	// everything outstanding at record time. Arithmetically it behaves like
	// an unallocated payment; the distinction is kept for audit display.
	AllocationAllOutstanding

	// AllocationForExpenses ties the payment to specific expense ids,
	// pro-rated evenly across them.
	AllocationForExpenses
)

// Allocation describes which debt a payment was for.
type Allocation struct {
	Kind AllocationKind

	// ExpenseIDs is populated only when Kind is AllocationForExpenses.
	ExpenseIDs []string
}

// AppliesGenerally reports whether the payment counts into the pair's
// unallocated pool rather than against specific expenses.
func (a Allocation) AppliesGenerally() bool {
	return a.Kind != AllocationForExpenses
}

// Payment is a record of money physically transferred from a debtor to a
// creditor. Payments are immutable once recorded; the log per pair is
// append-only and monotonically growing.
type Payment struct {
	// ID is the unique identifier for the payment (UUID format).
	ID string

	// TripID is the trip this payment belongs to.
	TripID string

	// DebtorID is the member who handed over money.
	DebtorID string

	// CreditorID is the member who received it.
	CreditorID string

	// Amount is the portion applied toward the debt, in Currency. Never
	// exceeds the amount still owed at record time.
	Amount decimal.Decimal

	// AmountReceived is what the debtor actually handed over; may exceed
	// Amount, in which case the creditor returned change.
	AmountReceived decimal.Decimal

	// ChangeGivenBack is AmountReceived - Amount when positive, else zero.
	ChangeGivenBack decimal.Decimal

	// AmountTreated is the shortfall the creditor chose to waive instead of
	// keeping it open (owed - AmountReceived when the debtor underpaid and
	// the creditor treated the rest). Recorded for audit; it does not by
	// itself zero the balance.
	AmountTreated decimal.Decimal

	// Currency is the ISO 4217 code the payment was made in.
	Currency string

	// Allocation describes which debt this payment was for.
	Allocation Allocation

	// Epoch is the pair's settlement epoch at record time. A payment is
	// active only while its epoch matches the pair's current epoch;
	// payments from earlier epochs stay in the log for audit but are
	// invisible to the user-facing balance.
	Epoch uint64

	// Date is the Unix timestamp of the payment.
	Date int64

	// Note is an optional description.
	Note string

	// CreatedAt is the Unix timestamp when the record was created.
	CreatedAt int64
}
