package models

// PairKey identifies an ordered (debtor, creditor) pair within a trip.
type PairKey struct {
	DebtorID   string
	CreditorID string
}

// PaidMark is an itemized "this line is settled" toggle for one expense
// between one debtor and one creditor, independent of Payment records.
type PaidMark struct {
	// TripID is the trip the marked expense belongs to.
	TripID string

	// DebtorID and CreditorID identify the ordered pair.
	DebtorID   string
	CreditorID string

	// ExpenseID is the expense considered settled between the pair.
	ExpenseID string

	// Epoch is the pair's settlement epoch at toggle time; marks from
	// earlier epochs are inactive, same as payments.
	Epoch uint64

	// CreatedAt is the Unix timestamp when the mark was set.
	CreatedAt int64
}

// PairState holds the only authoritative settlement state per ordered pair:
// the fully-settled override and the epoch watermark. Everything else about a
// pair (owed, paid, status) is derived.
type PairState struct {
	// TripID scopes the pair.
	TripID string

	// DebtorID and CreditorID identify the ordered pair.
	DebtorID   string
	CreditorID string

	// FullySettled, while true, forces the pair to report as fully paid
	// regardless of itemized history. An explicit escape hatch set by
	// the creditor confirming "mark as fully paid", not a computed fact.
	FullySettled bool

	// Epoch counts full-settlement events. Payments and marks are stamped
	// with the epoch current at record time; only records from the current
	// epoch are active. Bumped by markFullyPaid, deliberately NOT reset by
	// unmarkFullyPaid so pre-reset history stays hidden.
	Epoch uint64

	// UpdatedAt is the Unix timestamp of the last state change.
	UpdatedAt int64
}

// Key returns the pair's ordered key.
func (p *PairState) Key() PairKey {
	return PairKey{DebtorID: p.DebtorID, CreditorID: p.CreditorID}
}

// SettlementStatus is the derived lifecycle state of a pair from the debtor's
// perspective. No state is terminal.
type SettlementStatus string

const (
	// StatusOpen: material balance outstanding, nothing paid this epoch.
	StatusOpen SettlementStatus = "open"

	// StatusPartiallyPaid: material balance outstanding, some active
	// payments or marks recorded.
	StatusPartiallyPaid SettlementStatus = "partially_paid"

	// StatusFullyPaid: balance within tolerance of zero, or the
	// fully-settled override is set.
	StatusFullyPaid SettlementStatus = "fully_paid"

	// StatusReopened: the creditor unmarked a previously confirmed
	// settlement and fresh debt exists in the new epoch window.
	StatusReopened SettlementStatus = "reopened"
)
