package models

import "github.com/shopspring/decimal"

// Expense represents a shared expense: one payer, a set of owed shares.
// Expenses are immutable once created; an edit replaces the whole record.
type Expense struct {
	// ID is the unique identifier for the expense (UUID format).
	ID string

	// TripID is the trip this expense belongs to.
	TripID string

	// Title is the human-readable name for the expense (e.g., "Dinner").
	Title string

	// PayerID is the member who paid the full amount.
	PayerID string

	// Amount is the positive total paid, in Currency.
	Amount decimal.Decimal

	// Currency is the ISO 4217 code the amount was paid in.
	Currency string

	// Date is the Unix timestamp of when the expense happened.
	Date int64

	// SplitMemberIDs is the non-empty ordered set of members sharing the
	// expense. If it contains only the payer, the expense is a self-treat
	// and generates no debt.
	SplitMemberIDs []string

	// Splits maps each split member to the share they owe, in Currency.
	// Invariant: the shares sum to Amount plus PayerEarned, exactly.
	Splits map[string]decimal.Decimal

	// PayerEarned is the non-negative rounding slack the payer nets when
	// every share is rounded up past an equal division. Zero for most
	// expenses.
	PayerEarned decimal.Decimal

	// CreatedAt is the Unix timestamp when the record was created.
	CreatedAt int64
}

// IsSelfTreat reports whether the expense generates no debt because the payer
// is the only split member.
func (e *Expense) IsSelfTreat() bool {
	return len(e.SplitMemberIDs) == 1 && e.SplitMemberIDs[0] == e.PayerID
}

// Share returns the owed share for the given member, or zero if the member is
// not part of the split.
func (e *Expense) Share(memberID string) decimal.Decimal {
	if s, ok := e.Splits[memberID]; ok {
		return s
	}
	return decimal.Zero
}
