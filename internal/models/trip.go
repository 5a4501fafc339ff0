package models

// Trip represents a group of members sharing expenses (a holiday, a shared
// flat, a recurring dinner club). Every expense, payment and mark belongs to
// exactly one trip; the trip id is the scope parameter threaded through every
// ledger call.
type Trip struct {
	// ID is the unique identifier for the trip (UUID format).
	ID string

	// Name is the display name of the trip (e.g., "Kyoto 2026").
	Name string

	// SettlementCurrency is the default currency code for cross-currency
	// aggregation views. Individual expenses keep their own currency.
	SettlementCurrency string

	// MemberIDs is the membership list. Removing a member from this list
	// does not touch historical records referencing them.
	MemberIDs []string

	// CreatedAt is the Unix timestamp when the trip was created.
	CreatedAt int64
}
