// Package ledger derives debt from expense snapshots: gross per-pair
// obligations, pairwise netting and cross-currency transfer aggregation.
// It is pure computation over an immutable-per-call snapshot; it holds no
// locks and performs no I/O.
package ledger

import (
	"errors"

	"github.com/exsplitter/backend/internal/money"
)

// Rejection taxonomy. Every violated precondition maps to exactly one of
// these; a rejected operation leaves state unchanged and is never retried
// inside the core.
var (
	// ErrInvalidAmount rejects zero, negative or non-finite amounts.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrUnknownCurrency rejects currencies with no registry entry or no
	// resolvable rate. Shared with the money package.
	ErrUnknownCurrency = money.ErrUnknownCurrency

	// ErrSplitMismatch rejects expenses whose shares do not reconcile with
	// the amount beyond the rounding tolerance.
	ErrSplitMismatch = errors.New("split does not reconcile with amount")

	// ErrPrematureSettlement rejects marking a pair fully paid while a
	// material balance remains.
	ErrPrematureSettlement = errors.New("balance still outstanding")

	// ErrStaleReference rejects payments or marks referencing an expense or
	// member absent from the snapshot.
	ErrStaleReference = errors.New("reference not in snapshot")
)
