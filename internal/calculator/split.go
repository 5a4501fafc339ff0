// Package calculator implements the share-splitting policy and group-level
// debt simplification. Its output feeds the ledger; it never reads ledger
// state itself.
package calculator

import (
	"fmt"
	"math/rand/v2"

	"github.com/shopspring/decimal"

	"github.com/exsplitter/backend/internal/money"
)

// RemainderPolicy selects how an equal split distributes the rounding
// remainder when the payer is not among the split members.
type RemainderPolicy int

const (
	// RemainderPayerEarned rounds every share up to the currency unit and
	// records the aggregate excess as the payer's earned slack.
	RemainderPayerEarned RemainderPolicy = iota

	// RemainderRandom gives every member the floor share and hands the
	// leftover out one currency unit at a time to randomly chosen members.
	RemainderRandom
)

// SplitOptions tunes EqualSplit.
type SplitOptions struct {
	// Policy applies only when the payer is not a split member.
	Policy RemainderPolicy

	// Rand returns a value in [0, n). Used by RemainderRandom; defaults to
	// math/rand/v2. Inject a deterministic source in tests.
	Rand func(n int) int
}

// SplitResult holds the computed shares for one expense.
type SplitResult struct {
	// Shares maps each split member to the amount they owe.
	Shares map[string]decimal.Decimal

	// PayerEarned is the rounding slack the payer nets on top of the
	// expense amount. Non-zero only under RemainderPayerEarned.
	// Invariant: sum(Shares) == amount + PayerEarned.
	PayerEarned decimal.Decimal
}

// EqualSplit divides an expense amount equally among memberIDs, rounded to the
// currency's granularity so the shares reconcile exactly with the amount.
//
// If the payer is among the members, every other member's share is the
// per-person amount rounded up and the payer takes the remainder, which is at
// most the equal share. Otherwise the configured RemainderPolicy applies.
func EqualSplit(amount decimal.Decimal, currency money.Currency, payerID string, memberIDs []string, opts SplitOptions) (*SplitResult, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("amount must be positive, got %s", amount)
	}
	if len(memberIDs) == 0 {
		return nil, fmt.Errorf("must have at least one split member")
	}
	if amount.Cmp(currency.Round(amount)) != 0 {
		return nil, fmt.Errorf("amount %s is not a multiple of the %s unit", amount, currency.Code)
	}
	seen := make(map[string]bool, len(memberIDs))
	for _, id := range memberIDs {
		if seen[id] {
			return nil, fmt.Errorf("duplicate split member %q", id)
		}
		seen[id] = true
	}

	n := int64(len(memberIDs))
	perPerson := amount.Div(decimal.NewFromInt(n))
	result := &SplitResult{
		Shares:      make(map[string]decimal.Decimal, len(memberIDs)),
		PayerEarned: decimal.Zero,
	}

	if seen[payerID] {
		// Others round up, payer absorbs the slack.
		ceilShare := currency.Ceil(perPerson)
		othersTotal := ceilShare.Mul(decimal.NewFromInt(n - 1))
		payerShare := amount.Sub(othersTotal)
		if payerShare.IsNegative() {
			return nil, fmt.Errorf("amount %s too small to split %d ways in %s", amount, n, currency.Code)
		}
		for _, id := range memberIDs {
			if id == payerID {
				result.Shares[id] = payerShare
			} else {
				result.Shares[id] = ceilShare
			}
		}
		return result, nil
	}

	switch opts.Policy {
	case RemainderPayerEarned:
		ceilShare := currency.Ceil(perPerson)
		for _, id := range memberIDs {
			result.Shares[id] = ceilShare
		}
		result.PayerEarned = ceilShare.Mul(decimal.NewFromInt(n)).Sub(amount)

	case RemainderRandom:
		floorShare := perPerson.RoundFloor(currency.Exponent)
		for _, id := range memberIDs {
			result.Shares[id] = floorShare
		}
		leftover := amount.Sub(floorShare.Mul(decimal.NewFromInt(n)))
		unit := currency.Unit()
		pick := opts.Rand
		if pick == nil {
			pick = rand.IntN
		}
		for leftover.IsPositive() {
			id := memberIDs[pick(len(memberIDs))]
			result.Shares[id] = result.Shares[id].Add(unit)
			leftover = leftover.Sub(unit)
		}

	default:
		return nil, fmt.Errorf("unknown remainder policy %d", opts.Policy)
	}

	return result, nil
}
