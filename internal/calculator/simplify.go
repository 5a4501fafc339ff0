package calculator

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/exsplitter/backend/internal/money"
)

// Transfer is a directed amount from one member to another, in a single
// currency context fixed by the caller.
type Transfer struct {
	FromID string
	ToID   string
	Amount decimal.Decimal
}

// SimplifyTransfers collapses a set of directed transfers into the smallest
// set that settles everyone's net position. Each member's net is computed
// (received minus sent), then the largest debtor is matched against the
// largest creditor until both sides are exhausted.
//
// All transfers must already be in one currency. The per-pair net view is the
// default the ledger exposes; this global simplification is an optional view
// and can route money through members who never transacted directly.
func SimplifyTransfers(transfers []Transfer) []Transfer {
	net := make(map[string]decimal.Decimal)
	for _, t := range transfers {
		net[t.FromID] = net[t.FromID].Sub(t.Amount)
		net[t.ToID] = net[t.ToID].Add(t.Amount)
	}

	type node struct {
		id  string
		amt decimal.Decimal
	}
	var creditors, debtors []node
	for id, v := range net {
		switch {
		case v.GreaterThan(money.Epsilon):
			creditors = append(creditors, node{id, v})
		case v.Neg().GreaterThan(money.Epsilon):
			debtors = append(debtors, node{id, v.Neg()})
		}
	}
	if len(creditors) == 0 || len(debtors) == 0 {
		return nil
	}

	// Largest first; ties broken by id so the output is stable.
	byAmountDesc := func(nodes []node) func(i, j int) bool {
		return func(i, j int) bool {
			if c := nodes[i].amt.Cmp(nodes[j].amt); c != 0 {
				return c > 0
			}
			return nodes[i].id < nodes[j].id
		}
	}
	sort.Slice(creditors, byAmountDesc(creditors))
	sort.Slice(debtors, byAmountDesc(debtors))

	var result []Transfer
	i, j := 0, 0
	for i < len(debtors) && j < len(creditors) {
		pay := debtors[i].amt
		if creditors[j].amt.LessThan(pay) {
			pay = creditors[j].amt
		}
		if pay.GreaterThan(money.Epsilon) {
			result = append(result, Transfer{
				FromID: debtors[i].id,
				ToID:   creditors[j].id,
				Amount: pay,
			})
		}
		debtors[i].amt = debtors[i].amt.Sub(pay)
		creditors[j].amt = creditors[j].amt.Sub(pay)
		if debtors[i].amt.LessThanOrEqual(money.Epsilon) {
			i++
		}
		if creditors[j].amt.LessThanOrEqual(money.Epsilon) {
			j++
		}
	}
	return result
}
