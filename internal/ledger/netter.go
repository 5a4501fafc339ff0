package ledger

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/exsplitter/backend/internal/calculator"
	"github.com/exsplitter/backend/internal/money"
)

// Netter collapses gross obligations into minimal directed transfers.
// Conversion uses whatever rates the provider currently holds; the netter
// itself never waits on rate fetching.
type Netter struct {
	Rates money.RateProvider
}

// NetTransfersInCurrency nets every unordered member pair's opposing gross
// obligations in one currency. A positive net A->B emits a single transfer;
// opposing grosses that cancel exactly produce no transfer at all, not two
// offsetting entries. Nets within tolerance of zero are dropped.
func (n *Netter) NetTransfersInCurrency(s *Snapshot, currency string) []calculator.Transfer {
	members := s.MemberIDs()
	var transfers []calculator.Transfer
	for i := 0; i < len(members); i++ {
		for j := i + 1; j < len(members); j++ {
			a, b := members[i], members[j]
			net := s.ActiveGrossOwed(a, b, currency).Sub(s.ActiveGrossOwed(b, a, currency))
			switch {
			case net.GreaterThan(money.Epsilon):
				transfers = append(transfers, calculator.Transfer{FromID: a, ToID: b, Amount: net})
			case net.Neg().GreaterThan(money.Epsilon):
				transfers = append(transfers, calculator.Transfer{FromID: b, ToID: a, Amount: net.Neg()})
			}
		}
	}
	return transfers
}

// Transfers presents the unified cross-currency view: each currency's net
// transfers are converted into the target settlement currency and summed by
// directed pair. Transfers at or below tolerance after conversion are dropped.
func (n *Netter) Transfers(s *Snapshot, targetCode string) ([]calculator.Transfer, error) {
	target, err := currencyOf(targetCode)
	if err != nil {
		return nil, err
	}

	type direction struct{ from, to string }
	summed := make(map[direction]decimal.Decimal)
	var order []direction

	for _, code := range s.Currencies() {
		from, err := currencyOf(code)
		if err != nil {
			return nil, err
		}
		for _, t := range n.NetTransfersInCurrency(s, code) {
			converted, err := money.Convert(t.Amount, from, target, n.Rates)
			if err != nil {
				return nil, fmt.Errorf("converting %s to %s: %w", code, targetCode, err)
			}
			d := direction{from: t.FromID, to: t.ToID}
			if _, seen := summed[d]; !seen {
				order = append(order, d)
			}
			summed[d] = summed[d].Add(converted)
		}
	}

	// Opposing directions can both survive per-currency netting (A owes B in
	// JPY, B owes A in USD); cancel them once everything is in the target
	// currency.
	var transfers []calculator.Transfer
	for _, d := range order {
		amount, ok := summed[d]
		if !ok {
			continue
		}
		opposite := direction{from: d.to, to: d.from}
		if back, dual := summed[opposite]; dual {
			amount = amount.Sub(back)
			delete(summed, opposite)
		}
		delete(summed, d)
		switch {
		case amount.GreaterThan(money.Epsilon):
			transfers = append(transfers, calculator.Transfer{FromID: d.from, ToID: d.to, Amount: amount})
		case amount.Neg().GreaterThan(money.Epsilon):
			transfers = append(transfers, calculator.Transfer{FromID: d.to, ToID: d.from, Amount: amount.Neg()})
		}
	}
	return transfers, nil
}

// SimplifiedTransfers is the optional "fewest transactions" view: the
// cross-currency transfers further collapsed with the greedy matcher, which
// may route money through members who never transacted directly.
func (n *Netter) SimplifiedTransfers(s *Snapshot, targetCode string) ([]calculator.Transfer, error) {
	transfers, err := n.Transfers(s, targetCode)
	if err != nil {
		return nil, err
	}
	return calculator.SimplifyTransfers(transfers), nil
}
