// Package settlement tracks payments against derived debt: how much of a
// pair's obligation is paid, what remains, and the per-pair settlement
// lifecycle. Like the ledger it is pure computation over a snapshot; the
// service layer owns persistence and serialization of mutations.
package settlement

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/exsplitter/backend/internal/ledger"
	"github.com/exsplitter/backend/internal/models"
	"github.com/exsplitter/backend/internal/money"
)

// Tracker computes paid and outstanding amounts for (debtor, creditor) pairs.
type Tracker struct {
	Rates money.RateProvider
}

// TotalOwed converts the debtor's active gross obligations to the creditor
// across every expense currency into the target currency and sums them.
func (t *Tracker) TotalOwed(s *ledger.Snapshot, debtorID, creditorID, targetCode string) (decimal.Decimal, error) {
	return t.sumGross(s, debtorID, creditorID, targetCode, true)
}

// TotalOwedAllTime is TotalOwed without the fully-settled short circuit,
// needed so historical "amount paid" totals stay correct after a reset.
func (t *Tracker) TotalOwedAllTime(s *ledger.Snapshot, debtorID, creditorID, targetCode string) (decimal.Decimal, error) {
	return t.sumGross(s, debtorID, creditorID, targetCode, false)
}

func (t *Tracker) sumGross(s *ledger.Snapshot, debtorID, creditorID, targetCode string, activeOnly bool) (decimal.Decimal, error) {
	target, err := money.Lookup(targetCode)
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, code := range s.Currencies() {
		var gross decimal.Decimal
		if activeOnly {
			gross = s.ActiveGrossOwed(debtorID, creditorID, code)
		} else {
			gross = s.GrossOwed(debtorID, creditorID, code)
		}
		if gross.IsZero() {
			continue
		}
		from, err := money.Lookup(code)
		if err != nil {
			return decimal.Zero, err
		}
		converted, err := money.Convert(gross, from, target, t.Rates)
		if err != nil {
			return decimal.Zero, err
		}
		total = total.Add(converted)
	}
	return total, nil
}

// AmountPaid computes how much of the debtor's active obligation to the
// creditor is covered, in the target currency:
//
//   - active unallocated (and explicit all-outstanding) payments count into a
//     general pool;
//   - an expense counts the active payment allocations naming it, pro-rated
//     evenly when a payment lists several expenses. Expenses covered by an
//     active paid mark contribute no allocation credit, since the mark already
//     removed them from the active obligation.
//
// While the pair's fully-settled override is set, AmountPaid is defined to
// equal the all-time total owed outright; the override always wins over
// itemized history.
func (t *Tracker) AmountPaid(s *ledger.Snapshot, debtorID, creditorID, targetCode string) (decimal.Decimal, error) {
	if s.PairState(debtorID, creditorID).FullySettled {
		return t.TotalOwedAllTime(s, debtorID, creditorID, targetCode)
	}

	target, err := money.Lookup(targetCode)
	if err != nil {
		return decimal.Zero, err
	}

	paid := decimal.Zero
	active := s.ActivePayments(debtorID, creditorID)

	// General pool.
	for i := range active {
		p := &active[i]
		if !p.Allocation.AppliesGenerally() {
			continue
		}
		converted, err := t.convertPayment(p, target)
		if err != nil {
			return decimal.Zero, err
		}
		paid = paid.Add(converted)
	}

	// Per-expense credit.
	marked := s.ActiveMarks(debtorID, creditorID)
	for i := range s.Expenses {
		e := &s.Expenses[i]
		if e.PayerID != creditorID || marked[e.ID] {
			continue
		}
		if e.Share(debtorID).IsZero() || debtorID == creditorID {
			continue
		}

		for j := range active {
			p := &active[j]
			if p.Allocation.Kind != models.AllocationForExpenses {
				continue
			}
			if !containsID(p.Allocation.ExpenseIDs, e.ID) {
				continue
			}
			converted, err := t.convertPayment(p, target)
			if err != nil {
				return decimal.Zero, err
			}
			paid = paid.Add(converted.Div(decimal.NewFromInt(int64(len(p.Allocation.ExpenseIDs)))))
		}
	}

	return paid, nil
}

// StillOwed is max(0, totalOwed - amountPaid) in the target currency; it is
// never negative.
func (t *Tracker) StillOwed(s *ledger.Snapshot, debtorID, creditorID, targetCode string) (decimal.Decimal, error) {
	owed, err := t.TotalOwed(s, debtorID, creditorID, targetCode)
	if err != nil {
		return decimal.Zero, err
	}
	paid, err := t.AmountPaid(s, debtorID, creditorID, targetCode)
	if err != nil {
		return decimal.Zero, err
	}
	return money.NonNegative(owed.Sub(paid)), nil
}

func (t *Tracker) convertPayment(p *models.Payment, target money.Currency) (decimal.Decimal, error) {
	from, err := money.Lookup(p.Currency)
	if err != nil {
		return decimal.Zero, err
	}
	return money.Convert(p.Amount, from, target, t.Rates)
}

func containsID(ids []string, id string) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}

// PaymentInput carries everything needed to record a payment against the
// current snapshot.
type PaymentInput struct {
	DebtorID       string
	CreditorID     string
	AmountReceived decimal.Decimal
	Currency       string
	Allocation     models.Allocation
	Date           int64
	Note           string
}

// RecordPayment reconciles a new payment against the live balance and returns
// the record to append. The snapshot is not modified; the caller persists the
// returned payment and reloads.
//
// Reconciliation in the payment's currency, with stillOwedNow the balance at
// record time:
//
//   - amountReceived >= stillOwedNow: amount = stillOwedNow, the rest is
//     change given back (dropped when within tolerance);
//   - amountReceived < stillOwedNow: amount = amountReceived and the
//     shortfall is recorded as treated by the creditor. Treating is an audit
//     fact; it does not zero the balance by itself.
func (t *Tracker) RecordPayment(s *ledger.Snapshot, in PaymentInput) (*models.Payment, error) {
	if !in.AmountReceived.IsPositive() {
		return nil, fmt.Errorf("%w: payment amount %s from %s to %s", ledger.ErrInvalidAmount, in.AmountReceived, in.DebtorID, in.CreditorID)
	}
	if _, err := money.Lookup(in.Currency); err != nil {
		return nil, err
	}
	if !s.HasMember(in.DebtorID) {
		return nil, fmt.Errorf("%w: debtor %s", ledger.ErrStaleReference, in.DebtorID)
	}
	if !s.HasMember(in.CreditorID) {
		return nil, fmt.Errorf("%w: creditor %s", ledger.ErrStaleReference, in.CreditorID)
	}
	if in.Allocation.Kind == models.AllocationForExpenses {
		if len(in.Allocation.ExpenseIDs) == 0 {
			return nil, fmt.Errorf("%w: allocation lists no expenses", ledger.ErrStaleReference)
		}
		for _, id := range in.Allocation.ExpenseIDs {
			e, ok := s.Expense(id)
			if !ok {
				return nil, fmt.Errorf("%w: expense %s", ledger.ErrStaleReference, id)
			}
			if e.PayerID != in.CreditorID || e.Share(in.DebtorID).IsZero() {
				return nil, fmt.Errorf("%w: expense %s carries no %s->%s debt", ledger.ErrStaleReference, id, in.DebtorID, in.CreditorID)
			}
		}
	}

	stillOwedNow, err := t.StillOwed(s, in.DebtorID, in.CreditorID, in.Currency)
	if err != nil {
		return nil, err
	}
	if money.IsZeroish(stillOwedNow) {
		return nil, fmt.Errorf("%w: nothing outstanding from %s to %s", ledger.ErrInvalidAmount, in.DebtorID, in.CreditorID)
	}

	p := &models.Payment{
		TripID:          s.Trip.ID,
		DebtorID:        in.DebtorID,
		CreditorID:      in.CreditorID,
		AmountReceived:  in.AmountReceived,
		ChangeGivenBack: decimal.Zero,
		AmountTreated:   decimal.Zero,
		Currency:        in.Currency,
		Allocation:      in.Allocation,
		Epoch:           s.PairState(in.DebtorID, in.CreditorID).Epoch,
		Date:            in.Date,
		Note:            in.Note,
	}

	if in.AmountReceived.GreaterThanOrEqual(stillOwedNow) {
		p.Amount = stillOwedNow
		if change := in.AmountReceived.Sub(stillOwedNow); change.GreaterThan(money.Epsilon) {
			p.ChangeGivenBack = change
		}
	} else {
		p.Amount = in.AmountReceived
		p.AmountTreated = stillOwedNow.Sub(in.AmountReceived)
	}
	return p, nil
}

// MemberRecord aggregates the audit fields of a member's payment history as
// creditor: change they handed back and shortfalls they treated. All epochs
// count; this is an audit view, not a balance.
type MemberRecord struct {
	ChangeGivenBack decimal.Decimal
	AmountTreated   decimal.Decimal
}

// Record sums the member's creditor-side audit aggregates in the target
// currency.
func (t *Tracker) Record(s *ledger.Snapshot, memberID, targetCode string) (*MemberRecord, error) {
	target, err := money.Lookup(targetCode)
	if err != nil {
		return nil, err
	}
	rec := &MemberRecord{ChangeGivenBack: decimal.Zero, AmountTreated: decimal.Zero}
	for i := range s.Payments {
		p := &s.Payments[i]
		if p.CreditorID != memberID {
			continue
		}
		from, err := money.Lookup(p.Currency)
		if err != nil {
			return nil, err
		}
		if p.ChangeGivenBack.IsPositive() {
			converted, err := money.Convert(p.ChangeGivenBack, from, target, t.Rates)
			if err != nil {
				return nil, err
			}
			rec.ChangeGivenBack = rec.ChangeGivenBack.Add(converted)
		}
		if p.AmountTreated.IsPositive() {
			converted, err := money.Convert(p.AmountTreated, from, target, t.Rates)
			if err != nil {
				return nil, err
			}
			rec.AmountTreated = rec.AmountTreated.Add(converted)
		}
	}
	return rec, nil
}
