package ledger

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/exsplitter/backend/internal/models"
	"github.com/exsplitter/backend/internal/money"
)

// Snapshot is an immutable view of one trip's records, loaded by the caller
// (typically from storage) before any computation. All derivations run
// against the snapshot; mutations produce a new one.
type Snapshot struct {
	Trip     models.Trip
	Expenses []models.Expense
	Payments []models.Payment
	Marks    []models.PaidMark

	// Pairs holds the authoritative per-pair state. Pairs with no entry are
	// implicitly open at epoch zero.
	Pairs map[models.PairKey]models.PairState
}

// PairState returns the state for the ordered pair, defaulting to an open
// pair at epoch zero when none is recorded.
func (s *Snapshot) PairState(debtorID, creditorID string) models.PairState {
	if st, ok := s.Pairs[models.PairKey{DebtorID: debtorID, CreditorID: creditorID}]; ok {
		return st
	}
	return models.PairState{
		TripID:     s.Trip.ID,
		DebtorID:   debtorID,
		CreditorID: creditorID,
	}
}

// Expense looks up an expense by id.
func (s *Snapshot) Expense(id string) (*models.Expense, bool) {
	for i := range s.Expenses {
		if s.Expenses[i].ID == id {
			return &s.Expenses[i], true
		}
	}
	return nil, false
}

// HasMember reports whether the member id appears in the trip's membership
// list or in any historical record. Historical ids stay valid forever; the
// ledger is append-only with respect to identity references.
func (s *Snapshot) HasMember(id string) bool {
	for _, m := range s.Trip.MemberIDs {
		if m == id {
			return true
		}
	}
	for i := range s.Expenses {
		if s.Expenses[i].PayerID == id {
			return true
		}
		if _, ok := s.Expenses[i].Splits[id]; ok {
			return true
		}
	}
	for i := range s.Payments {
		if s.Payments[i].DebtorID == id || s.Payments[i].CreditorID == id {
			return true
		}
	}
	return false
}

// MemberIDs returns every member id referenced by the snapshot, sorted.
// Used to enumerate pairs deterministically.
func (s *Snapshot) MemberIDs() []string {
	set := make(map[string]bool)
	for _, m := range s.Trip.MemberIDs {
		set[m] = true
	}
	for i := range s.Expenses {
		set[s.Expenses[i].PayerID] = true
		for m := range s.Expenses[i].Splits {
			set[m] = true
		}
	}
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Currencies returns the distinct currencies appearing on the snapshot's
// expenses, sorted by code.
func (s *Snapshot) Currencies() []string {
	set := make(map[string]bool)
	for i := range s.Expenses {
		set[s.Expenses[i].Currency] = true
	}
	codes := make([]string, 0, len(set))
	for c := range set {
		codes = append(codes, c)
	}
	sort.Strings(codes)
	return codes
}

// GrossOwed sums the debtor's shares across every expense the creditor paid
// in the given currency. Self-treats and the payer's own share never
// contribute. This is the full variant: it includes pairs flagged fully
// settled, which keeps historical "amount paid" totals correct after a reset.
func (s *Snapshot) GrossOwed(debtorID, creditorID, currency string) decimal.Decimal {
	if debtorID == creditorID {
		return decimal.Zero
	}
	total := decimal.Zero
	for i := range s.Expenses {
		e := &s.Expenses[i]
		if e.PayerID != creditorID || e.Currency != currency {
			continue
		}
		total = total.Add(e.Share(debtorID))
	}
	return total
}

// ActiveGrossOwed is the debt the current settlement window still carries:
// zero while the pair's fully-settled override is set, and otherwise GrossOwed
// minus every expense covered by an active paid mark. Confirming a full
// settlement marks all existing expenses at the new epoch, so only debt
// recorded after the reset surfaces here. This powers "who still owes me"
// views and netting without special-casing at every call site.
func (s *Snapshot) ActiveGrossOwed(debtorID, creditorID, currency string) decimal.Decimal {
	if debtorID == creditorID {
		return decimal.Zero
	}
	if s.PairState(debtorID, creditorID).FullySettled {
		return decimal.Zero
	}
	marked := s.ActiveMarks(debtorID, creditorID)
	total := decimal.Zero
	for i := range s.Expenses {
		e := &s.Expenses[i]
		if e.PayerID != creditorID || e.Currency != currency || marked[e.ID] {
			continue
		}
		total = total.Add(e.Share(debtorID))
	}
	return total
}

// ActivePayments returns the pair's payments whose epoch matches the pair's
// current epoch, in recorded order. Earlier-epoch payments stay in the log
// for audit but never reach balance arithmetic.
func (s *Snapshot) ActivePayments(debtorID, creditorID string) []models.Payment {
	epoch := s.PairState(debtorID, creditorID).Epoch
	var out []models.Payment
	for i := range s.Payments {
		p := &s.Payments[i]
		if p.DebtorID == debtorID && p.CreditorID == creditorID && p.Epoch == epoch {
			out = append(out, *p)
		}
	}
	return out
}

// ActiveMarks returns the pair's current-epoch paid marks keyed by expense id.
// Toggling a mark twice within an epoch removes it, so only the final parity
// counts.
func (s *Snapshot) ActiveMarks(debtorID, creditorID string) map[string]bool {
	epoch := s.PairState(debtorID, creditorID).Epoch
	marked := make(map[string]bool)
	for i := range s.Marks {
		m := &s.Marks[i]
		if m.DebtorID == debtorID && m.CreditorID == creditorID && m.Epoch == epoch {
			marked[m.ExpenseID] = !marked[m.ExpenseID]
		}
	}
	for id, on := range marked {
		if !on {
			delete(marked, id)
		}
	}
	return marked
}

// currencyOf resolves a snapshot currency code, mapping failures to the
// ledger taxonomy.
func currencyOf(code string) (money.Currency, error) {
	return money.Lookup(code)
}
