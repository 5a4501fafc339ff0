package settlement

import (
	"fmt"

	"github.com/exsplitter/backend/internal/ledger"
	"github.com/exsplitter/backend/internal/models"
	"github.com/exsplitter/backend/internal/money"
)

// Status derives the pair's lifecycle state from the debtor's perspective:
// Open -> PartiallyPaid -> FullyPaid -> Reopened. No state is terminal.
func (t *Tracker) Status(s *ledger.Snapshot, debtorID, creditorID, targetCode string) (models.SettlementStatus, error) {
	state := s.PairState(debtorID, creditorID)
	if state.FullySettled {
		return models.StatusFullyPaid, nil
	}
	stillOwed, err := t.StillOwed(s, debtorID, creditorID, targetCode)
	if err != nil {
		return "", err
	}
	if stillOwed.LessThanOrEqual(money.Epsilon) {
		owed, err := t.TotalOwed(s, debtorID, creditorID, targetCode)
		if err != nil {
			return "", err
		}
		if owed.GreaterThan(money.Epsilon) {
			return models.StatusFullyPaid, nil
		}
		// Nothing owed at all; an earlier settlement means the window is
		// merely empty, not settled.
		if state.Epoch > 0 {
			return models.StatusReopened, nil
		}
		return models.StatusOpen, nil
	}
	// Marks shrink the active obligation itself, so partial progress is
	// judged by payments against what remains.
	if len(s.ActivePayments(debtorID, creditorID)) > 0 {
		return models.StatusPartiallyPaid, nil
	}
	if state.Epoch > 0 {
		return models.StatusReopened, nil
	}
	return models.StatusOpen, nil
}

// MarkFullyPaid confirms the pair as settled: it requires the outstanding
// balance to be within tolerance, sets the fully-settled override and bumps
// the settlement epoch so every existing payment and mark drops out of the
// active window. The returned marks cover every expense currently carrying
// debtor->creditor debt, stamped at the new epoch, so pre-settlement expenses
// stay out of the fresh window while debt recorded later surfaces normally.
// Calling it on an already settled pair is a no-op, never a double apply.
func (t *Tracker) MarkFullyPaid(s *ledger.Snapshot, debtorID, creditorID, targetCode string, now int64) (*models.PairState, []models.PaidMark, error) {
	state := s.PairState(debtorID, creditorID)
	if state.FullySettled {
		return &state, nil, nil
	}
	stillOwed, err := t.StillOwed(s, debtorID, creditorID, targetCode)
	if err != nil {
		return nil, nil, err
	}
	if stillOwed.GreaterThan(money.Epsilon) {
		return nil, nil, fmt.Errorf("%w: %s still owes %s %s %s", ledger.ErrPrematureSettlement, debtorID, creditorID, stillOwed, targetCode)
	}
	state.FullySettled = true
	state.Epoch++
	state.UpdatedAt = now

	var marks []models.PaidMark
	for i := range s.Expenses {
		e := &s.Expenses[i]
		if e.PayerID != creditorID || e.Share(debtorID).IsZero() || debtorID == creditorID {
			continue
		}
		marks = append(marks, models.PaidMark{
			TripID:     s.Trip.ID,
			DebtorID:   debtorID,
			CreditorID: creditorID,
			ExpenseID:  e.ID,
			Epoch:      state.Epoch,
			CreatedAt:  now,
		})
	}
	return &state, marks, nil
}

// UnmarkFullyPaid reopens a settled pair. The override is cleared but the
// epoch is deliberately kept: pre-reset payments stay out of the new history
// window and can never resurrect to reduce fresh debt, while the settlement
// marks written at this epoch keep pre-reset expenses settled. The pair
// continues with a fresh window. Unmarking a pair that is not settled is a
// no-op.
func (t *Tracker) UnmarkFullyPaid(s *ledger.Snapshot, debtorID, creditorID string, now int64) *models.PairState {
	state := s.PairState(debtorID, creditorID)
	if !state.FullySettled {
		return &state
	}
	state.FullySettled = false
	state.UpdatedAt = now
	return &state
}

// ToggleMark validates an itemized paid mark for one expense between the
// pair. The expense must exist in the snapshot and actually carry
// debtor->creditor debt. The returned mark carries the pair's current epoch;
// the storage layer flips the row (insert if absent, delete if present).
func (t *Tracker) ToggleMark(s *ledger.Snapshot, debtorID, creditorID, expenseID string, now int64) (*models.PaidMark, error) {
	e, ok := s.Expense(expenseID)
	if !ok {
		return nil, fmt.Errorf("%w: expense %s", ledger.ErrStaleReference, expenseID)
	}
	if e.PayerID != creditorID || e.Share(debtorID).IsZero() || debtorID == creditorID {
		return nil, fmt.Errorf("%w: expense %s carries no %s->%s debt", ledger.ErrStaleReference, expenseID, debtorID, creditorID)
	}
	return &models.PaidMark{
		TripID:     s.Trip.ID,
		DebtorID:   debtorID,
		CreditorID: creditorID,
		ExpenseID:  expenseID,
		Epoch:      s.PairState(debtorID, creditorID).Epoch,
		CreatedAt:  now,
	}, nil
}
