package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/exsplitter/backend/internal/models"
)

// AppendPayment appends a payment to the pair's log. Payments are never
// updated or deleted; the log is the audit trail.
func (s *SQLiteStore) AppendPayment(ctx context.Context, payment *models.Payment) error {
	if payment.ID == "" {
		payment.ID = uuid.New().String()
	}
	if payment.CreatedAt == 0 {
		payment.CreatedAt = time.Now().Unix()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var note any
	if payment.Note != "" {
		note = payment.Note
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO payments (id, trip_id, debtor_id, creditor_id, amount, amount_received,
		                       change_given_back, amount_treated, currency, allocation_kind,
		                       epoch, date, note, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		payment.ID, payment.TripID, payment.DebtorID, payment.CreditorID,
		decimalString(payment.Amount), decimalString(payment.AmountReceived),
		decimalString(payment.ChangeGivenBack), decimalString(payment.AmountTreated),
		payment.Currency, int(payment.Allocation.Kind),
		payment.Epoch, payment.Date, note, payment.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert payment: %w", err)
	}

	for _, expenseID := range payment.Allocation.ExpenseIDs {
		_, err = tx.ExecContext(ctx,
			"INSERT INTO payment_allocations (payment_id, expense_id) VALUES (?, ?)",
			payment.ID, expenseID,
		)
		if err != nil {
			return fmt.Errorf("failed to insert payment allocation: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// TogglePaidMark flips the itemized paid mark for the mark's
// (pair, expense, epoch) key: inserted if absent, deleted if present.
// Returns whether the mark is now set.
func (s *SQLiteStore) TogglePaidMark(ctx context.Context, mark *models.PaidMark) (bool, error) {
	if mark.CreatedAt == 0 {
		mark.CreatedAt = time.Now().Unix()
	}

	res, err := s.db.ExecContext(ctx,
		`DELETE FROM paid_marks
		 WHERE trip_id = ? AND debtor_id = ? AND creditor_id = ? AND expense_id = ? AND epoch = ?`,
		mark.TripID, mark.DebtorID, mark.CreditorID, mark.ExpenseID, mark.Epoch,
	)
	if err != nil {
		return false, fmt.Errorf("failed to clear paid mark: %w", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check cleared paid mark: %w", err)
	}
	if deleted > 0 {
		return false, nil
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO paid_marks (trip_id, debtor_id, creditor_id, expense_id, epoch, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		mark.TripID, mark.DebtorID, mark.CreditorID, mark.ExpenseID, mark.Epoch, mark.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to set paid mark: %w", err)
	}
	return true, nil
}

// UpsertPairState writes the authoritative pair state.
func (s *SQLiteStore) UpsertPairState(ctx context.Context, state *models.PairState) error {
	if state.UpdatedAt == 0 {
		state.UpdatedAt = time.Now().Unix()
	}

	settled := 0
	if state.FullySettled {
		settled = 1
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO pair_states (trip_id, debtor_id, creditor_id, fully_settled, epoch, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(trip_id, debtor_id, creditor_id)
		 DO UPDATE SET fully_settled = excluded.fully_settled, epoch = excluded.epoch, updated_at = excluded.updated_at`,
		state.TripID, state.DebtorID, state.CreditorID, settled, state.Epoch, state.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert pair state: %w", err)
	}
	return nil
}
