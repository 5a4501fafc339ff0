package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/exsplitter/backend/internal/ledger"
	"github.com/exsplitter/backend/internal/models"
)

// LoadSnapshot loads the full immutable view of one trip for the engine.
func (s *SQLiteStore) LoadSnapshot(ctx context.Context, tripID string) (*ledger.Snapshot, error) {
	trip, err := s.GetTrip(ctx, tripID)
	if err != nil {
		return nil, err
	}

	expenses, err := s.loadExpenses(ctx, tripID)
	if err != nil {
		return nil, err
	}
	payments, err := s.loadPayments(ctx, tripID)
	if err != nil {
		return nil, err
	}
	marks, err := s.loadMarks(ctx, tripID)
	if err != nil {
		return nil, err
	}
	pairs, err := s.loadPairStates(ctx, tripID)
	if err != nil {
		return nil, err
	}

	return &ledger.Snapshot{
		Trip:     *trip,
		Expenses: expenses,
		Payments: payments,
		Marks:    marks,
		Pairs:    pairs,
	}, nil
}

func (s *SQLiteStore) loadExpenses(ctx context.Context, tripID string) ([]models.Expense, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, trip_id, title, payer_id, amount, currency, date, payer_earned, created_at
		 FROM expenses WHERE trip_id = ? ORDER BY date, created_at, id`,
		tripID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get expenses: %w", err)
	}
	defer rows.Close()

	var expenses []models.Expense
	for rows.Next() {
		var e models.Expense
		var amount, payerEarned string
		if err := rows.Scan(&e.ID, &e.TripID, &e.Title, &e.PayerID, &amount, &e.Currency, &e.Date, &payerEarned, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan expense: %w", err)
		}
		if e.Amount, err = parseDecimal(amount); err != nil {
			return nil, err
		}
		if e.PayerEarned, err = parseDecimal(payerEarned); err != nil {
			return nil, err
		}
		expenses = append(expenses, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate expenses: %w", err)
	}

	for i := range expenses {
		if err := s.loadSplits(ctx, &expenses[i]); err != nil {
			return nil, err
		}
	}
	return expenses, nil
}

func (s *SQLiteStore) loadSplits(ctx context.Context, expense *models.Expense) error {
	rows, err := s.db.QueryContext(ctx,
		"SELECT member_id, share FROM expense_splits WHERE expense_id = ? ORDER BY position",
		expense.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to get expense splits: %w", err)
	}
	defer rows.Close()

	expense.Splits = make(map[string]decimal.Decimal)
	for rows.Next() {
		var memberID, share string
		if err := rows.Scan(&memberID, &share); err != nil {
			return fmt.Errorf("failed to scan expense split: %w", err)
		}
		d, err := parseDecimal(share)
		if err != nil {
			return err
		}
		expense.SplitMemberIDs = append(expense.SplitMemberIDs, memberID)
		expense.Splits[memberID] = d
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate expense splits: %w", err)
	}
	return nil
}

func (s *SQLiteStore) loadPayments(ctx context.Context, tripID string) ([]models.Payment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, trip_id, debtor_id, creditor_id, amount, amount_received,
		        change_given_back, amount_treated, currency, allocation_kind,
		        epoch, date, note, created_at
		 FROM payments WHERE trip_id = ? ORDER BY date, created_at, id`,
		tripID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get payments: %w", err)
	}
	defer rows.Close()

	var payments []models.Payment
	for rows.Next() {
		var p models.Payment
		var amount, received, change, treated string
		var kind int
		var note sql.NullString
		if err := rows.Scan(&p.ID, &p.TripID, &p.DebtorID, &p.CreditorID, &amount, &received,
			&change, &treated, &p.Currency, &kind, &p.Epoch, &p.Date, &note, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		if p.Amount, err = parseDecimal(amount); err != nil {
			return nil, err
		}
		if p.AmountReceived, err = parseDecimal(received); err != nil {
			return nil, err
		}
		if p.ChangeGivenBack, err = parseDecimal(change); err != nil {
			return nil, err
		}
		if p.AmountTreated, err = parseDecimal(treated); err != nil {
			return nil, err
		}
		p.Allocation.Kind = models.AllocationKind(kind)
		if note.Valid {
			p.Note = note.String
		}
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate payments: %w", err)
	}

	for i := range payments {
		if payments[i].Allocation.Kind != models.AllocationForExpenses {
			continue
		}
		ids, err := s.loadAllocations(ctx, payments[i].ID)
		if err != nil {
			return nil, err
		}
		payments[i].Allocation.ExpenseIDs = ids
	}
	return payments, nil
}

func (s *SQLiteStore) loadAllocations(ctx context.Context, paymentID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT expense_id FROM payment_allocations WHERE payment_id = ? ORDER BY expense_id",
		paymentID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get payment allocations: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan payment allocation: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate payment allocations: %w", err)
	}
	return ids, nil
}

func (s *SQLiteStore) loadMarks(ctx context.Context, tripID string) ([]models.PaidMark, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT trip_id, debtor_id, creditor_id, expense_id, epoch, created_at
		 FROM paid_marks WHERE trip_id = ? ORDER BY created_at`,
		tripID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get paid marks: %w", err)
	}
	defer rows.Close()

	var marks []models.PaidMark
	for rows.Next() {
		var m models.PaidMark
		if err := rows.Scan(&m.TripID, &m.DebtorID, &m.CreditorID, &m.ExpenseID, &m.Epoch, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan paid mark: %w", err)
		}
		marks = append(marks, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate paid marks: %w", err)
	}
	return marks, nil
}

func (s *SQLiteStore) loadPairStates(ctx context.Context, tripID string) (map[models.PairKey]models.PairState, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT trip_id, debtor_id, creditor_id, fully_settled, epoch, updated_at
		 FROM pair_states WHERE trip_id = ?`,
		tripID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get pair states: %w", err)
	}
	defer rows.Close()

	pairs := make(map[models.PairKey]models.PairState)
	for rows.Next() {
		var st models.PairState
		var settled int
		if err := rows.Scan(&st.TripID, &st.DebtorID, &st.CreditorID, &settled, &st.Epoch, &st.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan pair state: %w", err)
		}
		st.FullySettled = settled != 0
		pairs[st.Key()] = st
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate pair states: %w", err)
	}
	return pairs, nil
}
