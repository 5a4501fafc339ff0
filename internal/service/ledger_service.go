package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/exsplitter/backend/internal/calculator"
	"github.com/exsplitter/backend/internal/ledger"
	"github.com/exsplitter/backend/internal/models"
	"github.com/exsplitter/backend/internal/money"
	"github.com/exsplitter/backend/internal/settlement"
	"github.com/exsplitter/backend/internal/storage"
)

// LedgerService exposes the debt ledger operations: deriving transfers,
// tracking payments and driving the per-pair settlement lifecycle.
//
// Reads run against the latest committed snapshot without blocking. Mutations
// are serialized per (trip, debtor, creditor) pair so two concurrent payments
// can never both reconcile against the same stale balance and overpay past
// the true debt.
type LedgerService struct {
	store   storage.Store
	tracker *settlement.Tracker
	netter  *ledger.Netter

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewLedgerService creates a new LedgerService over the given storage backend
// and rate provider.
func NewLedgerService(store storage.Store, rates money.RateProvider) *LedgerService {
	return &LedgerService{
		store:   store,
		tracker: &settlement.Tracker{Rates: rates},
		netter:  &ledger.Netter{Rates: rates},
		locks:   make(map[string]*sync.Mutex),
	}
}

// pairLock returns the mutex serializing mutations for one ordered pair.
func (s *LedgerService) pairLock(tripID, debtorID, creditorID string) *sync.Mutex {
	key := tripID + "|" + debtorID + "|" + creditorID
	s.mu.Lock()
	defer s.mu.Unlock()
	if l, ok := s.locks[key]; ok {
		return l
	}
	l := &sync.Mutex{}
	s.locks[key] = l
	return l
}

// snapshotFor loads the trip snapshot and checks the caller's membership.
func (s *LedgerService) snapshotFor(ctx context.Context, callerID, tripID string) (*ledger.Snapshot, error) {
	snap, err := s.store.LoadSnapshot(ctx, tripID)
	if err != nil {
		return nil, err
	}
	if !isMember(callerID, &snap.Trip) {
		return nil, fmt.Errorf("%w: %s in trip %s", ErrNotTripMember, callerID, tripID)
	}
	return snap, nil
}

// ExpenseInput carries a new or replacement expense.
type ExpenseInput struct {
	TripID         string
	Title          string
	PayerID        string
	Amount         decimal.Decimal
	Currency       string
	Date           int64
	SplitMemberIDs []string
	Splits         map[string]decimal.Decimal
	PayerEarned    decimal.Decimal
}

// validateExpense rejects inputs at the creation boundary so the ledger never
// sees an unreconciled record.
func validateExpense(in *ExpenseInput, trip *models.Trip) error {
	if !in.Amount.IsPositive() {
		return fmt.Errorf("%w: expense amount %s", ledger.ErrInvalidAmount, in.Amount)
	}
	currency, err := money.Lookup(in.Currency)
	if err != nil {
		return err
	}
	if len(in.SplitMemberIDs) == 0 {
		return fmt.Errorf("%w: expense has no split members", ledger.ErrSplitMismatch)
	}
	if in.PayerEarned.IsNegative() {
		return fmt.Errorf("%w: negative payer earned %s", ledger.ErrInvalidAmount, in.PayerEarned)
	}
	if !isMember(in.PayerID, trip) {
		return fmt.Errorf("%w: payer %s not in trip", ledger.ErrStaleReference, in.PayerID)
	}

	sum := decimal.Zero
	for _, memberID := range in.SplitMemberIDs {
		if !isMember(memberID, trip) {
			return fmt.Errorf("%w: split member %s not in trip", ledger.ErrStaleReference, memberID)
		}
		share, ok := in.Splits[memberID]
		if !ok {
			return fmt.Errorf("%w: member %s has no share", ledger.ErrSplitMismatch, memberID)
		}
		if share.IsNegative() {
			return fmt.Errorf("%w: negative share %s for %s", ledger.ErrInvalidAmount, share, memberID)
		}
		sum = sum.Add(share)
	}
	if len(in.Splits) != len(in.SplitMemberIDs) {
		return fmt.Errorf("%w: shares do not cover split members exactly", ledger.ErrSplitMismatch)
	}

	// Shares must reconcile with the amount plus any explicit payer slack,
	// within one currency unit.
	diff := sum.Sub(in.Amount).Sub(in.PayerEarned).Abs()
	if diff.GreaterThan(currency.Unit()) {
		return fmt.Errorf("%w: shares sum to %s against amount %s (payer earned %s)",
			ledger.ErrSplitMismatch, sum, in.Amount, in.PayerEarned)
	}
	return nil
}

// CreateExpense validates and persists a new expense.
func (s *LedgerService) CreateExpense(ctx context.Context, callerID string, in ExpenseInput) (*models.Expense, error) {
	snap, err := s.snapshotFor(ctx, callerID, in.TripID)
	if err != nil {
		return nil, err
	}
	if err := validateExpense(&in, &snap.Trip); err != nil {
		slog.Warn("CreateExpense rejected", "trip_id", in.TripID, "error", err)
		return nil, err
	}

	expense := &models.Expense{
		TripID:         in.TripID,
		Title:          in.Title,
		PayerID:        in.PayerID,
		Amount:         in.Amount,
		Currency:       in.Currency,
		Date:           in.Date,
		SplitMemberIDs: in.SplitMemberIDs,
		Splits:         in.Splits,
		PayerEarned:    in.PayerEarned,
	}
	if expense.Date == 0 {
		expense.Date = time.Now().Unix()
	}
	if err := s.store.CreateExpense(ctx, expense); err != nil {
		slog.Error("CreateExpense failed", "trip_id", in.TripID, "error", err)
		return nil, err
	}
	if err := s.reopenSettledPairs(ctx, snap, expense); err != nil {
		slog.Error("CreateExpense failed to reopen settled pairs", "trip_id", in.TripID, "error", err)
		return nil, err
	}
	slog.Info("Expense created", "trip_id", in.TripID, "expense_id", expense.ID, "amount", expense.Amount, "currency", expense.Currency)
	return expense, nil
}

// reopenSettledPairs clears the fully-settled override for every pair the
// expense hands fresh debt, so the new obligation surfaces immediately
// instead of hiding behind an earlier settlement. The epoch is untouched;
// pre-settlement history stays out of the window.
func (s *LedgerService) reopenSettledPairs(ctx context.Context, snap *ledger.Snapshot, e *models.Expense) error {
	now := time.Now().Unix()
	for _, memberID := range e.SplitMemberIDs {
		if memberID == e.PayerID || e.Share(memberID).IsZero() {
			continue
		}
		state := snap.PairState(memberID, e.PayerID)
		if !state.FullySettled {
			continue
		}
		state.FullySettled = false
		state.UpdatedAt = now
		if err := s.store.UpsertPairState(ctx, &state); err != nil {
			return err
		}
	}
	return nil
}

// ReplaceExpense swaps the whole record for an existing expense id; expenses
// are immutable so an edit is a replacement.
func (s *LedgerService) ReplaceExpense(ctx context.Context, callerID, expenseID string, in ExpenseInput) (*models.Expense, error) {
	snap, err := s.snapshotFor(ctx, callerID, in.TripID)
	if err != nil {
		return nil, err
	}
	if _, ok := snap.Expense(expenseID); !ok {
		return nil, fmt.Errorf("%w: expense %s", ledger.ErrStaleReference, expenseID)
	}
	if err := validateExpense(&in, &snap.Trip); err != nil {
		slog.Warn("ReplaceExpense rejected", "expense_id", expenseID, "error", err)
		return nil, err
	}

	expense := &models.Expense{
		ID:             expenseID,
		TripID:         in.TripID,
		Title:          in.Title,
		PayerID:        in.PayerID,
		Amount:         in.Amount,
		Currency:       in.Currency,
		Date:           in.Date,
		SplitMemberIDs: in.SplitMemberIDs,
		Splits:         in.Splits,
		PayerEarned:    in.PayerEarned,
	}
	if err := s.store.ReplaceExpense(ctx, expense); err != nil {
		slog.Error("ReplaceExpense failed", "expense_id", expenseID, "error", err)
		return nil, err
	}
	if err := s.reopenSettledPairs(ctx, snap, expense); err != nil {
		slog.Error("ReplaceExpense failed to reopen settled pairs", "expense_id", expenseID, "error", err)
		return nil, err
	}
	return expense, nil
}

// DeleteExpense removes an expense from the trip.
func (s *LedgerService) DeleteExpense(ctx context.Context, callerID, tripID, expenseID string) error {
	snap, err := s.snapshotFor(ctx, callerID, tripID)
	if err != nil {
		return err
	}
	if _, ok := snap.Expense(expenseID); !ok {
		return fmt.Errorf("%w: expense %s", ledger.ErrStaleReference, expenseID)
	}
	return s.store.DeleteExpense(ctx, expenseID)
}

// PreviewEqualSplit computes the equal-split shares for an amount without
// persisting anything, so clients can show the breakdown before saving.
func (s *LedgerService) PreviewEqualSplit(amount decimal.Decimal, currencyCode, payerID string, memberIDs []string) (*calculator.SplitResult, error) {
	currency, err := money.Lookup(currencyCode)
	if err != nil {
		return nil, err
	}
	result, err := calculator.EqualSplit(amount, currency, payerID, memberIDs, calculator.SplitOptions{
		Policy: calculator.RemainderPayerEarned,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ledger.ErrInvalidAmount, err)
	}
	return result, nil
}

// Transfers derives the trip's directed transfers in the given settlement
// currency. With simplified set, the greedy matcher further collapses them
// into the fewest transactions.
func (s *LedgerService) Transfers(ctx context.Context, callerID, tripID, currencyCode string, simplified bool) ([]calculator.Transfer, error) {
	snap, err := s.snapshotFor(ctx, callerID, tripID)
	if err != nil {
		return nil, err
	}
	if currencyCode == "" {
		currencyCode = snap.Trip.SettlementCurrency
	}
	if simplified {
		return s.netter.SimplifiedTransfers(snap, currencyCode)
	}
	return s.netter.Transfers(snap, currencyCode)
}

// PairDetail is the per-pair view exposed to clients.
type PairDetail struct {
	DebtorID       string
	CreditorID     string
	Currency       string
	TotalOwed      decimal.Decimal
	AmountPaid     decimal.Decimal
	StillOwed      decimal.Decimal
	Status         models.SettlementStatus
	ActivePayments []models.Payment
}

// StillOwed computes the outstanding balance from debtor to creditor in the
// given currency.
func (s *LedgerService) StillOwed(ctx context.Context, callerID, tripID, debtorID, creditorID, currencyCode string) (decimal.Decimal, error) {
	snap, err := s.snapshotFor(ctx, callerID, tripID)
	if err != nil {
		return decimal.Zero, err
	}
	if currencyCode == "" {
		currencyCode = snap.Trip.SettlementCurrency
	}
	return s.tracker.StillOwed(snap, debtorID, creditorID, currencyCode)
}

// Pair returns the full detail for one ordered pair.
func (s *LedgerService) Pair(ctx context.Context, callerID, tripID, debtorID, creditorID, currencyCode string) (*PairDetail, error) {
	snap, err := s.snapshotFor(ctx, callerID, tripID)
	if err != nil {
		return nil, err
	}
	if currencyCode == "" {
		currencyCode = snap.Trip.SettlementCurrency
	}

	owed, err := s.tracker.TotalOwed(snap, debtorID, creditorID, currencyCode)
	if err != nil {
		return nil, err
	}
	paid, err := s.tracker.AmountPaid(snap, debtorID, creditorID, currencyCode)
	if err != nil {
		return nil, err
	}
	stillOwed, err := s.tracker.StillOwed(snap, debtorID, creditorID, currencyCode)
	if err != nil {
		return nil, err
	}
	status, err := s.tracker.Status(snap, debtorID, creditorID, currencyCode)
	if err != nil {
		return nil, err
	}

	return &PairDetail{
		DebtorID:       debtorID,
		CreditorID:     creditorID,
		Currency:       currencyCode,
		TotalOwed:      owed,
		AmountPaid:     paid,
		StillOwed:      stillOwed,
		Status:         status,
		ActivePayments: snap.ActivePayments(debtorID, creditorID),
	}, nil
}

// RecordPayment reconciles and appends a payment from debtor to creditor.
// The balance is recomputed under the pair lock so concurrent payments
// against the same pair see each other.
func (s *LedgerService) RecordPayment(ctx context.Context, callerID, tripID string, in settlement.PaymentInput) (*models.Payment, error) {
	lock := s.pairLock(tripID, in.DebtorID, in.CreditorID)
	lock.Lock()
	defer lock.Unlock()

	snap, err := s.snapshotFor(ctx, callerID, tripID)
	if err != nil {
		return nil, err
	}
	if in.Date == 0 {
		in.Date = time.Now().Unix()
	}

	payment, err := s.tracker.RecordPayment(snap, in)
	if err != nil {
		slog.Warn("RecordPayment rejected", "trip_id", tripID, "debtor_id", in.DebtorID, "creditor_id", in.CreditorID, "error", err)
		return nil, err
	}
	if err := s.store.AppendPayment(ctx, payment); err != nil {
		slog.Error("RecordPayment failed", "trip_id", tripID, "error", err)
		return nil, err
	}
	slog.Info("Payment recorded",
		"trip_id", tripID,
		"payment_id", payment.ID,
		"debtor_id", payment.DebtorID,
		"creditor_id", payment.CreditorID,
		"amount", payment.Amount,
		"change_given_back", payment.ChangeGivenBack,
		"amount_treated", payment.AmountTreated,
	)
	return payment, nil
}

// ToggleExpenseMark flips the itemized "this line is settled" mark for one
// expense between the pair and reports whether it is now set.
func (s *LedgerService) ToggleExpenseMark(ctx context.Context, callerID, tripID, debtorID, creditorID, expenseID string) (bool, error) {
	lock := s.pairLock(tripID, debtorID, creditorID)
	lock.Lock()
	defer lock.Unlock()

	snap, err := s.snapshotFor(ctx, callerID, tripID)
	if err != nil {
		return false, err
	}
	mark, err := s.tracker.ToggleMark(snap, debtorID, creditorID, expenseID, time.Now().Unix())
	if err != nil {
		slog.Warn("ToggleExpenseMark rejected", "trip_id", tripID, "expense_id", expenseID, "error", err)
		return false, err
	}
	return s.store.TogglePaidMark(ctx, mark)
}

// MarkFullyPaid confirms the pair as settled, bumping the settlement epoch.
// Requires the outstanding balance to be within tolerance; rejected otherwise
// so real debt is never silently discarded.
func (s *LedgerService) MarkFullyPaid(ctx context.Context, callerID, tripID, debtorID, creditorID string) error {
	lock := s.pairLock(tripID, debtorID, creditorID)
	lock.Lock()
	defer lock.Unlock()

	snap, err := s.snapshotFor(ctx, callerID, tripID)
	if err != nil {
		return err
	}
	state, marks, err := s.tracker.MarkFullyPaid(snap, debtorID, creditorID, snap.Trip.SettlementCurrency, time.Now().Unix())
	if err != nil {
		slog.Warn("MarkFullyPaid rejected", "trip_id", tripID, "debtor_id", debtorID, "creditor_id", creditorID, "error", err)
		return err
	}
	for i := range marks {
		if _, err := s.store.TogglePaidMark(ctx, &marks[i]); err != nil {
			slog.Error("MarkFullyPaid failed", "trip_id", tripID, "error", err)
			return err
		}
	}
	if err := s.store.UpsertPairState(ctx, state); err != nil {
		slog.Error("MarkFullyPaid failed", "trip_id", tripID, "error", err)
		return err
	}
	slog.Info("Pair marked fully paid", "trip_id", tripID, "debtor_id", debtorID, "creditor_id", creditorID, "epoch", state.Epoch)
	return nil
}

// UnmarkFullyPaid reopens a settled pair. The epoch is kept so pre-reset
// payment history stays hidden from the new window.
func (s *LedgerService) UnmarkFullyPaid(ctx context.Context, callerID, tripID, debtorID, creditorID string) error {
	lock := s.pairLock(tripID, debtorID, creditorID)
	lock.Lock()
	defer lock.Unlock()

	snap, err := s.snapshotFor(ctx, callerID, tripID)
	if err != nil {
		return err
	}
	state := s.tracker.UnmarkFullyPaid(snap, debtorID, creditorID, time.Now().Unix())
	if err := s.store.UpsertPairState(ctx, state); err != nil {
		slog.Error("UnmarkFullyPaid failed", "trip_id", tripID, "error", err)
		return err
	}
	slog.Info("Pair reopened", "trip_id", tripID, "debtor_id", debtorID, "creditor_id", creditorID, "epoch", state.Epoch)
	return nil
}

// MemberRecord returns the caller's creditor-side audit aggregates (change
// handed back, shortfalls treated) in the given currency.
func (s *LedgerService) MemberRecord(ctx context.Context, callerID, tripID, currencyCode string) (*settlement.MemberRecord, error) {
	snap, err := s.snapshotFor(ctx, callerID, tripID)
	if err != nil {
		return nil, err
	}
	if currencyCode == "" {
		currencyCode = snap.Trip.SettlementCurrency
	}
	return s.tracker.Record(snap, callerID, currencyCode)
}
