package service

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/exsplitter/backend/internal/ledger"
	"github.com/exsplitter/backend/internal/models"
	"github.com/exsplitter/backend/internal/money"
	"github.com/exsplitter/backend/internal/settlement"
	"github.com/exsplitter/backend/internal/storage/sqlite"
)

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

// newLedgerFixture spins up a real store on a temp database with a three
// member trip, the same shape the handlers drive in production.
func newLedgerFixture(t *testing.T) (*LedgerService, *models.Trip) {
	t.Helper()
	store, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	trip := &models.Trip{
		Name:               "Kyoto",
		SettlementCurrency: "JPY",
		MemberIDs:          []string{"alice", "bob", "carol"},
	}
	require.NoError(t, store.CreateTrip(context.Background(), trip))

	rates := money.NewStaticRates(map[string]float64{"USD/JPY": 150})
	return NewLedgerService(store, rates), trip
}

func dinnerInput(trip *models.Trip) ExpenseInput {
	return ExpenseInput{
		TripID:   trip.ID,
		Title:    "Dinner",
		PayerID:  "alice",
		Amount:   decimal.NewFromInt(3000),
		Currency: "JPY",
		Date:     1700000000,
		SplitMemberIDs: []string{"alice", "bob", "carol"},
		Splits: map[string]decimal.Decimal{
			"alice": decimal.NewFromInt(1000),
			"bob":   decimal.NewFromInt(1000),
			"carol": decimal.NewFromInt(1000),
		},
		PayerEarned: decimal.Zero,
	}
}

func TestCreateExpenseValidation(t *testing.T) {
	svc, trip := newLedgerFixture(t)
	ctx := context.Background()

	t.Run("rejects non-member caller", func(t *testing.T) {
		_, err := svc.CreateExpense(ctx, "mallory", dinnerInput(trip))
		assert.ErrorIs(t, err, ErrNotTripMember)
	})

	t.Run("rejects unknown currency", func(t *testing.T) {
		in := dinnerInput(trip)
		in.Currency = "XXX"
		_, err := svc.CreateExpense(ctx, "alice", in)
		assert.ErrorIs(t, err, ledger.ErrUnknownCurrency)
	})

	t.Run("rejects non-positive amount", func(t *testing.T) {
		in := dinnerInput(trip)
		in.Amount = decimal.Zero
		_, err := svc.CreateExpense(ctx, "alice", in)
		assert.ErrorIs(t, err, ledger.ErrInvalidAmount)
	})

	t.Run("rejects payer outside the trip", func(t *testing.T) {
		in := dinnerInput(trip)
		in.PayerID = "mallory"
		_, err := svc.CreateExpense(ctx, "alice", in)
		assert.ErrorIs(t, err, ledger.ErrStaleReference)
	})

	t.Run("rejects shares that do not reconcile", func(t *testing.T) {
		in := dinnerInput(trip)
		in.Splits["carol"] = decimal.NewFromInt(500)
		_, err := svc.CreateExpense(ctx, "alice", in)
		assert.ErrorIs(t, err, ledger.ErrSplitMismatch)
	})

	t.Run("rejects missing share", func(t *testing.T) {
		in := dinnerInput(trip)
		delete(in.Splits, "bob")
		_, err := svc.CreateExpense(ctx, "alice", in)
		assert.ErrorIs(t, err, ledger.ErrSplitMismatch)
	})
}

func TestTransfersAndPayments(t *testing.T) {
	svc, trip := newLedgerFixture(t)
	ctx := context.Background()

	_, err := svc.CreateExpense(ctx, "alice", dinnerInput(trip))
	require.NoError(t, err)

	transfers, err := svc.Transfers(ctx, "bob", trip.ID, "", false)
	require.NoError(t, err)
	require.Len(t, transfers, 2)
	for _, tr := range transfers {
		assert.Equal(t, "alice", tr.ToID)
		assert.True(t, tr.Amount.Equal(dec(t, "1000")), "got %s", tr.Amount)
	}

	// Bob hands over a 1200 note; 1000 settles the debt, 200 is change.
	p, err := svc.RecordPayment(ctx, "bob", trip.ID, settlement.PaymentInput{
		DebtorID:       "bob",
		CreditorID:     "alice",
		AmountReceived: dec(t, "1200"),
		Currency:       "JPY",
	})
	require.NoError(t, err)
	assert.True(t, p.Amount.Equal(dec(t, "1000")))
	assert.True(t, p.ChangeGivenBack.Equal(dec(t, "200")))

	detail, err := svc.Pair(ctx, "bob", trip.ID, "bob", "alice", "")
	require.NoError(t, err)
	assert.True(t, detail.StillOwed.IsZero())
	assert.Equal(t, models.StatusFullyPaid, detail.Status)
	require.Len(t, detail.ActivePayments, 1)

	// Carol's pair is untouched by Bob's payment.
	owed, err := svc.StillOwed(ctx, "carol", trip.ID, "carol", "alice", "")
	require.NoError(t, err)
	assert.True(t, owed.Equal(dec(t, "1000")))

	// The transfer view is derived from expenses and marks; recorded payments
	// live in the pair detail, not the netting.
	simplified, err := svc.Transfers(ctx, "alice", trip.ID, "", true)
	require.NoError(t, err)
	require.Len(t, simplified, 2)

	// Alice's audit record shows the change she handed back.
	rec, err := svc.MemberRecord(ctx, "alice", trip.ID, "")
	require.NoError(t, err)
	assert.True(t, rec.ChangeGivenBack.Equal(dec(t, "200")))
}

func TestMarkFullyPaidLifecycle(t *testing.T) {
	svc, trip := newLedgerFixture(t)
	ctx := context.Background()

	_, err := svc.CreateExpense(ctx, "alice", dinnerInput(trip))
	require.NoError(t, err)

	// Settling with debt outstanding is refused.
	err = svc.MarkFullyPaid(ctx, "alice", trip.ID, "bob", "alice")
	assert.ErrorIs(t, err, ledger.ErrPrematureSettlement)

	_, err = svc.RecordPayment(ctx, "bob", trip.ID, settlement.PaymentInput{
		DebtorID:       "bob",
		CreditorID:     "alice",
		AmountReceived: dec(t, "1000"),
		Currency:       "JPY",
	})
	require.NoError(t, err)

	require.NoError(t, svc.MarkFullyPaid(ctx, "alice", trip.ID, "bob", "alice"))

	detail, err := svc.Pair(ctx, "bob", trip.ID, "bob", "alice", "")
	require.NoError(t, err)
	assert.Equal(t, models.StatusFullyPaid, detail.Status)
	assert.True(t, detail.StillOwed.IsZero())
	assert.Empty(t, detail.ActivePayments, "history rolls out of the window")

	// Idempotent: a second confirmation changes nothing.
	require.NoError(t, svc.MarkFullyPaid(ctx, "alice", trip.ID, "bob", "alice"))

	// A fresh expense reopens only the pairs it touches.
	_, err = svc.CreateExpense(ctx, "alice", ExpenseInput{
		TripID:   trip.ID,
		Title:    "Snacks",
		PayerID:  "alice",
		Amount:   decimal.NewFromInt(200),
		Currency: "JPY",
		SplitMemberIDs: []string{"alice", "bob"},
		Splits: map[string]decimal.Decimal{
			"alice": decimal.NewFromInt(100),
			"bob":   decimal.NewFromInt(100),
		},
	})
	require.NoError(t, err)

	detail, err = svc.Pair(ctx, "bob", trip.ID, "bob", "alice", "")
	require.NoError(t, err)
	assert.True(t, detail.StillOwed.Equal(dec(t, "100")), "got %s", detail.StillOwed)
	assert.Empty(t, detail.ActivePayments, "pre-settlement payments stay hidden")

	owedCarol, err := svc.StillOwed(ctx, "carol", trip.ID, "carol", "alice", "")
	require.NoError(t, err)
	assert.True(t, owedCarol.Equal(dec(t, "1000")), "carol's pair is isolated")

	// Netting agrees with the pair view.
	transfers, err := svc.Transfers(ctx, "alice", trip.ID, "", false)
	require.NoError(t, err)
	byDebtor := map[string]decimal.Decimal{}
	for _, tr := range transfers {
		byDebtor[tr.FromID] = tr.Amount
	}
	assert.True(t, byDebtor["bob"].Equal(dec(t, "100")))
	assert.True(t, byDebtor["carol"].Equal(dec(t, "1000")))
}

func TestUnmarkFullyPaidPersists(t *testing.T) {
	svc, trip := newLedgerFixture(t)
	ctx := context.Background()

	_, err := svc.CreateExpense(ctx, "alice", dinnerInput(trip))
	require.NoError(t, err)
	_, err = svc.RecordPayment(ctx, "bob", trip.ID, settlement.PaymentInput{
		DebtorID:       "bob",
		CreditorID:     "alice",
		AmountReceived: dec(t, "1000"),
		Currency:       "JPY",
	})
	require.NoError(t, err)
	require.NoError(t, svc.MarkFullyPaid(ctx, "alice", trip.ID, "bob", "alice"))

	require.NoError(t, svc.UnmarkFullyPaid(ctx, "alice", trip.ID, "bob", "alice"))

	detail, err := svc.Pair(ctx, "bob", trip.ID, "bob", "alice", "")
	require.NoError(t, err)
	assert.Equal(t, models.StatusReopened, detail.Status)
	assert.True(t, detail.StillOwed.IsZero(), "settled expenses stay settled")
	assert.Empty(t, detail.ActivePayments)
}

func TestToggleExpenseMark(t *testing.T) {
	svc, trip := newLedgerFixture(t)
	ctx := context.Background()

	e, err := svc.CreateExpense(ctx, "alice", dinnerInput(trip))
	require.NoError(t, err)

	set, err := svc.ToggleExpenseMark(ctx, "bob", trip.ID, "bob", "alice", e.ID)
	require.NoError(t, err)
	assert.True(t, set)

	owed, err := svc.StillOwed(ctx, "bob", trip.ID, "bob", "alice", "")
	require.NoError(t, err)
	assert.True(t, owed.IsZero(), "marked line drops out of the obligation")

	set, err = svc.ToggleExpenseMark(ctx, "bob", trip.ID, "bob", "alice", e.ID)
	require.NoError(t, err)
	assert.False(t, set)

	owed, err = svc.StillOwed(ctx, "bob", trip.ID, "bob", "alice", "")
	require.NoError(t, err)
	assert.True(t, owed.Equal(dec(t, "1000")))

	_, err = svc.ToggleExpenseMark(ctx, "bob", trip.ID, "bob", "alice", "nope")
	assert.ErrorIs(t, err, ledger.ErrStaleReference)
}

func TestPreviewEqualSplit(t *testing.T) {
	svc, _ := newLedgerFixture(t)

	result, err := svc.PreviewEqualSplit(decimal.NewFromInt(1000), "JPY", "alice", []string{"alice", "bob", "carol"})
	require.NoError(t, err)

	sum := decimal.Zero
	for _, share := range result.Shares {
		sum = sum.Add(share)
	}
	assert.True(t, sum.Sub(result.PayerEarned).Equal(dec(t, "1000")), "shares minus payer slack conserve the amount")

	_, err = svc.PreviewEqualSplit(decimal.NewFromInt(1000), "XXX", "alice", []string{"alice"})
	assert.ErrorIs(t, err, ledger.ErrUnknownCurrency)
}
