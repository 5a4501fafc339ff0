package ledger

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/exsplitter/backend/internal/models"
	"github.com/exsplitter/backend/internal/money"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func expense(id, payerID, currency, amount string, splits map[string]string) models.Expense {
	parsed := make(map[string]decimal.Decimal, len(splits))
	memberIDs := make([]string, 0, len(splits))
	for memberID, share := range splits {
		parsed[memberID] = dec(share)
		memberIDs = append(memberIDs, memberID)
	}
	return models.Expense{
		ID:             id,
		TripID:         "trip1",
		PayerID:        payerID,
		Amount:         dec(amount),
		Currency:       currency,
		SplitMemberIDs: memberIDs,
		Splits:         parsed,
		PayerEarned:    decimal.Zero,
	}
}

func testSnapshot(expenses ...models.Expense) *Snapshot {
	return &Snapshot{
		Trip: models.Trip{
			ID:                 "trip1",
			SettlementCurrency: "JPY",
			MemberIDs:          []string{"alice", "bob", "carol"},
		},
		Expenses: expenses,
		Pairs:    make(map[models.PairKey]models.PairState),
	}
}

func testRates() money.RateProvider {
	return money.NewStaticRates(map[string]float64{"USD/JPY": 150})
}

func TestGrossOwed(t *testing.T) {
	s := testSnapshot(
		expense("e1", "alice", "JPY", "3000", map[string]string{
			"alice": "1000", "bob": "1000", "carol": "1000",
		}),
	)

	assert.True(t, s.GrossOwed("bob", "alice", "JPY").Equal(dec("1000")))
	assert.True(t, s.GrossOwed("carol", "alice", "JPY").Equal(dec("1000")))

	// The payer's own share is not debt.
	assert.True(t, s.GrossOwed("alice", "alice", "JPY").IsZero())
	// No debt flows toward non-payers.
	assert.True(t, s.GrossOwed("alice", "bob", "JPY").IsZero())
	// Currency scoping.
	assert.True(t, s.GrossOwed("bob", "alice", "USD").IsZero())
}

func TestGrossOwedSelfTreat(t *testing.T) {
	s := testSnapshot(
		expense("e1", "alice", "JPY", "800", map[string]string{"alice": "800"}),
	)
	require.True(t, s.Expenses[0].IsSelfTreat())
	for _, debtor := range []string{"alice", "bob", "carol"} {
		assert.True(t, s.GrossOwed(debtor, "alice", "JPY").IsZero(), "debtor %s", debtor)
	}
}

func TestNetTransfersInCurrency(t *testing.T) {
	// Alice paid 3000 split evenly; Bob paid 1500 split evenly. Bob's gross
	// 1000 to Alice nets against Alice's 500 to Bob.
	s := testSnapshot(
		expense("e1", "alice", "JPY", "3000", map[string]string{
			"alice": "1000", "bob": "1000", "carol": "1000",
		}),
		expense("e2", "bob", "JPY", "1500", map[string]string{
			"alice": "500", "bob": "500", "carol": "500",
		}),
	)

	n := &Netter{Rates: testRates()}
	transfers := n.NetTransfersInCurrency(s, "JPY")
	require.Len(t, transfers, 3)

	assert.Equal(t, "bob", transfers[0].FromID)
	assert.Equal(t, "alice", transfers[0].ToID)
	assert.True(t, transfers[0].Amount.Equal(dec("500")), "got %s", transfers[0].Amount)

	assert.Equal(t, "carol", transfers[1].FromID)
	assert.Equal(t, "alice", transfers[1].ToID)
	assert.True(t, transfers[1].Amount.Equal(dec("1000")), "got %s", transfers[1].Amount)

	assert.Equal(t, "carol", transfers[2].FromID)
	assert.Equal(t, "bob", transfers[2].ToID)
	assert.True(t, transfers[2].Amount.Equal(dec("500")), "got %s", transfers[2].Amount)
}

func TestNetTransfersExactCancellation(t *testing.T) {
	s := testSnapshot(
		expense("e1", "alice", "JPY", "2000", map[string]string{
			"alice": "1000", "bob": "1000",
		}),
		expense("e2", "bob", "JPY", "2000", map[string]string{
			"alice": "1000", "bob": "1000",
		}),
	)

	n := &Netter{Rates: testRates()}
	assert.Empty(t, n.NetTransfersInCurrency(s, "JPY"))
}

func TestTransfersAcrossCurrencies(t *testing.T) {
	// Alice owes Bob 2000 JPY; Bob owes Alice 10 USD. At 150 JPY/USD the USD
	// debt is 1500 JPY, leaving Alice -> Bob 500 JPY.
	s := testSnapshot(
		expense("e1", "bob", "JPY", "4000", map[string]string{
			"alice": "2000", "bob": "2000",
		}),
		expense("e2", "alice", "USD", "20", map[string]string{
			"alice": "10", "bob": "10",
		}),
	)

	n := &Netter{Rates: testRates()}
	transfers, err := n.Transfers(s, "JPY")
	require.NoError(t, err)
	require.Len(t, transfers, 1)
	assert.Equal(t, "alice", transfers[0].FromID)
	assert.Equal(t, "bob", transfers[0].ToID)
	assert.True(t, transfers[0].Amount.Equal(dec("500")), "got %s", transfers[0].Amount)
}

func TestTransfersUnknownTargetCurrency(t *testing.T) {
	n := &Netter{Rates: testRates()}
	_, err := n.Transfers(testSnapshot(), "XXX")
	assert.ErrorIs(t, err, money.ErrUnknownCurrency)
}

func TestTransfersMissingRate(t *testing.T) {
	s := testSnapshot(
		expense("e1", "alice", "USD", "20", map[string]string{
			"alice": "10", "bob": "10",
		}),
	)
	n := &Netter{Rates: money.NewStaticRates(nil)}
	_, err := n.Transfers(s, "JPY")
	assert.ErrorIs(t, err, money.ErrUnknownCurrency)
}

func TestActiveGrossOwedHonorsFullySettled(t *testing.T) {
	s := testSnapshot(
		expense("e1", "alice", "JPY", "3000", map[string]string{
			"alice": "1000", "bob": "1000", "carol": "1000",
		}),
	)
	s.Pairs[models.PairKey{DebtorID: "bob", CreditorID: "alice"}] = models.PairState{
		TripID: "trip1", DebtorID: "bob", CreditorID: "alice",
		FullySettled: true, Epoch: 1,
	}

	// The settled pair reports no active debt, full history is retained.
	assert.True(t, s.ActiveGrossOwed("bob", "alice", "JPY").IsZero())
	assert.True(t, s.GrossOwed("bob", "alice", "JPY").Equal(dec("1000")))

	// Carol's pair is untouched.
	assert.True(t, s.ActiveGrossOwed("carol", "alice", "JPY").Equal(dec("1000")))

	n := &Netter{Rates: testRates()}
	transfers := n.NetTransfersInCurrency(s, "JPY")
	require.Len(t, transfers, 1)
	assert.Equal(t, "carol", transfers[0].FromID)
}

func TestSimplifiedTransfers(t *testing.T) {
	// Bob owes Alice, Carol owes Bob: the chain collapses through Bob.
	s := testSnapshot(
		expense("e1", "alice", "JPY", "2000", map[string]string{
			"alice": "1000", "bob": "1000",
		}),
		expense("e2", "bob", "JPY", "2000", map[string]string{
			"bob": "1000", "carol": "1000",
		}),
	)

	n := &Netter{Rates: testRates()}
	transfers, err := n.SimplifiedTransfers(s, "JPY")
	require.NoError(t, err)
	require.Len(t, transfers, 1)
	assert.Equal(t, "carol", transfers[0].FromID)
	assert.Equal(t, "alice", transfers[0].ToID)
	assert.True(t, transfers[0].Amount.Equal(dec("1000")))
}

func TestActivePaymentsEpochFilter(t *testing.T) {
	s := testSnapshot()
	s.Payments = []models.Payment{
		{DebtorID: "bob", CreditorID: "alice", Amount: dec("500"), Currency: "JPY", Epoch: 0},
		{DebtorID: "bob", CreditorID: "alice", Amount: dec("300"), Currency: "JPY", Epoch: 1},
	}

	// Epoch zero by default: only the first payment is active.
	active := s.ActivePayments("bob", "alice")
	require.Len(t, active, 1)
	assert.True(t, active[0].Amount.Equal(dec("500")))

	// After a settlement bump only the epoch-1 payment is visible.
	s.Pairs[models.PairKey{DebtorID: "bob", CreditorID: "alice"}] = models.PairState{
		TripID: "trip1", DebtorID: "bob", CreditorID: "alice", Epoch: 1,
	}
	active = s.ActivePayments("bob", "alice")
	require.Len(t, active, 1)
	assert.True(t, active[0].Amount.Equal(dec("300")))
}

func TestActiveMarksToggleParity(t *testing.T) {
	s := testSnapshot()
	s.Marks = []models.PaidMark{
		{DebtorID: "bob", CreditorID: "alice", ExpenseID: "e1", Epoch: 0},
		{DebtorID: "bob", CreditorID: "alice", ExpenseID: "e1", Epoch: 0},
		{DebtorID: "bob", CreditorID: "alice", ExpenseID: "e2", Epoch: 0},
		{DebtorID: "bob", CreditorID: "alice", ExpenseID: "e3", Epoch: 1},
	}

	marks := s.ActiveMarks("bob", "alice")
	assert.False(t, marks["e1"], "double toggle cancels out")
	assert.True(t, marks["e2"])
	assert.False(t, marks["e3"], "future-epoch mark is not active yet")
}
