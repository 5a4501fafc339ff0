package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/exsplitter/backend/internal/models"
	"github.com/exsplitter/backend/internal/storage"
)

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("bad decimal %q: %v", s, err)
	}
	return d
}

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	store, err := New(dbPath)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func seedTrip(t *testing.T, store *SQLiteStore, memberIDs ...string) *models.Trip {
	t.Helper()
	trip := &models.Trip{
		Name:               "Kyoto",
		SettlementCurrency: "JPY",
		MemberIDs:          memberIDs,
	}
	if err := store.CreateTrip(context.Background(), trip); err != nil {
		t.Fatalf("CreateTrip failed: %v", err)
	}
	return trip
}

func TestSQLiteStore(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	t.Run("CreateMember generates ID and timestamps", func(t *testing.T) {
		member := &models.Member{
			Name:         "Alice",
			Email:        "alice@example.com",
			PasswordHash: "hash",
		}
		if err := store.CreateMember(ctx, member); err != nil {
			t.Fatalf("CreateMember failed: %v", err)
		}
		if member.ID == "" {
			t.Error("Expected member ID to be generated")
		}
		if member.JoinedAt == 0 {
			t.Error("Expected JoinedAt to be set")
		}

		got, err := store.GetMemberByEmail(ctx, "alice@example.com")
		if err != nil {
			t.Fatalf("GetMemberByEmail failed: %v", err)
		}
		if got.ID != member.ID {
			t.Errorf("GetMemberByEmail ID = %s, want %s", got.ID, member.ID)
		}
	})

	t.Run("GetMember unknown id wraps ErrNotFound", func(t *testing.T) {
		_, err := store.GetMember(ctx, "nope")
		if !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("GetMember error = %v, want ErrNotFound", err)
		}
	})

	t.Run("Trip round trip with membership", func(t *testing.T) {
		trip := seedTrip(t, store, "alice", "bob")

		got, err := store.GetTrip(ctx, trip.ID)
		if err != nil {
			t.Fatalf("GetTrip failed: %v", err)
		}
		if got.SettlementCurrency != "JPY" {
			t.Errorf("SettlementCurrency = %s, want JPY", got.SettlementCurrency)
		}
		if len(got.MemberIDs) != 2 {
			t.Fatalf("MemberIDs = %v, want 2 entries", got.MemberIDs)
		}

		if err := store.AddTripMembers(ctx, trip.ID, []string{"carol", "bob"}); err != nil {
			t.Fatalf("AddTripMembers failed: %v", err)
		}
		got, err = store.GetTrip(ctx, trip.ID)
		if err != nil {
			t.Fatalf("GetTrip failed: %v", err)
		}
		if len(got.MemberIDs) != 3 {
			t.Errorf("MemberIDs after add = %v, want 3 entries", got.MemberIDs)
		}

		if err := store.RemoveTripMember(ctx, trip.ID, "carol"); err != nil {
			t.Fatalf("RemoveTripMember failed: %v", err)
		}
		got, err = store.GetTrip(ctx, trip.ID)
		if err != nil {
			t.Fatalf("GetTrip failed: %v", err)
		}
		if len(got.MemberIDs) != 2 {
			t.Errorf("MemberIDs after remove = %v, want 2 entries", got.MemberIDs)
		}
	})

	t.Run("ListTripsByMember", func(t *testing.T) {
		trip := seedTrip(t, store, "dave")
		trips, err := store.ListTripsByMember(ctx, "dave")
		if err != nil {
			t.Fatalf("ListTripsByMember failed: %v", err)
		}
		if len(trips) != 1 || trips[0].ID != trip.ID {
			t.Errorf("ListTripsByMember = %v, want [%s]", trips, trip.ID)
		}
	})

	t.Run("Expense amounts round-trip exactly", func(t *testing.T) {
		trip := seedTrip(t, store, "alice", "bob", "carol")
		expense := &models.Expense{
			TripID:         trip.ID,
			Title:          "Dinner",
			PayerID:        "alice",
			Amount:         dec(t, "1000"),
			Currency:       "JPY",
			Date:           1700000000,
			SplitMemberIDs: []string{"alice", "bob", "carol"},
			Splits: map[string]decimal.Decimal{
				"alice": dec(t, "332"),
				"bob":   dec(t, "334"),
				"carol": dec(t, "334"),
			},
			PayerEarned: decimal.Zero,
		}
		if err := store.CreateExpense(ctx, expense); err != nil {
			t.Fatalf("CreateExpense failed: %v", err)
		}

		snap, err := store.LoadSnapshot(ctx, trip.ID)
		if err != nil {
			t.Fatalf("LoadSnapshot failed: %v", err)
		}
		if len(snap.Expenses) != 1 {
			t.Fatalf("Expenses = %d, want 1", len(snap.Expenses))
		}
		got := snap.Expenses[0]
		if !got.Amount.Equal(dec(t, "1000")) {
			t.Errorf("Amount = %s, want 1000", got.Amount)
		}
		if !got.Splits["bob"].Equal(dec(t, "334")) {
			t.Errorf("bob share = %s, want 334", got.Splits["bob"])
		}
		// Split order is preserved by position.
		want := []string{"alice", "bob", "carol"}
		for i, id := range got.SplitMemberIDs {
			if id != want[i] {
				t.Errorf("SplitMemberIDs[%d] = %s, want %s", i, id, want[i])
			}
		}
	})

	t.Run("ReplaceExpense swaps the whole record", func(t *testing.T) {
		trip := seedTrip(t, store, "alice", "bob")
		expense := &models.Expense{
			TripID:         trip.ID,
			Title:          "Taxi",
			PayerID:        "alice",
			Amount:         dec(t, "600"),
			Currency:       "JPY",
			Date:           1700000000,
			SplitMemberIDs: []string{"alice", "bob"},
			Splits: map[string]decimal.Decimal{
				"alice": dec(t, "300"),
				"bob":   dec(t, "300"),
			},
		}
		if err := store.CreateExpense(ctx, expense); err != nil {
			t.Fatalf("CreateExpense failed: %v", err)
		}

		replacement := &models.Expense{
			ID:             expense.ID,
			TripID:         trip.ID,
			Title:          "Taxi (corrected)",
			PayerID:        "alice",
			Amount:         dec(t, "800"),
			Currency:       "JPY",
			Date:           1700000000,
			SplitMemberIDs: []string{"alice", "bob"},
			Splits: map[string]decimal.Decimal{
				"alice": dec(t, "400"),
				"bob":   dec(t, "400"),
			},
		}
		if err := store.ReplaceExpense(ctx, replacement); err != nil {
			t.Fatalf("ReplaceExpense failed: %v", err)
		}

		snap, err := store.LoadSnapshot(ctx, trip.ID)
		if err != nil {
			t.Fatalf("LoadSnapshot failed: %v", err)
		}
		if len(snap.Expenses) != 1 {
			t.Fatalf("Expenses = %d, want 1", len(snap.Expenses))
		}
		if snap.Expenses[0].Title != "Taxi (corrected)" {
			t.Errorf("Title = %s, want corrected record", snap.Expenses[0].Title)
		}
		if !snap.Expenses[0].Amount.Equal(dec(t, "800")) {
			t.Errorf("Amount = %s, want 800", snap.Expenses[0].Amount)
		}

		if err := store.ReplaceExpense(ctx, &models.Expense{ID: "nope", TripID: trip.ID, SplitMemberIDs: []string{"alice"}, Splits: map[string]decimal.Decimal{"alice": decimal.Zero}}); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("ReplaceExpense unknown id error = %v, want ErrNotFound", err)
		}
	})

	t.Run("DeleteExpense cascades splits", func(t *testing.T) {
		trip := seedTrip(t, store, "alice", "bob")
		expense := &models.Expense{
			TripID:         trip.ID,
			Title:          "Coffee",
			PayerID:        "alice",
			Amount:         dec(t, "400"),
			Currency:       "JPY",
			Date:           1700000000,
			SplitMemberIDs: []string{"alice", "bob"},
			Splits: map[string]decimal.Decimal{
				"alice": dec(t, "200"),
				"bob":   dec(t, "200"),
			},
		}
		if err := store.CreateExpense(ctx, expense); err != nil {
			t.Fatalf("CreateExpense failed: %v", err)
		}
		if err := store.DeleteExpense(ctx, expense.ID); err != nil {
			t.Fatalf("DeleteExpense failed: %v", err)
		}

		snap, err := store.LoadSnapshot(ctx, trip.ID)
		if err != nil {
			t.Fatalf("LoadSnapshot failed: %v", err)
		}
		if len(snap.Expenses) != 0 {
			t.Errorf("Expenses = %d after delete, want 0", len(snap.Expenses))
		}

		if err := store.DeleteExpense(ctx, expense.ID); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("second DeleteExpense error = %v, want ErrNotFound", err)
		}
	})

	t.Run("Payment with allocation round-trips", func(t *testing.T) {
		trip := seedTrip(t, store, "alice", "bob")
		payment := &models.Payment{
			TripID:          trip.ID,
			DebtorID:        "bob",
			CreditorID:      "alice",
			Amount:          dec(t, "400"),
			AmountReceived:  dec(t, "500"),
			ChangeGivenBack: dec(t, "100"),
			AmountTreated:   decimal.Zero,
			Currency:        "JPY",
			Allocation: models.Allocation{
				Kind:       models.AllocationForExpenses,
				ExpenseIDs: []string{"e1", "e2"},
			},
			Epoch: 1,
			Date:  1700000100,
			Note:  "cash at the station",
		}
		if err := store.AppendPayment(ctx, payment); err != nil {
			t.Fatalf("AppendPayment failed: %v", err)
		}

		snap, err := store.LoadSnapshot(ctx, trip.ID)
		if err != nil {
			t.Fatalf("LoadSnapshot failed: %v", err)
		}
		if len(snap.Payments) != 1 {
			t.Fatalf("Payments = %d, want 1", len(snap.Payments))
		}
		got := snap.Payments[0]
		if !got.ChangeGivenBack.Equal(dec(t, "100")) {
			t.Errorf("ChangeGivenBack = %s, want 100", got.ChangeGivenBack)
		}
		if got.Allocation.Kind != models.AllocationForExpenses {
			t.Errorf("Allocation.Kind = %d, want AllocationForExpenses", got.Allocation.Kind)
		}
		if len(got.Allocation.ExpenseIDs) != 2 {
			t.Errorf("ExpenseIDs = %v, want 2 entries", got.Allocation.ExpenseIDs)
		}
		if got.Epoch != 1 {
			t.Errorf("Epoch = %d, want 1", got.Epoch)
		}
		if got.Note != "cash at the station" {
			t.Errorf("Note = %q", got.Note)
		}
	})

	t.Run("TogglePaidMark flips per epoch", func(t *testing.T) {
		trip := seedTrip(t, store, "alice", "bob")
		mark := &models.PaidMark{
			TripID:     trip.ID,
			DebtorID:   "bob",
			CreditorID: "alice",
			ExpenseID:  "e1",
			Epoch:      0,
		}

		set, err := store.TogglePaidMark(ctx, mark)
		if err != nil {
			t.Fatalf("TogglePaidMark failed: %v", err)
		}
		if !set {
			t.Error("first toggle should set the mark")
		}

		set, err = store.TogglePaidMark(ctx, mark)
		if err != nil {
			t.Fatalf("TogglePaidMark failed: %v", err)
		}
		if set {
			t.Error("second toggle should clear the mark")
		}

		// A different epoch is an independent key.
		mark.Epoch = 1
		set, err = store.TogglePaidMark(ctx, mark)
		if err != nil {
			t.Fatalf("TogglePaidMark failed: %v", err)
		}
		if !set {
			t.Error("toggle at a new epoch should set the mark")
		}

		snap, err := store.LoadSnapshot(ctx, trip.ID)
		if err != nil {
			t.Fatalf("LoadSnapshot failed: %v", err)
		}
		if len(snap.Marks) != 1 {
			t.Errorf("Marks = %d, want only the epoch-1 mark", len(snap.Marks))
		}
	})

	t.Run("UpsertPairState overwrites", func(t *testing.T) {
		trip := seedTrip(t, store, "alice", "bob")
		state := &models.PairState{
			TripID:       trip.ID,
			DebtorID:     "bob",
			CreditorID:   "alice",
			FullySettled: true,
			Epoch:        1,
		}
		if err := store.UpsertPairState(ctx, state); err != nil {
			t.Fatalf("UpsertPairState failed: %v", err)
		}

		state.FullySettled = false
		if err := store.UpsertPairState(ctx, state); err != nil {
			t.Fatalf("UpsertPairState failed: %v", err)
		}

		snap, err := store.LoadSnapshot(ctx, trip.ID)
		if err != nil {
			t.Fatalf("LoadSnapshot failed: %v", err)
		}
		got := snap.PairState("bob", "alice")
		if got.FullySettled {
			t.Error("FullySettled should be cleared by the second upsert")
		}
		if got.Epoch != 1 {
			t.Errorf("Epoch = %d, want 1", got.Epoch)
		}
	})
}
