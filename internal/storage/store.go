// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"
	"errors"

	"github.com/exsplitter/backend/internal/ledger"
	"github.com/exsplitter/backend/internal/models"
)

// ErrNotFound is returned (wrapped) when a looked-up record does not exist.
var ErrNotFound = errors.New("not found")

// Store defines the interface for ledger storage operations. The engine
// itself only ever sees snapshots; every mutation goes through the store so
// the service layer can apply read-modify-write atomically per pair. This
// abstraction allows swapping storage backends (SQLite, PostgreSQL, etc.)
// without changing the service layer.
type Store interface {
	// CreateMember persists a new member. The ID field is populated by the
	// store when empty.
	CreateMember(ctx context.Context, member *models.Member) error

	// GetMember retrieves a member by ID.
	GetMember(ctx context.Context, id string) (*models.Member, error)

	// GetMemberByEmail retrieves a member by email.
	GetMemberByEmail(ctx context.Context, email string) (*models.Member, error)

	// CreateTrip persists a new trip with its membership list.
	CreateTrip(ctx context.Context, trip *models.Trip) error

	// GetTrip retrieves a trip by ID, including its membership list.
	GetTrip(ctx context.Context, id string) (*models.Trip, error)

	// ListTripsByMember retrieves every trip the member belongs to.
	ListTripsByMember(ctx context.Context, memberID string) ([]*models.Trip, error)

	// AddTripMembers adds members to a trip, ignoring ones already present.
	AddTripMembers(ctx context.Context, tripID string, memberIDs []string) error

	// RemoveTripMember removes a member from the trip's membership list.
	// Historical expenses and payments referencing the member are untouched.
	RemoveTripMember(ctx context.Context, tripID, memberID string) error

	// CreateExpense persists a new expense with its splits.
	CreateExpense(ctx context.Context, expense *models.Expense) error

	// ReplaceExpense swaps the whole record for an existing expense id.
	// Expenses are immutable; an edit is a replacement.
	ReplaceExpense(ctx context.Context, expense *models.Expense) error

	// DeleteExpense removes an expense and its splits.
	DeleteExpense(ctx context.Context, id string) error

	// AppendPayment appends a payment to the pair's log. The log is
	// append-only; payments are never updated or deleted.
	AppendPayment(ctx context.Context, payment *models.Payment) error

	// TogglePaidMark flips the itemized paid mark for the mark's
	// (pair, expense, epoch) key and reports whether it is now set.
	TogglePaidMark(ctx context.Context, mark *models.PaidMark) (bool, error)

	// UpsertPairState writes the authoritative pair state.
	UpsertPairState(ctx context.Context, state *models.PairState) error

	// LoadSnapshot loads the full immutable view of one trip for the
	// engine: trip, expenses, payments, marks and pair states.
	LoadSnapshot(ctx context.Context, tripID string) (*ledger.Snapshot, error)

	// Close releases any resources held by the store.
	Close() error
}
