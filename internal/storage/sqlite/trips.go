package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/exsplitter/backend/internal/models"
	"github.com/exsplitter/backend/internal/storage"
)

// CreateTrip persists a new trip and its membership list.
func (s *SQLiteStore) CreateTrip(ctx context.Context, trip *models.Trip) error {
	if trip.ID == "" {
		trip.ID = uuid.New().String()
	}
	if trip.CreatedAt == 0 {
		trip.CreatedAt = time.Now().Unix()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		"INSERT INTO trips (id, name, settlement_currency, created_at) VALUES (?, ?, ?, ?)",
		trip.ID, trip.Name, trip.SettlementCurrency, trip.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert trip: %w", err)
	}

	for _, memberID := range trip.MemberIDs {
		_, err = tx.ExecContext(ctx,
			"INSERT INTO trip_members (trip_id, member_id) VALUES (?, ?)",
			trip.ID, memberID,
		)
		if err != nil {
			return fmt.Errorf("failed to insert trip member: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetTrip retrieves a trip by ID, including its membership list.
func (s *SQLiteStore) GetTrip(ctx context.Context, id string) (*models.Trip, error) {
	trip := &models.Trip{}
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, settlement_currency, created_at FROM trips WHERE id = ?",
		id,
	).Scan(&trip.ID, &trip.Name, &trip.SettlementCurrency, &trip.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: trip %s", storage.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get trip: %w", err)
	}

	members, err := s.tripMemberIDs(ctx, id)
	if err != nil {
		return nil, err
	}
	trip.MemberIDs = members
	return trip, nil
}

func (s *SQLiteStore) tripMemberIDs(ctx context.Context, tripID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT member_id FROM trip_members WHERE trip_id = ? ORDER BY member_id",
		tripID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get trip members: %w", err)
	}
	defer rows.Close()

	var members []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan trip member: %w", err)
		}
		members = append(members, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate trip members: %w", err)
	}
	return members, nil
}

// ListTripsByMember retrieves every trip the member belongs to, newest first.
func (s *SQLiteStore) ListTripsByMember(ctx context.Context, memberID string) ([]*models.Trip, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT t.id, t.name, t.settlement_currency, t.created_at
		 FROM trips t JOIN trip_members tm ON tm.trip_id = t.id
		 WHERE tm.member_id = ? ORDER BY t.created_at DESC`,
		memberID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list trips: %w", err)
	}
	defer rows.Close()

	var trips []*models.Trip
	for rows.Next() {
		trip := &models.Trip{}
		if err := rows.Scan(&trip.ID, &trip.Name, &trip.SettlementCurrency, &trip.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan trip: %w", err)
		}
		trips = append(trips, trip)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate trips: %w", err)
	}

	for _, trip := range trips {
		members, err := s.tripMemberIDs(ctx, trip.ID)
		if err != nil {
			return nil, err
		}
		trip.MemberIDs = members
	}
	return trips, nil
}

// AddTripMembers adds members to a trip, ignoring ones already present.
func (s *SQLiteStore) AddTripMembers(ctx context.Context, tripID string, memberIDs []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, memberID := range memberIDs {
		_, err = tx.ExecContext(ctx,
			"INSERT OR IGNORE INTO trip_members (trip_id, member_id) VALUES (?, ?)",
			tripID, memberID,
		)
		if err != nil {
			return fmt.Errorf("failed to add trip member: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// RemoveTripMember removes a member from the trip's membership list.
// Historical records referencing the member are untouched.
func (s *SQLiteStore) RemoveTripMember(ctx context.Context, tripID, memberID string) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM trip_members WHERE trip_id = ? AND member_id = ?",
		tripID, memberID,
	)
	if err != nil {
		return fmt.Errorf("failed to remove trip member: %w", err)
	}
	return nil
}
