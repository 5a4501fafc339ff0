package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/exsplitter/backend/internal/models"
	"github.com/exsplitter/backend/internal/money"
	"github.com/exsplitter/backend/internal/storage"
)

// ErrNotTripMember rejects operations by callers outside the trip's
// membership list.
var ErrNotTripMember = errors.New("member does not belong to trip")

// TripService manages trips and their membership lists.
type TripService struct {
	store storage.Store
}

// NewTripService creates a new TripService with the given storage backend.
func NewTripService(store storage.Store) *TripService {
	return &TripService{store: store}
}

// isMember checks if the member is in the trip's membership list.
func isMember(memberID string, trip *models.Trip) bool {
	for _, m := range trip.MemberIDs {
		if m == memberID {
			return true
		}
	}
	return false
}

// CreateTrip creates a new trip. The creator is always a member.
func (s *TripService) CreateTrip(ctx context.Context, creatorID, name, settlementCurrency string, memberIDs []string) (*models.Trip, error) {
	if name == "" {
		return nil, fmt.Errorf("trip name required")
	}
	if _, err := money.Lookup(settlementCurrency); err != nil {
		return nil, err
	}

	ids := append([]string{}, memberIDs...)
	found := false
	for _, id := range ids {
		if id == creatorID {
			found = true
			break
		}
	}
	if !found {
		ids = append(ids, creatorID)
	}

	trip := &models.Trip{
		Name:               name,
		SettlementCurrency: settlementCurrency,
		MemberIDs:          ids,
	}
	if err := s.store.CreateTrip(ctx, trip); err != nil {
		slog.Error("CreateTrip failed", "error", err)
		return nil, err
	}

	slog.Info("Trip created", "trip_id", trip.ID, "name", trip.Name)
	return trip, nil
}

// GetTrip retrieves a trip the member belongs to.
func (s *TripService) GetTrip(ctx context.Context, memberID, tripID string) (*models.Trip, error) {
	trip, err := s.store.GetTrip(ctx, tripID)
	if err != nil {
		return nil, err
	}
	if !isMember(memberID, trip) {
		return nil, fmt.Errorf("%w: %s in trip %s", ErrNotTripMember, memberID, tripID)
	}
	return trip, nil
}

// ListTrips retrieves every trip the member belongs to.
func (s *TripService) ListTrips(ctx context.Context, memberID string) ([]*models.Trip, error) {
	return s.store.ListTripsByMember(ctx, memberID)
}

// AddMembers adds members to a trip the caller belongs to.
func (s *TripService) AddMembers(ctx context.Context, callerID, tripID string, memberIDs []string) error {
	trip, err := s.store.GetTrip(ctx, tripID)
	if err != nil {
		return err
	}
	if !isMember(callerID, trip) {
		return fmt.Errorf("%w: %s in trip %s", ErrNotTripMember, callerID, tripID)
	}
	if err := s.store.AddTripMembers(ctx, tripID, memberIDs); err != nil {
		slog.Error("AddMembers failed", "trip_id", tripID, "error", err)
		return err
	}
	slog.Info("Members added", "trip_id", tripID, "count", len(memberIDs))
	return nil
}

// RemoveMember removes a member from the trip. Historical expenses and
// payments referencing the member stay intact.
func (s *TripService) RemoveMember(ctx context.Context, callerID, tripID, memberID string) error {
	trip, err := s.store.GetTrip(ctx, tripID)
	if err != nil {
		return err
	}
	if !isMember(callerID, trip) {
		return fmt.Errorf("%w: %s in trip %s", ErrNotTripMember, callerID, tripID)
	}
	return s.store.RemoveTripMember(ctx, tripID, memberID)
}
