package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/exsplitter/backend/internal/middleware"
	"github.com/exsplitter/backend/internal/models"
	"github.com/exsplitter/backend/internal/service"
)

// TripHandler exposes trip and membership management.
type TripHandler struct {
	trips    *service.TripService
	validate *validator.Validate
}

// NewTripHandler creates a new TripHandler.
func NewTripHandler(trips *service.TripService) *TripHandler {
	return &TripHandler{trips: trips, validate: validator.New()}
}

type tripResponse struct {
	ID                 string   `json:"id"`
	Name               string   `json:"name"`
	SettlementCurrency string   `json:"settlement_currency"`
	MemberIDs          []string `json:"member_ids"`
	CreatedAt          int64    `json:"created_at"`
}

func toTripResponse(t *models.Trip) tripResponse {
	return tripResponse{
		ID:                 t.ID,
		Name:               t.Name,
		SettlementCurrency: t.SettlementCurrency,
		MemberIDs:          t.MemberIDs,
		CreatedAt:          t.CreatedAt,
	}
}

// Create handles POST /trips.
func (h *TripHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name               string   `json:"name" validate:"required"`
		SettlementCurrency string   `json:"settlement_currency" validate:"required,len=3"`
		MemberIDs          []string `json:"member_ids"`
	}
	if !decode(w, r, h.validate, &req) {
		return
	}

	trip, err := h.trips.CreateTrip(r.Context(), middleware.GetMemberID(r.Context()), req.Name, req.SettlementCurrency, req.MemberIDs)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTripResponse(trip))
}

// Get handles GET /trips/{tripID}.
func (h *TripHandler) Get(w http.ResponseWriter, r *http.Request) {
	trip, err := h.trips.GetTrip(r.Context(), middleware.GetMemberID(r.Context()), chi.URLParam(r, "tripID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTripResponse(trip))
}

// List handles GET /trips.
func (h *TripHandler) List(w http.ResponseWriter, r *http.Request) {
	trips, err := h.trips.ListTrips(r.Context(), middleware.GetMemberID(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]tripResponse, 0, len(trips))
	for _, t := range trips {
		out = append(out, toTripResponse(t))
	}
	writeJSON(w, http.StatusOK, out)
}

// AddMembers handles POST /trips/{tripID}/members.
func (h *TripHandler) AddMembers(w http.ResponseWriter, r *http.Request) {
	var req struct {
		MemberIDs []string `json:"member_ids" validate:"required,min=1"`
	}
	if !decode(w, r, h.validate, &req) {
		return
	}

	if err := h.trips.AddMembers(r.Context(), middleware.GetMemberID(r.Context()), chi.URLParam(r, "tripID"), req.MemberIDs); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

// RemoveMember handles DELETE /trips/{tripID}/members/{memberID}.
func (h *TripHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	err := h.trips.RemoveMember(r.Context(), middleware.GetMemberID(r.Context()), chi.URLParam(r, "tripID"), chi.URLParam(r, "memberID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}
