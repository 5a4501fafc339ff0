package handlers

import (
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/exsplitter/backend/internal/models"
	"github.com/exsplitter/backend/internal/service"
)

// AuthHandler exposes registration and login.
type AuthHandler struct {
	auth     *service.AuthService
	validate *validator.Validate
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(auth *service.AuthService) *AuthHandler {
	return &AuthHandler{auth: auth, validate: validator.New()}
}

type memberResponse struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	JoinedAt int64  `json:"joined_at"`
}

func toMemberResponse(m *models.Member) memberResponse {
	return memberResponse{ID: m.ID, Name: m.Name, Email: m.Email, JoinedAt: m.JoinedAt}
}

type sessionResponse struct {
	Member memberResponse `json:"member"`
	Token  string         `json:"token"`
}

// Register handles POST /auth/register.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email" validate:"required,email"`
		Name     string `json:"name" validate:"required"`
		Password string `json:"password" validate:"required"`
	}
	if !decode(w, r, h.validate, &req) {
		return
	}

	member, token, err := h.auth.Register(r.Context(), req.Email, req.Name, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sessionResponse{Member: toMemberResponse(member), Token: token})
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
	}
	if !decode(w, r, h.validate, &req) {
		return
	}

	member, token, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{Member: toMemberResponse(member), Token: token})
}
