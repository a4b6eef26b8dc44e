package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/R3E-Network/service_layer/internal/app/auth"
	"github.com/R3E-Network/service_layer/internal/app/domain"
	"github.com/R3E-Network/service_layer/internal/app/storage"
)

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	Token string      `json:"token"`
	User  domain.User `json:"user"`
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, errMethodNotAllowed)
		return
	}
	var req registerRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusUnprocessableEntity, errors.New("email and password are required"))
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		writeError(w, http.StatusInternalServerError, errors.New("failed to hash password"))
		return
	}

	user, err := h.app.Store.CreateUser(r.Context(), domain.User{
		ID:           uuid.NewString(),
		Email:        req.Email,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	})
	if err != nil {
		if errors.Is(err, storage.ErrConflict) {
			writeError(w, http.StatusConflict, errors.New("an account with that email already exists"))
			return
		}
		writeError(w, http.StatusInternalServerError, errors.New("failed to create account"))
		return
	}
	user.PasswordHash = ""

	token, err := h.app.Auth.IssueToken(user.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, errors.New("failed to issue token"))
		return
	}
	writeJSON(w, http.StatusCreated, authResponse{Token: token, User: user})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, errMethodNotAllowed)
		return
	}
	var req loginRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}

	user, err := h.app.Store.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		writeError(w, http.StatusUnauthorized, errors.New("invalid email or password"))
		return
	}
	if !auth.VerifyPassword(user.PasswordHash, req.Password) {
		writeError(w, http.StatusUnauthorized, errors.New("invalid email or password"))
		return
	}

	token, err := h.app.Auth.IssueToken(user.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, errors.New("failed to issue token"))
		return
	}
	user.PasswordHash = ""
	writeJSON(w, http.StatusOK, authResponse{Token: token, User: user})
}
