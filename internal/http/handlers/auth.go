package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"cgigen/internal/domain"
	"cgigen/internal/middleware"
)

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	Token string       `json:"token"`
	User  userResponse `json:"user"`
}

type userResponse struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Credits int    `json:"credits"`
}

// Register creates an account with the signup credit grant and returns a token.
func (a *App) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Name == "" || req.Email == "" || req.Password == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "name, email and password are required")
		return
	}
	if len(req.Password) < 6 {
		a.error(w, http.StatusBadRequest, "bad_request", "password must be at least 6 characters")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to create account")
		return
	}

	user := &domain.User{
		ID:           uuid.NewString(),
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: string(hash),
		Credits:      domain.SignupCreditGrant,
		CreatedAt:    time.Now(),
	}
	if err := a.Users.Create(r.Context(), user); err != nil {
		if errors.Is(err, domain.ErrDuplicateEmail) {
			a.error(w, http.StatusConflict, "conflict", "email already registered")
			return
		}
		a.Logger.Error().Err(err).Msg("register: create user failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to create account")
		return
	}

	token, err := a.issueToken(user)
	if err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to issue token")
		return
	}
	a.json(w, http.StatusCreated, authResponse{Token: token, User: toUserResponse(user)})
}

// Login verifies credentials and returns a token.
func (a *App) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}

	user, err := a.Users.GetByEmail(r.Context(), strings.TrimSpace(strings.ToLower(req.Email)))
	if err != nil {
		a.error(w, http.StatusUnauthorized, "unauthorized", "invalid email or password")
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		a.error(w, http.StatusUnauthorized, "unauthorized", "invalid email or password")
		return
	}

	if err := a.Users.TouchLastLogin(r.Context(), user.ID); err != nil {
		a.Logger.Warn().Err(err).Str("user_id", user.ID).Msg("login: touch last login failed")
	}

	token, err := a.issueToken(user)
	if err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to issue token")
		return
	}
	a.json(w, http.StatusOK, authResponse{Token: token, User: toUserResponse(user)})
}

// Profile returns the authenticated account, including its live balance.
func (a *App) Profile(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	user, err := a.Users.GetByID(r.Context(), userID)
	if err != nil {
		a.error(w, http.StatusNotFound, "not_found", "account not found")
		return
	}
	a.json(w, http.StatusOK, map[string]any{"user": toUserResponse(user)})
}

func (a *App) issueToken(user *domain.User) (string, error) {
	return middleware.SignJWT(a.JWTSecret, middleware.TokenClaims{
		Sub:    user.ID,
		Name:   user.Name,
		Exp:    time.Now().Add(a.TokenTTL).Unix(),
		Issuer: "cgigen",
	})
}

func toUserResponse(u *domain.User) userResponse {
	return userResponse{ID: u.ID, Name: u.Name, Email: u.Email, Credits: u.Credits}
}
