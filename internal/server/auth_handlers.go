package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/mkats/lessonledger/internal/auth"
	"github.com/mkats/lessonledger/internal/models"
)

type registerRequest struct {
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Password    string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userResponse struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	CreatedAt   int64  `json:"created_at"`
}

type authResponse struct {
	User  userResponse `json:"user"`
	Token string       `json:"token"`
}

func toUserResponse(u *models.User) userResponse {
	return userResponse{
		ID:          u.ID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		CreatedAt:   u.CreatedAt,
	}
}

// handleAuthRegister creates a new user account and returns a token.
func (s *Server) handleAuthRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	if req.Email == "" || req.DisplayName == "" {
		badRequest(w, "email and display_name are required")
		return
	}

	user, err := s.authenticator.Register(r.Context(), req.Email, req.DisplayName, req.Password)
	if err != nil {
		slog.Error("registration failed", "email", req.Email, "error", err)
		switch err {
		case auth.ErrEmailExists:
			writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		case auth.ErrWeakPassword:
			badRequest(w, err.Error())
		default:
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "registration failed"})
		}
		return
	}

	token, err := s.jwtManager.Generate(user)
	if err != nil {
		slog.Error("failed to generate token", "user_id", user.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "token generation failed"})
		return
	}

	slog.Info("user registered", "user_id", user.ID, "email", user.Email)
	writeJSON(w, http.StatusCreated, authResponse{User: toUserResponse(user), Token: token})
}

// handleAuthLogin authenticates a user and returns a token.
func (s *Server) handleAuthLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" {
		badRequest(w, "email and password are required")
		return
	}

	user, err := s.authenticator.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		slog.Warn("login failed", "email", req.Email, "error", err)
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": auth.ErrInvalidCredentials.Error()})
		return
	}

	token, err := s.jwtManager.Generate(user)
	if err != nil {
		slog.Error("failed to generate token", "user_id", user.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "token generation failed"})
		return
	}

	slog.Info("user logged in", "user_id", user.ID, "email", user.Email)
	writeJSON(w, http.StatusOK, authResponse{User: toUserResponse(user), Token: token})
}
