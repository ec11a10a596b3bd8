package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/keyhaven/keyhaven/internal/logging"
	"github.com/keyhaven/keyhaven/internal/server/models"
)

// AccountService is the slice of the user service the HTTP layer needs.
type AccountService interface {
	Register(ctx context.Context, email, password, displayName string) (*models.User, error)
	Login(ctx context.Context, email, password string) (string, *models.User, error)
	ChangePassword(ctx context.Context, userID, current, next string) error
	RequestOTP(ctx context.Context, email string) error
	VerifyOTP(ctx context.Context, email, code string) (string, *models.User, error)
}

type AuthHandler struct {
	accounts AccountService
	logger   logging.Logger
}

func NewAuthHandler(accounts AccountService, logger logging.Logger) *AuthHandler {
	return &AuthHandler{accounts: accounts, logger: logger.With("module", "auth_handler")}
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type userResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Register handles POST /auth/register.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	user, err := h.accounts.Register(r.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		writeError(w, err)
		return
	}

	h.logger.Info(r.Context(), "user registered", "user_id", user.ID)
	writeJSON(w, http.StatusCreated, userResponse{
		ID:        user.ID,
		Email:     user.Email,
		Name:      user.DisplayName,
		CreatedAt: user.CreatedAt,
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken string `json:"accessToken"`
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	token, user, err := h.accounts.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	h.logger.Info(r.Context(), "user logged in", "user_id", user.ID)
	writeJSON(w, http.StatusOK, tokenResponse{AccessToken: token})
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// ChangePassword handles PUT /auth/password.
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())

	var req changePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	if err := h.accounts.ChangePassword(r.Context(), userID, req.CurrentPassword, req.NewPassword); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusNoContent, nil)
}

type otpRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

// RequestOTP handles POST /auth/otp/request. The response is the same for
// known and unknown emails.
func (h *AuthHandler) RequestOTP(w http.ResponseWriter, r *http.Request) {
	var req otpRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	if err := h.accounts.RequestOTP(r.Context(), req.Email); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "sent"})
}

// VerifyOTP handles POST /auth/otp/verify.
func (h *AuthHandler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req otpRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	token, user, err := h.accounts.VerifyOTP(r.Context(), req.Email, req.Code)
	if err != nil {
		writeError(w, err)
		return
	}

	h.logger.Info(r.Context(), "otp login", "user_id", user.ID)
	writeJSON(w, http.StatusOK, tokenResponse{AccessToken: token})
}
