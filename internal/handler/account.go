// Package handler exposes the account API over HTTP. Handlers decode the
// request, call into the service layer, and translate domain errors to
// status codes; they contain no business logic of their own.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dmejias/account-service/internal/apperror"
	"github.com/dmejias/account-service/internal/model"
	"github.com/dmejias/account-service/internal/service"
)

// AccountAPI is the service surface the handler needs. An interface here
// lets handler tests run against the real service over fakes, or a stub.
type AccountAPI interface {
	Register(ctx context.Context, email, password, name string) (string, error)
	Login(ctx context.Context, email, password string) (*service.LoginResult, error)
	VerifyEmailToken(ctx context.Context, token string) (bool, error)
	GetProfile(ctx context.Context, externalID string) (*model.Profile, error)
	UpdatePhone(ctx context.Context, externalID, phoneNumber string) error
	UpdateProfile(ctx context.Context, externalID, name, phoneNumber string) error
	DeleteAccount(ctx context.Context, externalID string) error
}

// AccountHandler serves the /api account endpoints.
type AccountHandler struct {
	accounts AccountAPI
	logger   *slog.Logger
}

// NewAccountHandler creates an AccountHandler.
func NewAccountHandler(accounts AccountAPI, logger *slog.Logger) *AccountHandler {
	return &AccountHandler{accounts: accounts, logger: logger}
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type updatePhoneRequest struct {
	PhoneNumber string `json:"phoneNumber"`
}

type updateProfileRequest struct {
	Name        string `json:"name"`
	PhoneNumber string `json:"phoneNumber"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type loginResponse struct {
	Message       string `json:"message"`
	UserID        string `json:"userId"`
	EmailVerified bool   `json:"emailVerified"`
	UserName      string `json:"userName"`
}

type verifiedResponse struct {
	Verified bool `json:"verified"`
}

// HandleRegister creates a new account.
//
// HTTP: POST /api/register
// Body: {"email", "password", "name"}
func (h *AccountHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid JSON body"))
		return
	}

	msg, err := h.accounts.Register(r.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		h.logError(r, "register", err)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, messageResponse{Message: msg})
}

// HandleLogin checks credentials and returns the session facts.
//
// HTTP: POST /api/login
// Body: {"email", "password"}
//
// All three login failure modes — unknown account, wrong password,
// unverified email — come back as 400. Returning 404 for an unknown email
// would let callers probe which addresses have accounts.
func (h *AccountHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid JSON body"))
		return
	}

	result, err := h.accounts.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.logError(r, "login", err)
		if errors.Is(err, apperror.ErrNotFound) {
			var appErr *apperror.AppError
			msg := "login failed"
			if errors.As(err, &appErr) {
				msg = appErr.Message
			}
			writeJSON(w, http.StatusBadRequest, ErrorResponse{
				Error:   "not_found",
				Message: msg,
			})
			return
		}
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		Message:       "Login successful",
		UserID:        result.UserID,
		EmailVerified: result.EmailVerified,
		UserName:      result.UserName,
	})
}

// HandleVerifyEmail reports whether the account behind a bearer token has a
// verified email.
//
// HTTP: GET /api/verify-email
// Header: Authorization: Bearer <token>
//
// This endpoint only ever answers {"verified": bool}. A missing token is
// 401, any verification failure is 500, and neither carries detail — the
// caller learns the flag or nothing.
func (h *AccountHandler) HandleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		writeJSON(w, http.StatusUnauthorized, verifiedResponse{Verified: false})
		return
	}

	verified, err := h.accounts.VerifyEmailToken(r.Context(), token)
	if err != nil {
		h.logError(r, "verify-email", err)
		writeJSON(w, http.StatusInternalServerError, verifiedResponse{Verified: false})
		return
	}

	writeJSON(w, http.StatusOK, verifiedResponse{Verified: verified})
}

// HandleGetProfile returns the profile for a user ID.
//
// HTTP: GET /api/users/{externalID}
func (h *AccountHandler) HandleGetProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := h.accounts.GetProfile(r.Context(), r.PathValue("externalID"))
	if err != nil {
		h.logError(r, "get-profile", err)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, profile)
}

// HandleUpdatePhone sets the profile's phone number.
//
// HTTP: PUT /api/users/{externalID}/phone
// Body: {"phoneNumber"}
func (h *AccountHandler) HandleUpdatePhone(w http.ResponseWriter, r *http.Request) {
	var req updatePhoneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid JSON body"))
		return
	}

	if err := h.accounts.UpdatePhone(r.Context(), r.PathValue("externalID"), req.PhoneNumber); err != nil {
		h.logError(r, "update-phone", err)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Message: "Phone number updated successfully"})
}

// HandleUpdateProfile sets the display name and phone number.
//
// HTTP: PUT /api/users/{externalID}
// Body: {"name", "phoneNumber"}
func (h *AccountHandler) HandleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req updateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid JSON body"))
		return
	}

	if err := h.accounts.UpdateProfile(r.Context(), r.PathValue("externalID"), req.Name, req.PhoneNumber); err != nil {
		h.logError(r, "update-profile", err)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Message: "Profile updated successfully"})
}

// HandleDeleteAccount removes the profile and the provider credential.
//
// HTTP: DELETE /api/users/{externalID}
func (h *AccountHandler) HandleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	if err := h.accounts.DeleteAccount(r.Context(), r.PathValue("externalID")); err != nil {
		h.logError(r, "delete-account", err)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Message: "User deleted successfully"})
}

// bearerToken extracts the token from an "Authorization: Bearer x" header,
// or returns "".
func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(auth) <= len(prefix) || !strings.EqualFold(auth[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(auth[len(prefix):])
}

func (h *AccountHandler) logError(r *http.Request, op string, err error) {
	h.logger.Warn("request failed",
		slog.String("op", op),
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()),
	)
}
