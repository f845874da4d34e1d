package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/dmejias/account-service/internal/apperror"
	"github.com/dmejias/account-service/internal/handler"
	"github.com/dmejias/account-service/internal/model"
	"github.com/dmejias/account-service/internal/service"
	"github.com/stretchr/testify/assert"
)

// MockAccountService implements handler.AccountAPI with canned results and
// captured arguments, so handler tests exercise only the HTTP translation.
type MockAccountService struct {
	CapturedEmail    string
	CapturedPassword string
	CapturedName     string
	CapturedID       string
	CapturedPhone    string
	CapturedToken    string

	RegisterMsg string
	LoginResult *service.LoginResult
	Verified    bool
	Profile     *model.Profile
	ReturnErr   error
}

func (m *MockAccountService) Register(_ context.Context, email, password, name string) (string, error) {
	m.CapturedEmail, m.CapturedPassword, m.CapturedName = email, password, name
	if m.ReturnErr != nil {
		return "", m.ReturnErr
	}
	return m.RegisterMsg, nil
}

func (m *MockAccountService) Login(_ context.Context, email, password string) (*service.LoginResult, error) {
	m.CapturedEmail, m.CapturedPassword = email, password
	if m.ReturnErr != nil {
		return nil, m.ReturnErr
	}
	return m.LoginResult, nil
}

func (m *MockAccountService) VerifyEmailToken(_ context.Context, token string) (bool, error) {
	m.CapturedToken = token
	if m.ReturnErr != nil {
		return false, m.ReturnErr
	}
	return m.Verified, nil
}

func (m *MockAccountService) GetProfile(_ context.Context, externalID string) (*model.Profile, error) {
	m.CapturedID = externalID
	if m.ReturnErr != nil {
		return nil, m.ReturnErr
	}
	return m.Profile, nil
}

func (m *MockAccountService) UpdatePhone(_ context.Context, externalID, phoneNumber string) error {
	m.CapturedID, m.CapturedPhone = externalID, phoneNumber
	return m.ReturnErr
}

func (m *MockAccountService) UpdateProfile(_ context.Context, externalID, name, phoneNumber string) error {
	m.CapturedID, m.CapturedName, m.CapturedPhone = externalID, name, phoneNumber
	return m.ReturnErr
}

func (m *MockAccountService) DeleteAccount(_ context.Context, externalID string) error {
	m.CapturedID = externalID
	return m.ReturnErr
}

func newTestHandler(mock *MockAccountService) *handler.AccountHandler {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	return handler.NewAccountHandler(mock, logger)
}

func TestAccountHandler_HandleRegister(t *testing.T) {
	t.Run("created", func(t *testing.T) {
		mock := &MockAccountService{RegisterMsg: "Registration successful"}
		h := newTestHandler(mock)

		req := httptest.NewRequest(http.MethodPost, "/api/register",
			bytes.NewBufferString(`{"email":"a@x.com","password":"p1","name":"Ann"}`))
		rr := httptest.NewRecorder()

		h.HandleRegister(rr, req)

		assert.Equal(t, http.StatusCreated, rr.Code)
		var res map[string]string
		assert.NoError(t, json.NewDecoder(rr.Body).Decode(&res))
		assert.Equal(t, "Registration successful", res["message"])
		assert.Equal(t, "a@x.com", mock.CapturedEmail)
		assert.Equal(t, "Ann", mock.CapturedName)
	})

	t.Run("duplicate email", func(t *testing.T) {
		mock := &MockAccountService{ReturnErr: apperror.DuplicateEmail("a@x.com")}
		h := newTestHandler(mock)

		req := httptest.NewRequest(http.MethodPost, "/api/register",
			bytes.NewBufferString(`{"email":"a@x.com","password":"p1","name":"Ann"}`))
		rr := httptest.NewRecorder()

		h.HandleRegister(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		var res handler.ErrorResponse
		assert.NoError(t, json.NewDecoder(rr.Body).Decode(&res))
		assert.Equal(t, "duplicate_email", res.Error)
		assert.Contains(t, res.Message, "a@x.com")
	})

	t.Run("invalid body", func(t *testing.T) {
		h := newTestHandler(&MockAccountService{})

		req := httptest.NewRequest(http.MethodPost, "/api/register",
			bytes.NewBufferString(`{"email":`))
		rr := httptest.NewRecorder()

		h.HandleRegister(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("provider failure is an opaque 500", func(t *testing.T) {
		mock := &MockAccountService{
			ReturnErr: apperror.RemoteProvider(errors.New("POST https://idp.internal/v1/accounts: connection refused")),
		}
		h := newTestHandler(mock)

		req := httptest.NewRequest(http.MethodPost, "/api/register",
			bytes.NewBufferString(`{"email":"a@x.com","password":"p1","name":"Ann"}`))
		rr := httptest.NewRecorder()

		h.HandleRegister(rr, req)

		assert.Equal(t, http.StatusInternalServerError, rr.Code)
		assert.NotContains(t, rr.Body.String(), "idp.internal")
	})
}

func TestAccountHandler_HandleLogin(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		mock := &MockAccountService{
			LoginResult: &service.LoginResult{UserID: "U1", EmailVerified: true, UserName: "Ann"},
		}
		h := newTestHandler(mock)

		req := httptest.NewRequest(http.MethodPost, "/api/login",
			bytes.NewBufferString(`{"email":"a@x.com","password":"p1"}`))
		rr := httptest.NewRecorder()

		h.HandleLogin(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		var res map[string]interface{}
		assert.NoError(t, json.NewDecoder(rr.Body).Decode(&res))
		assert.Equal(t, "U1", res["userId"])
		assert.Equal(t, true, res["emailVerified"])
		assert.Equal(t, "Ann", res["userName"])
	})

	// Unknown email, bad password, and unverified email all map to 400.
	t.Run("failure modes are all 400", func(t *testing.T) {
		failures := []error{
			apperror.NotFound("user", "a@x.com"),
			apperror.InvalidCredentials(),
			apperror.EmailNotVerified(),
		}
		for _, failure := range failures {
			mock := &MockAccountService{ReturnErr: failure}
			h := newTestHandler(mock)

			req := httptest.NewRequest(http.MethodPost, "/api/login",
				bytes.NewBufferString(`{"email":"a@x.com","password":"p1"}`))
			rr := httptest.NewRecorder()

			h.HandleLogin(rr, req)

			assert.Equal(t, http.StatusBadRequest, rr.Code, "error %v should map to 400", failure)
		}
	})
}

func TestAccountHandler_HandleVerifyEmail(t *testing.T) {
	t.Run("verified", func(t *testing.T) {
		mock := &MockAccountService{Verified: true}
		h := newTestHandler(mock)

		req := httptest.NewRequest(http.MethodGet, "/api/verify-email", nil)
		req.Header.Set("Authorization", "Bearer some-token")
		rr := httptest.NewRecorder()

		h.HandleVerifyEmail(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.JSONEq(t, `{"verified":true}`, rr.Body.String())
		assert.Equal(t, "some-token", mock.CapturedToken)
	})

	t.Run("missing token", func(t *testing.T) {
		h := newTestHandler(&MockAccountService{})

		req := httptest.NewRequest(http.MethodGet, "/api/verify-email", nil)
		rr := httptest.NewRecorder()

		h.HandleVerifyEmail(rr, req)

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.JSONEq(t, `{"verified":false}`, rr.Body.String())
	})

	t.Run("verification failure leaks nothing", func(t *testing.T) {
		mock := &MockAccountService{ReturnErr: errors.New("token signature mismatch for subject U1")}
		h := newTestHandler(mock)

		req := httptest.NewRequest(http.MethodGet, "/api/verify-email", nil)
		req.Header.Set("Authorization", "Bearer bad-token")
		rr := httptest.NewRecorder()

		h.HandleVerifyEmail(rr, req)

		assert.Equal(t, http.StatusInternalServerError, rr.Code)
		assert.JSONEq(t, `{"verified":false}`, rr.Body.String())
	})
}

func TestAccountHandler_HandleGetProfile(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		mock := &MockAccountService{
			Profile: &model.Profile{
				ExternalID:  "U1",
				Email:       "a@x.com",
				DisplayName: "Ann",
				PhoneNumber: "555-1",
			},
		}
		h := newTestHandler(mock)

		req := httptest.NewRequest(http.MethodGet, "/api/users/U1", nil)
		req.SetPathValue("externalID", "U1")
		rr := httptest.NewRecorder()

		h.HandleGetProfile(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		var res map[string]interface{}
		assert.NoError(t, json.NewDecoder(rr.Body).Decode(&res))
		assert.Equal(t, "Ann", res["name"])
		assert.Equal(t, "555-1", res["phoneNumber"])
		// The hash field is json:"-"; it must never appear in a response.
		assert.NotContains(t, rr.Body.String(), "password")
	})

	t.Run("not found", func(t *testing.T) {
		mock := &MockAccountService{ReturnErr: apperror.NotFound("user", "U404")}
		h := newTestHandler(mock)

		req := httptest.NewRequest(http.MethodGet, "/api/users/U404", nil)
		req.SetPathValue("externalID", "U404")
		rr := httptest.NewRecorder()

		h.HandleGetProfile(rr, req)

		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}

func TestAccountHandler_HandleUpdatePhone(t *testing.T) {
	mock := &MockAccountService{}
	h := newTestHandler(mock)

	req := httptest.NewRequest(http.MethodPut, "/api/users/U1/phone",
		bytes.NewBufferString(`{"phoneNumber":"555-1"}`))
	req.SetPathValue("externalID", "U1")
	rr := httptest.NewRecorder()

	h.HandleUpdatePhone(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "U1", mock.CapturedID)
	assert.Equal(t, "555-1", mock.CapturedPhone)
}

func TestAccountHandler_HandleUpdateProfile(t *testing.T) {
	mock := &MockAccountService{}
	h := newTestHandler(mock)

	req := httptest.NewRequest(http.MethodPut, "/api/users/U1",
		bytes.NewBufferString(`{"name":"Annie","phoneNumber":"555-2"}`))
	req.SetPathValue("externalID", "U1")
	rr := httptest.NewRecorder()

	h.HandleUpdateProfile(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "U1", mock.CapturedID)
	assert.Equal(t, "Annie", mock.CapturedName)
	assert.Equal(t, "555-2", mock.CapturedPhone)
}

func TestAccountHandler_HandleDeleteAccount(t *testing.T) {
	t.Run("deleted", func(t *testing.T) {
		mock := &MockAccountService{}
		h := newTestHandler(mock)

		req := httptest.NewRequest(http.MethodDelete, "/api/users/U1", nil)
		req.SetPathValue("externalID", "U1")
		rr := httptest.NewRecorder()

		h.HandleDeleteAccount(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		var res map[string]string
		assert.NoError(t, json.NewDecoder(rr.Body).Decode(&res))
		assert.Equal(t, "User deleted successfully", res["message"])
		assert.Equal(t, "U1", mock.CapturedID)
	})

	t.Run("not found", func(t *testing.T) {
		mock := &MockAccountService{ReturnErr: apperror.NotFound("user", "U404")}
		h := newTestHandler(mock)

		req := httptest.NewRequest(http.MethodDelete, "/api/users/U404", nil)
		req.SetPathValue("externalID", "U404")
		rr := httptest.NewRecorder()

		h.HandleDeleteAccount(rr, req)

		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}
