// Package identity defines the contract with the external identity provider.
//
// The provider is the system of record for credentials, email verification,
// and token issuance. This package holds the interface the account service
// programs against, the record/claims types it exchanges, and the sentinel
// errors implementations must return so callers can classify failures
// without knowing which provider is behind the interface.
//
// The REST implementation lives in the rest subpackage; tests use in-memory
// fakes.
package identity

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors returned by Provider implementations. Anything else coming
// out of a provider call is an unclassified remote failure.
var (
	// ErrEmailExists: the provider already has a credential for this email.
	ErrEmailExists = errors.New("identity: email already exists")

	// ErrRateLimited: the provider is throttling us. Registration treats
	// this as a soft success (see service.AccountService.Register).
	ErrRateLimited = errors.New("identity: rate limited")

	// ErrNotFound: no record for the given email or identifier.
	ErrNotFound = errors.New("identity: record not found")

	// ErrInvalidToken: the bearer token failed verification.
	ErrInvalidToken = errors.New("identity: invalid token")
)

// Record is the provider's view of a user.
type Record struct {
	ID            string    // the external identifier linking provider and profile
	Email         string
	EmailVerified bool
	Disabled      bool
	CreatedAt     time.Time
}

// Claims is the verified payload of a provider-issued bearer token.
type Claims struct {
	Subject string // the external identifier ("sub")
	Email   string
}

// Provider is everything the account coordinator needs from the identity
// provider. All methods are single synchronous calls; none retry.
type Provider interface {
	// CreateCredential registers email/password with the provider and
	// returns the new external identifier.
	CreateCredential(ctx context.Context, email, password string) (string, error)

	// GetByEmail resolves a record by email. Returns ErrNotFound if absent.
	GetByEmail(ctx context.Context, email string) (*Record, error)

	// GetByID resolves a record by external identifier.
	GetByID(ctx context.Context, id string) (*Record, error)

	// VerifyToken validates a bearer token and returns its claims.
	VerifyToken(ctx context.Context, token string) (*Claims, error)

	// GenerateVerificationLink asks the provider for an email-verification
	// URL for the given address.
	GenerateVerificationLink(ctx context.Context, email string) (string, error)

	// DeleteCredential removes the provider's record for the identifier.
	DeleteCredential(ctx context.Context, id string) error

	// ListRecords pages through all provider records. An empty pageToken
	// starts from the beginning; an empty returned token means the end.
	// Used by the reconciler to find orphaned credentials.
	ListRecords(ctx context.Context, pageToken string) ([]Record, string, error)
}
