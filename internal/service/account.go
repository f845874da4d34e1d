// Package service contains the business logic layer of the application.
//
// AccountService is the account coordinator. It sits between the HTTP
// handlers and the two external systems:
//
//	AccountHandler (HTTP) → AccountService → identity.Provider (credentials)
//	                                       → repository.ProfileRepository (profiles)
//	                                       → repository.OutboxRepository (mail)
//
// The coordinator's contract: an identity-provider credential and a local
// profile exist as a matched pair keyed by the provider's external
// identifier. Registration and deletion each write to both systems without
// a transaction, so a partial failure can leave an orphan; the ordering in
// both flows is chosen so that orphans only accumulate on the provider side,
// and the Reconciler (reconciler.go) repairs them.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dmejias/account-service/internal/apperror"
	"github.com/dmejias/account-service/internal/auth"
	"github.com/dmejias/account-service/internal/identity"
	"github.com/dmejias/account-service/internal/model"
	"github.com/dmejias/account-service/internal/repository"
)

// User-facing messages. The rate-limited variant matches the success copy
// on purpose: when the provider throttles us mid-registration the caller is
// told a verification email is on its way, whether or not it is (provider
// quirk preserved from the original behavior).
const (
	msgRegistered       = "Registration successful: a verification email has been sent. Please check your inbox and confirm your account."
	msgVerificationSent = "Verification email sent. Please check your inbox."

	verificationSubject = "Verify your account"
)

// AccountService orchestrates registration, login, profile access, and
// deletion across the identity provider and the profile store. All
// dependencies are injected; there are no package-level clients.
type AccountService struct {
	profiles  repository.ProfileRepository
	outbox    repository.OutboxRepository
	provider  identity.Provider
	passwords *auth.PasswordService
	logger    *slog.Logger
}

// NewAccountService creates an AccountService with all required dependencies.
func NewAccountService(
	profiles repository.ProfileRepository,
	outbox repository.OutboxRepository,
	provider identity.Provider,
	passwords *auth.PasswordService,
	logger *slog.Logger,
) *AccountService {
	return &AccountService{
		profiles:  profiles,
		outbox:    outbox,
		provider:  provider,
		passwords: passwords,
		logger:    logger,
	}
}

// LoginResult is returned by a successful Login.
type LoginResult struct {
	UserID        string
	EmailVerified bool
	UserName      string
}

// Register creates an account: a credential at the identity provider plus a
// linked profile row, then queues the verification email.
//
// Order of operations and their failure modes:
//
//  1. Local duplicate check. A known email fails fast without contacting
//     the provider.
//  2. Provider credential creation. EMAIL_EXISTS maps to the same duplicate
//     error; rate limiting returns a soft success (no profile is written —
//     there is no identifier to link it to).
//  3. Profile persistence, keyed by the provider's new identifier. If this
//     fails the credential from step 2 is orphaned; we log the identifier
//     and leave repair to the reconciler.
//  4. Verification-link fetch. Rate limiting here is also a soft success:
//     the account exists, only the email is delayed.
//  5. Outbox enqueue. Failure is logged and never fails the registration.
func (s *AccountService) Register(ctx context.Context, email, password, name string) (string, error) {
	email = strings.TrimSpace(email)
	name = strings.TrimSpace(name)
	if email == "" {
		return "", apperror.ValidationFailed("email", "email is required")
	}
	if password == "" {
		return "", apperror.ValidationFailed("password", "password is required")
	}
	if name == "" {
		return "", apperror.ValidationFailed("name", "name is required")
	}

	// Step 1: duplicate check against the profile store.
	_, err := s.profiles.GetByEmail(ctx, email)
	if err == nil {
		return "", apperror.DuplicateEmail(email)
	}
	if !errors.Is(err, apperror.ErrNotFound) {
		return "", fmt.Errorf("service/account: checking for existing profile: %w", err)
	}

	// Step 2: create the credential at the provider.
	externalID, err := s.provider.CreateCredential(ctx, email, password)
	if err != nil {
		switch {
		case errors.Is(err, identity.ErrEmailExists):
			return "", apperror.DuplicateEmail(email)
		case errors.Is(err, identity.ErrRateLimited):
			s.logger.Warn("provider rate-limited credential creation, reporting soft success",
				slog.String("email", email),
			)
			return msgVerificationSent, nil
		default:
			return "", apperror.RemoteProvider(fmt.Errorf("creating credential: %w", err))
		}
	}

	// Step 3: persist the linked profile. Hash the credential copy — the
	// plaintext never touches the store.
	hash, err := s.passwords.Hash(password)
	if err != nil {
		return "", fmt.Errorf("service/account: hashing password: %w", err)
	}

	profile := &model.Profile{
		ExternalID:   externalID,
		Email:        email,
		PasswordHash: hash,
		DisplayName:  name,
	}
	if err := s.profiles.Create(ctx, profile); err != nil {
		// The credential exists but the profile doesn't: a provider-side
		// orphan. The reconciler removes it once past the grace window.
		s.logger.Error("profile persistence failed after credential creation, provider record orphaned",
			slog.String("externalID", externalID),
			slog.String("email", email),
			slog.String("error", err.Error()),
		)
		return "", fmt.Errorf("service/account: persisting profile for %s: %w", externalID, err)
	}

	s.logger.Info("account registered",
		slog.String("externalID", externalID),
		slog.String("email", email),
	)

	// Step 4: fetch the verification link.
	link, err := s.provider.GenerateVerificationLink(ctx, email)
	if err != nil {
		if errors.Is(err, identity.ErrRateLimited) {
			s.logger.Warn("provider rate-limited verification link, reporting soft success",
				slog.String("email", email),
			)
			return msgVerificationSent, nil
		}
		return "", apperror.RemoteProvider(fmt.Errorf("generating verification link: %w", err))
	}

	// Step 5: queue the verification email. The dispatcher owns delivery.
	msg := &model.OutboxMessage{
		Recipient: email,
		Subject:   verificationSubject,
		Body:      "Click the following link to verify your account: " + link,
	}
	if err := s.outbox.Enqueue(ctx, msg); err != nil {
		s.logger.Error("enqueueing verification email",
			slog.String("email", email),
			slog.String("error", err.Error()),
		)
	}

	return msgRegistered, nil
}

// Login verifies credentials and returns the session-relevant facts.
//
// Check order: provider record, profile record, password, verified flag.
// The password is verified against the local bcrypt copy — a mismatch is
// InvalidCredentials even if the provider would accept it. An unverified
// email only surfaces once the password is right.
func (s *AccountService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, apperror.ValidationFailed("credentials", "email and password are required")
	}

	record, err := s.provider.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			return nil, apperror.NotFound("user", email)
		}
		return nil, apperror.RemoteProvider(fmt.Errorf("resolving credential: %w", err))
	}

	profile, err := s.profiles.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	if err := s.passwords.Verify(profile.PasswordHash, password); err != nil {
		s.logger.Info("login rejected: bad password", slog.String("email", email))
		return nil, apperror.InvalidCredentials()
	}

	if !record.EmailVerified {
		return nil, apperror.EmailNotVerified()
	}

	s.logger.Info("login succeeded",
		slog.String("externalID", record.ID),
		slog.String("email", email),
	)

	return &LoginResult{
		UserID:        record.ID,
		EmailVerified: record.EmailVerified,
		UserName:      profile.DisplayName,
	}, nil
}

// VerifyEmailToken resolves a provider-issued bearer token to its account's
// current verified flag. Returns an error on any decode or lookup failure;
// the handler collapses all failures to {verified:false} without detail.
func (s *AccountService) VerifyEmailToken(ctx context.Context, token string) (bool, error) {
	claims, err := s.provider.VerifyToken(ctx, token)
	if err != nil {
		return false, fmt.Errorf("service/account: verifying token: %w", err)
	}

	record, err := s.provider.GetByID(ctx, claims.Subject)
	if err != nil {
		return false, fmt.Errorf("service/account: resolving token subject %s: %w", claims.Subject, err)
	}

	return record.EmailVerified, nil
}

// GetProfile returns the profile for the given external identifier.
func (s *AccountService) GetProfile(ctx context.Context, externalID string) (*model.Profile, error) {
	externalID = strings.TrimSpace(externalID)
	if externalID == "" {
		return nil, apperror.ValidationFailed("externalId", "user ID is required")
	}
	return s.profiles.GetByExternalID(ctx, externalID)
}

// UpdatePhone sets the profile's phone number. Load-mutate-persist with no
// concurrency check; concurrent updates race and the last write wins.
func (s *AccountService) UpdatePhone(ctx context.Context, externalID, phoneNumber string) error {
	profile, err := s.GetProfile(ctx, externalID)
	if err != nil {
		return err
	}

	profile.PhoneNumber = phoneNumber
	if err := s.profiles.Update(ctx, profile); err != nil {
		return fmt.Errorf("service/account: updating phone for %s: %w", externalID, err)
	}

	s.logger.Info("phone number updated", slog.String("externalID", externalID))
	return nil
}

// UpdateProfile sets the display name and phone number together. Both
// fields are overwritten with the supplied values.
func (s *AccountService) UpdateProfile(ctx context.Context, externalID, name, phoneNumber string) error {
	profile, err := s.GetProfile(ctx, externalID)
	if err != nil {
		return err
	}

	profile.DisplayName = name
	profile.PhoneNumber = phoneNumber
	if err := s.profiles.Update(ctx, profile); err != nil {
		return fmt.Errorf("service/account: updating profile for %s: %w", externalID, err)
	}

	s.logger.Info("profile updated", slog.String("externalID", externalID))
	return nil
}

// DeleteAccount removes the profile row, then the provider credential.
//
// The profile goes first: if the identifier is unknown locally we fail
// NotFound without contacting the provider, and if the provider delete then
// fails the orphan is a provider-side credential — the same direction
// registration produces, so one reconciler rule covers both. A provider
// that already has no record for the identifier counts as success; the pair
// is gone either way.
func (s *AccountService) DeleteAccount(ctx context.Context, externalID string) error {
	externalID = strings.TrimSpace(externalID)
	if externalID == "" {
		return apperror.ValidationFailed("externalId", "user ID is required")
	}

	if err := s.profiles.Delete(ctx, externalID); err != nil {
		return err
	}

	if err := s.provider.DeleteCredential(ctx, externalID); err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			s.logger.Info("provider credential already absent during account deletion",
				slog.String("externalID", externalID),
			)
			return nil
		}
		// Profile is gone, credential is not. Logged for the reconciler.
		s.logger.Error("provider credential deletion failed, record orphaned",
			slog.String("externalID", externalID),
			slog.String("error", err.Error()),
		)
		return apperror.RemoteProvider(fmt.Errorf("deleting credential %s: %w", externalID, err))
	}

	s.logger.Info("account deleted", slog.String("externalID", externalID))
	return nil
}
