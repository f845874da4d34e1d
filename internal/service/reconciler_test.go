package service

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/dmejias/account-service/internal/apperror"
	"github.com/dmejias/account-service/internal/identity"
	"github.com/dmejias/account-service/internal/model"
)

func newTestReconciler(profiles *fakeProfileRepo, provider *fakeProvider, grace time.Duration) *Reconciler {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewReconciler(profiles, provider, logger, time.Minute, grace)
}

// addProfile plants a profile row directly, bypassing the service flows, so
// tests can construct orphans and control CreatedAt.
func addProfile(profiles *fakeProfileRepo, externalID, email string, createdAt time.Time) {
	profiles.byExternalID[externalID] = &model.Profile{
		ExternalID:  externalID,
		Email:       email,
		DisplayName: "Test",
		CreatedAt:   createdAt,
		UpdatedAt:   createdAt,
	}
}

func TestSweep_RemovesOrphanedCredential(t *testing.T) {
	profiles := newFakeProfileRepo()
	provider := newFakeProvider()

	old := time.Now().Add(-2 * time.Hour)
	provider.addRecord("U1", "orphan@x.com", false) // no profile
	provider.addRecord("U2", "paired@x.com", true)
	addProfile(profiles, "U2", "paired@x.com", old)

	r := newTestReconciler(profiles, provider, time.Hour)
	if err := r.Sweep(context.Background()); err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}

	if _, err := provider.GetByID(context.Background(), "U1"); !errors.Is(err, identity.ErrNotFound) {
		t.Error("orphaned credential U1 should be removed")
	}
	if _, err := provider.GetByID(context.Background(), "U2"); err != nil {
		t.Errorf("paired credential U2 should survive: %v", err)
	}
	if _, err := profiles.GetByExternalID(context.Background(), "U2"); err != nil {
		t.Errorf("paired profile U2 should survive: %v", err)
	}
}

func TestSweep_GraceWindowSkipsFreshCredentials(t *testing.T) {
	profiles := newFakeProfileRepo()
	provider := newFakeProvider()

	// A registration in flight: credential exists, profile not yet written.
	provider.records["U1"] = &identity.Record{
		ID:        "U1",
		Email:     "inflight@x.com",
		CreatedAt: time.Now(),
	}

	r := newTestReconciler(profiles, provider, time.Hour)
	if err := r.Sweep(context.Background()); err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}

	if _, err := provider.GetByID(context.Background(), "U1"); err != nil {
		t.Error("a credential younger than the grace window must not be touched")
	}
}

func TestSweep_RemovesOrphanedProfile(t *testing.T) {
	profiles := newFakeProfileRepo()
	provider := newFakeProvider()

	old := time.Now().Add(-2 * time.Hour)
	addProfile(profiles, "U1", "gone@x.com", old) // credential missing
	provider.addRecord("U2", "paired@x.com", true)
	addProfile(profiles, "U2", "paired@x.com", old)

	r := newTestReconciler(profiles, provider, time.Hour)
	if err := r.Sweep(context.Background()); err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}

	if _, err := profiles.GetByExternalID(context.Background(), "U1"); !errors.Is(err, apperror.ErrNotFound) {
		t.Error("profile U1 with no credential should be removed")
	}
	if _, err := profiles.GetByExternalID(context.Background(), "U2"); err != nil {
		t.Errorf("paired profile U2 should survive: %v", err)
	}
}

func TestSweep_IsIdempotent(t *testing.T) {
	profiles := newFakeProfileRepo()
	provider := newFakeProvider()

	provider.addRecord("U1", "orphan@x.com", false)

	r := newTestReconciler(profiles, provider, time.Hour)
	if err := r.Sweep(context.Background()); err != nil {
		t.Fatalf("first Sweep() error = %v", err)
	}
	if err := r.Sweep(context.Background()); err != nil {
		t.Fatalf("second Sweep() error = %v", err)
	}
	if len(provider.records) != 0 {
		t.Errorf("records left = %d, want 0", len(provider.records))
	}
	if provider.deleteCalls != 1 {
		t.Errorf("deleteCalls = %d, want 1 — the second sweep had nothing to repair", provider.deleteCalls)
	}
}

func TestSweep_DeleteFailureDoesNotAbortPass(t *testing.T) {
	profiles := newFakeProfileRepo()
	provider := newFakeProvider()

	provider.addRecord("U1", "orphan@x.com", false)
	provider.deleteErr = errors.New("provider is down")

	r := newTestReconciler(profiles, provider, time.Hour)
	if err := r.Sweep(context.Background()); err != nil {
		t.Fatalf("Sweep() error = %v, a failed credential delete is not fatal", err)
	}

	// Still there; the next pass retries.
	if _, err := provider.GetByID(context.Background(), "U1"); err != nil {
		t.Errorf("credential should remain after a failed delete: %v", err)
	}
}

func TestReconcilerRun_StopsOnContextCancel(t *testing.T) {
	r := newTestReconciler(newFakeProfileRepo(), newFakeProvider(), time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not stop after context cancellation")
	}
}
