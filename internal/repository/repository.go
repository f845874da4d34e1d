// Package repository defines the storage interfaces the service layer
// programs against. The sqlite subpackage provides the implementation;
// tests use in-memory fakes.
package repository

import (
	"context"
	"time"

	"github.com/dmejias/account-service/internal/model"
)

// ListOptions paginate List calls.
type ListOptions struct {
	Limit  int
	Offset int
}

// ProfileRepository stores the local profile records.
//
// external_id and email are each unique; implementations must report a
// uniqueness violation on Create as apperror.ErrDuplicateEmail and a missing
// record on the lookup/mutation methods as apperror.ErrNotFound.
type ProfileRepository interface {
	Create(ctx context.Context, profile *model.Profile) error
	GetByEmail(ctx context.Context, email string) (*model.Profile, error)
	GetByExternalID(ctx context.Context, externalID string) (*model.Profile, error)
	// Exists is a cheap membership check used by the reconciler.
	Exists(ctx context.Context, externalID string) (bool, error)
	List(ctx context.Context, opts ListOptions) ([]model.Profile, error)
	// Update persists all mutable fields. Last write wins; there is no
	// optimistic-concurrency check.
	Update(ctx context.Context, profile *model.Profile) error
	Delete(ctx context.Context, externalID string) error
}

// OutboxRepository stores pending outbound emails for the mail dispatcher.
type OutboxRepository interface {
	Enqueue(ctx context.Context, msg *model.OutboxMessage) error
	// ListDue returns pending messages whose next attempt time has passed,
	// oldest first, up to limit.
	ListDue(ctx context.Context, limit int) ([]model.OutboxMessage, error)
	MarkSent(ctx context.Context, id string) error
	// MarkFailed records a delivery failure. When terminal is true the
	// message moves to the failed state and is never retried; otherwise it
	// stays pending with nextAttempt as its earliest retry time.
	MarkFailed(ctx context.Context, id, lastError string, nextAttempt time.Time, terminal bool) error
}
