package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dmejias/account-service/internal/apperror"
	"github.com/dmejias/account-service/internal/identity"
	"github.com/dmejias/account-service/internal/repository"
)

// reconcileBatch is the page size for the local-profile sweep.
const reconcileBatch = 100

// Reconciler repairs the linkage between provider credentials and profile
// rows after a partial dual-write failure.
//
// Registration and deletion both order their writes so that an interrupted
// flow leaves a credential without a profile. The sweep therefore removes:
//
//   - provider records with no matching profile, once they are older than
//     the grace window (a younger record may belong to a registration still
//     in flight);
//   - profile rows whose provider record is gone. This direction shouldn't
//     occur given the write ordering, but it is repaired anyway so a
//     manually deleted credential doesn't leave a dead profile behind.
//
// The sweep is idempotent: running it twice repairs nothing twice.
type Reconciler struct {
	profiles repository.ProfileRepository
	provider identity.Provider
	logger   *slog.Logger
	interval time.Duration
	grace    time.Duration
}

// NewReconciler creates a Reconciler. Like the mail dispatcher it owns no
// goroutine; the server calls Run.
func NewReconciler(
	profiles repository.ProfileRepository,
	provider identity.Provider,
	logger *slog.Logger,
	interval time.Duration,
	grace time.Duration,
) *Reconciler {
	return &Reconciler{
		profiles: profiles,
		provider: provider,
		logger:   logger,
		interval: interval,
		grace:    grace,
	}
}

// Run sweeps on every tick until ctx is cancelled.
func (r *Reconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("reconciler started",
		slog.Duration("interval", r.interval),
		slog.Duration("grace", r.grace),
	)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("reconciler stopped")
			return
		case <-ticker.C:
			if err := r.Sweep(ctx); err != nil {
				r.logger.Error("reconcile sweep failed", slog.String("error", err.Error()))
			}
		}
	}
}

// Sweep runs one full reconciliation pass in both directions.
func (r *Reconciler) Sweep(ctx context.Context) error {
	removedCredentials, err := r.sweepProviderOrphans(ctx)
	if err != nil {
		return err
	}

	removedProfiles, err := r.sweepProfileOrphans(ctx)
	if err != nil {
		return err
	}

	if removedCredentials > 0 || removedProfiles > 0 {
		r.logger.Info("reconcile sweep repaired orphans",
			slog.Int("credentialsRemoved", removedCredentials),
			slog.Int("profilesRemoved", removedProfiles),
		)
	}
	return nil
}

// sweepProviderOrphans pages through provider records and deletes
// credentials that have no profile and are older than the grace window.
func (r *Reconciler) sweepProviderOrphans(ctx context.Context) (int, error) {
	removed := 0
	pageToken := ""

	for {
		records, next, err := r.provider.ListRecords(ctx, pageToken)
		if err != nil {
			return removed, fmt.Errorf("reconciler: listing provider records: %w", err)
		}

		for _, rec := range records {
			if time.Since(rec.CreatedAt) < r.grace {
				continue
			}

			exists, err := r.profiles.Exists(ctx, rec.ID)
			if err != nil {
				return removed, fmt.Errorf("reconciler: checking profile %s: %w", rec.ID, err)
			}
			if exists {
				continue
			}

			if err := r.provider.DeleteCredential(ctx, rec.ID); err != nil {
				// Not fatal for the sweep; the next pass tries again.
				r.logger.Warn("removing orphaned credential failed",
					slog.String("externalID", rec.ID),
					slog.String("error", err.Error()),
				)
				continue
			}

			removed++
			r.logger.Info("removed orphaned provider credential",
				slog.String("externalID", rec.ID),
				slog.String("email", rec.Email),
			)
		}

		if next == "" {
			return removed, nil
		}
		pageToken = next
	}
}

// sweepProfileOrphans pages through local profiles and deletes rows whose
// provider record no longer exists.
func (r *Reconciler) sweepProfileOrphans(ctx context.Context) (int, error) {
	removed := 0
	offset := 0

	for {
		profiles, err := r.profiles.List(ctx, repository.ListOptions{
			Limit:  reconcileBatch,
			Offset: offset,
		})
		if err != nil {
			return removed, fmt.Errorf("reconciler: listing profiles: %w", err)
		}

		pageRemoved := 0
		for _, p := range profiles {
			if time.Since(p.CreatedAt) < r.grace {
				continue
			}

			_, err := r.provider.GetByID(ctx, p.ExternalID)
			if err == nil {
				continue
			}
			if !errors.Is(err, identity.ErrNotFound) {
				r.logger.Warn("provider lookup failed during sweep",
					slog.String("externalID", p.ExternalID),
					slog.String("error", err.Error()),
				)
				continue
			}

			if err := r.profiles.Delete(ctx, p.ExternalID); err != nil {
				if errors.Is(err, apperror.ErrNotFound) {
					continue // already gone, racing with a delete request
				}
				return removed, fmt.Errorf("reconciler: deleting orphaned profile %s: %w", p.ExternalID, err)
			}

			removed++
			pageRemoved++
			r.logger.Info("removed orphaned profile",
				slog.String("externalID", p.ExternalID),
				slog.String("email", p.Email),
			)
		}

		if len(profiles) < reconcileBatch {
			return removed, nil
		}
		// Deletions shift later rows toward the front; only advance past
		// the rows we kept.
		offset += len(profiles) - pageRemoved
	}
}
