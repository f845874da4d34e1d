package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/dmejias/account-service/internal/apperror"
	"github.com/dmejias/account-service/internal/model"
	"github.com/dmejias/account-service/internal/repository"
)

// compile-time check that *DB implements repository.ProfileRepository
var _ repository.ProfileRepository = (*DB)(nil)

const profileColumns = `external_id, email, password_hash, display_name, phone_number, created_at, updated_at`

// Create inserts a new profile row. The caller supplies ExternalID (the
// provider's identifier); timestamps are set here.
func (db *DB) Create(ctx context.Context, profile *model.Profile) error {
	now := time.Now().UTC()
	profile.CreatedAt = now
	profile.UpdatedAt = now

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO profiles (`+profileColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		profile.ExternalID,
		profile.Email,
		profile.PasswordHash,
		profile.DisplayName,
		profile.PhoneNumber,
		profile.CreatedAt,
		profile.UpdatedAt,
	)
	if err != nil {
		// The sqlite driver reports constraint violations only through the
		// error text; both UNIQUE columns surface as duplicate accounts.
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return apperror.DuplicateEmail(profile.Email)
		}
		return fmt.Errorf("sqlite: inserting profile %s: %w", profile.ExternalID, err)
	}
	return nil
}

// GetByEmail retrieves a profile by email address.
func (db *DB) GetByEmail(ctx context.Context, email string) (*model.Profile, error) {
	return db.getProfile(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE email = ?`, email)
}

// GetByExternalID retrieves a profile by the provider's identifier.
func (db *DB) GetByExternalID(ctx context.Context, externalID string) (*model.Profile, error) {
	return db.getProfile(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE external_id = ?`, externalID)
}

func (db *DB) getProfile(ctx context.Context, query, key string) (*model.Profile, error) {
	var p model.Profile
	err := db.conn.QueryRowContext(ctx, query, key).Scan(
		&p.ExternalID,
		&p.Email,
		&p.PasswordHash,
		&p.DisplayName,
		&p.PhoneNumber,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("user", key)
		}
		return nil, fmt.Errorf("sqlite: getting profile %s: %w", key, err)
	}
	return &p, nil
}

// Exists reports whether a profile row exists for the identifier.
func (db *DB) Exists(ctx context.Context, externalID string) (bool, error) {
	var one int
	err := db.conn.QueryRowContext(ctx,
		`SELECT 1 FROM profiles WHERE external_id = ?`, externalID,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("sqlite: checking profile %s: %w", externalID, err)
	}
	return true, nil
}

// List returns profiles ordered by creation time, paginated.
func (db *DB) List(ctx context.Context, opts repository.ListOptions) ([]model.Profile, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+profileColumns+` FROM profiles
		 ORDER BY created_at, external_id LIMIT ? OFFSET ?`,
		opts.Limit, opts.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing profiles: %w", err)
	}
	defer rows.Close()

	profiles := []model.Profile{}
	for rows.Next() {
		var p model.Profile
		if err := rows.Scan(
			&p.ExternalID,
			&p.Email,
			&p.PasswordHash,
			&p.DisplayName,
			&p.PhoneNumber,
			&p.CreatedAt,
			&p.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scanning profile row: %w", err)
		}
		profiles = append(profiles, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating profiles: %w", err)
	}
	return profiles, nil
}

// Update persists the mutable fields of an existing profile.
// Returns apperror.ErrNotFound if no row matches the external identifier.
func (db *DB) Update(ctx context.Context, profile *model.Profile) error {
	profile.UpdatedAt = time.Now().UTC()

	res, err := db.conn.ExecContext(ctx,
		`UPDATE profiles
		 SET email = ?, password_hash = ?, display_name = ?, phone_number = ?, updated_at = ?
		 WHERE external_id = ?`,
		profile.Email,
		profile.PasswordHash,
		profile.DisplayName,
		profile.PhoneNumber,
		profile.UpdatedAt,
		profile.ExternalID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating profile %s: %w", profile.ExternalID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: updating profile %s: %w", profile.ExternalID, err)
	}
	if n == 0 {
		return apperror.NotFound("user", profile.ExternalID)
	}
	return nil
}

// Delete removes a profile row.
// Returns apperror.ErrNotFound if no row matches the external identifier.
func (db *DB) Delete(ctx context.Context, externalID string) error {
	res, err := db.conn.ExecContext(ctx,
		`DELETE FROM profiles WHERE external_id = ?`, externalID)
	if err != nil {
		return fmt.Errorf("sqlite: deleting profile %s: %w", externalID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: deleting profile %s: %w", externalID, err)
	}
	if n == 0 {
		return apperror.NotFound("user", externalID)
	}
	return nil
}
