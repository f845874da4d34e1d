package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/dmejias/account-service/internal/apperror"
	"github.com/dmejias/account-service/internal/model"
	"github.com/dmejias/account-service/internal/repository"
)

// compile-time check that *DB implements repository.OutboxRepository
var _ repository.OutboxRepository = (*DB)(nil)

// Enqueue inserts a pending outbox message, due immediately.
// The generated ID is written back to msg.
func (db *DB) Enqueue(ctx context.Context, msg *model.OutboxMessage) error {
	now := time.Now().UTC()
	msg.ID = xid.New().String()
	msg.Status = model.OutboxPending
	msg.NextAttemptAt = now
	msg.CreatedAt = now
	msg.UpdatedAt = now

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO mail_outbox
		 (id, recipient, subject, body, status, attempts, last_error, next_attempt_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, 0, '', ?, ?, ?)`,
		msg.ID,
		msg.Recipient,
		msg.Subject,
		msg.Body,
		msg.Status,
		msg.NextAttemptAt,
		msg.CreatedAt,
		msg.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: enqueueing outbox message: %w", err)
	}
	return nil
}

// ListDue returns pending messages due for delivery, oldest first.
func (db *DB) ListDue(ctx context.Context, limit int) ([]model.OutboxMessage, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, recipient, subject, body, status, attempts, last_error,
		        next_attempt_at, created_at, updated_at
		 FROM mail_outbox
		 WHERE status = ? AND next_attempt_at <= ?
		 ORDER BY next_attempt_at
		 LIMIT ?`,
		model.OutboxPending, time.Now().UTC(), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing due outbox messages: %w", err)
	}
	defer rows.Close()

	msgs := []model.OutboxMessage{}
	for rows.Next() {
		var m model.OutboxMessage
		if err := rows.Scan(
			&m.ID,
			&m.Recipient,
			&m.Subject,
			&m.Body,
			&m.Status,
			&m.Attempts,
			&m.LastError,
			&m.NextAttemptAt,
			&m.CreatedAt,
			&m.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scanning outbox row: %w", err)
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating outbox messages: %w", err)
	}
	return msgs, nil
}

// MarkSent moves a message to the sent state.
func (db *DB) MarkSent(ctx context.Context, id string) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE mail_outbox SET status = ?, updated_at = ? WHERE id = ?`,
		model.OutboxSent, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: marking outbox message %s sent: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperror.NotFound("outbox message", id)
	}
	return nil
}

// MarkFailed records a delivery failure. Non-terminal failures stay pending
// and become due again at nextAttempt; terminal ones move to failed and are
// never picked up again.
func (db *DB) MarkFailed(ctx context.Context, id, lastError string, nextAttempt time.Time, terminal bool) error {
	status := model.OutboxPending
	if terminal {
		status = model.OutboxFailed
	}

	res, err := db.conn.ExecContext(ctx,
		`UPDATE mail_outbox
		 SET status = ?, attempts = attempts + 1, last_error = ?,
		     next_attempt_at = ?, updated_at = ?
		 WHERE id = ?`,
		status, lastError, nextAttempt.UTC(), time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: marking outbox message %s failed: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperror.NotFound("outbox message", id)
	}
	return nil
}
