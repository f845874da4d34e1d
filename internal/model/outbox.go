package model

import "time"

// Outbox message states. A message starts pending, moves to sent on
// successful delivery, and to failed once the dispatcher gives up.
const (
	OutboxPending = "pending"
	OutboxSent    = "sent"
	OutboxFailed  = "failed"
)

// OutboxMessage is a durable record of an email we still owe someone.
//
// Registration enqueues one of these instead of sending mail inline; the
// dispatcher delivers it in the background with retries. That makes mail
// delivery observable (status, attempts, last error are all queryable)
// without putting SMTP latency or failures on the request path.
type OutboxMessage struct {
	ID            string    `db:"id"`
	Recipient     string    `db:"recipient"`
	Subject       string    `db:"subject"`
	Body          string    `db:"body"`
	Status        string    `db:"status"`
	Attempts      int       `db:"attempts"`
	LastError     string    `db:"last_error"`
	NextAttemptAt time.Time `db:"next_attempt_at"`
	CreatedAt     time.Time `db:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"`
}
