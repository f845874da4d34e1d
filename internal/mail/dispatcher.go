package mail

import (
	"context"
	"log/slog"
	"time"

	"github.com/dmejias/account-service/internal/model"
	"github.com/dmejias/account-service/internal/repository"
)

// retryBaseDelay is the first retry interval; each further attempt doubles
// it (30s, 1m, 2m, ...).
const retryBaseDelay = 30 * time.Second

// Dispatcher drains the mail outbox in the background.
//
// Every tick it loads the due pending messages and attempts delivery.
// A failed attempt reschedules the message with exponential backoff until
// maxAttempts is reached, after which the message is marked failed and left
// in the table for inspection. Delivery failures never propagate anywhere;
// the outbox row is the record of what happened.
type Dispatcher struct {
	outbox      repository.OutboxRepository
	sender      Sender
	logger      *slog.Logger
	interval    time.Duration
	batchSize   int
	maxAttempts int
}

// NewDispatcher creates a Dispatcher. It does not start any goroutine;
// call Run from the owner of the background lifecycle.
func NewDispatcher(
	outbox repository.OutboxRepository,
	sender Sender,
	logger *slog.Logger,
	interval time.Duration,
	batchSize int,
	maxAttempts int,
) *Dispatcher {
	return &Dispatcher{
		outbox:      outbox,
		sender:      sender,
		logger:      logger,
		interval:    interval,
		batchSize:   batchSize,
		maxAttempts: maxAttempts,
	}
}

// Run processes the outbox on every tick until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	d.logger.Info("mail dispatcher started",
		slog.Duration("interval", d.interval),
		slog.Int("maxAttempts", d.maxAttempts),
	)

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("mail dispatcher stopped")
			return
		case <-ticker.C:
			d.ProcessDue(ctx)
		}
	}
}

// ProcessDue delivers one batch of due messages. Exported so callers (and
// tests) can drain the outbox without waiting for a tick.
func (d *Dispatcher) ProcessDue(ctx context.Context) {
	msgs, err := d.outbox.ListDue(ctx, d.batchSize)
	if err != nil {
		d.logger.Error("listing due outbox messages", slog.String("error", err.Error()))
		return
	}

	for _, msg := range msgs {
		d.deliver(ctx, msg)
	}
}

func (d *Dispatcher) deliver(ctx context.Context, msg model.OutboxMessage) {
	err := d.sender.Send(ctx, msg.Recipient, msg.Subject, msg.Body)
	if err == nil {
		if err := d.outbox.MarkSent(ctx, msg.ID); err != nil {
			d.logger.Error("marking outbox message sent",
				slog.String("id", msg.ID),
				slog.String("error", err.Error()),
			)
		}
		d.logger.Info("verification email sent",
			slog.String("id", msg.ID),
			slog.String("to", msg.Recipient),
		)
		return
	}

	attempts := msg.Attempts + 1
	terminal := attempts >= d.maxAttempts

	// Exponential backoff: base * 2^(attempts-1).
	delay := retryBaseDelay << (attempts - 1)
	nextAttempt := time.Now().Add(delay)

	if markErr := d.outbox.MarkFailed(ctx, msg.ID, err.Error(), nextAttempt, terminal); markErr != nil {
		d.logger.Error("marking outbox message failed",
			slog.String("id", msg.ID),
			slog.String("error", markErr.Error()),
		)
		return
	}

	if terminal {
		d.logger.Error("giving up on outbox message",
			slog.String("id", msg.ID),
			slog.String("to", msg.Recipient),
			slog.Int("attempts", attempts),
			slog.String("error", err.Error()),
		)
	} else {
		d.logger.Warn("mail delivery failed, will retry",
			slog.String("id", msg.ID),
			slog.Int("attempts", attempts),
			slog.Duration("retryIn", delay),
			slog.String("error", err.Error()),
		)
	}
}
