package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Mailer delivers the confirmation promised to the tutor at the end of the chat.
type Mailer interface {
	SendConfirmation(ctx context.Context, rec Record) error
}

// LogMailer writes confirmations to the log instead of sending e-mail.
type LogMailer struct {
	logger *zap.Logger
}

func NewLogMailer(logger *zap.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

func (m *LogMailer) SendConfirmation(_ context.Context, rec Record) error {
	m.logger.Info("booking confirmation",
		zap.String("booking_id", rec.ID.String()),
		zap.String("owner", rec.OwnerName),
		zap.String("pet", rec.PetName),
		zap.String("date", rec.Date.Format(time.DateOnly)),
		zap.String("time", rec.Time),
		zap.String("service", rec.ServiceLabel),
	)
	return nil
}

type Notifier struct {
	repo   Repository
	mailer Mailer
	logger *zap.Logger
	batch  int
	now    func() time.Time
}

func NewNotifier(repo Repository, mailer Mailer, logger *zap.Logger) *Notifier {
	return &Notifier{
		repo:   repo,
		mailer: mailer,
		logger: logger,
		batch:  100,
		now:    time.Now,
	}
}

// NotifyPending is intended to be called by the worker periodically. It
// returns how many bookings were notified; a failed send is retried next run.
func (n *Notifier) NotifyPending(ctx context.Context) (int, error) {
	pending, err := n.repo.FindUnnotified(ctx, n.batch)
	if err != nil {
		return 0, fmt.Errorf("find unnotified bookings: %w", err)
	}

	sent := 0
	for _, rec := range pending {
		if err := n.mailer.SendConfirmation(ctx, rec); err != nil {
			n.logger.Warn("failed to send booking confirmation",
				zap.String("booking_id", rec.ID.String()),
				zap.Error(err),
			)
			continue
		}

		err := n.repo.MarkNotified(ctx, rec.ID, n.now())
		if err != nil && !errors.Is(err, ErrBookingNotFound) {
			n.logger.Warn("failed to mark booking notified",
				zap.String("booking_id", rec.ID.String()),
				zap.Error(err),
			)
			continue
		}
		if errors.Is(err, ErrBookingNotFound) {
			// another worker got there first
			continue
		}

		logEvent(ctx, n.repo, n.logger, rec.ID, EventBookingNotified, map[string]any{})
		sent++
	}

	return sent, nil
}
