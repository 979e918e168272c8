package booking

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hackgods/vet-chat-scheduler/internal/chatbot"
)

// Sink persists confirmed chatbot bookings. Failures are logged and
// swallowed, the conversation never waits on it.
type Sink struct {
	repo    Repository
	logger  *zap.Logger
	timeout time.Duration
}

func NewSink(repo Repository, logger *zap.Logger) *Sink {
	return &Sink{
		repo:    repo,
		logger:  logger,
		timeout: 5 * time.Second,
	}
}

func (s *Sink) Booked(ctx context.Context, b chatbot.Booking) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	rec, err := recordFromBooking(b)
	if err != nil {
		s.logger.Error("discarding malformed booking",
			zap.String("session_id", b.SessionID),
			zap.Error(err),
		)
		return
	}

	if err := s.repo.InsertBooking(ctx, rec); err != nil {
		s.logger.Error("failed to store booking",
			zap.String("session_id", b.SessionID),
			zap.Error(err),
		)
		return
	}

	s.logEvent(ctx, rec.ID, EventBookingConfirmed, map[string]any{
		"session_id": rec.SessionID,
		"date":       b.Draft.Date,
		"time":       rec.Time,
		"service":    rec.Service,
	})

	s.logger.Info("chatbot booking stored",
		zap.String("booking_id", rec.ID.String()),
		zap.String("session_id", rec.SessionID),
	)
}

func recordFromBooking(b chatbot.Booking) (Record, error) {
	day, err := time.Parse(time.DateOnly, b.Draft.Date)
	if err != nil {
		return Record{}, err
	}

	rec := Record{
		ID:           uuid.New(),
		SessionID:    b.SessionID,
		OwnerName:    b.Draft.Owner,
		PetName:      b.Draft.Pet,
		Date:         day,
		Time:         b.Draft.Time,
		Service:      b.Draft.Service,
		ServiceLabel: b.Draft.ServiceLabel,
		ConfirmedAt:  b.ConfirmedAt,
	}
	if b.Draft.OwnerID != "" {
		if id, err := uuid.Parse(b.Draft.OwnerID); err == nil {
			rec.ClientID = &id
		}
	}
	return rec, nil
}

func (s *Sink) logEvent(ctx context.Context, bookingID uuid.UUID, eventType string, payload map[string]any) {
	logEvent(ctx, s.repo, s.logger, bookingID, eventType, payload)
}

func logEvent(ctx context.Context, repo Repository, logger *zap.Logger, bookingID uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		logger.Warn("failed to marshal event payload", zap.String("event_type", eventType), zap.Error(err))
		data = nil
	}

	id := bookingID
	ev := EventLog{
		EventType: eventType,
		BookingID: &id,
		Payload:   data,
		CreatedAt: time.Now(),
	}

	if err := repo.InsertEvent(ctx, ev); err != nil {
		logger.Warn("failed to insert event log",
			zap.String("event_type", eventType),
			zap.String("booking_id", bookingID.String()),
			zap.Error(err),
		)
	}
}
