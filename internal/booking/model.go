package booking

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

const (
	EventBookingConfirmed = "CHATBOT_BOOKING_CONFIRMED"
	EventBookingNotified  = "CHATBOT_BOOKING_NOTIFIED"
)

var ErrBookingNotFound = errors.New("booking not found")

// Record is a confirmed chatbot booking.
type Record struct {
	ID           uuid.UUID
	SessionID    string
	ClientID     *uuid.UUID
	OwnerName    string
	PetName      string
	Date         time.Time
	Time         string // HH:MM
	Service      string
	ServiceLabel string
	ConfirmedAt  time.Time
	NotifiedAt   *time.Time
}

type EventLog struct {
	ID        int64
	EventType string
	BookingID *uuid.UUID
	Payload   []byte
	CreatedAt time.Time
}

// Repository contains all DB interactions needed by the sink and notifier.
type Repository interface {
	InsertBooking(ctx context.Context, rec Record) error

	// Notifier
	FindUnnotified(ctx context.Context, limit int) ([]Record, error)
	MarkNotified(ctx context.Context, id uuid.UUID, at time.Time) error

	// Event logging
	InsertEvent(ctx context.Context, ev EventLog) error
}
