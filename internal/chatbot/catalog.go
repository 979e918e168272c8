package chatbot

import (
	"context"
	"time"
)

// Availability is the read-only bookable calendar the engine offers.
type Availability interface {
	// Dates returns bookable dates (YYYY-MM-DD) in order.
	Dates(ctx context.Context) ([]string, error)
	// Times returns time-of-day slots (HH:MM) for a date; empty when the date has none.
	Times(ctx context.Context, date string) ([]string, error)
}

// StaticAvailability is an in-memory availability table.
type StaticAvailability struct {
	dates []string
	times map[string][]string
}

func NewStaticAvailability(dates []string, times map[string][]string) *StaticAvailability {
	t := make(map[string][]string, len(times))
	for k, v := range times {
		t[k] = append([]string(nil), v...)
	}
	return &StaticAvailability{
		dates: append([]string(nil), dates...),
		times: t,
	}
}

// DefaultAvailability is the clinic's standard agenda.
func DefaultAvailability() *StaticAvailability {
	return NewStaticAvailability(
		[]string{"2025-11-15", "2025-11-16", "2025-11-18", "2025-11-19", "2025-11-20"},
		map[string][]string{
			"2025-11-15": {"09:00", "10:00", "14:00", "15:00"},
			"2025-11-16": {"08:00", "09:00", "11:00", "16:00"},
			"2025-11-18": {"09:00", "13:00", "14:00", "15:00"},
			"2025-11-19": {"08:00", "10:00", "11:00", "14:00"},
			"2025-11-20": {"09:00", "10:00", "15:00", "16:00"},
		},
	)
}

func (a *StaticAvailability) Dates(_ context.Context) ([]string, error) {
	return append([]string(nil), a.dates...), nil
}

func (a *StaticAvailability) Times(_ context.Context, date string) ([]string, error) {
	return append([]string{}, a.times[date]...), nil
}

// DefaultServices is the service catalog offered in the get_service step.
func DefaultServices() []Option {
	return []Option{
		{Label: "Consulta", Value: "consultation"},
		{Label: "Vacinação", Value: "vaccination"},
		{Label: "Cirurgia", Value: "surgery"},
		{Label: "Exame", Value: "exam"},
	}
}

// Booking is raised to the sink when a draft is confirmed.
type Booking struct {
	SessionID   string
	Draft       Draft
	ConfirmedAt time.Time
}

// BookingSink receives confirmed bookings. It is fire-and-forget: the engine
// neither waits on nor retries it.
type BookingSink interface {
	Booked(ctx context.Context, b Booking)
}

type BookingSinkFunc func(ctx context.Context, b Booking)

func (f BookingSinkFunc) Booked(ctx context.Context, b Booking) { f(ctx, b) }

type discardSink struct{}

func (discardSink) Booked(context.Context, Booking) {}
