package booking

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/vet-chat-scheduler/internal/availability"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

func scanRecord(row pgx.Row) (*Record, error) {
	var rec Record
	err := row.Scan(
		&rec.ID,
		&rec.SessionID,
		&rec.ClientID,
		&rec.OwnerName,
		&rec.PetName,
		&rec.Date,
		&rec.Time,
		&rec.Service,
		&rec.ServiceLabel,
		&rec.ConfirmedAt,
		&rec.NotifiedAt,
	)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *PgRepository) InsertBooking(ctx context.Context, rec Record) error {
	tod, err := availability.ParseTimeOfDay(rec.Time)
	if err != nil {
		return fmt.Errorf("invalid booking time %q: %w", rec.Time, err)
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO chatbot_bookings
			(id, session_id, client_id, owner_name, pet_name, slot_date, slot_time, service, service_label, confirmed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, rec.ID, rec.SessionID, rec.ClientID, rec.OwnerName, rec.PetName, rec.Date, tod, rec.Service, rec.ServiceLabel, rec.ConfirmedAt)
	if err != nil {
		return fmt.Errorf("insert booking: %w", err)
	}
	return nil
}

func (r *PgRepository) FindUnnotified(ctx context.Context, limit int) ([]Record, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, session_id, client_id, owner_name, pet_name, slot_date,
		       to_char(slot_time, 'HH24:MI'), service, service_label, confirmed_at, notified_at
		FROM chatbot_bookings
		WHERE notified_at IS NULL
		ORDER BY confirmed_at
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *rec)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) MarkNotified(ctx context.Context, id uuid.UUID, at time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE chatbot_bookings
		SET notified_at = $2
		WHERE id = $1
		  AND notified_at IS NULL
	`, id, at)
	if err != nil {
		return fmt.Errorf("mark booking notified: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrBookingNotFound
	}
	return nil
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO event_logs (event_type, booking_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.BookingID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}

	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
