package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schema holds every table the chatbot service reads or writes.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS clients (
		id         UUID PRIMARY KEY,
		name       TEXT NOT NULL,
		email      TEXT,
		phone      TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS pets (
		id         UUID PRIMARY KEY,
		client_id  UUID NOT NULL REFERENCES clients(id) ON DELETE CASCADE,
		name       TEXT NOT NULL,
		species    TEXT NOT NULL,
		breed      TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS pets_client_id_idx ON pets (client_id)`,
	`CREATE TABLE IF NOT EXISTS availability_slots (
		slot_date DATE NOT NULL,
		slot_time TIME NOT NULL,
		PRIMARY KEY (slot_date, slot_time)
	)`,
	`CREATE TABLE IF NOT EXISTS chatbot_bookings (
		id            UUID PRIMARY KEY,
		session_id    TEXT NOT NULL,
		client_id     UUID REFERENCES clients(id),
		owner_name    TEXT NOT NULL,
		pet_name      TEXT NOT NULL,
		slot_date     DATE NOT NULL,
		slot_time     TIME NOT NULL,
		service       TEXT NOT NULL,
		service_label TEXT NOT NULL,
		confirmed_at  TIMESTAMPTZ NOT NULL,
		notified_at   TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS chatbot_bookings_unnotified_idx
		ON chatbot_bookings (confirmed_at) WHERE notified_at IS NULL`,
	`CREATE TABLE IF NOT EXISTS event_logs (
		id         BIGSERIAL PRIMARY KEY,
		event_type TEXT NOT NULL,
		booking_id UUID,
		payload    JSONB,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
}

// EnsureSchema creates missing tables. It is safe to run on every start.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
