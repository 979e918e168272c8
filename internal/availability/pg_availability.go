package availability

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgAvailability reads the bookable agenda from availability_slots.
type PgAvailability struct {
	pool *pgxpool.Pool
}

func NewPgAvailability(pool *pgxpool.Pool) *PgAvailability {
	return &PgAvailability{pool: pool}
}

func (a *PgAvailability) Dates(ctx context.Context) ([]string, error) {
	rows, err := a.pool.Query(ctx, `
		SELECT DISTINCT to_char(slot_date, 'YYYY-MM-DD') AS d
		FROM availability_slots
		ORDER BY d
	`)
	if err != nil {
		return nil, fmt.Errorf("query dates: %w", err)
	}
	defer rows.Close()

	var dates []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, err
		}
		dates = append(dates, d)
	}
	return dates, rows.Err()
}

// Times returns the slots of date; an unparseable date has none.
func (a *PgAvailability) Times(ctx context.Context, date string) ([]string, error) {
	day, err := time.Parse(time.DateOnly, date)
	if err != nil {
		return []string{}, nil
	}

	rows, err := a.pool.Query(ctx, `
		SELECT to_char(slot_time, 'HH24:MI')
		FROM availability_slots
		WHERE slot_date = $1
		ORDER BY slot_time
	`, day)
	if err != nil {
		return nil, fmt.Errorf("query times: %w", err)
	}
	defer rows.Close()

	times := []string{}
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		times = append(times, t)
	}
	return times, rows.Err()
}

// ReplaceSlots swaps the whole agenda for table in one transaction.
func (a *PgAvailability) ReplaceSlots(ctx context.Context, table map[string][]string) error {
	tx, err := a.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM availability_slots`); err != nil {
		return fmt.Errorf("clear slots: %w", err)
	}

	dates := make([]string, 0, len(table))
	for d := range table {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	for _, d := range dates {
		day, err := time.Parse(time.DateOnly, d)
		if err != nil {
			return fmt.Errorf("invalid date %q: %w", d, err)
		}
		for _, t := range table[d] {
			tod, err := ParseTimeOfDay(t)
			if err != nil {
				return fmt.Errorf("invalid time %q on %s: %w", t, d, err)
			}
			if _, err := tx.Exec(ctx, `
				INSERT INTO availability_slots (slot_date, slot_time)
				VALUES ($1, $2)
				ON CONFLICT DO NOTHING
			`, day, tod); err != nil {
				return fmt.Errorf("insert slot %s %s: %w", d, t, err)
			}
		}
	}

	return tx.Commit(ctx)
}

// ParseTimeOfDay converts HH:MM into a Postgres TIME value.
func ParseTimeOfDay(hhmm string) (pgtype.Time, error) {
	t, err := time.Parse("15:04", hhmm)
	if err != nil {
		return pgtype.Time{}, err
	}
	since := time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute
	return pgtype.Time{Microseconds: since.Microseconds(), Valid: true}, nil
}
