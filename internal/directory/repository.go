package directory

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/vet-chat-scheduler/internal/chatbot"
)

var ErrClientNotFound = errors.New("client not found")

// PgRepository resolves portal clients and their registered pets.
type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// GetIdentity loads a client with its pets ordered by name.
func (r *PgRepository) GetIdentity(ctx context.Context, clientID uuid.UUID) (*chatbot.Identity, error) {
	var id uuid.UUID
	var name string

	err := r.pool.QueryRow(ctx, `
		SELECT id, name
		FROM clients
		WHERE id = $1
	`, clientID).Scan(&id, &name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrClientNotFound
		}
		return nil, fmt.Errorf("load client: %w", err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, name, species
		FROM pets
		WHERE client_id = $1
		ORDER BY name, id
	`, clientID)
	if err != nil {
		return nil, fmt.Errorf("load pets: %w", err)
	}
	defer rows.Close()

	identity := &chatbot.Identity{ID: id.String(), Name: name, Pets: []chatbot.Pet{}}
	for rows.Next() {
		var petID uuid.UUID
		var p chatbot.Pet
		if err := rows.Scan(&petID, &p.Name, &p.Species); err != nil {
			return nil, fmt.Errorf("scan pet: %w", err)
		}
		p.ID = petID.String()
		identity.Pets = append(identity.Pets, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load pets: %w", err)
	}

	return identity, nil
}

// ListClientIDs returns up to limit client ids, used by load tooling.
func (r *PgRepository) ListClientIDs(ctx context.Context, limit int) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM clients ORDER BY created_at LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
