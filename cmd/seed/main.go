package main

import (
	"context"
	"log"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/hackgods/vet-chat-scheduler/internal/availability"
	"github.com/hackgods/vet-chat-scheduler/internal/chatbot"
	"github.com/hackgods/vet-chat-scheduler/internal/config"
	"github.com/hackgods/vet-chat-scheduler/internal/db"
	"github.com/hackgods/vet-chat-scheduler/internal/logging"
)

var species = []string{"Cachorro", "Gato", "Pássaro", "Coelho", "Hamster"}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	logger, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer func() { _ = logger.Sync() }()
	logger.Info("seed starting")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN, db.PoolOptions{MaxConns: 4})
	if err != nil {
		logger.Fatal("connect postgres", zap.Error(err))
	}
	defer pool.Close()

	if err := db.EnsureSchema(ctx, pool); err != nil {
		logger.Fatal("ensure schema", zap.Error(err))
	}

	if err := seedAvailability(ctx, pool); err != nil {
		logger.Fatal("seed availability", zap.Error(err))
	}
	logger.Info("availability seeded")

	if err := seedClients(ctx, pool, logger, 500); err != nil {
		logger.Fatal("seed clients", zap.Error(err))
	}

	logger.Info("seed complete")
}

// seedAvailability stores the clinic's standard agenda so the Postgres
// source takes over from the built-in table.
func seedAvailability(ctx context.Context, pool *pgxpool.Pool) error {
	std := chatbot.DefaultAvailability()
	dates, err := std.Dates(ctx)
	if err != nil {
		return err
	}

	table := make(map[string][]string, len(dates))
	for _, d := range dates {
		times, err := std.Times(ctx, d)
		if err != nil {
			return err
		}
		table[d] = times
	}

	return availability.NewPgAvailability(pool).ReplaceSlots(ctx, table)
}

// seedClients inserts clients with zero to three pets each. Clients without
// pets exercise the stalled scheduling path.
func seedClients(ctx context.Context, pool *pgxpool.Pool, logger *zap.Logger, count int) error {
	faker := gofakeit.New(uint64(time.Now().UnixNano()))

	const batchSize = 100

	for offset := 0; offset < count; offset += batchSize {
		end := min(offset+batchSize, count)

		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}

		for i := offset; i < end; i++ {
			clientID := uuid.New()
			_, err := tx.Exec(ctx, `
				INSERT INTO clients (id, name, email, phone, created_at, updated_at)
				VALUES ($1, $2, $3, $4, now(), now())
			`, clientID, faker.Name(), faker.Email(), faker.Phone())
			if err != nil {
				_ = tx.Rollback(ctx)
				return err
			}

			for p := faker.Number(0, 3); p > 0; p-- {
				kind := species[faker.Number(0, len(species)-1)]
				var breed *string
				if kind == "Cachorro" {
					b := faker.Dog()
					breed = &b
				}
				_, err := tx.Exec(ctx, `
					INSERT INTO pets (id, client_id, name, species, breed, created_at)
					VALUES ($1, $2, $3, $4, $5, now())
				`, uuid.New(), clientID, faker.PetName(), kind, breed)
				if err != nil {
					_ = tx.Rollback(ctx)
					return err
				}
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return err
		}

		logger.Info("clients seeded", zap.Int("done", end), zap.Int("total", count))
	}

	return nil
}
