package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hackgods/vet-chat-scheduler/internal/booking"
	"github.com/hackgods/vet-chat-scheduler/internal/config"
	"github.com/hackgods/vet-chat-scheduler/internal/db"
	"github.com/hackgods/vet-chat-scheduler/internal/logging"
)

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

	logger.Info("notify-worker starting up",
		zap.String("env", cfg.Env),
		zap.Duration("interval", cfg.WorkerInterval),
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect Postgres
	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN, db.PoolOptions{MaxConns: 4})
	if err == nil {
		err = db.EnsureSchema(pgCtx, pgPool)
	}
	cancelPg()
	if err != nil {
		logger.Fatal("postgres setup error", zap.Error(err))
	}
	defer pgPool.Close()
	logger.Info("connected to Postgres")

	notifier := booking.NewNotifier(
		booking.NewPgRepository(pgPool),
		booking.NewLogMailer(logger.Named("mailer")),
		logger.Named("notifier"),
	)

	// Run once at startup
	runOnce(rootCtx, notifier, logger)

	ticker := time.NewTicker(cfg.WorkerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			logger.Info("shutdown signal received, stopping notify worker")
			return
		case <-ticker.C:
			runOnce(rootCtx, notifier, logger)
		}
	}
}

func runOnce(ctx context.Context, n *booking.Notifier, logger *zap.Logger) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	start := time.Now()
	sent, err := n.NotifyPending(runCtx)
	if err != nil {
		logger.Error("notify run error", zap.Error(err))
		return
	}
	logger.Info("notify run complete", zap.Int("sent", sent), zap.Duration("took", time.Since(start)))
}
