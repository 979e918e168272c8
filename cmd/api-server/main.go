package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hackgods/vet-chat-scheduler/internal/api"
	"github.com/hackgods/vet-chat-scheduler/internal/availability"
	"github.com/hackgods/vet-chat-scheduler/internal/booking"
	"github.com/hackgods/vet-chat-scheduler/internal/chat"
	"github.com/hackgods/vet-chat-scheduler/internal/chatbot"
	"github.com/hackgods/vet-chat-scheduler/internal/config"
	"github.com/hackgods/vet-chat-scheduler/internal/db"
	"github.com/hackgods/vet-chat-scheduler/internal/directory"
	"github.com/hackgods/vet-chat-scheduler/internal/logging"
	redisclient "github.com/hackgods/vet-chat-scheduler/internal/redis"
)

const version = "0.1.0"

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

	logger.Info("api-server starting up",
		zap.String("env", cfg.Env),
		zap.String("http_port", cfg.HTTPPort),
		zap.Duration("bot_reply_delay", cfg.BotReplyDelay),
		zap.Duration("session_ttl", cfg.SessionTTL),
		zap.Duration("lock_ttl", cfg.LockTTL),
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect Postgres
	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN, db.PoolOptions{})
	if err == nil {
		err = db.EnsureSchema(pgCtx, pgPool)
	}
	cancelPg()
	if err != nil {
		logger.Fatal("postgres setup error", zap.Error(err))
	}
	defer pgPool.Close()
	logger.Info("connected to Postgres")

	// Connect Redis
	rdb, err := redisclient.NewRedisClient(rootCtx, cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		logger.Fatal("redis connection error", zap.Error(err))
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.Warn("error closing redis", zap.Error(err))
		}
	}()
	logger.Info("connected to Redis", zap.String("addr", cfg.RedisAddr))

	slots := availability.NewFallback(
		availability.NewPgAvailability(pgPool),
		chatbot.DefaultAvailability(),
		logger.Named("availability"),
	)
	sink := booking.NewSink(booking.NewPgRepository(pgPool), logger.Named("booking"))

	engine := chatbot.NewEngine(chatbot.Config{
		Availability: slots,
		Sink:         sink,
		Scheduler:    chatbot.TimerScheduler{},
		ReplyDelay:   cfg.BotReplyDelay,
		Logger:       logger.Named("chatbot"),
	})

	store := redisclient.NewSessionStore(rdb, cfg.SessionTTL)
	locker := redisclient.NewRedisSessionLocker(rdb, cfg.LockTTL)
	svc := chat.NewService(engine, store, locker, directory.NewPgRepository(pgPool), logger.Named("chat"))

	router := api.NewRouter(api.RouterConfig{
		Service: svc,
		Checks: []api.Check{
			{Name: "postgres", Ping: pgPool.Ping},
			{Name: "redis", Ping: store.Ping},
		},
		Logger:      logger.Named("http"),
		RateLimiter: api.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, logger.Named("ratelimit")),
		Env:         cfg.Env,
		Version:     version,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-rootCtx.Done():
	case err := <-serveErr:
		if err != nil {
			logger.Error("http server error", zap.Error(err))
		}
	}

	logger.Info("shutting down api-server", zap.Duration("timeout", cfg.ShutdownTimeout))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}
