package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hackgods/vet-chat-scheduler/internal/chat"
	"github.com/hackgods/vet-chat-scheduler/internal/chatbot"
)

type RouterConfig struct {
	Service     *chat.Service
	Checks      []Check
	Logger      *zap.Logger
	RateLimiter *RateLimiter
	Env         string
	Version     string
}

func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(logger))

	health := NewHealthHandler(cfg.Checks, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	h := &sessionHandlers{svc: cfg.Service, logger: logger}

	r.Group(func(r chi.Router) {
		if cfg.RateLimiter != nil {
			r.Use(cfg.RateLimiter.Middleware)
		}

		r.Post("/sessions", h.start)
		r.Route("/sessions/{id}", func(r chi.Router) {
			r.Get("/", h.get)
			r.Post("/options", h.selectOption)
			r.Post("/text", h.submitText)
			r.Post("/dates", h.selectDate)
			r.Post("/times", h.selectTime)
			r.Post("/services", h.choice((*chatbot.Engine).SelectService))
			r.Post("/confirm", h.choice((*chatbot.Engine).Confirm))
			r.Post("/click", h.choice((*chatbot.Engine).Click))
		})

		r.Get("/monitor/sessions", h.monitor)
	})

	return r
}

