package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hackgods/vet-chat-scheduler/internal/chat"
	"github.com/hackgods/vet-chat-scheduler/internal/chatbot"
	"github.com/hackgods/vet-chat-scheduler/internal/directory"
	redisclient "github.com/hackgods/vet-chat-scheduler/internal/redis"
)

type sessionHandlers struct {
	svc    *chat.Service
	logger *zap.Logger
}

func (h *sessionHandlers) start(w http.ResponseWriter, r *http.Request) {
	var req StartSessionRequest
	if err := decodeJSON(w, r, &req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return
	}

	st, err := h.svc.Start(r.Context(), req.ClientID)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, sessionResponse(st))
}

func (h *sessionHandlers) get(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse(st))
}

func (h *sessionHandlers) selectOption(w http.ResponseWriter, r *http.Request) {
	var req OptionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return
	}
	step, err := chatbot.ParseStep(req.Step)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_step", err.Error())
		return
	}

	opt := chatbot.Option{Label: req.Label, Value: req.Value}
	h.act(w, r, func(ctx context.Context, e *chatbot.Engine, s *chatbot.Session) (*chatbot.Reply, error) {
		return e.SelectOption(ctx, s, step, opt)
	})
}

func (h *sessionHandlers) submitText(w http.ResponseWriter, r *http.Request) {
	var req TextRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return
	}
	step, err := chatbot.ParseStep(req.Step)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_step", err.Error())
		return
	}

	h.act(w, r, func(ctx context.Context, e *chatbot.Engine, s *chatbot.Session) (*chatbot.Reply, error) {
		return e.SubmitText(ctx, s, step, req.Text)
	})
}

func (h *sessionHandlers) selectDate(w http.ResponseWriter, r *http.Request) {
	var req DateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return
	}
	h.act(w, r, func(ctx context.Context, e *chatbot.Engine, s *chatbot.Session) (*chatbot.Reply, error) {
		return e.SelectDate(ctx, s, req.Date)
	})
}

func (h *sessionHandlers) selectTime(w http.ResponseWriter, r *http.Request) {
	var req TimeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return
	}
	h.act(w, r, func(ctx context.Context, e *chatbot.Engine, s *chatbot.Session) (*chatbot.Reply, error) {
		return e.SelectTime(ctx, s, req.Time)
	})
}

// choice builds a handler for the engine operations that take a bare option.
func (h *sessionHandlers) choice(op func(e *chatbot.Engine, ctx context.Context, s *chatbot.Session, opt chatbot.Option) (*chatbot.Reply, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ChoiceRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		opt := chatbot.Option{Label: req.Label, Value: req.Value}
		h.act(w, r, func(ctx context.Context, e *chatbot.Engine, s *chatbot.Session) (*chatbot.Reply, error) {
			return op(e, ctx, s, opt)
		})
	}
}

func (h *sessionHandlers) act(w http.ResponseWriter, r *http.Request, act chat.Action) {
	st, err := h.svc.Do(r.Context(), chi.URLParam(r, "id"), act)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse(st))
}

func (h *sessionHandlers) monitor(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	rows, err := h.svc.Monitor(r.Context(), limit)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	resp := make([]MonitorSessionResponse, 0, len(rows))
	for _, row := range rows {
		resp = append(resp, MonitorSessionResponse{
			ID:         row.ID,
			ClientName: row.ClientName,
			Status:     string(row.Status),
			Step:       row.Step,
			Messages:   row.Messages,
			Bookings:   row.Bookings,
			Draft:      row.Draft,
			StartedAt:  row.StartedAt,
			UpdatedAt:  row.UpdatedAt,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *sessionHandlers) handleError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, chatbot.ErrOutOfTurn):
		writeError(w, http.StatusConflict, "out_of_turn", err.Error())
	case errors.Is(err, chatbot.ErrReplyPending):
		writeError(w, http.StatusConflict, "reply_pending", err.Error())
	case errors.Is(err, chatbot.ErrUnknownOption):
		writeError(w, http.StatusUnprocessableEntity, "unknown_option", err.Error())
	case errors.Is(err, chatbot.ErrEmptyText):
		writeError(w, http.StatusUnprocessableEntity, "empty_text", err.Error())
	case errors.Is(err, chatbot.ErrNoRegisteredPets):
		writeError(w, http.StatusUnprocessableEntity, "no_registered_pets", err.Error())
	case errors.Is(err, chat.ErrSessionBusy):
		writeError(w, http.StatusConflict, "session_busy", "session is handling another action, please retry shortly")
	case errors.Is(err, chat.ErrInvalidClientID):
		writeError(w, http.StatusBadRequest, "invalid_client_id", "client_id must be a valid UUID")
	case errors.Is(err, redisclient.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, "session_not_found", err.Error())
	case errors.Is(err, directory.ErrClientNotFound):
		writeError(w, http.StatusNotFound, "client_not_found", err.Error())
	default:
		h.logger.Error("chat request failed",
			zap.String("path", r.URL.Path),
			zap.String("request_id", GetRequestID(r.Context())),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "internal_error", "unexpected error")
	}
}
