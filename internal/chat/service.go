package chat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hackgods/vet-chat-scheduler/internal/chatbot"
	redisclient "github.com/hackgods/vet-chat-scheduler/internal/redis"
)

var (
	ErrSessionBusy     = errors.New("session is handling another action, please retry")
	ErrInvalidClientID = errors.New("invalid client id")
)

// Store persists session snapshots between requests.
type Store interface {
	Save(ctx context.Context, st chatbot.State) error
	Load(ctx context.Context, id string) (chatbot.State, error)
	Recent(ctx context.Context, limit int) ([]chatbot.State, error)
}

// Directory resolves portal clients into chatbot identities.
type Directory interface {
	GetIdentity(ctx context.Context, clientID uuid.UUID) (*chatbot.Identity, error)
}

// Action applies one engine operation to a live session.
type Action func(ctx context.Context, e *chatbot.Engine, s *chatbot.Session) (*chatbot.Reply, error)

type Service struct {
	engine    *chatbot.Engine
	store     Store
	locker    redisclient.Locker
	directory Directory
	logger    *zap.Logger
}

func NewService(engine *chatbot.Engine, store Store, locker redisclient.Locker, directory Directory, logger *zap.Logger) *Service {
	return &Service{
		engine:    engine,
		store:     store,
		locker:    locker,
		directory: directory,
		logger:    logger,
	}
}

func (s *Service) Engine() *chatbot.Engine { return s.engine }

// Start opens a conversation. An empty clientID starts the anonymous
// staff-facing flow, otherwise the client's pets are offered.
func (s *Service) Start(ctx context.Context, clientID string) (chatbot.State, error) {
	var identity *chatbot.Identity
	if clientID != "" {
		id, err := uuid.Parse(clientID)
		if err != nil {
			return chatbot.State{}, ErrInvalidClientID
		}
		identity, err = s.directory.GetIdentity(ctx, id)
		if err != nil {
			return chatbot.State{}, fmt.Errorf("load client identity: %w", err)
		}
	}

	sess := s.engine.Start(identity)
	st := sess.Snapshot()
	if err := s.store.Save(ctx, st); err != nil {
		return chatbot.State{}, fmt.Errorf("save new session: %w", err)
	}

	s.logger.Info("chat session started",
		zap.String("session_id", st.ID),
		zap.Bool("identified", identity != nil),
	)
	return st, nil
}

func (s *Service) Get(ctx context.Context, id string) (chatbot.State, error) {
	st, err := s.store.Load(ctx, id)
	if err != nil {
		return chatbot.State{}, fmt.Errorf("get session: %w", err)
	}
	return st, nil
}

// Do runs act on the session under the session lock, waits for the bot
// reply and stores the result. A rejected action stores nothing except in
// the no-pets case, where the user's echo has already been appended.
func (s *Service) Do(ctx context.Context, id string, act Action) (chatbot.State, error) {
	var out chatbot.State

	err := s.locker.WithSessionLock(ctx, id, func(lockCtx context.Context) error {
		st, err := s.store.Load(lockCtx, id)
		if err != nil {
			return err
		}
		sess, err := chatbot.RestoreSession(st)
		if err != nil {
			return fmt.Errorf("restore session %s: %w", id, err)
		}

		reply, actErr := act(lockCtx, s.engine, sess)
		if actErr != nil {
			if errors.Is(actErr, chatbot.ErrNoRegisteredPets) {
				if err := s.store.Save(lockCtx, sess.Snapshot()); err != nil {
					return fmt.Errorf("save session: %w", err)
				}
			}
			return actErr
		}

		if _, err := reply.Wait(lockCtx); err != nil {
			return fmt.Errorf("wait for bot reply: %w", err)
		}

		out = sess.Snapshot()
		if err := s.store.Save(lockCtx, out); err != nil {
			return fmt.Errorf("save session: %w", err)
		}
		return nil
	})

	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return chatbot.State{}, ErrSessionBusy
		}
		return chatbot.State{}, err
	}

	return out, nil
}

type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusIdle      Status = "idle"
)

// Summary is one row of the receptionist chatbot monitor.
type Summary struct {
	ID         string
	ClientName string
	Status     Status
	Step       chatbot.Step
	Messages   int
	Bookings   int
	Draft      chatbot.Draft
	StartedAt  time.Time
	UpdatedAt  time.Time
}

func summarize(st chatbot.State) Summary {
	sum := Summary{
		ID:        st.ID,
		Step:      st.Step,
		Messages:  len(st.Transcript),
		Bookings:  st.Bookings,
		Draft:     st.Draft,
		StartedAt: st.CreatedAt,
		UpdatedAt: st.UpdatedAt,
	}

	switch {
	case st.Identity != nil:
		sum.ClientName = st.Identity.Name
	case st.Draft.Owner != "":
		sum.ClientName = st.Draft.Owner
	}

	switch {
	case st.Step != chatbot.StepInitial:
		sum.Status = StatusActive
	case st.Bookings > 0:
		sum.Status = StatusCompleted
	default:
		sum.Status = StatusIdle
	}
	return sum
}

// Monitor lists recently active sessions for the receptionist view.
func (s *Service) Monitor(ctx context.Context, limit int) ([]Summary, error) {
	if limit <= 0 {
		limit = 20 // default
	}
	if limit > 100 {
		limit = 100 // max
	}

	states, err := s.store.Recent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent sessions: %w", err)
	}

	out := make([]Summary, 0, len(states))
	for _, st := range states {
		out = append(out, summarize(st))
	}
	return out, nil
}
