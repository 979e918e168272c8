package chatbot

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrOutOfTurn        = errors.New("action not accepted in the current step")
	ErrUnknownOption    = errors.New("unknown option")
	ErrEmptyText        = errors.New("text is empty")
	ErrReplyPending     = errors.New("bot reply is still pending")
	ErrNoRegisteredPets = errors.New("client has no registered pets")
)

const DefaultReplyDelay = 500 * time.Millisecond

type Config struct {
	Availability Availability
	Services     []Option
	Sink         BookingSink
	// Scheduler must not run continuations synchronously from Schedule.
	Scheduler  Scheduler
	ReplyDelay time.Duration
	Logger     *zap.Logger
	Now        func() time.Time
}

// Engine drives the scripted booking conversation. It holds no per-session
// state and is safe to share across sessions.
type Engine struct {
	availability Availability
	services     []Option
	sink         BookingSink
	scheduler    Scheduler
	delay        time.Duration
	logger       *zap.Logger
	now          func() time.Time
}

func NewEngine(cfg Config) *Engine {
	e := &Engine{
		availability: cfg.Availability,
		services:     cloneOptions(cfg.Services),
		sink:         cfg.Sink,
		scheduler:    cfg.Scheduler,
		delay:        cfg.ReplyDelay,
		logger:       cfg.Logger,
		now:          cfg.Now,
	}
	if e.availability == nil {
		e.availability = DefaultAvailability()
	}
	if len(e.services) == 0 {
		e.services = DefaultServices()
	}
	if e.sink == nil {
		e.sink = discardSink{}
	}
	if e.scheduler == nil {
		e.scheduler = TimerScheduler{}
	}
	if e.delay < 0 {
		e.delay = 0
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e
}

// Services returns the service catalog offered by the engine.
func (e *Engine) Services() []Option {
	return cloneOptions(e.services)
}

// Start opens a conversation with the greeting and root menu. identity may be nil.
func (e *Engine) Start(identity *Identity) *Session {
	now := e.now()
	s := newSession(identity, now)
	s.append(e.message(greeting(identity), SenderBot, cloneOptions(rootMenu), nil, now))
	e.logger.Debug("chatbot session started",
		zap.String("session_id", s.id),
		zap.Bool("identified", identity != nil),
	)
	return s
}

// transition is the session state a bot reply moves into.
type transition struct {
	text      string
	options   []Option
	timeSlots []string
	next      Step
	draft     Draft
	confirmed *Draft
}

// SelectOption handles an option click in the initial and get_pet_selection steps.
func (e *Engine) SelectOption(ctx context.Context, s *Session, step Step, opt Option) (*Reply, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := admit(s, step, StepInitial, StepGetPetSelection); err != nil {
		return nil, err
	}

	switch s.step {
	case StepInitial:
		return e.selectRoot(ctx, s, opt)
	case StepGetPetSelection:
		return e.selectPet(ctx, s, opt)
	}
	return nil, ErrOutOfTurn
}

func (e *Engine) selectRoot(ctx context.Context, s *Session, opt Option) (*Reply, error) {
	label, ok := rootValues[opt.Value]
	if !ok {
		return nil, ErrUnknownOption
	}
	echo := echoLabel(opt, label)

	var t transition
	switch opt.Value {
	case ValueSchedule:
		switch {
		case s.identity == nil:
			t = transition{text: textAskOwner, next: StepGetOwner}
		case len(s.identity.Pets) == 0:
			// No follow-up message exists for this case; the echo is kept and
			// the caller decides how to surface it.
			s.append(e.message(echo, SenderUser, nil, nil, e.now()))
			e.logger.Warn("scheduling requested by client without pets",
				zap.String("session_id", s.id),
				zap.String("client_id", s.identity.ID),
			)
			return nil, ErrNoRegisteredPets
		default:
			t = transition{
				text:    textAskPetSelect,
				options: petOptions(s.identity.Pets),
				next:    StepGetPetSelection,
				draft:   Draft{Owner: s.identity.Name, OwnerID: s.identity.ID},
			}
		}
	case ValueView:
		t = transition{text: textViewRedirect, next: StepInitial, draft: s.draft}
	case ValueCancel:
		t = transition{text: textCancelRedirect, next: StepInitial, draft: s.draft}
	case ValueEnd:
		t = transition{text: textFarewell, next: StepInitial, draft: s.draft}
	}

	return e.emit(ctx, s, echo, t), nil
}

func (e *Engine) selectPet(ctx context.Context, s *Session, opt Option) (*Reply, error) {
	if s.identity == nil {
		return nil, ErrUnknownOption
	}
	idx := slices.IndexFunc(s.identity.Pets, func(p Pet) bool { return p.ID == opt.Value })
	if idx < 0 {
		return nil, ErrUnknownOption
	}
	pet := s.identity.Pets[idx]

	dates, err := e.availability.Dates(ctx)
	if err != nil {
		return nil, fmt.Errorf("load available dates: %w", err)
	}

	draft := s.draft
	draft.Pet = pet.Name
	echo := echoLabel(opt, fmt.Sprintf("%s (%s)", pet.Name, pet.Species))

	return e.emit(ctx, s, echo, transition{
		text:    textAskDate,
		options: dateOptions(dates),
		next:    StepGetDate,
		draft:   draft,
	}), nil
}

// SubmitText handles free text in the get_owner and get_pet steps.
func (e *Engine) SubmitText(ctx context.Context, s *Session, step Step, text string) (*Reply, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := admit(s, step, StepGetOwner, StepGetPet); err != nil {
		return nil, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyText
	}

	draft := s.draft
	switch s.step {
	case StepGetOwner:
		draft.Owner = text
		return e.emit(ctx, s, text, transition{text: textAskPet, next: StepGetPet, draft: draft}), nil
	case StepGetPet:
		dates, err := e.availability.Dates(ctx)
		if err != nil {
			return nil, fmt.Errorf("load available dates: %w", err)
		}
		draft.Pet = text
		return e.emit(ctx, s, text, transition{
			text:    textAskDate,
			options: dateOptions(dates),
			next:    StepGetDate,
			draft:   draft,
		}), nil
	}
	return nil, ErrOutOfTurn
}

// SelectDate records the date and offers its time slots. A date without
// registered slots still advances, with an empty chip list.
func (e *Engine) SelectDate(ctx context.Context, s *Session, date string) (*Reply, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := admit(s, StepGetDate, StepGetDate); err != nil {
		return nil, err
	}
	date = strings.TrimSpace(date)
	if date == "" {
		return nil, ErrUnknownOption
	}

	times, err := e.availability.Times(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("load available times for %s: %w", date, err)
	}
	if times == nil {
		times = []string{}
	}

	draft := s.draft
	draft.Date = date
	return e.emit(ctx, s, formatDate(date), transition{
		text:      textAskTime,
		timeSlots: times,
		next:      StepGetTime,
		draft:     draft,
	}), nil
}

// SelectTime records one of the time chips offered by the previous bot message.
func (e *Engine) SelectTime(ctx context.Context, s *Session, tm string) (*Reply, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := admit(s, StepGetTime, StepGetTime); err != nil {
		return nil, err
	}
	tm = strings.TrimSpace(tm)
	if tm == "" || !slices.Contains(lastBotMessage(s).TimeSlots, tm) {
		return nil, ErrUnknownOption
	}

	draft := s.draft
	draft.Time = tm
	return e.emit(ctx, s, tm, transition{
		text:    textAskService,
		options: cloneOptions(e.services),
		next:    StepGetService,
		draft:   draft,
	}), nil
}

// SelectService records a catalog service and asks for confirmation.
func (e *Engine) SelectService(ctx context.Context, s *Session, opt Option) (*Reply, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := admit(s, StepGetService, StepGetService); err != nil {
		return nil, err
	}
	svc, ok := findOption(e.services, opt.Value)
	if !ok {
		return nil, ErrUnknownOption
	}

	draft := s.draft
	draft.Service = svc.Value
	draft.ServiceLabel = svc.Label
	return e.emit(ctx, s, echoLabel(opt, svc.Label), transition{
		text:    summary(draft),
		options: cloneOptions(confirmMenu),
		next:    StepConfirm,
		draft:   draft,
	}), nil
}

// Confirm closes the booking attempt. Both branches clear the draft and
// return to the initial step; only "confirm" raises the booking sink.
func (e *Engine) Confirm(ctx context.Context, s *Session, opt Option) (*Reply, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := admit(s, StepConfirm, StepConfirm); err != nil {
		return nil, err
	}
	choice, ok := findOption(confirmMenu, opt.Value)
	if !ok {
		return nil, ErrUnknownOption
	}
	echo := echoLabel(opt, choice.Label)

	switch choice.Value {
	case ValueConfirm:
		confirmed := s.draft
		return e.emit(ctx, s, echo, transition{
			text:      textBooked,
			options:   cloneOptions(bookedMenu),
			next:      StepInitial,
			confirmed: &confirmed,
		}), nil
	default:
		return e.emit(ctx, s, echo, transition{
			text:    textRestarted,
			options: cloneOptions(restartMenu),
			next:    StepInitial,
		}), nil
	}
}

// Click dispatches an option click by the current step, the way a single
// option button handler would.
func (e *Engine) Click(ctx context.Context, s *Session, opt Option) (*Reply, error) {
	switch step := s.Step(); step {
	case StepInitial, StepGetPetSelection:
		return e.SelectOption(ctx, s, step, opt)
	case StepGetDate:
		return e.SelectDate(ctx, s, opt.Value)
	case StepGetTime:
		return e.SelectTime(ctx, s, opt.Value)
	case StepGetService:
		return e.SelectService(ctx, s, opt)
	case StepConfirm:
		return e.Confirm(ctx, s, opt)
	case StepGetOwner, StepGetPet:
		return nil, ErrOutOfTurn
	default:
		return nil, ErrOutOfTurn
	}
}

// emit appends the user echo now and schedules the bot reply together with
// the step and draft change. Caller must hold s.mu.
func (e *Engine) emit(ctx context.Context, s *Session, echo string, t transition) *Reply {
	s.append(e.message(echo, SenderUser, nil, nil, e.now()))
	s.pending = true

	from := s.step
	reply := newReply()
	sinkCtx := context.WithoutCancel(ctx)

	e.scheduler.Schedule(e.delay, func() {
		s.mu.Lock()
		msg := e.message(t.text, SenderBot, t.options, t.timeSlots, e.now())
		s.append(msg)
		s.step = t.next
		s.draft = t.draft
		s.pending = false
		var booking *Booking
		if t.confirmed != nil {
			s.bookings++
			booking = &Booking{SessionID: s.id, Draft: *t.confirmed, ConfirmedAt: msg.CreatedAt}
		}
		s.mu.Unlock()

		e.logger.Debug("chatbot reply emitted",
			zap.String("session_id", s.id),
			zap.Stringer("from", from),
			zap.Stringer("to", t.next),
		)

		reply.resolve(msg)
		if booking != nil {
			e.sink.Booked(sinkCtx, *booking)
		}
	})

	return reply
}

func (e *Engine) message(text string, sender Sender, opts []Option, slots []string, at time.Time) Message {
	return Message{
		ID:        uuid.NewString(),
		Text:      text,
		Sender:    sender,
		Options:   opts,
		TimeSlots: slots,
		CreatedAt: at,
	}
}

// admit rejects actions while a reply is pending, when the caller's view of
// the step is stale, or when the current step is not one of accepted.
func admit(s *Session, given Step, accepted ...Step) error {
	if s.pending {
		return ErrReplyPending
	}
	if given != s.step || !slices.Contains(accepted, s.step) {
		return ErrOutOfTurn
	}
	return nil
}

func lastBotMessage(s *Session) Message {
	for i := len(s.transcript) - 1; i >= 0; i-- {
		if s.transcript[i].Sender == SenderBot {
			return s.transcript[i]
		}
	}
	return Message{}
}

func echoLabel(opt Option, fallback string) string {
	if strings.TrimSpace(opt.Label) != "" {
		return opt.Label
	}
	return fallback
}
