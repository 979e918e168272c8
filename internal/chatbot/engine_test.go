package chatbot

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"
	"testing"

	"go.uber.org/zap"
)

type recordingSink struct {
	mu       sync.Mutex
	bookings []Booking
}

func (r *recordingSink) Booked(_ context.Context, b Booking) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bookings = append(r.bookings, b)
}

func (r *recordingSink) all() []Booking {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Booking(nil), r.bookings...)
}

func newTestEngine(sink BookingSink) (*Engine, *ManualScheduler) {
	sched := NewManualScheduler()
	e := NewEngine(Config{
		Scheduler:  sched,
		ReplyDelay: DefaultReplyDelay,
		Sink:       sink,
		Logger:     zap.NewNop(),
	})
	return e, sched
}

// deliver asserts the reply is still pending, runs the scheduler and returns the bot message.
func deliver(t *testing.T, sched *ManualScheduler, r *Reply, err error) Message {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := r.Message(); ok {
		t.Fatalf("reply emitted before the scheduler ran")
	}
	if n := sched.RunPending(); n != 1 {
		t.Fatalf("expected 1 scheduled reply, ran %d", n)
	}
	msg, ok := r.Message()
	if !ok {
		t.Fatalf("reply not emitted after the scheduler ran")
	}
	if msg.Sender != SenderBot {
		t.Fatalf("expected bot message, got %s", msg.Sender)
	}
	return msg
}

var (
	ctx         = context.Background()
	optSchedule = Option{Label: "Agendar consulta", Value: ValueSchedule}
	optConsulta = Option{Label: "Consulta", Value: "consultation"}
	optConfirm  = Option{Label: "Sim, confirmar", Value: ValueConfirm}
	optRestart  = Option{Label: "Não, cancelar", Value: ValueRestart}
)

func TestStart_Greeting(t *testing.T) {
	e, _ := newTestEngine(nil)

	s := e.Start(nil)
	msgs := s.Transcript()
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
	if msgs[0].Sender != SenderBot {
		t.Fatalf("expected greeting from bot, got %s", msgs[0].Sender)
	}
	if !reflect.DeepEqual(msgs[0].Options, rootMenu) {
		t.Fatalf("unexpected root menu: %+v", msgs[0].Options)
	}
	if s.Step() != StepInitial {
		t.Fatalf("expected initial step, got %s", s.Step())
	}

	named := e.Start(&Identity{ID: "c1", Name: "Maria Silva"})
	if got := named.Transcript()[0].Text; !strings.Contains(got, "Maria Silva") {
		t.Fatalf("expected personalised greeting, got %q", got)
	}
}

func TestAnonymousBookingFlow(t *testing.T) {
	sink := &recordingSink{}
	e, sched := newTestEngine(sink)
	s := e.Start(nil)

	r, err := e.SelectOption(ctx, s, StepInitial, optSchedule)
	deliver(t, sched, r, err)
	if s.Step() != StepGetOwner {
		t.Fatalf("expected get_owner, got %s", s.Step())
	}

	r, err = e.SubmitText(ctx, s, StepGetOwner, "Maria")
	deliver(t, sched, r, err)

	r, err = e.SubmitText(ctx, s, StepGetPet, "Rex")
	msg := deliver(t, sched, r, err)
	if len(msg.Options) != 5 || msg.Options[0] != (Option{Label: "15/11/2025", Value: "2025-11-15"}) {
		t.Fatalf("unexpected date options: %+v", msg.Options)
	}

	r, err = e.SelectDate(ctx, s, "2025-11-15")
	msg = deliver(t, sched, r, err)
	if want := []string{"09:00", "10:00", "14:00", "15:00"}; !reflect.DeepEqual(msg.TimeSlots, want) {
		t.Fatalf("expected time slots %v, got %v", want, msg.TimeSlots)
	}

	r, err = e.SelectTime(ctx, s, "09:00")
	msg = deliver(t, sched, r, err)
	if !reflect.DeepEqual(msg.Options, DefaultServices()) {
		t.Fatalf("unexpected service options: %+v", msg.Options)
	}

	r, err = e.SelectService(ctx, s, optConsulta)
	msg = deliver(t, sched, r, err)
	if s.Step() != StepConfirm {
		t.Fatalf("expected confirm, got %s", s.Step())
	}
	wantDraft := Draft{Owner: "Maria", Pet: "Rex", Date: "2025-11-15", Time: "09:00", Service: "consultation", ServiceLabel: "Consulta"}
	if got := s.Draft(); got != wantDraft {
		t.Fatalf("expected draft %+v, got %+v", wantDraft, got)
	}
	if want := []string{"owner", "pet", "date", "time", "service", "serviceLabel"}; !reflect.DeepEqual(s.Draft().Fields(), want) {
		t.Fatalf("expected fields %v, got %v", want, s.Draft().Fields())
	}
	for _, part := range []string{"15/11/2025", "09:00", "Maria", "Rex", "Consulta"} {
		if !strings.Contains(msg.Text, part) {
			t.Fatalf("summary missing %q: %q", part, msg.Text)
		}
	}

	r, err = e.Confirm(ctx, s, optConfirm)
	msg = deliver(t, sched, r, err)
	if msg.Text != textBooked {
		t.Fatalf("unexpected confirmation text %q", msg.Text)
	}
	if s.Step() != StepInitial {
		t.Fatalf("expected initial, got %s", s.Step())
	}
	if !s.Draft().IsEmpty() {
		t.Fatalf("expected empty draft, got %+v", s.Draft())
	}

	booked := sink.all()
	if len(booked) != 1 {
		t.Fatalf("expected 1 booking, got %d", len(booked))
	}
	if booked[0].Draft != wantDraft || booked[0].SessionID != s.ID() {
		t.Fatalf("unexpected booking: %+v", booked[0])
	}
	if s.Bookings() != 1 {
		t.Fatalf("expected booking counter 1, got %d", s.Bookings())
	}

	// greeting plus seven user/bot exchanges
	msgs := s.Transcript()
	if len(msgs) != 15 {
		t.Fatalf("expected 15 messages, got %d", len(msgs))
	}
	for i, m := range msgs {
		want := SenderBot
		if i%2 == 1 {
			want = SenderUser
		}
		if m.Sender != want {
			t.Fatalf("message %d: expected %s, got %s", i, want, m.Sender)
		}
	}
	if msgs[7].Text != "15/11/2025" {
		t.Fatalf("expected formatted date echo, got %q", msgs[7].Text)
	}

	for _, d := range sched.Delays() {
		if d != DefaultReplyDelay {
			t.Fatalf("expected reply delay %s, got %s", DefaultReplyDelay, d)
		}
	}
}

func TestIdentifiedBookingFlow(t *testing.T) {
	sink := &recordingSink{}
	e, sched := newTestEngine(sink)
	identity := &Identity{
		ID:   "c1",
		Name: "Maria Silva",
		Pets: []Pet{{ID: "1", Name: "Rex", Species: "Cachorro"}},
	}
	s := e.Start(identity)

	r, err := e.SelectOption(ctx, s, StepInitial, optSchedule)
	msg := deliver(t, sched, r, err)
	if want := []Option{{Label: "Rex (Cachorro)", Value: "1"}}; !reflect.DeepEqual(msg.Options, want) {
		t.Fatalf("expected pet options %+v, got %+v", want, msg.Options)
	}
	if s.Step() != StepGetPetSelection {
		t.Fatalf("expected get_pet_selection, got %s", s.Step())
	}
	if got := s.Draft(); got != (Draft{Owner: "Maria Silva", OwnerID: "c1"}) {
		t.Fatalf("unexpected draft %+v", got)
	}

	clicks := []Option{
		msg.Options[0],
		{Label: "15/11/2025", Value: "2025-11-15"},
		{Value: "10:00"},
		{Label: "Vacinação", Value: "vaccination"},
	}
	for _, c := range clicks {
		r, err = e.Click(ctx, s, c)
		deliver(t, sched, r, err)
	}

	if s.Step() != StepConfirm {
		t.Fatalf("expected confirm, got %s", s.Step())
	}
	want := []string{"owner", "ownerId", "pet", "date", "time", "service", "serviceLabel"}
	if got := s.Draft().Fields(); !reflect.DeepEqual(got, want) {
		t.Fatalf("expected fields %v, got %v", want, got)
	}
	if s.Draft().Pet != "Rex" || s.Draft().ServiceLabel != "Vacinação" {
		t.Fatalf("unexpected draft %+v", s.Draft())
	}

	r, err = e.Click(ctx, s, optConfirm)
	deliver(t, sched, r, err)
	if booked := sink.all(); len(booked) != 1 || booked[0].Draft.OwnerID != "c1" {
		t.Fatalf("unexpected bookings: %+v", booked)
	}
	if !s.Draft().IsEmpty() || s.Step() != StepInitial {
		t.Fatalf("expected reset session, got step=%s draft=%+v", s.Step(), s.Draft())
	}
}

func TestScheduleWithoutPetsStalls(t *testing.T) {
	e, sched := newTestEngine(nil)
	s := e.Start(&Identity{ID: "c2", Name: "Pedro Costa"})

	r, err := e.SelectOption(ctx, s, StepInitial, optSchedule)
	if !errors.Is(err, ErrNoRegisteredPets) {
		t.Fatalf("expected ErrNoRegisteredPets, got %v", err)
	}
	if r != nil {
		t.Fatalf("expected no reply handle")
	}
	if sched.Len() != 0 {
		t.Fatalf("expected no scheduled reply, got %d", sched.Len())
	}
	msgs := s.Transcript()
	if len(msgs) != 2 || msgs[1].Sender != SenderUser {
		t.Fatalf("expected greeting plus user echo, got %+v", msgs)
	}
	if s.Step() != StepInitial || !s.Draft().IsEmpty() {
		t.Fatalf("expected untouched state, got step=%s draft=%+v", s.Step(), s.Draft())
	}
}

func TestRootRedirects(t *testing.T) {
	tests := []struct {
		value string
		text  string
	}{
		{ValueView, textViewRedirect},
		{ValueCancel, textCancelRedirect},
		{ValueEnd, textFarewell},
	}

	for _, tc := range tests {
		t.Run(tc.value, func(t *testing.T) {
			e, sched := newTestEngine(nil)
			s := e.Start(nil)

			r, err := e.SelectOption(ctx, s, StepInitial, Option{Value: tc.value})
			msg := deliver(t, sched, r, err)
			if msg.Text != tc.text {
				t.Fatalf("expected %q, got %q", tc.text, msg.Text)
			}
			if s.Step() != StepInitial {
				t.Fatalf("expected initial, got %s", s.Step())
			}
			if echo := s.Transcript()[1]; echo.Sender != SenderUser || echo.Text != rootValues[tc.value] {
				t.Fatalf("unexpected echo %+v", echo)
			}
		})
	}
}

func TestRestartClearsDraft(t *testing.T) {
	sink := &recordingSink{}
	e, sched := newTestEngine(sink)
	s := driveToConfirm(t, e, sched)

	r, err := e.Confirm(ctx, s, optRestart)
	msg := deliver(t, sched, r, err)
	if msg.Text != textRestarted || msg.Text == textBooked {
		t.Fatalf("unexpected restart text %q", msg.Text)
	}
	if !reflect.DeepEqual(msg.Options, restartMenu) {
		t.Fatalf("expected yes/no prompt, got %+v", msg.Options)
	}
	if s.Step() != StepInitial || !s.Draft().IsEmpty() {
		t.Fatalf("expected reset session, got step=%s draft=%+v", s.Step(), s.Draft())
	}
	if len(sink.all()) != 0 {
		t.Fatalf("restart must not raise a booking")
	}

	// "Sim" starts over
	r, err = e.Click(ctx, s, restartMenu[0])
	deliver(t, sched, r, err)
	if s.Step() != StepGetOwner {
		t.Fatalf("expected get_owner after restart, got %s", s.Step())
	}
}

func TestRejectedActionsLeaveStateUnchanged(t *testing.T) {
	e, sched := newTestEngine(nil)

	tests := []struct {
		name   string
		setup  func(t *testing.T, s *Session)
		action func(s *Session) (*Reply, error)
		want   error
	}{
		{
			name:   "text in initial",
			action: func(s *Session) (*Reply, error) { return e.SubmitText(ctx, s, StepInitial, "Maria") },
			want:   ErrOutOfTurn,
		},
		{
			name:   "stale step argument",
			action: func(s *Session) (*Reply, error) { return e.SubmitText(ctx, s, StepGetOwner, "Maria") },
			want:   ErrOutOfTurn,
		},
		{
			name:   "date in initial",
			action: func(s *Session) (*Reply, error) { return e.SelectDate(ctx, s, "2025-11-15") },
			want:   ErrOutOfTurn,
		},
		{
			name:   "time in initial",
			action: func(s *Session) (*Reply, error) { return e.SelectTime(ctx, s, "09:00") },
			want:   ErrOutOfTurn,
		},
		{
			name:   "service in initial",
			action: func(s *Session) (*Reply, error) { return e.SelectService(ctx, s, optConsulta) },
			want:   ErrOutOfTurn,
		},
		{
			name:   "confirm in initial",
			action: func(s *Session) (*Reply, error) { return e.Confirm(ctx, s, optConfirm) },
			want:   ErrOutOfTurn,
		},
		{
			name:   "unknown root option",
			action: func(s *Session) (*Reply, error) { return e.SelectOption(ctx, s, StepInitial, Option{Value: "bogus"}) },
			want:   ErrUnknownOption,
		},
		{
			name: "empty text",
			setup: func(t *testing.T, s *Session) {
				r, err := e.SelectOption(ctx, s, StepInitial, optSchedule)
				deliver(t, sched, r, err)
			},
			action: func(s *Session) (*Reply, error) { return e.SubmitText(ctx, s, StepGetOwner, "   ") },
			want:   ErrEmptyText,
		},
		{
			name: "option click in text step",
			setup: func(t *testing.T, s *Session) {
				r, err := e.SelectOption(ctx, s, StepInitial, optSchedule)
				deliver(t, sched, r, err)
			},
			action: func(s *Session) (*Reply, error) { return e.Click(ctx, s, optSchedule) },
			want:   ErrOutOfTurn,
		},
		{
			name: "action while reply pending",
			setup: func(t *testing.T, s *Session) {
				if _, err := e.SelectOption(ctx, s, StepInitial, optSchedule); err != nil {
					t.Fatalf("select: %v", err)
				}
			},
			action: func(s *Session) (*Reply, error) { return e.SelectOption(ctx, s, StepInitial, optSchedule) },
			want:   ErrReplyPending,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := e.Start(nil)
			if tc.setup != nil {
				tc.setup(t, s)
			}
			queued := sched.Len()
			before := s.Snapshot()

			r, err := tc.action(s)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if r != nil {
				t.Fatalf("expected no reply handle")
			}

			after := s.Snapshot()
			if len(after.Transcript) != len(before.Transcript) {
				t.Fatalf("transcript changed: %d -> %d", len(before.Transcript), len(after.Transcript))
			}
			if after.Draft != before.Draft || after.Step != before.Step {
				t.Fatalf("state changed: %+v -> %+v", before, after)
			}
			if sched.Len() != queued {
				t.Fatalf("unexpected scheduled reply")
			}
			sched.RunPending()
		})
	}
}

func TestPendingReplyDisablesInput(t *testing.T) {
	e, sched := newTestEngine(nil)
	s := e.Start(nil)

	r, err := e.SelectOption(ctx, s, StepInitial, optSchedule)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if !s.Pending() || s.InputEnabled() {
		t.Fatalf("expected pending reply with disabled input")
	}
	if s.Step() != StepInitial {
		t.Fatalf("step must not advance before the reply, got %s", s.Step())
	}

	deliver(t, sched, r, nil)
	if s.Pending() || !s.InputEnabled() {
		t.Fatalf("expected input enabled in get_owner")
	}
}

func TestSelectDateWithoutSlots(t *testing.T) {
	e, sched := newTestEngine(nil)
	s := e.Start(nil)
	for _, step := range []func() (*Reply, error){
		func() (*Reply, error) { return e.SelectOption(ctx, s, StepInitial, optSchedule) },
		func() (*Reply, error) { return e.SubmitText(ctx, s, StepGetOwner, "Maria") },
		func() (*Reply, error) { return e.SubmitText(ctx, s, StepGetPet, "Rex") },
	} {
		r, err := step()
		deliver(t, sched, r, err)
	}

	r, err := e.SelectDate(ctx, s, "2030-01-01")
	msg := deliver(t, sched, r, err)
	if len(msg.TimeSlots) != 0 {
		t.Fatalf("expected no time slots, got %v", msg.TimeSlots)
	}
	if s.Step() != StepGetTime {
		t.Fatalf("expected get_time, got %s", s.Step())
	}

	if _, err := e.SelectTime(ctx, s, "09:00"); !errors.Is(err, ErrUnknownOption) {
		t.Fatalf("expected ErrUnknownOption for a chip that was never offered, got %v", err)
	}
}

func TestSelectServiceRejectsUnknown(t *testing.T) {
	e, sched := newTestEngine(nil)
	s := driveToService(t, e, sched)

	if _, err := e.SelectService(ctx, s, Option{Label: "Banho", Value: "grooming"}); !errors.Is(err, ErrUnknownOption) {
		t.Fatalf("expected ErrUnknownOption, got %v", err)
	}
	if s.Draft().Service != "" {
		t.Fatalf("draft must not record an unknown service")
	}
}

func TestStateTableReplay(t *testing.T) {
	e, sched := newTestEngine(nil)
	s := e.Start(nil)

	steps := []struct {
		act  func() (*Reply, error)
		want Step
	}{
		{func() (*Reply, error) { return e.SelectOption(ctx, s, StepInitial, Option{Value: ValueView}) }, StepInitial},
		{func() (*Reply, error) { return e.SelectOption(ctx, s, StepInitial, optSchedule) }, StepGetOwner},
		{func() (*Reply, error) { return e.SubmitText(ctx, s, StepGetOwner, "Ana") }, StepGetPet},
		{func() (*Reply, error) { return e.SubmitText(ctx, s, StepGetPet, "Luna") }, StepGetDate},
		{func() (*Reply, error) { return e.SelectDate(ctx, s, "2025-11-16") }, StepGetTime},
		{func() (*Reply, error) { return e.SelectTime(ctx, s, "16:00") }, StepGetService},
		{func() (*Reply, error) { return e.SelectService(ctx, s, Option{Value: "exam"}) }, StepConfirm},
		{func() (*Reply, error) { return e.Confirm(ctx, s, optConfirm) }, StepInitial},
		{func() (*Reply, error) { return e.SelectOption(ctx, s, StepInitial, optSchedule) }, StepGetOwner},
	}

	for i, st := range steps {
		r, err := st.act()
		deliver(t, sched, r, err)
		if got := s.Step(); got != st.want {
			t.Fatalf("action %d: expected %s, got %s", i, st.want, got)
		}
	}
}

func driveToService(t *testing.T, e *Engine, sched *ManualScheduler) *Session {
	t.Helper()
	s := e.Start(nil)
	for _, act := range []func() (*Reply, error){
		func() (*Reply, error) { return e.SelectOption(ctx, s, StepInitial, optSchedule) },
		func() (*Reply, error) { return e.SubmitText(ctx, s, StepGetOwner, "Maria") },
		func() (*Reply, error) { return e.SubmitText(ctx, s, StepGetPet, "Rex") },
		func() (*Reply, error) { return e.SelectDate(ctx, s, "2025-11-15") },
		func() (*Reply, error) { return e.SelectTime(ctx, s, "09:00") },
	} {
		r, err := act()
		deliver(t, sched, r, err)
	}
	return s
}

func driveToConfirm(t *testing.T, e *Engine, sched *ManualScheduler) *Session {
	t.Helper()
	s := driveToService(t, e, sched)
	r, err := e.SelectService(ctx, s, optConsulta)
	deliver(t, sched, r, err)
	return s
}
