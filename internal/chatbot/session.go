package chatbot

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

type Pet struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Species string `json:"species"`
}

// Identity is a pre-authenticated client. When present, scheduling skips
// tutor and pet name capture and offers the registered pets instead.
type Identity struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Pets []Pet  `json:"pets"`
}

// Session is one conversation. It is owned by the caller and passed into
// every Engine operation; all access goes through its mutex.
type Session struct {
	mu sync.Mutex

	id         string
	identity   *Identity
	step       Step
	draft      Draft
	transcript []Message
	pending    bool
	bookings   int
	createdAt  time.Time
	updatedAt  time.Time
}

// State is the serialisable form of a Session.
type State struct {
	ID         string    `json:"id"`
	Identity   *Identity `json:"identity,omitempty"`
	Step       Step      `json:"step"`
	Draft      Draft     `json:"draft"`
	Transcript []Message `json:"transcript"`
	Bookings   int       `json:"bookings"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

var ErrInvalidState = errors.New("invalid session state")

func newSession(identity *Identity, now time.Time) *Session {
	return &Session{
		id:        uuid.NewString(),
		identity:  identity,
		step:      StepInitial,
		createdAt: now,
		updatedAt: now,
	}
}

// RestoreSession rebuilds a session from a snapshot. A pending reply is not
// part of the snapshot, so restored sessions always accept the next action.
func RestoreSession(st State) (*Session, error) {
	if st.ID == "" {
		return nil, ErrInvalidState
	}
	if _, err := st.Step.MarshalText(); err != nil {
		return nil, ErrInvalidState
	}
	return &Session{
		id:         st.ID,
		identity:   st.Identity,
		step:       st.Step,
		draft:      st.Draft,
		transcript: cloneMessages(st.Transcript),
		bookings:   st.Bookings,
		createdAt:  st.CreatedAt,
		updatedAt:  st.UpdatedAt,
	}, nil
}

func (s *Session) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return State{
		ID:         s.id,
		Identity:   s.identity,
		Step:       s.step,
		Draft:      s.draft,
		Transcript: cloneMessages(s.transcript),
		Bookings:   s.bookings,
		CreatedAt:  s.createdAt,
		UpdatedAt:  s.updatedAt,
	}
}

func (s *Session) ID() string { return s.id }

func (s *Session) Identity() *Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identity
}

func (s *Session) Step() Step {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.step
}

func (s *Session) Draft() Draft {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft
}

// Transcript returns a copy of the messages exchanged so far.
func (s *Session) Transcript() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneMessages(s.transcript)
}

// Pending reports whether a bot reply is scheduled but not yet emitted.
func (s *Session) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

// InputEnabled reports whether the free-text box should be enabled.
func (s *Session) InputEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.pending && s.step.AcceptsText()
}

func (s *Session) Bookings() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bookings
}

// caller must hold mu
func (s *Session) append(m Message) {
	s.transcript = append(s.transcript, m)
	s.updatedAt = m.CreatedAt
}
