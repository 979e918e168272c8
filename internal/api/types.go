package api

import (
	"time"

	"github.com/hackgods/vet-chat-scheduler/internal/chatbot"
)

type StartSessionRequest struct {
	ClientID string `json:"client_id,omitempty"`
}

type OptionRequest struct {
	Step  string `json:"step"`
	Label string `json:"label"`
	Value string `json:"value"`
}

type TextRequest struct {
	Step string `json:"step"`
	Text string `json:"text"`
}

type DateRequest struct {
	Date string `json:"date"`
}

type TimeRequest struct {
	Time string `json:"time"`
}

type ChoiceRequest struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

type SessionResponse struct {
	ID           string            `json:"id"`
	Step         chatbot.Step      `json:"step"`
	InputEnabled bool              `json:"input_enabled"`
	Draft        chatbot.Draft     `json:"draft"`
	Bookings     int               `json:"bookings"`
	Messages     []chatbot.Message `json:"messages"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

func sessionResponse(st chatbot.State) SessionResponse {
	msgs := st.Transcript
	if msgs == nil {
		msgs = []chatbot.Message{}
	}
	return SessionResponse{
		ID:           st.ID,
		Step:         st.Step,
		InputEnabled: st.Step.AcceptsText(),
		Draft:        st.Draft,
		Bookings:     st.Bookings,
		Messages:     msgs,
		CreatedAt:    st.CreatedAt,
		UpdatedAt:    st.UpdatedAt,
	}
}

type MonitorSessionResponse struct {
	ID         string        `json:"id"`
	ClientName string        `json:"client_name,omitempty"`
	Status     string        `json:"status"`
	Step       chatbot.Step  `json:"step"`
	Messages   int           `json:"messages"`
	Bookings   int           `json:"bookings"`
	Draft      chatbot.Draft `json:"draft"`
	StartedAt  time.Time     `json:"started_at"`
	UpdatedAt  time.Time     `json:"updated_at"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
