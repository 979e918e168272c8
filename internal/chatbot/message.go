package chatbot

import "time"

type Sender string

const (
	SenderBot  Sender = "bot"
	SenderUser Sender = "user"
)

// Option is a selectable button offered by a bot message.
type Option struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Message is one entry of the transcript. Messages are never mutated after append.
type Message struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Sender    Sender    `json:"sender"`
	Options   []Option  `json:"options,omitempty"`
	TimeSlots []string  `json:"time_slots,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func findOption(opts []Option, value string) (Option, bool) {
	for _, o := range opts {
		if o.Value == value {
			return o, true
		}
	}
	return Option{}, false
}

func cloneMessages(msgs []Message) []Message {
	out := make([]Message, len(msgs))
	copy(out, msgs)
	return out
}
