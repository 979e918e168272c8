package availability

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/hackgods/vet-chat-scheduler/internal/chatbot"
)

type erroringAvailability struct{ err error }

func (e erroringAvailability) Dates(context.Context) ([]string, error)          { return nil, e.err }
func (e erroringAvailability) Times(context.Context, string) ([]string, error) { return nil, e.err }

func TestFallback_UsesPrimaryWhenSeeded(t *testing.T) {
	primary := chatbot.NewStaticAvailability(
		[]string{"2026-03-02"},
		map[string][]string{"2026-03-02": {"08:30"}},
	)
	f := NewFallback(primary, chatbot.DefaultAvailability(), nil)

	dates, err := f.Dates(context.Background())
	if err != nil {
		t.Fatalf("dates: %v", err)
	}
	if !reflect.DeepEqual(dates, []string{"2026-03-02"}) {
		t.Fatalf("unexpected dates %v", dates)
	}
	times, err := f.Times(context.Background(), "2026-03-02")
	if err != nil {
		t.Fatalf("times: %v", err)
	}
	if !reflect.DeepEqual(times, []string{"08:30"}) {
		t.Fatalf("unexpected times %v", times)
	}
}

func TestFallback_UsesDefaultWhenEmpty(t *testing.T) {
	f := NewFallback(chatbot.NewStaticAvailability(nil, nil), chatbot.DefaultAvailability(), nil)

	dates, err := f.Dates(context.Background())
	if err != nil {
		t.Fatalf("dates: %v", err)
	}
	if len(dates) != 5 || dates[0] != "2025-11-15" {
		t.Fatalf("expected default agenda, got %v", dates)
	}
	times, err := f.Times(context.Background(), "2025-11-20")
	if err != nil {
		t.Fatalf("times: %v", err)
	}
	if !reflect.DeepEqual(times, []string{"09:00", "10:00", "15:00", "16:00"}) {
		t.Fatalf("unexpected times %v", times)
	}
}

func TestFallback_PropagatesErrors(t *testing.T) {
	boom := errors.New("db down")
	f := NewFallback(erroringAvailability{err: boom}, chatbot.DefaultAvailability(), nil)

	if _, err := f.Dates(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected primary error, got %v", err)
	}
	if _, err := f.Times(context.Background(), "2025-11-15"); !errors.Is(err, boom) {
		t.Fatalf("expected primary error, got %v", err)
	}
}

func TestParseTimeOfDay(t *testing.T) {
	tod, err := ParseTimeOfDay("09:30")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !tod.Valid || tod.Microseconds != (9*3600+30*60)*1_000_000 {
		t.Fatalf("unexpected value %+v", tod)
	}
	if _, err := ParseTimeOfDay("9h"); err == nil {
		t.Fatalf("expected error for malformed time")
	}
}
