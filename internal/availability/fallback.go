package availability

import (
	"context"

	"go.uber.org/zap"

	"github.com/hackgods/vet-chat-scheduler/internal/chatbot"
)

// Fallback serves primary, switching to fallback while primary has no dates
// at all (an unseeded database).
type Fallback struct {
	primary  chatbot.Availability
	fallback chatbot.Availability
	logger   *zap.Logger
}

func NewFallback(primary, fallback chatbot.Availability, logger *zap.Logger) *Fallback {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fallback{primary: primary, fallback: fallback, logger: logger}
}

func (f *Fallback) Dates(ctx context.Context) ([]string, error) {
	src, err := f.source(ctx)
	if err != nil {
		return nil, err
	}
	return src.Dates(ctx)
}

func (f *Fallback) Times(ctx context.Context, date string) ([]string, error) {
	src, err := f.source(ctx)
	if err != nil {
		return nil, err
	}
	return src.Times(ctx, date)
}

func (f *Fallback) source(ctx context.Context) (chatbot.Availability, error) {
	dates, err := f.primary.Dates(ctx)
	if err != nil {
		return nil, err
	}
	if len(dates) == 0 {
		f.logger.Debug("availability table empty, serving default agenda")
		return f.fallback, nil
	}
	return f.primary, nil
}
