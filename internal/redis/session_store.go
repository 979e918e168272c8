package redisclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hackgods/vet-chat-scheduler/internal/chatbot"
)

var ErrSessionNotFound = errors.New("chat session not found")

const recentSessionsKey = "chat:sessions:recent"

// SessionStore keeps chat session snapshots as JSON with a sliding TTL and
// indexes them by last activity for the monitor view.
type SessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{client: client, ttl: ttl}
}

func sessionKey(id string) string {
	return fmt.Sprintf("chat:session:%s", id)
}

func (s *SessionStore) Save(ctx context.Context, st chatbot.State) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, sessionKey(st.ID), data, s.ttl)
	pipe.ZAdd(ctx, recentSessionsKey, redis.Z{Score: float64(st.UpdatedAt.Unix()), Member: st.ID})
	pipe.ZRemRangeByScore(ctx, recentSessionsKey, "-inf", fmt.Sprintf("(%d", time.Now().Add(-s.ttl).Unix()))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (s *SessionStore) Load(ctx context.Context, id string) (chatbot.State, error) {
	data, err := s.client.Get(ctx, sessionKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return chatbot.State{}, ErrSessionNotFound
		}
		return chatbot.State{}, fmt.Errorf("load session: %w", err)
	}

	var st chatbot.State
	if err := json.Unmarshal(data, &st); err != nil {
		return chatbot.State{}, fmt.Errorf("decode session %s: %w", id, err)
	}
	return st, nil
}

// Recent returns up to limit sessions, most recently active first. Index
// entries whose snapshot already expired are skipped.
func (s *SessionStore) Recent(ctx context.Context, limit int) ([]chatbot.State, error) {
	ids, err := s.client.ZRevRange(ctx, recentSessionsKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("list recent sessions: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = sessionKey(id)
	}
	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("load recent sessions: %w", err)
	}

	out := make([]chatbot.State, 0, len(vals))
	for i, v := range vals {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var st chatbot.State
		if err := json.Unmarshal([]byte(raw), &st); err != nil {
			return nil, fmt.Errorf("decode session %s: %w", ids[i], err)
		}
		out = append(out, st)
	}
	return out, nil
}

func (s *SessionStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
