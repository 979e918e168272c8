// Package chattest provides in-memory stand-ins for the Redis and Postgres
// collaborators of the chat service.
package chattest

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/hackgods/vet-chat-scheduler/internal/chatbot"
	"github.com/hackgods/vet-chat-scheduler/internal/directory"
	redisclient "github.com/hackgods/vet-chat-scheduler/internal/redis"
)

type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]chatbot.State
	Saves    int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: map[string]chatbot.State{}}
}

func (m *MemoryStore) Save(_ context.Context, st chatbot.State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[st.ID] = st
	m.Saves++
	return nil
}

func (m *MemoryStore) Load(_ context.Context, id string) (chatbot.State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.sessions[id]
	if !ok {
		return chatbot.State{}, redisclient.ErrSessionNotFound
	}
	return st, nil
}

func (m *MemoryStore) Recent(_ context.Context, limit int) ([]chatbot.State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]chatbot.State, 0, len(m.sessions))
	for _, st := range m.sessions {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// LocalLocker is a process-local Locker; a held session fails fast with
// ErrLockNotAcquired like the Redis implementation.
type LocalLocker struct {
	mu   sync.Mutex
	held map[string]bool
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: map[string]bool{}}
}

func (l *LocalLocker) WithSessionLock(ctx context.Context, sessionID string, fn func(ctx context.Context) error) error {
	l.mu.Lock()
	if l.held[sessionID] {
		l.mu.Unlock()
		return redisclient.ErrLockNotAcquired
	}
	l.held[sessionID] = true
	l.mu.Unlock()

	defer func() {
		l.mu.Lock()
		delete(l.held, sessionID)
		l.mu.Unlock()
	}()
	return fn(ctx)
}

// Hold marks a session as locked by someone else until the returned func is called.
func (l *LocalLocker) Hold(sessionID string) func() {
	l.mu.Lock()
	l.held[sessionID] = true
	l.mu.Unlock()
	return func() {
		l.mu.Lock()
		delete(l.held, sessionID)
		l.mu.Unlock()
	}
}

type Directory map[uuid.UUID]*chatbot.Identity

func (d Directory) GetIdentity(_ context.Context, clientID uuid.UUID) (*chatbot.Identity, error) {
	identity, ok := d[clientID]
	if !ok {
		return nil, directory.ErrClientNotFound
	}
	return identity, nil
}
