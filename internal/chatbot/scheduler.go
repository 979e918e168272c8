package chatbot

import (
	"context"
	"sync"
	"time"
)

// Scheduler runs a continuation after a delay. Bot replies are delivered
// through it to simulate response latency.
type Scheduler interface {
	Schedule(delay time.Duration, fn func())
}

// TimerScheduler runs continuations on the runtime timer.
type TimerScheduler struct{}

func (TimerScheduler) Schedule(delay time.Duration, fn func()) {
	time.AfterFunc(delay, fn)
}

// ManualScheduler queues continuations until RunPending is called.
type ManualScheduler struct {
	mu     sync.Mutex
	queue  []func()
	delays []time.Duration
}

func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{}
}

func (m *ManualScheduler) Schedule(delay time.Duration, fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, fn)
	m.delays = append(m.delays, delay)
}

// Len returns the number of queued continuations.
func (m *ManualScheduler) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

// Delays returns the delay requested for every continuation scheduled so far.
func (m *ManualScheduler) Delays() []time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]time.Duration, len(m.delays))
	copy(out, m.delays)
	return out
}

// RunPending runs queued continuations in FIFO order, including any queued
// while running, and returns how many ran.
func (m *ManualScheduler) RunPending() int {
	n := 0
	for {
		m.mu.Lock()
		if len(m.queue) == 0 {
			m.mu.Unlock()
			return n
		}
		fn := m.queue[0]
		m.queue = m.queue[1:]
		m.mu.Unlock()

		fn()
		n++
	}
}

// Reply is a handle for a bot message that has been scheduled but may not
// have been emitted yet.
type Reply struct {
	done chan struct{}
	msg  Message
}

func newReply() *Reply {
	return &Reply{done: make(chan struct{})}
}

func (r *Reply) resolve(m Message) {
	r.msg = m
	close(r.done)
}

// Done is closed once the bot message is appended to the transcript.
func (r *Reply) Done() <-chan struct{} { return r.done }

// Message returns the bot message if it has been emitted.
func (r *Reply) Message() (Message, bool) {
	select {
	case <-r.done:
		return r.msg, true
	default:
		return Message{}, false
	}
}

// Wait blocks until the bot message is emitted or ctx is done.
func (r *Reply) Wait(ctx context.Context) (Message, error) {
	select {
	case <-r.done:
		return r.msg, nil
	case <-ctx.Done():
		return Message{}, ctx.Err()
	}
}
