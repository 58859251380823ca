// Package notify queues user-facing messages (toasts) and hands them to a
// single rendering subscriber exactly once.
package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"meridian/internal/platform/logger"
	"meridian/internal/platform/metrics"
)

// Type is the severity of a message.
type Type string

const (
	TypeInfo    Type = "info"
	TypeSuccess Type = "success"
	TypeWarning Type = "warning"
	TypeError   Type = "error"
)

// Auto-dismiss durations per severity.
const (
	ShortDismiss  = 4 * time.Second
	MediumDismiss = 6 * time.Second
	LongDismiss   = 8 * time.Second
)

// Duration returns how long a message of this type stays on screen.
func (t Type) Duration() time.Duration {
	switch t {
	case TypeWarning:
		return MediumDismiss
	case TypeError:
		return LongDismiss
	default:
		return ShortDismiss
	}
}

// Message is one toast. OnAction runs when the user picks ActionText.
type Message struct {
	ID         string
	Type       Type
	Title      string
	Text       string
	ActionText string
	OnAction   func()
}

// HasAction reports whether the message offers an action.
func (m Message) HasAction() bool {
	return m.ActionText != "" && m.OnAction != nil
}

// Renderer displays a message for roughly dismissAfter.
type Renderer interface {
	Render(msg Message, dismissAfter time.Duration)
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(msg Message, dismissAfter time.Duration)

func (f RendererFunc) Render(msg Message, dismissAfter time.Duration) {
	f(msg, dismissAfter)
}

// Queue is a FIFO of pending messages. Enqueue never blocks; arrivals wake
// the subscriber through a one-slot signal channel, so bursts coalesce into
// one drain.
type Queue struct {
	mu      sync.Mutex
	pending []Message
	signal  chan struct{}

	logger  *slog.Logger
	metrics *metrics.Metrics
}

// Option configures a Queue.
type Option func(*Queue)

func WithLogger(l *slog.Logger) Option {
	return func(q *Queue) {
		q.logger = l
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(q *Queue) {
		q.metrics = m
	}
}

func New(opts ...Option) *Queue {
	q := &Queue{
		signal: make(chan struct{}, 1),
		logger: logger.Discard(),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Enqueue appends msg, assigning an ID when it has none, and returns the ID.
func (q *Queue) Enqueue(msg Message) string {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.Type == "" {
		msg.Type = TypeInfo
	}

	q.mu.Lock()
	q.pending = append(q.pending, msg)
	q.mu.Unlock()

	q.metrics.IncrementNotifications(string(msg.Type))
	q.logger.Debug("notification enqueued",
		"id", msg.ID,
		"type", msg.Type,
		"title", msg.Title,
	)

	select {
	case q.signal <- struct{}{}:
	default:
	}
	return msg.ID
}

// Dequeue removes and returns the oldest message.
func (q *Queue) Dequeue() (Message, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		return Message{}, false
	}
	msg := q.pending[0]
	q.pending[0] = Message{}
	q.pending = q.pending[1:]
	return msg, true
}

// Pending returns a copy of the queued messages, oldest first.
func (q *Queue) Pending() []Message {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Message, len(q.pending))
	copy(out, q.pending)
	return out
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Clear removes the message with id. An empty id clears everything.
func (q *Queue) Clear(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if id == "" {
		removed := len(q.pending) > 0
		q.pending = nil
		return removed
	}
	for i, m := range q.pending {
		if m.ID == id {
			q.pending = append(q.pending[:i], q.pending[i+1:]...)
			return true
		}
	}
	return false
}

// ClearAll empties the queue.
func (q *Queue) ClearAll() {
	q.Clear("")
}

// Drain renders every pending message once and returns how many were shown.
func (q *Queue) Drain(r Renderer) int {
	n := 0
	for {
		msg, ok := q.Dequeue()
		if !ok {
			return n
		}
		r.Render(msg, msg.Type.Duration())
		n++
	}
}

// Run is the rendering subscriber. It drains what is already queued, then
// every arrival, until ctx is done. Only one Run should be active per queue.
func (q *Queue) Run(ctx context.Context, r Renderer) error {
	q.Drain(r)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-q.signal:
			q.Drain(r)
		}
	}
}
