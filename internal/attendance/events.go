package attendance

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"classroll/internal/calendar"
	"classroll/internal/queue"
)

// EventType names a state change.
type EventType string

const (
	EventMarkedPresent     EventType = "ledger.present"
	EventCleared           EventType = "ledger.cleared"
	EventRequestSubmitted  EventType = "request.submitted"
	EventRequestApproved   EventType = "request.approved"
	EventRequestRejected   EventType = "request.rejected"
	EventStudentRegistered EventType = "roster.registered"
	EventStudentUpdated    EventType = "roster.updated"
	EventStudentRemoved    EventType = "roster.removed"
	EventNotificationSent  EventType = "notification.sent"
	EventNotificationFail  EventType = "notification.failed"
)

// Event describes a committed change. It is emitted after the store write.
type Event struct {
	Type      EventType     `json:"type"`
	StudentID string        `json:"student_id,omitempty"`
	Date      calendar.Date `json:"date"`
	RequestID string        `json:"request_id,omitempty"`
	At        time.Time     `json:"at"`
}

// Observer receives events. Implementations must not call back into the
// component that emitted the event synchronously.
type Observer interface {
	Observe(ctx context.Context, evt Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, evt Event)

func (f ObserverFunc) Observe(ctx context.Context, evt Event) { f(ctx, evt) }

// Bus fans events out to subscribers.
type Bus struct {
	mu   sync.RWMutex
	subs []Observer
}

// NewBus creates a bus with optional initial subscribers.
func NewBus(subs ...Observer) *Bus {
	return &Bus{subs: subs}
}

// Subscribe adds an observer.
func (b *Bus) Subscribe(o Observer) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = append(b.subs, o)
}

// Observe forwards to every subscriber.
func (b *Bus) Observe(ctx context.Context, evt Event) {
	if b == nil {
		return
	}
	b.mu.RLock()
	subs := append([]Observer(nil), b.subs...)
	b.mu.RUnlock()
	for _, s := range subs {
		s.Observe(ctx, evt)
	}
}

const publishTimeout = 500 * time.Millisecond

// QueueObserver publishes events onto a queue for out-of-process consumers.
type QueueObserver struct {
	q   queue.Queue
	log zerolog.Logger
}

// NewQueueObserver wraps q.
func NewQueueObserver(q queue.Queue, log zerolog.Logger) *QueueObserver {
	return &QueueObserver{q: q, log: log}
}

// Observe publishes with a short deadline; a failed publish is logged, never
// returned, so the committed change stands.
func (o *QueueObserver) Observe(ctx context.Context, evt Event) {
	body, err := json.Marshal(evt)
	if err != nil {
		o.log.Error().Err(err).Str("type", string(evt.Type)).Msg("encode event")
		return
	}
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := o.q.Publish(pubCtx, queue.Message{Type: string(evt.Type), Body: body}); err != nil {
		o.log.Warn().Err(err).Str("type", string(evt.Type)).Msg("queue publish failed")
	}
}

// DecodeEvent reads an event published by QueueObserver.
func DecodeEvent(msg queue.Message) (Event, error) {
	var evt Event
	err := json.Unmarshal(msg.Body, &evt)
	return evt, err
}
