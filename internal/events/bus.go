package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event is an immutable record of something that happened in the domain.
type Event struct {
	ID          string          `json:"id"`
	Topic       string          `json:"topic"`
	AggregateID string          `json:"aggregateId"`
	Payload     json.RawMessage `json:"payload"`
	OccurredAt  time.Time       `json:"occurredAt"`
}

// Handler reacts to emitted events (e.g. notifications, receipt delivery).
type Handler func(ctx context.Context, ev Event) error

// Bus keeps a bounded in-memory journal of domain events and fans them out
// to subscribed handlers. State is volatile; the journal exists for the
// admin activity view, not as a system of record.
type Bus struct {
	Now         func() time.Time
	JournalSize int

	mu      sync.RWMutex
	subs    map[string][]Handler
	journal []Event
}

// Subscribe registers a handler for the given topic. An empty topic
// subscribes to every event.
func (b *Bus) Subscribe(topic string, h Handler) {
	if b == nil || h == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subs == nil {
		b.subs = make(map[string][]Handler)
	}
	b.subs[strings.TrimSpace(topic)] = append(b.subs[strings.TrimSpace(topic)], h)
}

// Emit records the event and dispatches it to all configured handlers.
func (b *Bus) Emit(ctx context.Context, topic string, aggregateID string, payload any) (Event, error) {
	if b == nil {
		return Event{}, errors.New("events: bus not configured")
	}
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return Event{}, errors.New("events: topic is required")
	}
	if strings.TrimSpace(aggregateID) == "" {
		return Event{}, errors.New("events: aggregate id is required")
	}
	encoded, err := encodePayload(payload)
	if err != nil {
		return Event{}, fmt.Errorf("events: encode payload: %w", err)
	}
	now := time.Now()
	if b.Now != nil {
		now = b.Now()
	}
	ev := Event{
		ID:          uuid.NewString(),
		Topic:       topic,
		AggregateID: aggregateID,
		Payload:     encoded,
		OccurredAt:  now,
	}

	b.mu.Lock()
	limit := b.JournalSize
	if limit <= 0 {
		limit = 512
	}
	b.journal = append(b.journal, ev)
	if len(b.journal) > limit {
		b.journal = b.journal[len(b.journal)-limit:]
	}
	handlers := append([]Handler(nil), b.subs[topic]...)
	handlers = append(handlers, b.subs[""]...)
	b.mu.Unlock()

	var joined error
	for _, h := range handlers {
		if err := h(ctx, ev); err != nil {
			joined = errors.Join(joined, fmt.Errorf("events: handler for %s: %w", topic, err))
		}
	}
	return ev, joined
}

// Recent returns up to n most recent events, newest first.
func (b *Bus) Recent(n int) []Event {
	if b == nil || n <= 0 {
		return nil
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if n > len(b.journal) {
		n = len(b.journal)
	}
	out := make([]Event, 0, n)
	for i := len(b.journal) - 1; i >= len(b.journal)-n; i-- {
		out = append(out, b.journal[i])
	}
	return out
}

func encodePayload(payload any) ([]byte, error) {
	if payload == nil {
		return []byte("{}"), nil
	}
	switch v := payload.(type) {
	case []byte:
		if len(v) == 0 {
			return []byte("{}"), nil
		}
		if !json.Valid(v) {
			return nil, errors.New("payload is not valid json")
		}
		return append([]byte(nil), v...), nil
	case json.RawMessage:
		return encodePayload([]byte(v))
	case string:
		if strings.TrimSpace(v) == "" {
			return []byte("{}"), nil
		}
		data := []byte(v)
		if !json.Valid(data) {
			return nil, errors.New("payload is not valid json")
		}
		return data, nil
	default:
		return json.Marshal(v)
	}
}
