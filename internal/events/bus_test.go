package events

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestEmitDispatchesToTopicAndWildcardSubscribers(t *testing.T) {
	b := &Bus{}
	var topicHits, allHits int
	b.Subscribe(TopicOrderPaid, func(ctx context.Context, ev Event) error {
		topicHits++
		return nil
	})
	b.Subscribe("", func(ctx context.Context, ev Event) error {
		allHits++
		return nil
	})

	_, err := b.Emit(context.Background(), TopicOrderPaid, "o-1", map[string]any{"total": 3250})
	if err != nil {
		t.Fatalf("emit: %v", err)
	}
	_, err = b.Emit(context.Background(), TopicCartItemAdded, "c-1", nil)
	if err != nil {
		t.Fatalf("emit: %v", err)
	}

	if topicHits != 1 {
		t.Fatalf("topic subscriber hit %d times, want 1", topicHits)
	}
	if allHits != 2 {
		t.Fatalf("wildcard subscriber hit %d times, want 2", allHits)
	}
}

func TestEmitValidatesInput(t *testing.T) {
	b := &Bus{}
	if _, err := b.Emit(context.Background(), "", "o-1", nil); err == nil {
		t.Fatal("empty topic should fail")
	}
	if _, err := b.Emit(context.Background(), TopicOrderPaid, "", nil); err == nil {
		t.Fatal("empty aggregate id should fail")
	}
	if _, err := b.Emit(context.Background(), TopicOrderPaid, "o-1", "not json"); err == nil {
		t.Fatal("invalid json payload should fail")
	}
}

func TestEmitJoinsHandlerErrors(t *testing.T) {
	b := &Bus{}
	sentinel := errors.New("handler broke")
	b.Subscribe(TopicOrderPaid, func(ctx context.Context, ev Event) error {
		return sentinel
	})

	ev, err := b.Emit(context.Background(), TopicOrderPaid, "o-1", nil)
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected handler error to surface, got %v", err)
	}
	if ev.ID == "" {
		t.Fatal("event should still be recorded when a handler fails")
	}
}

func TestRecentReturnsNewestFirstAndBoundsJournal(t *testing.T) {
	b := &Bus{JournalSize: 4}
	for i := 0; i < 6; i++ {
		if _, err := b.Emit(context.Background(), TopicCartItemAdded, fmt.Sprintf("c-%d", i), nil); err != nil {
			t.Fatalf("emit %d: %v", i, err)
		}
	}

	recent := b.Recent(10)
	if len(recent) != 4 {
		t.Fatalf("journal should hold 4 events, got %d", len(recent))
	}
	if recent[0].AggregateID != "c-5" {
		t.Fatalf("newest event should come first, got %s", recent[0].AggregateID)
	}
	if recent[3].AggregateID != "c-2" {
		t.Fatalf("oldest retained event should be c-2, got %s", recent[3].AggregateID)
	}
}
