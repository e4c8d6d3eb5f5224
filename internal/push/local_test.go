package push

import (
	"context"
	"testing"
	"time"

	"convosync/internal/bus"
)

func TestLocalSourceDeliversMatchingEvents(t *testing.T) {
	src := NewLocalSource(bus.New())
	events, stop, err := src.Subscribe(context.Background(), "tenant:t1:conversations", Filter{
		Tables: []string{"conversations"},
		Types:  []EventType{Update},
	})
	if err != nil {
		t.Fatal(err)
	}
	defer stop()

	src.Publish(Event{Topic: "tenant:t1:conversations", Type: Update, Table: "conversations", Payload: map[string]any{"id": "c1"}})

	select {
	case evt := <-events:
		if evt.PayloadString("id") != "c1" {
			t.Errorf("payload id = %q, want c1", evt.PayloadString("id"))
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestLocalSourceFiltersTopicAndTable(t *testing.T) {
	src := NewLocalSource(bus.New())
	events, stop, err := src.Subscribe(context.Background(), "tenant:t1:conversations", Filter{
		Tables: []string{"conversations"},
	})
	if err != nil {
		t.Fatal(err)
	}
	defer stop()

	// Wrong topic.
	src.Publish(Event{Topic: "tenant:t2:conversations", Type: Update, Table: "conversations"})
	// Wrong table.
	src.Publish(Event{Topic: "tenant:t1:conversations", Type: Insert, Table: "messages"})

	select {
	case evt := <-events:
		t.Errorf("unexpected event: %+v", evt)
	case <-time.After(50 * time.Millisecond):
		// Expected.
	}
}

func TestLocalSourceStopClosesStream(t *testing.T) {
	src := NewLocalSource(bus.New())
	events, stop, err := src.Subscribe(context.Background(), "tenant:t1:conversations", Filter{})
	if err != nil {
		t.Fatal(err)
	}

	stop()
	stop() // idempotent

	select {
	case _, open := <-events:
		if open {
			t.Error("expected closed stream after stop")
		}
	case <-time.After(time.Second):
		t.Fatal("stream not closed after stop")
	}
}
