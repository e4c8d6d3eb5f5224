package bus

import (
	"testing"
	"time"
)

func TestPublishSubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("change.", 10)
	defer unsub()

	b.Publish(Event{Kind: KindConversationChanged, Table: "conversations", Timestamp: time.Now(), Payload: "test"})

	select {
	case evt := <-ch:
		if evt.Kind != KindConversationChanged {
			t.Errorf("got kind %q, want %q", evt.Kind, KindConversationChanged)
		}
		if evt.Table != "conversations" {
			t.Errorf("got table %q, want conversations", evt.Table)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestPrefixFiltering(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("send.", 10)
	defer unsub()

	b.Publish(Event{Kind: KindConversationChanged})
	b.Publish(Event{Kind: KindSendAck})

	select {
	case evt := <-ch:
		if evt.Kind != KindSendAck {
			t.Errorf("got kind %q, want %q", evt.Kind, KindSendAck)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}

	// Ensure the change event was not delivered.
	select {
	case evt := <-ch:
		t.Errorf("unexpected event: %v", evt)
	case <-time.After(50 * time.Millisecond):
		// Expected: no more events.
	}
}

func TestUnsubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("change.", 10)
	unsub()
	unsub() // safe to call twice

	b.Publish(Event{Kind: KindMessageChanged})

	select {
	case evt := <-ch:
		t.Errorf("received event after unsubscribe: %v", evt)
	case <-time.After(50 * time.Millisecond):
		// Expected.
	}
}

func TestDropOnFullBuffer(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("conn.", 1)
	defer unsub()

	// Fill buffer.
	b.Publish(Event{Kind: KindConnState, Payload: "one"})
	// This should be dropped (non-blocking).
	b.Publish(Event{Kind: KindConnState, Payload: "two"})

	evt := <-ch
	if evt.Payload != "one" {
		t.Errorf("got %v, want one", evt.Payload)
	}
}
