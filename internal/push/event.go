package push

import (
	"context"
	"slices"
	"time"
)

// EventType is the kind of row change carried by a push event.
type EventType string

const (
	Insert EventType = "INSERT"
	Update EventType = "UPDATE"
	Delete EventType = "DELETE"
)

// Event is one server-pushed change notification.
type Event struct {
	Topic     string
	Type      EventType
	Table     string
	Timestamp time.Time
	Payload   map[string]any
}

// PayloadString returns a string field from the payload, or "".
func (e Event) PayloadString(key string) string {
	if e.Payload == nil {
		return ""
	}
	s, _ := e.Payload[key].(string)
	return s
}

// Filter narrows a subscription to specific tables and change types.
// Empty slices match everything.
type Filter struct {
	Tables []string
	Types  []EventType
}

// Matches reports whether the filter admits evt.
func (f Filter) Matches(evt Event) bool {
	if len(f.Tables) > 0 && !slices.Contains(f.Tables, evt.Table) {
		return false
	}
	if len(f.Types) > 0 && !slices.Contains(f.Types, evt.Type) {
		return false
	}
	return true
}

// Source is the push-event collaborator: a stream of change events for
// one topic. The returned stop function tears the subscription down;
// calling it more than once is safe.
type Source interface {
	Subscribe(ctx context.Context, topic string, filter Filter) (<-chan Event, func(), error)
}
