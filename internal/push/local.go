package push

import (
	"context"

	"convosync/internal/bus"
)

const subscribeBuffer = 64

// LocalSource fans push events out through the in-process bus. It backs
// tests and any deployment where change events are produced in-process;
// WSSource feeds into one after decoding frames off the wire.
type LocalSource struct {
	bus *bus.Bus
}

// NewLocalSource creates a source backed by b.
func NewLocalSource(b *bus.Bus) *LocalSource {
	return &LocalSource{bus: b}
}

// Publish injects a change event into the source.
func (s *LocalSource) Publish(evt Event) {
	s.bus.Publish(bus.Event{
		Kind:      kindFor(evt.Table),
		Table:     evt.Table,
		Timestamp: evt.Timestamp,
		Payload:   evt,
	})
}

func kindFor(table string) string {
	switch table {
	case "conversations":
		return bus.KindConversationChanged
	case "messages":
		return bus.KindMessageChanged
	default:
		return "change." + table
	}
}

// Subscribe implements Source. Events for other topics, or rejected by
// the filter, are silently skipped.
func (s *LocalSource) Subscribe(ctx context.Context, topic string, filter Filter) (<-chan Event, func(), error) {
	in, unsub := s.bus.Subscribe("change.", subscribeBuffer)
	out := make(chan Event, subscribeBuffer)
	ctx, cancel := context.WithCancel(ctx)

	go func() {
		defer close(out)
		defer unsub()
		for {
			select {
			case be := <-in:
				evt, ok := be.Payload.(Event)
				if !ok || evt.Topic != topic || !filter.Matches(evt) {
					continue
				}
				select {
				case out <- evt:
				default:
					// Consumer buffer full; drop.
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, cancel, nil
}
