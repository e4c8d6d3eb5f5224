package realtime

import (
	"sync"
	"sync/atomic"

	"convosync/internal/push"
)

// Channel is one shared push subscription. Consumers attach handlers
// with On and detach with Consumer.Detach; the channel dispatches every
// inbound event to each attached handler in registration order.
type Channel struct {
	name   string
	filter push.Filter

	mu        sync.Mutex
	consumers []*Consumer
	closed    atomic.Bool
	stop      func()
	done      chan struct{}
}

func newChannel(name string) *Channel {
	return &Channel{name: name, done: make(chan struct{})}
}

// Name returns the channel's topic name.
func (c *Channel) Name() string { return c.name }

// SetFilter narrows the subscription. Only meaningful inside the
// configure callback, before the subscription is established.
func (c *Channel) SetFilter(f push.Filter) { c.filter = f }

// On attaches a handler and returns its consumer handle.
func (c *Channel) On(handler func(push.Event)) *Consumer {
	cons := &Consumer{ch: c, handler: handler}
	c.mu.Lock()
	c.consumers = append(c.consumers, cons)
	c.mu.Unlock()
	return cons
}

func (c *Channel) start(events <-chan push.Event, stop func()) {
	c.stop = stop
	go c.dispatchLoop(events)
}

func (c *Channel) dispatchLoop(events <-chan push.Event) {
	defer close(c.done)
	for evt := range events {
		if c.closed.Load() {
			continue
		}
		c.mu.Lock()
		snapshot := make([]*Consumer, len(c.consumers))
		copy(snapshot, c.consumers)
		c.mu.Unlock()

		for _, cons := range snapshot {
			cons.invoke(evt)
		}
	}
}

func (c *Channel) close() {
	if c.closed.Swap(true) {
		return
	}
	if c.stop != nil {
		c.stop()
	}
}

// Consumer is one attached handler. Detach is a synchronous guard: the
// handler never runs again after Detach returns, even while the network
// unsubscribe is still in flight.
type Consumer struct {
	ch      *Channel
	handler func(push.Event)

	mu       sync.Mutex // held across every handler invocation
	detached bool
}

func (cons *Consumer) invoke(evt push.Event) {
	cons.mu.Lock()
	defer cons.mu.Unlock()
	if cons.detached {
		return
	}
	cons.handler(evt)
}

// Detach stops event processing for this consumer. It waits for an
// in-flight delivery to this handler to complete, so no callback runs
// after Detach returns. Idempotent; must not be called from inside the
// handler itself.
func (cons *Consumer) Detach() {
	cons.mu.Lock()
	if cons.detached {
		cons.mu.Unlock()
		return
	}
	cons.detached = true
	cons.mu.Unlock()

	cons.ch.mu.Lock()
	for i, other := range cons.ch.consumers {
		if other == cons {
			cons.ch.consumers = append(cons.ch.consumers[:i], cons.ch.consumers[i+1:]...)
			break
		}
	}
	cons.ch.mu.Unlock()
}
