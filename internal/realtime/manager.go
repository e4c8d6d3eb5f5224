package realtime

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"convosync/internal/push"
)

// Manager owns one push subscription per topic name. Concurrent callers
// asking for the same topic share a single underlying channel; creation
// is de-duplicated so the source is never subscribed twice for one key.
type Manager struct {
	mu       sync.Mutex
	source   push.Source
	logger   *zap.Logger
	channels map[string]*entry
}

type entry struct {
	refs  int
	ch    *Channel
	ready chan struct{} // closed once creation settles
	err   error
}

// NewManager creates a manager on top of the given push source.
func NewManager(source push.Source, logger *zap.Logger) *Manager {
	return &Manager{
		source:   source,
		logger:   logger,
		channels: make(map[string]*entry),
	}
}

// GetOrCreate returns the channel for name, creating and subscribing it
// on first use. configure runs exactly once, on the caller that creates
// the channel, before the subscription is established; late callers
// block until creation settles and then share the same channel.
// Subscription failures are logged and returned; the caller decides
// whether and when to retry.
func (m *Manager) GetOrCreate(name string, configure func(*Channel)) (*Channel, error) {
	m.mu.Lock()
	if e, ok := m.channels[name]; ok {
		e.refs++
		m.mu.Unlock()
		<-e.ready
		if e.err != nil {
			return nil, e.err
		}
		return e.ch, nil
	}

	e := &entry{refs: 1, ready: make(chan struct{})}
	e.ch = newChannel(name)
	m.channels[name] = e
	m.mu.Unlock()

	if configure != nil {
		configure(e.ch)
	}

	events, stop, err := m.source.Subscribe(context.Background(), name, e.ch.filter)
	if err != nil {
		m.logger.Error("channel subscribe failed", zap.String("topic", name), zap.Error(err))
		m.mu.Lock()
		e.err = err
		delete(m.channels, name)
		m.mu.Unlock()
		close(e.ready)
		return nil, err
	}

	e.ch.start(events, stop)
	close(e.ready)
	m.logger.Info("channel subscribed", zap.String("topic", name))
	return e.ch, nil
}

// Remove releases one reference to the named channel. The underlying
// subscription is torn down only when the last reference goes; calling
// Remove for an unknown name, or more often than GetOrCreate, is a
// no-op. Safe to call concurrently with an in-flight GetOrCreate for
// the same name: teardown waits for creation to settle first.
func (m *Manager) Remove(name string) {
	m.mu.Lock()
	e, ok := m.channels[name]
	if !ok {
		m.mu.Unlock()
		return
	}
	e.refs--
	if e.refs > 0 {
		m.mu.Unlock()
		return
	}
	delete(m.channels, name)
	m.mu.Unlock()

	go func() {
		<-e.ready
		if e.err == nil {
			e.ch.close()
			m.logger.Info("channel removed", zap.String("topic", name))
		}
	}()
}
