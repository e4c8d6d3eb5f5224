package push

import (
	"context"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"go.uber.org/zap"

	"convosync/internal/bus"
)

const (
	reconnectMin = time.Second
	reconnectMax = 30 * time.Second
)

// envelope is the wire frame pushed by the events endpoint.
type envelope struct {
	Topic       string         `json:"topic"`
	Type        string         `json:"type"`
	Table       string         `json:"table"`
	TimestampMS int64          `json:"ts"`
	Payload     map[string]any `json:"payload"`
}

// controlFrame is sent client-to-server to manage topic subscriptions.
type controlFrame struct {
	Action string      `json:"action"`
	Topic  string      `json:"topic"`
	Tables []string    `json:"tables,omitempty"`
	Types  []EventType `json:"types,omitempty"`
}

// WSSource maintains one WebSocket connection to the push endpoint and
// delivers decoded change events through an embedded LocalSource. It
// reconnects on its own with capped backoff and re-announces active
// topics after each reconnect; per-channel reconnection policy stays a
// caller concern.
type WSSource struct {
	url     string
	local   *LocalSource
	machine *Machine
	logger  *zap.Logger

	mu     sync.Mutex
	conn   *websocket.Conn
	topics map[string]controlFrame

	cancel context.CancelFunc
	done   chan struct{}
}

// NewWSSource creates a WebSocket push source. Run must be called to
// start the connection loop.
func NewWSSource(url string, b *bus.Bus, machine *Machine, logger *zap.Logger) *WSSource {
	return &WSSource{
		url:     url,
		local:   NewLocalSource(b),
		machine: machine,
		logger:  logger,
		topics:  make(map[string]controlFrame),
	}
}

// Run starts the connect/read loop in the background.
func (s *WSSource) Run(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	go s.loop(ctx)
}

// Stop tears the connection down and stops the loop.
func (s *WSSource) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	if s.done != nil {
		<-s.done
	}
	_ = s.machine.Transition(Closed)
}

func (s *WSSource) loop(ctx context.Context) {
	defer close(s.done)
	delay := reconnectMin

	for {
		if ctx.Err() != nil {
			return
		}
		_ = s.machine.Transition(Connecting)

		conn, _, err := websocket.Dial(ctx, s.url, nil)
		if err != nil {
			s.logger.Warn("push dial failed", zap.Error(err), zap.Duration("retry_in", delay))
			_ = s.machine.Transition(Reconnecting)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return
			}
			delay = min(delay*2, reconnectMax)
			continue
		}

		delay = reconnectMin
		_ = s.machine.Transition(Connected)
		s.setConn(conn)
		s.resubscribe(ctx)

		s.readLoop(ctx, conn)
		s.setConn(nil)
		_ = conn.Close(websocket.StatusNormalClosure, "")

		if ctx.Err() != nil {
			return
		}
		s.logger.Warn("push connection lost, reconnecting")
		_ = s.machine.Transition(Reconnecting)
	}
}

func (s *WSSource) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		var env envelope
		if err := wsjson.Read(ctx, conn, &env); err != nil {
			return
		}
		s.local.Publish(Event{
			Topic:     env.Topic,
			Type:      EventType(env.Type),
			Table:     env.Table,
			Timestamp: time.UnixMilli(env.TimestampMS),
			Payload:   env.Payload,
		})
	}
}

func (s *WSSource) setConn(conn *websocket.Conn) {
	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()
}

func (s *WSSource) resubscribe(ctx context.Context) {
	s.mu.Lock()
	frames := make([]controlFrame, 0, len(s.topics))
	for _, f := range s.topics {
		frames = append(frames, f)
	}
	conn := s.conn
	s.mu.Unlock()

	for _, f := range frames {
		if err := wsjson.Write(ctx, conn, f); err != nil {
			s.logger.Warn("resubscribe failed", zap.String("topic", f.Topic), zap.Error(err))
			return
		}
	}
}

// Subscribe implements Source. The topic is announced to the server when
// a connection is up and re-announced after every reconnect.
func (s *WSSource) Subscribe(ctx context.Context, topic string, filter Filter) (<-chan Event, func(), error) {
	frame := controlFrame{Action: "subscribe", Topic: topic, Tables: filter.Tables, Types: filter.Types}

	s.mu.Lock()
	s.topics[topic] = frame
	conn := s.conn
	s.mu.Unlock()

	if conn != nil {
		if err := wsjson.Write(ctx, conn, frame); err != nil {
			s.mu.Lock()
			delete(s.topics, topic)
			s.mu.Unlock()
			return nil, nil, err
		}
	}

	events, stop, err := s.local.Subscribe(ctx, topic, filter)
	if err != nil {
		return nil, nil, err
	}

	var once sync.Once
	teardown := func() {
		once.Do(func() {
			stop()
			s.mu.Lock()
			delete(s.topics, topic)
			conn := s.conn
			s.mu.Unlock()
			if conn != nil {
				// Best effort; the server drops the topic on close anyway.
				_ = wsjson.Write(context.Background(), conn, controlFrame{Action: "unsubscribe", Topic: topic})
			}
		})
	}
	return events, teardown, nil
}
