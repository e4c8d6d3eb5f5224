package agent

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"convosync/internal/model"
	"convosync/internal/push"
	"convosync/internal/query"
	"convosync/internal/realtime"
)

// Router turns inbound push events into cache invalidation. Events that
// name a conversation get the narrow treatment; anything whose scope is
// unclear (no id, deletes, unknown tables) falls back to broad.
type Router struct {
	clientID    string
	manager     *realtime.Manager
	invalidator *query.Invalidator
	logger      *zap.Logger

	topic    string
	consumer *realtime.Consumer
	cancel   context.CancelFunc
}

// NewRouter creates a router for one tenant.
func NewRouter(clientID string, m *realtime.Manager, iv *query.Invalidator, logger *zap.Logger) *Router {
	return &Router{
		clientID:    clientID,
		manager:     m,
		invalidator: iv,
		logger:      logger,
		topic:       TopicFor(clientID),
	}
}

// TopicFor returns the push topic carrying one tenant's change events.
func TopicFor(clientID string) string {
	return fmt.Sprintf("client:%s:conversations", clientID)
}

// Start acquires the tenant channel and begins routing.
func (r *Router) Start(ctx context.Context) error {
	ctx, r.cancel = context.WithCancel(ctx)

	ch, err := r.manager.GetOrCreate(r.topic, func(c *realtime.Channel) {
		c.SetFilter(push.Filter{Tables: []string{"conversations", "messages"}})
	})
	if err != nil {
		return fmt.Errorf("acquire tenant channel: %w", err)
	}
	r.consumer = ch.On(func(evt push.Event) {
		r.route(ctx, evt)
	})
	return nil
}

// Stop detaches the handler and releases the channel. The detach guard
// is synchronous, so no event is routed after Stop returns.
func (r *Router) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	if r.consumer != nil {
		r.consumer.Detach()
	}
	r.manager.Remove(r.topic)
}

func (r *Router) route(ctx context.Context, evt push.Event) {
	switch evt.Table {
	case "conversations":
		id := evt.PayloadString("id")
		if id == "" || evt.Type == push.Delete {
			r.invalidator.Broad(ctx, r.clientID)
			return
		}
		r.invalidator.Narrow(ctx, r.clientID, id, model.ListFilters{})
	case "messages":
		convID := evt.PayloadString("conversation_id")
		if convID == "" {
			r.invalidator.Broad(ctx, r.clientID)
			return
		}
		r.invalidator.Narrow(ctx, r.clientID, convID, model.ListFilters{})
	default:
		r.logger.Debug("event for unknown table, invalidating broadly", zap.String("table", evt.Table))
		r.invalidator.Broad(ctx, r.clientID)
	}
}
