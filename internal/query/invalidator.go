package query

import (
	"context"

	"go.uber.org/zap"

	"convosync/internal/model"
)

// Invalidator decides which cached queries a settled mutation or push
// event makes stale. Two policies exist: Narrow for single-entity
// mutations with a known scope, Broad when the affected scope is
// uncertain or spans multiple conversations.
type Invalidator struct {
	cache  *Cache
	logger *zap.Logger
}

// NewInvalidator creates an invalidator over the cache.
func NewInvalidator(cache *Cache, logger *zap.Logger) *Invalidator {
	return &Invalidator{cache: cache, logger: logger}
}

// Narrow refetches exactly what a single-entity mutation can touch: the
// list and page-data for the caller's current filters, the conversation
// itself when its id is known, and always the stats query — stats are a
// cross-cutting aggregate that any single-entity mutation can shift.
func (iv *Invalidator) Narrow(ctx context.Context, clientID, conversationID string, filters model.ListFilters) {
	iv.logger.Debug("narrow invalidation",
		zap.String("client_id", clientID), zap.String("conversation_id", conversationID))

	iv.cache.Invalidate(ctx, KeyConversations, ListInput(clientID, filters))
	iv.cache.Invalidate(ctx, KeyPageData, ListInput(clientID, filters))
	if conversationID != "" {
		iv.cache.Invalidate(ctx, KeyConversation, ConversationInput(clientID, conversationID))
	}
	iv.cache.Invalidate(ctx, KeyStats, StatsInput(clientID))
}

// Broad refetches every list and page-data variant of the tenant
// regardless of filter, plus stats.
func (iv *Invalidator) Broad(ctx context.Context, clientID string) {
	iv.logger.Debug("broad invalidation", zap.String("client_id", clientID))

	prefix := clientID + "|"
	iv.cache.InvalidatePrefix(ctx, KeyConversations, prefix)
	iv.cache.InvalidatePrefix(ctx, KeyPageData, prefix)
	iv.cache.Invalidate(ctx, KeyStats, StatsInput(clientID))
}
