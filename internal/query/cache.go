package query

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"convosync/internal/model"
)

// Key names one remote query operation.
type Key string

const (
	KeyConversations Key = "conversations.list"
	KeyPageData      Key = "conversations.page"
	KeyConversation  Key = "conversations.by_id"
	KeyStats         Key = "conversations.stats"
)

// ListInput builds the cache input for list-shaped queries. Inputs are
// prefixed with the client id so broad invalidation can match every
// filter variant of one tenant.
func ListInput(clientID string, f model.ListFilters) string {
	return clientID + "|" + f.Key()
}

// ConversationInput builds the cache input for the single-conversation query.
func ConversationInput(clientID, conversationID string) string {
	return clientID + "|" + conversationID
}

// StatsInput builds the cache input for the stats query.
func StatsInput(clientID string) string {
	return clientID + "|"
}

// FetchFunc loads a query result from the transport.
type FetchFunc func(ctx context.Context, key Key, input string) (any, error)

type cacheKey struct {
	Key   Key
	Input string
}

type cached struct {
	value     any
	fetchedAt time.Time
}

// Cache holds materialized query results keyed by (operation, input).
// Invalidation drops the entry and refetches immediately, so readers
// observe the post-mutation state as soon as the refetch lands. Refetch
// failures are logged, not surfaced; the display converges on the next
// successful fetch.
type Cache struct {
	mu      sync.Mutex
	entries map[cacheKey]cached
	fetch   FetchFunc
	logger  *zap.Logger
	now     func() time.Time
}

// NewCache creates a cache backed by fetch.
func NewCache(fetch FetchFunc, logger *zap.Logger) *Cache {
	return &Cache{
		entries: make(map[cacheKey]cached),
		fetch:   fetch,
		logger:  logger,
		now:     time.Now,
	}
}

// Get returns the cached result for (key, input), fetching it on a miss.
func (c *Cache) Get(ctx context.Context, key Key, input string) (any, error) {
	ck := cacheKey{Key: key, Input: input}
	c.mu.Lock()
	if e, ok := c.entries[ck]; ok {
		c.mu.Unlock()
		return e.value, nil
	}
	c.mu.Unlock()

	return c.refetch(ctx, ck)
}

// Peek returns the cached value without fetching.
func (c *Cache) Peek(key Key, input string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[cacheKey{Key: key, Input: input}]
	return e.value, ok
}

// Invalidate drops the exact (key, input) entry and refetches it.
func (c *Cache) Invalidate(ctx context.Context, key Key, input string) {
	ck := cacheKey{Key: key, Input: input}
	c.mu.Lock()
	delete(c.entries, ck)
	c.mu.Unlock()

	if _, err := c.refetch(ctx, ck); err != nil {
		c.logger.Warn("refetch after invalidation failed",
			zap.String("query", string(key)), zap.String("input", input), zap.Error(err))
	}
}

// InvalidatePrefix drops and refetches every entry of key whose input
// starts with inputPrefix.
func (c *Cache) InvalidatePrefix(ctx context.Context, key Key, inputPrefix string) {
	c.mu.Lock()
	var stale []cacheKey
	for ck := range c.entries {
		if ck.Key == key && strings.HasPrefix(ck.Input, inputPrefix) {
			stale = append(stale, ck)
		}
	}
	for _, ck := range stale {
		delete(c.entries, ck)
	}
	c.mu.Unlock()

	for _, ck := range stale {
		if _, err := c.refetch(ctx, ck); err != nil {
			c.logger.Warn("refetch after invalidation failed",
				zap.String("query", string(ck.Key)), zap.String("input", ck.Input), zap.Error(err))
		}
	}
}

func (c *Cache) refetch(ctx context.Context, ck cacheKey) (any, error) {
	value, err := c.fetch(ctx, ck.Key, ck.Input)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.entries[ck] = cached{value: value, fetchedAt: c.now()}
	c.mu.Unlock()
	return value, nil
}
