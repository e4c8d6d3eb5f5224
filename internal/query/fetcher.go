package query

import (
	"context"
	"fmt"
	"strings"

	"convosync/internal/model"
	"convosync/internal/transport"
)

// TransportFetch adapts a transport into the cache's FetchFunc. Cache
// inputs are self-describing (client id, then the filter key or entity
// id), so every cached query can be refetched from its key alone.
func TransportFetch(t transport.Transport) FetchFunc {
	return func(ctx context.Context, key Key, input string) (any, error) {
		clientID, rest, _ := strings.Cut(input, "|")
		switch key {
		case KeyConversations:
			return t.ListConversations(ctx, clientID, model.ParseFiltersKey(rest))
		case KeyPageData:
			return t.PageData(ctx, clientID, model.ParseFiltersKey(rest))
		case KeyConversation:
			return t.GetConversation(ctx, clientID, rest)
		case KeyStats:
			return t.Stats(ctx, clientID)
		}
		return nil, fmt.Errorf("unknown query %q", key)
	}
}
