package query

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Poller re-issues one cached query on a fixed interval, keeping
// aggregates fresh between push events.
type Poller struct {
	cache    *Cache
	key      Key
	input    string
	interval time.Duration
	logger   *zap.Logger
	cancel   context.CancelFunc
}

// NewPoller creates a poller for (key, input).
func NewPoller(cache *Cache, key Key, input string, interval time.Duration, logger *zap.Logger) *Poller {
	return &Poller{
		cache:    cache,
		key:      key,
		input:    input,
		interval: interval,
		logger:   logger,
	}
}

// Start begins polling in the background.
func (p *Poller) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)
	go p.loop(ctx)
}

// Stop stops the polling loop.
func (p *Poller) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
}

func (p *Poller) loop(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.cache.Invalidate(ctx, p.key, p.input)
		case <-ctx.Done():
			return
		}
	}
}
