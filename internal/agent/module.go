package agent

import (
	"context"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"convosync/internal/bus"
	"convosync/internal/config"
	"convosync/internal/lock"
	"convosync/internal/logging"
	"convosync/internal/model"
	"convosync/internal/notify"
	"convosync/internal/push"
	"convosync/internal/query"
	"convosync/internal/realtime"
	"convosync/internal/send"
	"convosync/internal/session"
	"convosync/internal/store"
	"convosync/internal/transport"
)

// Params holds the resolved profile configuration passed to the fx module.
type Params struct {
	ProfileName string
}

// Module returns the fx module for the agent, composing all providers
// and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("agent",
		fx.Supply(p),
		fx.Provide(
			provideLogger,
			provideProfile,
			provideBus,
			provideStateMachine,
			provideLock,
			provideStore,
			provideTransport,
			provideCache,
			provideInvalidator,
			provideNotify,
			providePushSource,
			provideManager,
			provideRouter,
			providePipeline,
			provideStatsPoller,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideLogger(p Params) (*zap.Logger, error) {
	return logging.New(session.LogPath(p.ProfileName), p.ProfileName)
}

func provideProfile(p Params) (*config.Profile, error) {
	profile, err := config.LoadProfile(session.ProfileConfigPath(p.ProfileName))
	if err != nil {
		return nil, err
	}
	if err := profile.Validate(); err != nil {
		return nil, err
	}
	return profile, nil
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideStateMachine(b *bus.Bus) *push.Machine {
	return push.NewMachine(b)
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := session.EnsureDir(p.ProfileName); err != nil {
		return nil, err
	}
	logger.Info("acquiring profile lock", zap.String("profile", p.ProfileName))
	l, err := lock.Acquire(session.Dir(p.ProfileName))
	if err != nil {
		return nil, err
	}
	logger.Info("profile lock acquired")
	return l, nil
}

func provideStore(p Params, logger *zap.Logger) (*store.DB, error) {
	dbPath := session.DBPath(p.ProfileName)
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, err
	}
	result, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if result.Changed {
		logger.Info("migrations applied", zap.Uint("version", result.Version))
	} else {
		logger.Info("migrations up to date", zap.Uint("version", result.Version))
	}
	logger.Info("store initialized", zap.String("path", dbPath))
	return db, nil
}

func provideTransport(profile *config.Profile) transport.Transport {
	return transport.NewHTTPClient(profile.APIBaseURL, profile.APIToken)
}

func provideCache(t transport.Transport, logger *zap.Logger) *query.Cache {
	return query.NewCache(query.TransportFetch(t), logger)
}

func provideInvalidator(cache *query.Cache, logger *zap.Logger) *query.Invalidator {
	return query.NewInvalidator(cache, logger)
}

func provideNotify() *notify.Center {
	return notify.NewCenter()
}

func providePushSource(profile *config.Profile, b *bus.Bus, machine *push.Machine, logger *zap.Logger) *push.WSSource {
	return push.NewWSSource(profile.PushURL, b, machine, logger)
}

func provideManager(source *push.WSSource, logger *zap.Logger) *realtime.Manager {
	return realtime.NewManager(source, logger)
}

func provideRouter(profile *config.Profile, m *realtime.Manager, iv *query.Invalidator, logger *zap.Logger) *Router {
	return NewRouter(profile.ClientID, m, iv, logger)
}

func providePipeline(t transport.Transport, db *store.DB, b *bus.Bus, n *notify.Center, logger *zap.Logger) *send.Pipeline {
	up, _ := t.(send.Uploader)
	return send.NewPipeline(t, up, db, b, n, logger)
}

func provideStatsPoller(profile *config.Profile, cache *query.Cache, logger *zap.Logger) *query.Poller {
	interval := time.Duration(profile.PollInterval()) * time.Second
	return query.NewPoller(cache, query.KeyStats, query.StatsInput(profile.ClientID), interval, logger)
}

func registerLifecycle(lc fx.Lifecycle, lk *lock.Lock, profile *config.Profile, source *push.WSSource, router *Router, pipeline *send.Pipeline, poller *query.Poller, t transport.Transport, db *store.DB, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			source.Run(context.Background())

			if err := router.Start(context.Background()); err != nil {
				return err
			}

			poller.Start(context.Background())

			// Recover sends queued before the last shutdown.
			if err := pipeline.Restore(); err != nil {
				logger.Warn("outbox restore failed", zap.Error(err))
			}
			go pipeline.DrainPending(context.Background(), func(ctx context.Context, conversationID string) (*model.Conversation, error) {
				return t.GetConversation(ctx, profile.ClientID, conversationID)
			})

			logger.Info("agent started", zap.String("client_id", profile.ClientID))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			poller.Stop()
			router.Stop()
			source.Stop()
			if err := db.Close(); err != nil {
				logger.Warn("error closing store", zap.Error(err))
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("agent stopped")
			return nil
		},
	})
}
