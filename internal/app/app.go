// Package app assembles the client from its configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/existflow/instafeed/internal/api"
	"github.com/existflow/instafeed/internal/auth"
	"github.com/existflow/instafeed/internal/cache"
	"github.com/existflow/instafeed/internal/comments"
	"github.com/existflow/instafeed/internal/config"
	"github.com/existflow/instafeed/internal/db"
	"github.com/existflow/instafeed/internal/events"
	"github.com/existflow/instafeed/internal/feed"
	"github.com/existflow/instafeed/internal/likes"
	"github.com/existflow/instafeed/internal/logger"
	"github.com/existflow/instafeed/internal/model"
	"github.com/existflow/instafeed/internal/session"
	"github.com/redis/go-redis/v9"
)

// App holds every client component, wired together
type App struct {
	Config   *config.Config
	Bus      events.Bus
	API      *api.Client
	Store    session.Store
	Auth     *auth.Coordinator
	Feed     *feed.Loader
	Comments *comments.Service
	Likes    *likes.Toggler

	FeedCache    *cache.Cache[model.FeedPost]
	CommentCache *cache.Cache[model.Comment]

	log     *logger.Logger
	offs    []func()
	closers []func() error
}

// Option adjusts how New builds the app
type Option func(*options)

type options struct {
	store  session.Store
	logger *logger.Logger
}

// WithStore uses s instead of the configured session backend
func WithStore(s session.Store) Option {
	return func(o *options) { o.store = s }
}

// WithLogger uses l instead of the global logger
func WithLogger(l *logger.Logger) Option {
	return func(o *options) { o.logger = l }
}

// New builds the client. Call Start to settle the login state.
func New(cfg *config.Config, opts ...Option) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	log := o.logger
	if log == nil {
		log = logger.L()
	}

	a := &App{Config: cfg, log: log.Component("app")}

	store := o.store
	if store == nil {
		s, closer, err := OpenStore(cfg)
		if err != nil {
			return nil, err
		}
		store = s
		if closer != nil {
			a.closers = append(a.closers, closer)
		}
	}
	a.Store = store

	a.Bus = events.NewMemBus(events.MemBusConfig{})
	a.closers = append(a.closers, a.Bus.Close)

	a.API = api.New(api.Options{
		BaseURL:     cfg.ServerURL,
		Timeout:     cfg.RequestTimeout,
		ReadRetries: cfg.ReadRetries,
		Logger:      log,
	})
	a.Auth = auth.New(a.API, store, a.Bus, log)
	a.API.OnUnauthorized(a.Auth.HandleUnauthorized)

	a.FeedCache = cache.New[model.FeedPost]()
	a.CommentCache = cache.New[model.Comment]()

	a.Feed = feed.New(a.API, a.Auth, a.FeedCache, feed.Options{
		TTL:      cfg.FeedCacheTTL,
		Debounce: cfg.ScrollDebounce,
		Bus:      a.Bus,
		Logger:   log,
	})
	a.Comments = comments.New(a.API, a.Auth, a.CommentCache, comments.Options{
		TTL:    cfg.CommentCacheTTL,
		Bus:    a.Bus,
		Logger: log,
	})
	a.Likes = likes.New(a.API, a.Auth, a.FeedCache, likes.Options{Bus: a.Bus, Logger: log})

	// A different viewer sees different like flags; start the lists over.
	resetLists := func(events.Event) {
		a.Feed.Reset()
		a.CommentCache.InvalidateAll()
	}
	a.offs = append(a.offs,
		a.Bus.On(events.TopicLogout, resetLists),
		a.Bus.On(events.TopicLogin, resetLists),
	)

	return a, nil
}

// OpenStore opens the configured session backend. The returned closer may be nil.
func OpenStore(cfg *config.Config) (session.Store, func() error, error) {
	switch cfg.SessionBackend {
	case config.SessionMemory:
		return session.NewMemoryStore(), nil, nil
	case config.SessionSQLite:
		// session_path names the JSON file by default; use the shared database unless it points at one.
		open := db.OpenDefault
		if filepath.Ext(cfg.SessionPath) == ".db" {
			open = func() (*db.DB, error) { return db.Open(cfg.SessionPath) }
		}
		d, err := open()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open session database: %w", err)
		}
		return session.NewSQLiteStore(d), d.Close, nil
	case config.SessionRedis:
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := client.Ping(context.Background()).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		s := session.NewRedisStore(client, "default", 0)
		return s, s.Close, nil
	default:
		return session.NewFileStore(cfg.SessionPath, cfg.SessionPassphrase), nil, nil
	}
}

// Start settles the login state and, when configured, starts the
// background feed refresh.
func (a *App) Start(ctx context.Context) (auth.State, error) {
	state, err := a.Auth.CheckAuth(ctx)
	if err != nil {
		a.log.Warn("Auth check ended unauthenticated", logger.Err(err))
	}
	if a.Config.AutoRefresh > 0 {
		a.Feed.StartAutoRefresh(a.Config.AutoRefresh)
	}
	a.log.Info("Client started", logger.F("status", state.Status.String()))
	return state, err
}

// Close stops background work and releases resources
func (a *App) Close() error {
	a.Feed.Close()
	for _, off := range a.offs {
		off()
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
