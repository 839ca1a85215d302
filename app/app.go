// Package app wires every studysync component into one lifecycle: the auth
// store, the backend client, the query cache with its resource bindings, the
// maintenance scheduler and the optional broadcast and persistence layers.
package app

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/dailyyoga/studysync/auth"
	"github.com/dailyyoga/studysync/broadcast"
	"github.com/dailyyoga/studysync/cache"
	"github.com/dailyyoga/studysync/config"
	"github.com/dailyyoga/studysync/cron"
	"github.com/dailyyoga/studysync/db"
	"github.com/dailyyoga/studysync/httpclient"
	"github.com/dailyyoga/studysync/logger"
	"github.com/dailyyoga/studysync/metrics"
	"github.com/dailyyoga/studysync/notify"
	"github.com/dailyyoga/studysync/persist"
	"github.com/dailyyoga/studysync/query"
	"github.com/dailyyoga/studysync/resource"
	"github.com/dailyyoga/studysync/routine"
	"go.uber.org/zap"
)

// purgeTimeout bounds the storage and broadcast work done on logout
const purgeTimeout = 5 * time.Second

// Option configures an App
type Option func(*options)

type options struct {
	notifier    notify.Notifier
	output      io.Writer
	httpOpts    []httpclient.Option
	broadcaster broadcast.Broadcaster
	database    db.Database
	syncNotify  bool
}

// WithNotifier replaces the terminal notifier
func WithNotifier(n notify.Notifier) Option {
	return func(o *options) { o.notifier = n }
}

// WithOutput sets where terminal notifications are printed
func WithOutput(w io.Writer) Option {
	return func(o *options) { o.output = w }
}

// WithSyncNotify delivers notifications on the goroutine that raised them,
// so they are written before the mutation returns.
func WithSyncNotify() Option {
	return func(o *options) { o.syncNotify = true }
}

// WithHTTPOptions passes options to the backend client
func WithHTTPOptions(opts ...httpclient.Option) Option {
	return func(o *options) { o.httpOpts = append(o.httpOpts, opts...) }
}

// WithBroadcaster uses b instead of the configured transport
func WithBroadcaster(b broadcast.Broadcaster) Option {
	return func(o *options) { o.broadcaster = b }
}

// WithDatabase uses d for persistence instead of opening the configured one
func WithDatabase(d db.Database) Option {
	return func(o *options) { o.database = d }
}

// App owns every component of a running studysync client
type App struct {
	log logger.Logger
	cfg *config.Config

	Auth        *auth.Store
	HTTP        httpclient.Client
	Cache       cache.QueryCache
	Client      *query.Client
	Services    *resource.Services
	Resources   *Resources
	Maintenance cron.Scheduler

	dispatcher  *notify.Dispatcher
	broadcaster broadcast.Broadcaster
	bridge      *broadcast.Bridge
	database    db.Database
	store       *persist.Store
	metricsSrv  *http.Server
	runner      routine.Runner
	unsubscribe func()

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	started bool
	closed  bool
}

// New builds every component from cfg. The snapshot database and the
// broadcast transport are connected here; backend requests wait for Start.
func New(log logger.Logger, cfg *config.Config, opts ...Option) (_ *App, err error) {
	if cfg == nil {
		return nil, ErrNilConfig
	}
	cfg.MergeDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	ctx, cancel := context.WithCancel(context.Background())
	a := &App{
		log:    logger.Named(log, "app"),
		cfg:    cfg,
		runner: routine.New(log),
		ctx:    ctx,
		cancel: cancel,
	}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	a.Auth = auth.NewStore(log)
	if a.HTTP, err = httpclient.New(log, cfg.HTTP, a.Auth, o.httpOpts...); err != nil {
		return nil, ErrComponent("http client", err)
	}
	if a.Cache, err = cache.New(log, cfg.Cache); err != nil {
		return nil, ErrComponent("cache", err)
	}

	notifier := o.notifier
	if notifier == nil {
		notifier = notify.Multi(notify.NewTerminal(o.output), notify.Log(log))
	}
	if !o.syncNotify {
		a.dispatcher = notify.NewDispatcher(log, notifier)
		notifier = a.dispatcher
	}
	a.Client = query.NewClient(log, a.Cache, query.WithNotifier(notifier))
	a.Services = resource.NewServices(a.HTTP)
	a.Resources = bindResources(a.Client, a.Services)

	var saver cron.SnapshotSaver
	if cfg.Persist.Enabled {
		a.database = o.database
		if a.database == nil {
			if a.database, err = db.NewMySQL(log, cfg.Persist.DB); err != nil {
				return nil, ErrComponent("database", err)
			}
		}
		if a.store, err = persist.NewStore(log, a.database, cfg.Persist); err != nil {
			return nil, ErrComponent("snapshot store", err)
		}
		saver = a.store
	}
	if a.Maintenance, err = cron.NewMaintenance(log, cfg.Maintenance, a.Cache, saver); err != nil {
		return nil, ErrComponent("maintenance", err)
	}

	a.broadcaster = o.broadcaster
	if a.broadcaster == nil && cfg.Broadcast.Enabled() {
		if a.broadcaster, err = broadcast.New(log, cfg.Broadcast); err != nil {
			return nil, ErrComponent("broadcaster", err)
		}
	}
	if a.broadcaster != nil {
		a.bridge = broadcast.NewBridge(log, a.broadcaster, a.Cache)
		a.Client.SetPublisher(a.bridge)
	}

	a.unsubscribe = a.Auth.OnTeardown(a.purge)

	a.log.Info("app created",
		zap.String("env", cfg.Env),
		zap.Bool("persist", a.store != nil),
		zap.Bool("broadcast", a.bridge != nil),
		zap.Strings("maintenance", a.Maintenance.Chains()),
	)
	return a, nil
}

// Config returns the effective configuration
func (a *App) Config() *config.Config {
	return a.cfg
}

// Start restores the persisted cache, subscribes to remote changes, starts
// maintenance and logs in with the configured token.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return ErrClosed
	}
	if a.started {
		return nil
	}

	if a.store != nil {
		if err := a.store.Migrate(ctx); err != nil {
			return ErrStart("snapshot store", err)
		}
		n, err := a.store.Restore(ctx, a.Cache)
		if err != nil {
			return ErrStart("snapshot store", err)
		}
		a.log.Info("cache restored", zap.Int("entries", n))
	}
	if a.bridge != nil {
		if err := a.bridge.Start(a.ctx); err != nil {
			return ErrStart("broadcast", err)
		}
	}
	if a.cfg.MetricsAddr != "" {
		a.serveMetrics()
	}
	a.Maintenance.Start()
	a.started = true

	if a.cfg.Token != "" {
		if err := a.Auth.Init(a.cfg.Token); err != nil {
			return ErrStart("session", err)
		}
	}
	a.log.Info("app started")
	return nil
}

func (a *App) serveMetrics() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	a.metricsSrv = &http.Server{
		Addr:              a.cfg.MetricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	srv := a.metricsSrv
	a.runner.GoNamed("metrics-server", func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("metrics server stopped", zap.Error(err), zap.String("addr", srv.Addr))
		}
	})
}

// Login starts a session with token
func (a *App) Login(token string) error {
	return a.Auth.Init(token)
}

// Logout ends the session; every cached and persisted result is purged
func (a *App) Logout() {
	a.Auth.Logout()
}

// Refocus revalidates stale observed queries
func (a *App) Refocus(ctx context.Context) (int, error) {
	return a.Client.Refocus(ctx)
}

// purge runs after every session teardown
func (a *App) purge(reason auth.Reason) {
	n := a.Cache.Clear()
	fields := []zap.Field{zap.String("reason", string(reason)), zap.Int("entries", n)}

	ctx, cancel := context.WithTimeout(a.ctx, purgeTimeout)
	defer cancel()
	if a.store != nil {
		rows, err := a.store.Purge(ctx)
		if err != nil {
			a.log.Error("failed to purge snapshots", zap.Error(err))
		}
		fields = append(fields, zap.Int64("snapshots", rows))
	}
	if a.bridge != nil {
		if err := a.bridge.Clear(ctx); err != nil {
			a.log.Warn("failed to broadcast cache clear", zap.Error(err))
		}
	}
	a.log.Info("session data purged", fields...)
}

// Close stops every component; a started app with persistence saves a final
// snapshot first. It can be called multiple times safely.
func (a *App) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	started := a.started
	a.mu.Unlock()

	var errs []error
	if a.unsubscribe != nil {
		a.unsubscribe()
	}
	if a.Maintenance != nil {
		a.Maintenance.Close()
	}
	if started && a.store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), purgeTimeout)
		n, err := a.store.Snapshot(ctx, a.Cache)
		cancel()
		if err != nil {
			errs = append(errs, err)
		} else {
			a.log.Info("final snapshot saved", zap.Int("entries", n))
		}
	}

	a.cancel()
	if a.broadcaster != nil {
		if err := a.broadcaster.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.metricsSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), purgeTimeout)
		if err := a.metricsSrv.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
		cancel()
	}
	if a.Client != nil {
		a.Client.Close()
	}
	if a.Cache != nil {
		a.Cache.Close()
	}
	if a.dispatcher != nil {
		a.dispatcher.Close()
	}
	if a.database != nil {
		if err := a.database.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.runner.Wait()

	a.log.Info("app closed")
	return errors.Join(errs...)
}
