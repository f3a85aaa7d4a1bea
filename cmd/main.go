package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/okian/fightlens/internal/adapters/accounts"
	"github.com/okian/fightlens/internal/adapters/alert"
	"github.com/okian/fightlens/internal/adapters/http/api"
	"github.com/okian/fightlens/internal/adapters/repository"
	app "github.com/okian/fightlens/internal/app"
	"github.com/okian/fightlens/internal/config"
	"github.com/okian/fightlens/internal/domain/aggregate"
	"github.com/okian/fightlens/internal/domain/cluster"
	"github.com/okian/fightlens/internal/domain/magic"
	"github.com/okian/fightlens/internal/domain/weapons"
	"github.com/okian/fightlens/internal/scheduler"
	"github.com/okian/fightlens/pkg/logger"
	"github.com/okian/fightlens/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout       = 10 * time.Second
	writeTimeout      = 5 * time.Minute
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 30 * time.Second
	sentryFlush       = 2 * time.Second
)

func main() {
	if err := logger.Init(logger.WithService("fightlens")); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> .env -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}
	if cfg.LogFormat != "text" {
		if err := logger.Init(logger.WithService("fightlens"), logger.WithFormat(cfg.LogFormat)); err != nil {
			os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
			os.Exit(1)
		}
	}
	log := logger.Get()
	defer func() { _ = logger.Sync() }()

	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	metrics.Configure(cfg.MetricsOptions()...)

	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{Dsn: cfg.SentryDSN}); err != nil {
			log.Warn(ctx, "sentry init failed", logger.Error(err))
		} else {
			defer sentry.Flush(sentryFlush)
		}
	}

	if err := run(ctx, cfg, log); err != nil {
		log.Error(ctx, "fightlens stopped with error", logger.Error(err))
		sentry.CaptureException(err)
		sentry.Flush(sentryFlush)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log logger.Logger) error {
	deps, err := build(ctx, cfg)
	if err != nil {
		return err
	}
	defer deps.close(log)

	sched := scheduler.New()
	for _, task := range []scheduler.Task{deps.svc.AnticheatTask(), deps.svc.FactionFightTask()} {
		if err := sched.Register(task); err != nil {
			return fmt.Errorf("register %s: %w", task.Name(), err)
		}
	}
	sched.Start()

	mux := http.NewServeMux()
	api.NewServer(deps.svc, sched, deps.checks...).Register(ctx, mux)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		log.Info(ctx, "shutting down...")
	case runErr = <-serveErr:
		log.Error(ctx, "HTTP server failed", logger.Error(runErr))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}
	if err := sched.Stop(shutdownCtx); err != nil {
		log.Error(ctx, "scheduler stop timed out", logger.Error(err))
	}
	log.Info(ctx, "stopped")
	return runErr
}

// components holds everything the process owns.
type components struct {
	svc    *app.Service
	checks []api.Check

	closers []func(ctx context.Context) error
}

func (c *components) close(log logger.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](ctx); err != nil {
			log.Warn(ctx, "close failed", logger.Error(err))
		}
	}
}

// build connects the backends named in cfg and constructs the service.
func build(ctx context.Context, cfg *config.Config) (*components, error) {
	c := &components{}

	store, mongoStore, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	c.closers = append(c.closers, store.Close)
	c.checks = append(c.checks, api.Check{Name: "store", Run: store.Ping})

	resolver, err := openResolver(cfg, mongoStore, c)
	if err != nil {
		c.close(logger.Get())
		return nil, err
	}

	var sink alert.Sink = alert.Nop{}
	if cfg.AlertAPIBase != "" || cfg.AlertAPIKey != "" {
		ws := alert.NewWebhookSink(cfg.AlertAPIBase, cfg.AlertAPIKey,
			alert.WithTimeout(cfg.AlertTimeout()),
			alert.WithRetries(cfg.AlertRetries),
		)
		// A failed check only disables alerts.
		_ = ws.Init(ctx)
		sink = ws
	}

	table, err := cfg.WeaponTable()
	if err != nil {
		c.close(logger.Get())
		return nil, err
	}
	agg := aggregate.New(
		aggregate.WithThresholds(cfg.Thresholds()),
		aggregate.WithWeaponRegistry(weapons.NewRegistry(table)),
		aggregate.WithMagicDetector(magic.New(cfg.MagicParams())),
	)

	c.svc, err = app.New(
		app.WithStore(store),
		app.WithResolver(resolver),
		app.WithSink(sink),
		app.WithAggregator(agg),
		app.WithClusterOptions(cfg.ClusterOptions()...),
		app.WithAlertRules(app.AlertRules{
			HitRate:       cfg.AlertHitRate,
			ServerHitRate: cfg.AlertServerHitRate,
			FlagCount:     cfg.AlertFlagCount,
		}),
		app.WithSchedules(cfg.AnticheatSchedule, cfg.FactionSchedule, cfg.FactionDelay()),
	)
	if err != nil {
		c.close(logger.Get())
		return nil, err
	}
	return c, nil
}

func openStore(ctx context.Context, cfg *config.Config) (repository.Store, *repository.MongoStore, error) {
	switch cfg.StorageBackend {
	case config.BackendMemory:
		return repository.NewMemoryStore(), nil, nil
	case config.BackendMongo:
		ms, err := repository.ConnectMongo(ctx, cfg.MongoURL, cfg.MongoDatabase,
			repository.WithOpTimeout(cfg.MongoTimeout()))
		if err != nil {
			return nil, nil, err
		}
		return ms, ms, nil
	default:
		return nil, nil, fmt.Errorf("storage backend %q: %w", cfg.StorageBackend, repository.ErrUnknownBackend)
	}
}

func openResolver(cfg *config.Config, mongoStore *repository.MongoStore, c *components) (cluster.Resolver, error) {
	switch cfg.AccountBackend {
	case config.BackendStatic:
		return accounts.NewStatic(cfg.AccountFactions), nil
	case config.BackendRedis:
		r, err := accounts.NewRedisResolver(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.RedisKeyPattern)
		if err != nil {
			return nil, err
		}
		c.closers = append(c.closers, func(context.Context) error { return r.Close() })
		c.checks = append(c.checks, api.Check{Name: "accounts", Run: r.Ping})
		return r, nil
	case config.BackendMongo:
		if mongoStore == nil {
			return nil, fmt.Errorf("account backend mongo without a mongo store: %w", accounts.ErrUnknownBackend)
		}
		return accounts.NewMongoResolver(mongoStore.Collection(accounts.DefaultCollection), ""), nil
	default:
		return nil, fmt.Errorf("account backend %q: %w", cfg.AccountBackend, accounts.ErrUnknownBackend)
	}
}
