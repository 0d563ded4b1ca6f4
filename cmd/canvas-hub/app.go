package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/canvas-hub/canvas-homework-hub/config"
	"github.com/canvas-hub/canvas-homework-hub/internal/application/sensor"
	"github.com/canvas-hub/canvas-homework-hub/internal/application/tracking"
	"github.com/canvas-hub/canvas-homework-hub/internal/domain/homework"
	"github.com/canvas-hub/canvas-homework-hub/internal/domain/shared"
	"github.com/canvas-hub/canvas-homework-hub/internal/infrastructure/external/canvas"
	"github.com/canvas-hub/canvas-homework-hub/internal/infrastructure/messaging"
	"github.com/canvas-hub/canvas-homework-hub/internal/infrastructure/persistence/file"
	"github.com/canvas-hub/canvas-homework-hub/internal/infrastructure/persistence/memory"
	"github.com/canvas-hub/canvas-homework-hub/internal/infrastructure/persistence/postgres"
	"github.com/canvas-hub/canvas-homework-hub/internal/infrastructure/persistence/redis"
	"github.com/canvas-hub/canvas-homework-hub/internal/infrastructure/scheduler/jobs"
	"github.com/canvas-hub/canvas-homework-hub/internal/infrastructure/service"
)

// ══════════════════════════════════════════════════════════════════════════════
// APPLICATION WIRING
// ══════════════════════════════════════════════════════════════════════════════

// app holds the wired components shared by all commands.
type app struct {
	cfg   *config.Config
	log   *slog.Logger
	level *slog.LevelVar

	db        *postgres.Connection
	cache     *redis.Cache
	eventLog  *postgres.EventLog
	snapshots *redis.SnapshotCache

	repo      homework.StateRepository
	roster    homework.RosterRepository
	store     *tracking.Store
	client    *canvas.Client
	bus       *messaging.InMemoryEventBus
	job       *jobs.PollHomeworkJob
	projector *sensor.Projector

	closers []func()
}

// wiring controls whether the event bus and its sinks are wired.
type wiring struct {
	sinks bool
}

func newApp(ctx context.Context, opts *options, w wiring) (*app, error) {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. CONFIGURATION & LOGGING
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load(opts.ConfigFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	log, level := setupLogger(cfg, opts.Verbose, os.Stderr)
	a := &app{cfg: cfg, log: log, level: level}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. STORAGE CONNECTIONS
	// ─────────────────────────────────────────────────────────────────────────
	if err := a.connectPostgres(ctx); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.connectRedis(); err != nil {
		a.Close()
		return nil, err
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 3. STATE REPOSITORY
	// ─────────────────────────────────────────────────────────────────────────
	a.repo, err = a.stateRepository()
	if err != nil {
		a.Close()
		return nil, err
	}
	a.store = tracking.NewStore(tracking.StoreConfig{Repository: a.repo, Logger: log})

	// ─────────────────────────────────────────────────────────────────────────
	// 4. CANVAS CLIENT
	// ─────────────────────────────────────────────────────────────────────────
	a.client, err = canvas.NewClient(canvasClientConfig(cfg, log))
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to create Canvas client: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. EVENT BUS & SINKS
	// ─────────────────────────────────────────────────────────────────────────
	var publisher shared.EventPublisher
	if w.sinks {
		if err := a.wireEventBus(); err != nil {
			a.Close()
			return nil, err
		}
		publisher = a.bus
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 6. POLL JOB & SENSORS
	// ─────────────────────────────────────────────────────────────────────────
	jobCfg := jobs.PollHomeworkConfig{
		Source:       service.NewCanvasSnapshotAdapter(a.client, log),
		Store:        a.store,
		Emitter:      tracking.NewEmitter(tracking.EmitterConfig{Publisher: publisher, Logger: log}),
		FetchTimeout: cfg.Poll.FetchTimeout,
		Logger:       log,
	}
	if publisher != nil {
		jobCfg.Publisher = publisher
	}
	if a.snapshots != nil {
		jobCfg.Cache = a.snapshots
	}
	if a.roster != nil {
		jobCfg.Roster = a.roster
	}
	a.job = jobs.NewPollHomeworkJob(jobCfg)
	a.projector = sensor.NewProjector(sensor.ProjectorConfig{Source: a.job, Logger: log})

	return a, nil
}

func (a *app) connectPostgres(ctx context.Context) error {
	if !a.cfg.UsesPostgres() {
		return nil
	}

	a.log.Info("connecting to database...")
	opts := postgres.DefaultPoolOptions()
	opts.MaxConns = a.cfg.Database.MaxConns
	opts.MinConns = a.cfg.Database.MinConns

	conn, err := postgres.NewConnection(ctx, a.cfg.Database.URL, opts)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	a.db = conn
	a.closers = append(a.closers, func() {
		a.log.Debug("closing database connection...")
		conn.Close()
	})

	if err := postgres.NewMigrator(conn).Migrate(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	a.log.Info("database schema is up to date")

	if a.cfg.Database.EventLog {
		a.eventLog = postgres.NewEventLog(conn)
	}
	return nil
}

func (a *app) connectRedis() error {
	wantSnapshots := a.cfg.Features.IsEnabled(config.FeatureSnapshotCache)
	if !a.cfg.UsesRedis() && !wantSnapshots {
		return nil
	}

	rc := redis.DefaultConfig()
	rc.Host = a.cfg.Redis.Host
	rc.Port = a.cfg.Redis.Port
	rc.Password = a.cfg.Redis.Password
	rc.DB = a.cfg.Redis.DB

	cache, err := redis.NewCache(rc)
	if err != nil {
		if a.cfg.EffectiveBackend() == config.BackendRedis {
			return fmt.Errorf("failed to connect to Redis: %w", err)
		}
		a.log.Warn("failed to connect to Redis, Redis sinks disabled", "error", err)
		return nil
	}
	a.cache = cache
	a.closers = append(a.closers, func() { _ = cache.Close() })
	a.log.Info("Redis connection established", "addr", rc.Addr())

	if wantSnapshots {
		a.snapshots = redis.NewSnapshotCache(cache, a.cfg.Redis.SnapshotTTL)
	}
	return nil
}

func (a *app) stateRepository() (homework.StateRepository, error) {
	switch backend := a.cfg.EffectiveBackend(); backend {
	case config.BackendMemory:
		if a.cfg.State.Disabled {
			a.log.Warn("state persistence disabled, events will repeat after restart")
		}
		return memory.NewStateRepository(), nil
	case config.BackendFile:
		repo, err := file.NewStateRepository(a.cfg.State.File)
		if err != nil {
			return nil, fmt.Errorf("failed to open state file: %w", err)
		}
		a.roster = file.NewRosterRepository(repo.Path())
		a.log.Info("using file state store", "path", repo.Path())
		return repo, nil
	case config.BackendRedis:
		if a.cache == nil {
			return nil, errors.New("redis state backend requires a Redis connection")
		}
		return redis.NewStateRepository(a.cache, a.cfg.State.RedisKey), nil
	case config.BackendPostgres:
		return postgres.NewStateRepository(a.db), nil
	default:
		return nil, fmt.Errorf("unknown state backend %q", backend)
	}
}

func (a *app) wireEventBus() error {
	busCfg := messaging.DefaultInMemoryEventBusConfig()
	busCfg.Logger = a.log
	a.bus = messaging.NewInMemoryEventBus(busCfg)
	a.closers = append(a.closers, func() { _ = a.bus.Close() })

	homeworkTypes := []shared.EventType{shared.EventHomeworkAppeared, shared.EventHomeworkCompleted}
	subscribe := func(h shared.EventHandler) error {
		for _, t := range homeworkTypes {
			if err := a.bus.Subscribe(t, h); err != nil {
				return err
			}
		}
		return nil
	}

	features := a.cfg.Features

	if features.IsEnabled(config.FeatureSinkLog) {
		if err := a.bus.SubscribeAll(messaging.LogHandler(a.log)); err != nil {
			return fmt.Errorf("subscribe log sink: %w", err)
		}
	}

	if features.IsEnabled(config.FeatureSinkHomeAssistant) && a.cfg.HomeAssistant.Enabled() {
		haCfg := messaging.DefaultHomeAssistantConfig()
		haCfg.BaseURL = a.cfg.HomeAssistant.URL
		haCfg.Token = a.cfg.HomeAssistant.Token
		haCfg.Timeout = a.cfg.HomeAssistant.Timeout
		haCfg.Logger = a.log

		forwarder, err := messaging.NewHomeAssistantForwarder(haCfg)
		if err != nil {
			return fmt.Errorf("create Home Assistant sink: %w", err)
		}
		if err := subscribe(forwarder.Handle); err != nil {
			return fmt.Errorf("subscribe Home Assistant sink: %w", err)
		}
		a.log.Info("Home Assistant sink enabled", "url", a.cfg.HomeAssistant.URL)
	}

	if features.IsEnabled(config.FeatureSinkRedis) && a.cache != nil {
		pub, err := messaging.NewRedisPublisher(messaging.RedisPublisherConfig{
			Client:  a.cache.Client(),
			Channel: a.cfg.Redis.Channel,
			Logger:  a.log,
		})
		if err != nil {
			return fmt.Errorf("create Redis sink: %w", err)
		}
		if err := a.bus.SubscribeAll(pub.Handle); err != nil {
			return fmt.Errorf("subscribe Redis sink: %w", err)
		}
		a.log.Info("Redis sink enabled", "channel", a.cfg.Redis.Channel)
	}

	if a.eventLog != nil {
		if err := subscribe(a.eventLog.Handle); err != nil {
			return fmt.Errorf("subscribe event log: %w", err)
		}
	}

	return nil
}

func canvasClientConfig(cfg *config.Config, log *slog.Logger) canvas.ClientConfig {
	cc := canvas.DefaultClientConfig(cfg.Canvas.BaseURL, cfg.Canvas.Token)
	cc.Timeout = cfg.Canvas.RequestTimeout
	cc.Concurrency = cfg.Canvas.Concurrency
	cc.RateLimiterConfig.RequestsPerSecond = cfg.Canvas.RateLimit
	cc.RateLimiterConfig.BurstSize = cfg.Canvas.RateLimitBurst
	cc.RetryConfig.MaxAttempts = cfg.Canvas.MaxRetries
	cc.RetryConfig.InitialDelay = cfg.Canvas.RetryBaseDelay
	cc.RetryConfig.MaxDelay = cfg.Canvas.RetryMaxDelay
	cc.BreakerFailures = cfg.Canvas.CircuitBreakerThreshold
	cc.BreakerTimeout = cfg.Canvas.CircuitBreakerTimeout
	cc.Logger = log
	return cc
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
