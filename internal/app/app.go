package app

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/dev-tonde/eventory-connect-explore-sub002/internal/app/server"
	"github.com/dev-tonde/eventory-connect-explore-sub002/internal/audit"
	"github.com/dev-tonde/eventory-connect-explore-sub002/internal/auth"
	"github.com/dev-tonde/eventory-connect-explore-sub002/internal/cache"
	"github.com/dev-tonde/eventory-connect-explore-sub002/internal/circuitbreaker"
	"github.com/dev-tonde/eventory-connect-explore-sub002/internal/config"
	cronrunner "github.com/dev-tonde/eventory-connect-explore-sub002/internal/cron"
	"github.com/dev-tonde/eventory-connect-explore-sub002/internal/events"
	"github.com/dev-tonde/eventory-connect-explore-sub002/internal/log"
	"github.com/dev-tonde/eventory-connect-explore-sub002/internal/metrics"
	"github.com/dev-tonde/eventory-connect-explore-sub002/internal/pricing"
	"github.com/dev-tonde/eventory-connect-explore-sub002/internal/pricing/repo"
	"github.com/dev-tonde/eventory-connect-explore-sub002/internal/pricing/repo/postgres"
	"github.com/dev-tonde/eventory-connect-explore-sub002/internal/pricing/transport"
	"github.com/dev-tonde/eventory-connect-explore-sub002/internal/pricing/usecase"
	"github.com/dev-tonde/eventory-connect-explore-sub002/internal/ratelimit"
	"github.com/dev-tonde/eventory-connect-explore-sub002/internal/retry"
	"github.com/dev-tonde/eventory-connect-explore-sub002/internal/secrets"
	"github.com/dev-tonde/eventory-connect-explore-sub002/internal/tracing"
)

// App represents the application
type App struct {
	config *config.Config
	logger *zap.Logger

	// ctx bounds every scheduled refresh; cancelled on Shutdown
	ctx    context.Context
	cancel context.CancelFunc

	store      *postgres.Store
	memory     *pricing.MemoryStore
	cache      *cache.Cache
	sink       events.PriceChangePublisher
	listener   *events.AttendanceListener
	runner     *cronrunner.Runner
	publisher  *usecase.PricePublisher
	scheduler  *usecase.Scheduler
	rules      *usecase.RuleUseCase
	attendance *usecase.AttendanceUseCase

	httpServer      *server.HTTPServer
	metricsServer   *metrics.Server
	tracingShutdown func(context.Context) error
}

// New creates a new application instance
func New(cfg *config.Config) (*App, error) {
	if err := log.Init(cfg.Log.Level); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger := log.L(context.Background())

	logger.Info("Initializing pricing service application",
		zap.String("app_name", cfg.AppName),
		zap.String("http_address", cfg.HTTP.Address),
		zap.String("storage_driver", cfg.Storage.Driver))

	ctx, cancel := context.WithCancel(context.Background())
	a := &App{config: cfg, logger: logger, ctx: ctx, cancel: cancel}

	if err := a.initialize(); err != nil {
		// release whatever was opened before the failure
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		_ = a.Shutdown(shutdownCtx)
		return nil, err
	}
	return a, nil
}

func (a *App) initialize() error {
	cfg := a.config

	if cfg.Tracing.Enabled {
		shutdown, err := initializeTracing(cfg, a.logger)
		if err != nil {
			return fmt.Errorf("failed to initialize tracing: %w", err)
		}
		a.tracingShutdown = shutdown
	}

	rules, sales, err := a.initializeStorage()
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}

	// Redis is optional; without it rules are read straight from the store
	// and attendance changes only reach this process.
	if cfg.Redis.Enabled {
		c, err := initializeRedis(a.ctx, cfg, a.logger)
		if err != nil {
			a.logger.Warn("Redis initialization failed, continuing without Redis",
				zap.Error(err),
				zap.String("redis_addr", cfg.Redis.Addr))
		} else {
			a.cache = c
			rules = cache.NewCachedRuleRepository(rules, c, cfg.Redis.RuleTTL)
		}
	}

	sink, err := initializeSink(cfg, a.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize price change publisher: %w", err)
	}
	a.sink = sink

	mode, err := pricing.ParseRoundingMode(cfg.Pricing.RoundingMode)
	if err != nil {
		return err
	}
	calc := pricing.NewCalculator(pricing.Rounding{Places: cfg.Pricing.RoundingPlaces, Mode: mode})

	opts := []usecase.PublisherOption{usecase.WithSink(a.sink)}
	if a.cache != nil && cfg.Redis.MirrorHistory {
		opts = append(opts, usecase.WithHistoryMirror(cache.NewHistoryMirror(a.cache, cfg.Pricing.HistorySize)))
	}
	a.publisher = usecase.NewPricePublisher(rules, sales, calc, usecase.PublisherConfig{
		HistorySize:    cfg.Pricing.HistorySize,
		RefreshTimeout: cfg.Pricing.RefreshTimeout,
	}, opts...)

	a.runner = cronrunner.New(a.logger, a.ctx)
	a.scheduler = usecase.NewScheduler(a.ctx, a.publisher, a.runner, cfg.Pricing.RefreshInterval)
	a.rules = usecase.NewRuleUseCase(rules, a.scheduler)

	var notifier usecase.ChangeNotifier = usecase.NotifyFunc(a.scheduler.Trigger)
	if a.cache != nil {
		channel := cfg.Redis.AttendanceChannel
		notifier = events.NewAttendanceNotifier(a.cache.Client(), channel)
		a.listener = events.NewAttendanceListener(a.cache.Client(), channel, a.logger)
	}
	a.attendance = usecase.NewAttendanceUseCase(sales, notifier)

	auditor := audit.NewManager(audit.NewZapAuditLogger(a.logger))
	a.rules.SetAuditor(auditor)
	a.attendance.SetAuditor(auditor)

	secret, err := resolveJWTSecret(a.ctx, cfg.Auth)
	if err != nil {
		return err
	}
	validator, err := auth.NewJWTValidator(secret, cfg.Auth.Issuer)
	if err != nil {
		return fmt.Errorf("failed to initialize token validator: %w", err)
	}

	var limiter ratelimit.RateLimiter
	if a.cache != nil && cfg.HTTP.OrganizerRateLimit > 0 {
		limiter = ratelimit.NewRedisRateLimiter(a.cache.Client(), ratelimit.Config{
			Requests: cfg.HTTP.OrganizerRateLimit,
			Window:   time.Minute,
		})
	}

	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := transport.NewRouter(&transport.Handler{
		Feed:       a.publisher,
		Watcher:    a.scheduler,
		Rules:      a.rules,
		Attendance: a.attendance,
		Validator:  validator,
		Limiter:    limiter,
		Checks:     a.healthChecks(),
	})

	a.httpServer = server.NewHTTPServer(server.Config{
		Address:      cfg.HTTP.Address,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}, router, a.logger)

	if cfg.Metrics.Address != "" {
		a.metricsServer = metrics.NewServer(cfg.Metrics.Address, a.logger)
	}
	return nil
}

// Run starts the application and blocks until ctx is done, a termination
// signal arrives or the HTTP server fails.
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("Starting pricing service application")

	if a.metricsServer != nil {
		go func() {
			if err := a.metricsServer.Start(ctx); err != nil {
				a.logger.Error("Metrics server failed", zap.Error(err))
			}
		}()
	}

	a.runner.Start()

	if a.listener != nil {
		go a.listenAttendance()
	}

	for _, itemID := range a.config.Pricing.WatchItems {
		if _, err := a.scheduler.Start(ctx, itemID); err != nil {
			a.logger.Warn("Failed to watch configured item",
				zap.String("item_id", itemID), zap.Error(err))
		}
	}

	if err := a.httpServer.Serve(ctx); err != nil {
		return fmt.Errorf("HTTP server error: %w", err)
	}
	return nil
}

func (a *App) listenAttendance() {
	err := a.listener.Listen(a.ctx, func(ctx context.Context, itemID string) {
		if err := a.scheduler.Trigger(ctx, itemID); err != nil {
			log.Warn(log.WithItemID(ctx, itemID), "Notified refresh failed", zap.Error(err))
		}
	})
	if err != nil && a.ctx.Err() == nil {
		a.logger.Error("Attendance listener stopped", zap.Error(err))
	}
}

// Shutdown gracefully shuts down the application
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("Shutting down pricing service application")

	// drain requests first so no watch is registered after StopAll
	if a.httpServer != nil {
		if err := a.httpServer.Shutdown(ctx); err != nil {
			a.logger.Error("Failed to shut down HTTP server", zap.Error(err))
		}
	}

	if a.scheduler != nil {
		a.scheduler.StopAll()
	}
	if a.runner != nil {
		a.runner.Stop()
	}
	a.cancel()
	if a.metricsServer != nil {
		if err := a.metricsServer.Shutdown(ctx); err != nil {
			a.logger.Error("Failed to shut down metrics server", zap.Error(err))
		}
	}

	// flushes queued price changes
	if a.sink != nil {
		if err := a.sink.Close(); err != nil {
			a.logger.Error("Failed to close price change publisher", zap.Error(err))
		}
	}

	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.logger.Error("Failed to close redis client", zap.Error(err))
		}
	}

	if a.store != nil {
		_ = a.store.Close()
	}

	if a.tracingShutdown != nil {
		if err := a.tracingShutdown(ctx); err != nil {
			a.logger.Error("Failed to shut down tracing", zap.Error(err))
		}
	}

	a.logger.Info("Application shutdown complete")
	return nil
}

func (a *App) healthChecks() map[string]transport.HealthCheck {
	checks := make(map[string]transport.HealthCheck)
	if a.store != nil {
		checks["postgres"] = a.store.Ping
	}
	if a.cache != nil {
		checks["redis"] = a.cache.Ping
	}
	return checks
}

// initializeStorage opens the configured rule and sales-state backend
func (a *App) initializeStorage() (repo.RuleRepository, repo.SalesStateRepository, error) {
	if a.config.Storage.Driver == "memory" {
		a.logger.Warn("Using in-memory storage, rules and events are lost on restart")
		a.memory = pricing.NewMemoryStore()
		return a.memory, a.memory, nil
	}

	store, err := initializeDatabase(a.ctx, a.config, a.logger)
	if err != nil {
		return nil, nil, err
	}
	a.store = store

	guarded := circuitbreaker.NewGuardedStore(store, circuitbreaker.DefaultConfig(), a.logger)
	return guarded, guarded, nil
}

// initializeDatabase connects to PostgreSQL and applies the schema
func initializeDatabase(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*postgres.Store, error) {
	var store *postgres.Store
	err := retry.Do(ctx, retry.StartupConfig(), logger, "connect postgres", func(ctx context.Context) error {
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()

		s, err := postgres.NewStore(connectCtx, cfg.Postgres.DSN, postgres.PoolConfig{
			MaxConns: cfg.Postgres.MaxConns,
			MinConns: cfg.Postgres.MinConns,
		})
		if err != nil {
			return err
		}
		store = s
		return nil
	})
	if err != nil {
		return nil, err
	}

	schemaCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := store.EnsureSchema(schemaCtx); err != nil {
		_ = store.Close()
		return nil, err
	}
	return store, nil
}

// initializeRedis connects the Redis cache
func initializeRedis(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*cache.Cache, error) {
	var c *cache.Cache
	err := retry.Do(ctx, retry.DefaultConfig(), logger, "connect redis", func(ctx context.Context) error {
		conn, err := cache.NewCache(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return err
		}
		c = conn
		return nil
	})
	return c, err
}

// initializeSink builds the downstream price change publisher
func initializeSink(cfg *config.Config, logger *zap.Logger) (events.PriceChangePublisher, error) {
	if !cfg.Kafka.Enabled {
		logger.Info("Kafka disabled, price changes stay in-process")
		return events.NoopPublisher{}, nil
	}

	var producer *events.KafkaPublisher
	err := retry.Do(context.Background(), retry.StartupConfig(), logger, "connect kafka", func(ctx context.Context) error {
		p, err := events.NewKafkaPublisher(events.KafkaConfig{
			Brokers:  cfg.Kafka.Brokers,
			Topic:    cfg.Kafka.Topic,
			ClientID: cfg.Kafka.ClientID,
		}, logger)
		if err != nil {
			return err
		}
		producer = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return events.NewDispatcher(producer, logger, events.DefaultDispatcherConfig()), nil
}

// DefaultSecretsDir is where relative secret files are looked up
const DefaultSecretsDir = "/run/secrets"

func resolveJWTSecret(ctx context.Context, cfg config.AuthConfig) (string, error) {
	if cfg.JWTSecret != "" {
		return cfg.JWTSecret, nil
	}
	var manager secrets.SecretManager = secrets.NewFileSecretManager(DefaultSecretsDir)
	secret, err := manager.GetSecret(ctx, cfg.JWTSecretFile)
	if err != nil {
		return "", fmt.Errorf("failed to load jwt secret: %w", err)
	}
	return secret, nil
}

func initializeTracing(cfg *config.Config, logger *zap.Logger) (func(context.Context) error, error) {
	tc := tracing.DefaultConfig()
	tc.ServiceName = cfg.AppName
	tc.Environment = cfg.Tracing.Environment
	tc.JaegerEndpoint = cfg.Tracing.JaegerEndpoint
	tc.SamplingRatio = cfg.Tracing.SamplingRatio
	return tracing.Init(tc, logger)
}
