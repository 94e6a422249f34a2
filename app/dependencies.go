// Package app is the central wiring point for dependency injection: it builds
// the provider registry, the fallback orchestrator, the rate limiter, the
// usage recorder, and the HTTP handlers from configuration.
package app

import (
	"context"
	"fmt"
	"os"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/brightline-ai/enhance-gateway/auth"
	"github.com/brightline-ai/enhance-gateway/config"
	"github.com/brightline-ai/enhance-gateway/handlers"
	"github.com/brightline-ai/enhance-gateway/internal/clock"
	"github.com/brightline-ai/enhance-gateway/middleware"
	"github.com/brightline-ai/enhance-gateway/repositories/postgres"
	"github.com/brightline-ai/enhance-gateway/services/breaker"
	"github.com/brightline-ai/enhance-gateway/services/orchestrator"
	"github.com/brightline-ai/enhance-gateway/services/providers"
	"github.com/brightline-ai/enhance-gateway/services/providers/anthropic"
	"github.com/brightline-ai/enhance-gateway/services/providers/openai"
	"github.com/brightline-ai/enhance-gateway/services/ratelimit"
	"github.com/brightline-ai/enhance-gateway/services/retry"
	"github.com/brightline-ai/enhance-gateway/services/stats"
	"github.com/brightline-ai/enhance-gateway/services/usage"
)

// Dependencies holds all application dependencies.
type Dependencies struct {
	// Infrastructure
	Config *config.Config
	Logger *zap.Logger
	DB     *postgres.DB
	Redis  redis.UniversalClient

	// Core services
	Registry     *providers.Registry
	Tracker      *stats.Tracker
	Orchestrator *orchestrator.Service
	Limiter      *ratelimit.Limiter
	Recorder     *usage.Recorder

	// Middleware
	AuthMiddleware      *middleware.AuthMiddleware
	RateLimitMiddleware *middleware.RateLimitMiddleware

	// Handlers
	EnhanceHandler *handlers.EnhanceHandler
	StatusHandler  *handlers.StatusHandler
	UsageHandler   *handlers.UsageHandler
	HealthHandler  *handlers.HealthHandler

	pruneCancel context.CancelFunc
}

// NewDependencies creates and wires up all application dependencies.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	if err := deps.initDatabase(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	usageRepo := postgres.NewUsageRepository(deps.DB.DB, logger)

	deps.initProviders(cfg)
	deps.initOrchestrator(cfg)
	if err := deps.initLimiter(cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize rate limiter: %w", err)
	}
	deps.initRecorder(cfg, usageRepo)
	deps.initMiddleware(cfg)
	deps.initHandlers(cfg)

	pruneCtx, cancel := context.WithCancel(context.Background())
	deps.pruneCancel = cancel
	go usageRepo.StartPruneWorker(pruneCtx, cfg.Usage.PruneInterval, cfg.Usage.LedgerRetention)

	logger.Info("all dependencies initialized successfully")
	return deps, nil
}

// initDatabase initializes the PostgreSQL connection and schema
func (d *Dependencies) initDatabase(ctx context.Context, cfg *config.Config) error {
	db, err := postgres.NewDB(cfg.Database, d.Logger)
	if err != nil {
		return err
	}
	d.DB = db

	if err := db.InitSchema(ctx); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

// initProviders registers the configured provider adapters. Credentials are
// re-read from the environment on every availability check, so a key added to
// the environment becomes usable without a restart.
func (d *Dependencies) initProviders(cfg *config.Config) {
	registry := providers.NewRegistry(cfg.Providers.FallbackOrder)

	openaiClient := openai.NewAdapter(providers.Config{
		APIKey:  cfg.Providers.OpenAI.APIKey,
		BaseURL: cfg.Providers.OpenAI.BaseURL,
		Model:   cfg.Providers.OpenAI.Model,
		Timeout: cfg.Providers.OpenAI.Timeout,
	})
	if err := registry.Register(openaiClient, credentialFromEnv("OPENAI_API_KEY", cfg.Providers.OpenAI.APIKey)); err != nil {
		d.Logger.Warn("registering openai provider", zap.Error(err))
	}

	anthropicClient := anthropic.NewAdapter(providers.Config{
		APIKey:  cfg.Providers.Anthropic.APIKey,
		BaseURL: cfg.Providers.Anthropic.BaseURL,
		Model:   cfg.Providers.Anthropic.Model,
		Timeout: cfg.Providers.Anthropic.Timeout,
	})
	if err := registry.Register(anthropicClient, credentialFromEnv("ANTHROPIC_API_KEY", cfg.Providers.Anthropic.APIKey)); err != nil {
		d.Logger.Warn("registering anthropic provider", zap.Error(err))
	}

	if len(registry.Available()) == 0 {
		d.Logger.Warn("no text providers currently available, all traffic will use the local fallback")
	}

	d.Registry = registry
}

// initOrchestrator builds the stats tracker and the fallback orchestrator
func (d *Dependencies) initOrchestrator(cfg *config.Config) {
	d.Tracker = stats.NewTracker(clock.Real{})
	d.Orchestrator = orchestrator.NewService(d.Registry, d.Tracker, orchestrator.Config{
		AttemptTimeout: cfg.Resilience.AttemptTimeout,
		Breaker:        d.breakerConfig(cfg),
	}, clock.Real{}, d.Logger)
}

// initLimiter selects the window store (Redis when configured, otherwise
// in-process) and applies any limits-file override. A limits file that fails
// to load or validate aborts startup: serving traffic under limits the
// operator did not configure is worse than not starting.
func (d *Dependencies) initLimiter(cfg *config.Config) error {
	var store ratelimit.WindowStore
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		d.Redis = client
		store = ratelimit.NewRedisStore(client, cfg.Redis.KeyPrefix)
		d.Logger.Info("rate limit counters backed by redis",
			zap.String("addr", cfg.Redis.Addr))
	} else {
		store = ratelimit.NewMemoryStore()
		d.Logger.Info("rate limit counters kept in process memory")
	}

	limitCfg := ratelimit.DefaultConfig()
	if cfg.RateLimit.LimitsFile != "" {
		lf, err := config.LoadLimitsFile(cfg.RateLimit.LimitsFile)
		if err != nil {
			return fmt.Errorf("loading limits file %s: %w", cfg.RateLimit.LimitsFile, err)
		}
		limitCfg = limiterConfigFromFile(lf)
		d.Logger.Info("rate limits loaded from file",
			zap.String("path", cfg.RateLimit.LimitsFile))
	}

	d.Limiter = ratelimit.NewLimiter(store, limitCfg, clock.Real{}, d.Logger)
	return nil
}

// initRecorder builds the usage recorder with its persistence breaker
func (d *Dependencies) initRecorder(cfg *config.Config, repo *postgres.UsageRepository) {
	policy := retry.Policy{
		MaxAttempts: cfg.Resilience.RetryMaxAttempts,
		BaseDelay:   cfg.Resilience.RetryBaseDelay,
		Multiplier:  2,
	}
	d.Recorder = usage.NewRecorder(repo, d.breakerConfig(cfg), policy, clock.Real{}, d.Logger)
}

// initMiddleware builds the auth and rate limit middleware
func (d *Dependencies) initMiddleware(cfg *config.Config) {
	validator := auth.NewValidator(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
	d.AuthMiddleware = middleware.NewAuthMiddleware(validator, d.Logger)
	d.RateLimitMiddleware = middleware.NewRateLimitMiddleware(d.Limiter, cfg.RateLimit.BypassPrefixes, d.Logger)
}

// initHandlers builds the HTTP handlers
func (d *Dependencies) initHandlers(cfg *config.Config) {
	period := usage.Period(cfg.Usage.Period)

	d.EnhanceHandler = handlers.NewEnhanceHandler(d.Orchestrator, d.Recorder, period, d.Logger)
	d.StatusHandler = handlers.NewStatusHandler(d.Orchestrator, d.Tracker, d.Recorder, d.Logger)
	d.UsageHandler = handlers.NewUsageHandler(d.Recorder, period, d.Logger)

	checks := map[string]handlers.DependencyCheck{
		"database": d.DB.HealthCheck,
	}
	if d.Redis != nil {
		checks["redis"] = func(ctx context.Context) error {
			return d.Redis.Ping(ctx).Err()
		}
	}
	d.HealthHandler = handlers.NewHealthHandler(checks, d.Logger)
}

func (d *Dependencies) breakerConfig(cfg *config.Config) breaker.Config {
	return breaker.Config{
		FailureThreshold: cfg.Resilience.BreakerFailureThreshold,
		SuccessThreshold: cfg.Resilience.BreakerSuccessThreshold,
		RecoveryTimeout:  cfg.Resilience.BreakerRecoveryTimeout,
	}
}

// credentialFromEnv prefers the live environment value so rotated or newly
// provisioned keys take effect without a restart.
func credentialFromEnv(envKey, fallback string) providers.CredentialFunc {
	return func() string {
		if v := os.Getenv(envKey); v != "" {
			return v
		}
		return fallback
	}
}

// limiterConfigFromFile converts a validated limits file to limiter config
func limiterConfigFromFile(lf *config.LimitsFile) ratelimit.Config {
	cfg := ratelimit.DefaultConfig()
	if len(lf.Authenticated) > 0 {
		cfg.Authenticated = windowsFromFile(lf.Authenticated)
	}
	if len(lf.Anonymous) > 0 {
		cfg.Anonymous = windowsFromFile(lf.Anonymous)
	}
	if len(lf.CooldownsSeconds) > 0 {
		cfg.Cooldowns = lf.Cooldowns()
	}
	if lf.ViolationResetSeconds > 0 {
		cfg.ViolationReset = lf.ViolationReset()
	}
	return cfg
}

func windowsFromFile(entries []config.LimitWindow) []ratelimit.Window {
	out := make([]ratelimit.Window, 0, len(entries))
	for _, e := range entries {
		out = append(out, ratelimit.Window{Name: e.Name, Span: e.Span(), Limit: e.Limit})
	}
	return out
}

// Close gracefully shuts down all dependencies
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	var errs []error

	if d.pruneCancel != nil {
		d.pruneCancel()
	}

	if d.DB != nil {
		if err := d.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		} else {
			d.Logger.Info("database connection closed")
		}
	}

	if d.Redis != nil {
		if err := d.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close redis: %w", err))
		}
	}

	if d.Logger != nil {
		_ = d.Logger.Sync()
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during shutdown: %v", errs)
	}

	return nil
}
