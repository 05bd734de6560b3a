package container

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"versus-backend/internal/broadcast"
	"versus-backend/internal/config"
	"versus-backend/internal/generator"
	"versus-backend/internal/metrics"
	"versus-backend/internal/repository"
	"versus-backend/internal/service"
	"versus-backend/internal/validation"
	"versus-backend/pkg/database"
	"versus-backend/pkg/logger"
	"versus-backend/pkg/ratelimit"
	"versus-backend/pkg/redis"
)

const rateLimitIdleTTL = 10 * time.Minute

// Container holds all application dependencies
type Container struct {
	Config   *config.Config
	Logger   *logger.Logger
	Registry *prometheus.Registry
	Metrics  *metrics.Metrics

	Postgres    *database.PostgresDB
	Badger      *database.BadgerDB
	RedisClient *redis.Client

	Repositories *repository.Repositories
	Hub          *broadcast.Hub
	Relay        *broadcast.RedisRelay
	RateLimiter  *ratelimit.KeyedRateLimiter
	Validator    *validation.Validator

	Cache      *service.CacheService
	Ledger     *service.Ledger
	Decoration *service.DecorationService
	Battles    *service.BattleService
	Social     *service.SocialService

	closers []func() error
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	once    sync.Once
}

// New creates a new dependency injection container. Postgres is used when
// DatabaseURL is set, otherwise the embedded badger store under DataDir.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Container, error) {
	c := &Container{
		Config:    cfg,
		Logger:    log,
		Registry:  prometheus.NewRegistry(),
		Validator: validation.New(),
	}
	c.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	c.Metrics = metrics.New(c.Registry)

	if err := c.openStore(ctx); err != nil {
		_ = c.Close(ctx)
		return nil, err
	}

	// Redis is optional: without it the cache is disabled and rooms stay local.
	if cfg.RedisURL != "" {
		client, err := redis.NewClient(cfg.RedisURL, cfg.Environment, log.Component("redis").Logger)
		if err != nil {
			log.WithError(err).Warn("Failed to initialize Redis client, proceeding without caching")
		} else {
			c.RedisClient = client
			c.closers = append(c.closers, client.Close)
			log.Info("Redis client initialized successfully")
		}
	} else {
		log.Info("Redis URL not configured, proceeding without caching")
	}

	c.Hub = broadcast.NewHub(log, c.Metrics)
	if c.RedisClient != nil && cfg.BroadcastRelay {
		c.Relay = broadcast.NewRedisRelay(c.RedisClient, c.Hub, log)
		c.Hub.SetForwarder(c.Relay)
	}

	var gen generator.TextGenerator
	if cfg.GeminiAPIKey != "" {
		gemini, err := generator.NewGemini(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, log)
		if err != nil {
			log.WithError(err).Warn("Failed to initialize generator, decorations use fallbacks")
		} else {
			gen = gemini
			log.Info("Generator initialized", zap.Stringer("generator", gemini))
		}
	}

	c.RateLimiter = ratelimit.New(cfg.RateLimitRPS, cfg.RateLimitBurst, rateLimitIdleTTL)

	c.Cache = service.NewCacheService(c.RedisClient, log)
	c.Ledger = service.NewLedger(c.Repositories.Battle, c.Metrics, log)
	c.Decoration = service.NewDecorationService(gen, c.Repositories.Battle, c.Cache, service.RetrySettings{
		MaxAttempts: cfg.GeneratorMaxAttempts,
		Delay:       cfg.GeneratorRetryDelay,
		Timeout:     cfg.GeneratorTimeout,
	}, c.Metrics, log)
	c.Battles = service.NewBattleService(c.Ledger, c.Repositories.Battle, c.Cache, c.Decoration, c.Hub, cfg.TrendingLimit, log)
	c.Social = service.NewSocialService(c.Repositories, c.Hub, log)

	return c, nil
}

func (c *Container) openStore(ctx context.Context) error {
	if c.Config.DatabaseURL != "" {
		db, err := database.NewPostgresDB(ctx, c.Config.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		c.Postgres = db
		c.closers = append(c.closers, db.Close)

		if err := db.Migrate(ctx); err != nil {
			return fmt.Errorf("failed to migrate database: %w", err)
		}

		c.Repositories = &repository.Repositories{
			Battle:   repository.NewPostgresBattleRepository(db),
			Comment:  repository.NewPostgresCommentRepository(db),
			Reaction: repository.NewPostgresReactionRepository(db),
		}
		c.Logger.Info("Using Postgres store")
		return nil
	}

	db, err := database.NewBadgerDB(c.Config.DataDir)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	c.Badger = db
	c.closers = append(c.closers, db.Close)

	battles, err := repository.NewBadgerBattleRepository(db)
	if err != nil {
		return err
	}
	battles.OnConflict = c.Metrics.LedgerConflicts.Inc
	c.closers = append(c.closers, battles.Close)

	c.Repositories = &repository.Repositories{
		Battle:   battles,
		Comment:  repository.NewBadgerCommentRepository(db),
		Reaction: repository.NewBadgerReactionRepository(db),
	}
	c.Logger.WithField("data_dir", c.Config.DataDir).Info("Using embedded store")
	return nil
}

// Start runs the broadcast hub and relay and seeds the default battle.
func (c *Container) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel

	c.Hub.Start(runCtx)

	if c.Relay != nil {
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			if err := c.Relay.Run(runCtx); err != nil {
				c.Logger.WithError(err).Error("Broadcast relay stopped")
			}
		}()
	}

	if c.Config.SeedDefaultBattle {
		if err := c.Battles.EnsureDefaultBattle(ctx); err != nil {
			return err
		}
	}
	return nil
}

// DrainStreams shuts the hub down, which ends every open event stream.
// Close calls it too; calling both is safe.
func (c *Container) DrainStreams(ctx context.Context) error {
	return c.Hub.Shutdown(ctx)
}

// HealthCheck verifies the store and Redis.
func (c *Container) HealthCheck(ctx context.Context) error {
	return c.Battles.HealthCheck(ctx)
}

// Close drains the hub and releases every resource in reverse order of
// acquisition. It is safe to call more than once.
func (c *Container) Close(ctx context.Context) error {
	var errs []error
	c.once.Do(func() {
		if c.Hub != nil {
			if err := c.Hub.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("broadcast hub shutdown: %w", err))
			}
		}
		if c.cancel != nil {
			c.cancel()
		}
		c.wg.Wait()

		if c.Decoration != nil {
			c.Decoration.Close()
		}
		if c.RateLimiter != nil {
			c.RateLimiter.Stop()
		}

		for i := len(c.closers) - 1; i >= 0; i-- {
			if err := c.closers[i](); err != nil {
				errs = append(errs, err)
			}
		}
	})
	return errors.Join(errs...)
}
