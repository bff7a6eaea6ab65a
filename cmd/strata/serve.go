package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	// SQL drivers selected by database.driver
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/strata-api/strata/internal/config"
	"github.com/strata-api/strata/internal/endpoint"
	"github.com/strata-api/strata/internal/resource"
	"github.com/strata-api/strata/internal/schema"
	"github.com/strata-api/strata/internal/store"
	"github.com/strata-api/strata/internal/web/auth"
	"github.com/strata-api/strata/internal/web/cache"
	"github.com/strata-api/strata/internal/web/middleware"
	"github.com/strata-api/strata/internal/web/ratelimit"
	"github.com/strata-api/strata/internal/web/router"
	"github.com/strata-api/strata/internal/web/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		return serve(cfg)
	},
}

func serve(cfg *config.Config) error {
	logger, err := newLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer logger.Sync()

	st, closeStore, err := openStore(cfg.Database)
	if err != nil {
		return err
	}

	registry := schema.NewRegistry()
	if err := registerBlogTypes(registry); err != nil {
		return err
	}
	if ms, ok := st.(*store.MemStore); ok {
		seedBlogFixtures(ms)
		logger.Info("using in-memory store with demo fixtures")
	}

	r := router.New()
	mapper := resource.NewMapper(registry, st, r)

	var hooks []server.ShutdownHook
	var docCache cache.Cache
	if cfg.Cache.Enabled {
		docCache, hooks = buildCache(cfg, logger, hooks)
	}

	var endpointOpts []endpoint.Option
	endpointOpts = append(endpointOpts, endpoint.WithLogger(logger))
	if docCache != nil {
		endpointOpts = append(endpointOpts, endpoint.WithCache(docCache, cfg.Cache.TTL))
	}

	for typeName, basePath := range map[string]string{
		"Author":  "/authors",
		"Article": "/articles",
		"Tag":     "/tags",
	} {
		set, err := endpoint.NewSet(typeName, mapper, st, endpointOpts...)
		if err != nil {
			return err
		}
		if err := set.Register(r, basePath); err != nil {
			return err
		}
	}

	chain := middleware.NewChain(
		middleware.RequestID(),
		middleware.Logging(logger),
		middleware.Recovery(logger),
	)
	if cfg.Auth.Secret != "" {
		authService := auth.NewService(cfg.Auth.Secret, cfg.Auth.TokenTTL)
		chain.Use(middleware.Auth(authService))
	}
	if cfg.RateLimit.Enabled {
		limiter, limiterHooks := buildLimiter(cfg, logger)
		hooks = append(hooks, limiterHooks...)
		chain.Use(middleware.RateLimit(limiter, logger))
	}

	serverCfg := server.DefaultConfig(chain.Then(r))
	serverCfg.Address = cfg.Server.Addr
	serverCfg.ReadTimeout = cfg.Server.ReadTimeout
	serverCfg.WriteTimeout = cfg.Server.WriteTimeout
	serverCfg.IdleTimeout = cfg.Server.IdleTimeout

	srv, err := server.New(serverCfg)
	if err != nil {
		return err
	}
	if closeStore != nil {
		hooks = append(hooks, func(ctx context.Context) error { return closeStore() })
	}

	logger.Info("server listening", zap.String("addr", cfg.Server.Addr))
	return server.RunWithGracefulShutdown(srv, logger, cfg.Server.ShutdownTimeout, hooks...)
}

// openStore selects the backing store: SQL when a database URL is
// configured, in-memory otherwise. The returned closer is nil for the
// in-memory store.
func openStore(cfg config.DatabaseConfig) (store.Store, func() error, error) {
	if cfg.URL == "" {
		return store.NewMemStore(), nil, nil
	}

	db, err := sql.Open(cfg.Driver, cfg.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return store.NewSQLStore(db), db.Close, nil
}

// buildCache wires the document cache, falling back to the in-process cache
// when Redis is disabled or unreachable
func buildCache(cfg *config.Config, logger *zap.Logger, hooks []server.ShutdownHook) (cache.Cache, []server.ShutdownHook) {
	if cfg.Redis.Enabled {
		redisCache, err := cache.NewRedisCache(cache.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Config: cache.Config{
				DefaultTTL: cfg.Cache.TTL,
				Prefix:     cfg.Cache.Prefix,
			},
		})
		if err != nil {
			logger.Warn("redis unavailable, using in-process cache", zap.Error(err))
		} else {
			hooks = append(hooks, func(ctx context.Context) error { return redisCache.Close() })
			return redisCache, hooks
		}
	}
	return cache.NewMemoryCache(), hooks
}

// buildLimiter selects the rate limiter backend: a shared Redis sliding
// window when Redis is enabled, an in-process token bucket otherwise
func buildLimiter(cfg *config.Config, logger *zap.Logger) (ratelimit.Limiter, []server.ShutdownHook) {
	if cfg.Redis.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		limiter, err := ratelimit.NewRedisLimiter(ratelimit.RedisLimiterConfig{
			Client: client,
			Limit:  cfg.RateLimit.Limit,
			Window: cfg.RateLimit.Window,
		})
		if err == nil {
			hook := func(ctx context.Context) error { return client.Close() }
			return limiter, []server.ShutdownHook{hook}
		}
		logger.Warn("redis rate limiter unavailable, using token bucket", zap.Error(err))
		client.Close()
	}

	tb := ratelimit.NewTokenBucket(ratelimit.TokenBucketConfig{
		Capacity:      cfg.RateLimit.Limit,
		Window:        cfg.RateLimit.Window,
		SweepInterval: 5 * time.Minute,
	})
	hook := func(ctx context.Context) error { return tb.Close() }
	return tb, []server.ShutdownHook{hook}
}

func newLogger(cfg config.LogConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	return zapCfg.Build()
}
