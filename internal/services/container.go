package services

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/vamojunto/nfce-api/internal/config"
	"github.com/vamojunto/nfce-api/internal/repository"
)

// Container holds all service dependencies
type Container struct {
	config      *config.Config
	logger      *logrus.Logger
	redisClient *redis.Client
	pool        *pgxpool.Pool

	NoteService  NoteServiceInterface
	CacheService CacheServiceInterface
}

// NewContainer creates a new service container
func NewContainer(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (*Container, error) {
	container := &Container{
		config: cfg,
		logger: logger,
	}

	container.initRedis(ctx)

	if err := container.initDatabase(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	container.initServices()

	return container, nil
}

// initRedis connects to Redis; the service degrades to memory-only caching
// when Redis is unreachable
func (c *Container) initRedis(ctx context.Context) {
	c.redisClient = redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", c.config.Redis.Host, c.config.Redis.Port),
		Password:     c.config.Redis.Password,
		DB:           c.config.Redis.DB,
		PoolSize:     c.config.Redis.PoolSize,
		DialTimeout:  c.config.Redis.DialTimeout,
		ReadTimeout:  c.config.Redis.ReadTimeout,
		WriteTimeout: c.config.Redis.WriteTimeout,
	})

	if err := c.redisClient.Ping(ctx).Err(); err != nil {
		c.logger.Warn("Redis connection failed, running with memory cache only")
		c.redisClient = nil
	} else {
		c.logger.Info("Redis connection established")
	}
}

func (c *Container) initDatabase(ctx context.Context) error {
	pool, err := repository.Open(ctx, repository.PoolConfig{
		DSN:             c.config.Database.DSN(),
		MaxConns:        c.config.Database.MaxConns,
		MinConns:        c.config.Database.MinConns,
		MaxConnLifetime: c.config.Database.ConnMaxLifetime,
		DialTimeout:     c.config.Database.DialTimeout,
	}, c.logger)
	if err != nil {
		return err
	}
	c.pool = pool
	return nil
}

func (c *Container) initServices() {
	c.CacheService = NewCacheService(c.redisClient, c.config.NFCe.CacheTTL, c.logger)

	fetcher := NewFetcherService(c.config.NFCe.FetchTimeout, c.logger)

	var browser DocumentFetcher
	if c.config.NFCe.BrowserFallback {
		browser = NewBrowserFetcher(c.config.NFCe.BrowserTimeout, c.logger)
	}

	extractor := NewExtractorService(c.logger)
	repo := repository.NewNoteRepository(c.pool, c.logger)

	c.NoteService = NewNoteService(c.config, fetcher, browser, extractor,
		c.CacheService, repo, c.logger)
}

// Close closes all service connections
func (c *Container) Close() error {
	var errs []error

	if c.redisClient != nil {
		if err := c.redisClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close Redis: %w", err))
		}
	}

	if c.pool != nil {
		c.pool.Close()
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during shutdown: %v", errs)
	}
	return nil
}

// Health checks the health of all services
func (c *Container) Health() map[string]interface{} {
	health := make(map[string]interface{})

	if c.redisClient != nil {
		ctx := context.Background()
		if err := c.redisClient.Ping(ctx).Err(); err != nil {
			health["redis"] = map[string]interface{}{
				"status": "unhealthy",
				"error":  err.Error(),
			}
		} else {
			health["redis"] = map[string]interface{}{
				"status": "healthy",
			}
		}
	} else {
		health["redis"] = map[string]interface{}{
			"status": "disabled",
		}
	}

	if c.pool != nil {
		if err := repository.HealthCheck(context.Background(), c.pool,
			c.config.Database.DialTimeout); err != nil {
			health["database"] = map[string]interface{}{
				"status": "unhealthy",
				"error":  err.Error(),
			}
		} else {
			health["database"] = map[string]interface{}{
				"status": "healthy",
			}
		}
	}

	if c.NoteService != nil {
		health["notes"] = c.NoteService.Health()
	}

	return health
}

// GetRedisClient returns the Redis client
func (c *Container) GetRedisClient() *redis.Client {
	return c.redisClient
}

// GetConfig returns the configuration
func (c *Container) GetConfig() *config.Config {
	return c.config
}

// GetLogger returns the logger
func (c *Container) GetLogger() *logrus.Logger {
	return c.logger
}
