package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
)

// PoolConfig carries the connection pool settings
type PoolConfig struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	DialTimeout     time.Duration
}

// Open creates a pgx pool and verifies connectivity before returning it
func Open(ctx context.Context, cfg PoolConfig, logger *logrus.Logger) (*pgxpool.Pool, error) {
	pc, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		logger.WithField("error", err.Error()).Error("Invalid database DSN")
		return nil, err
	}

	pc.MaxConns = cfg.MaxConns
	pc.MinConns = cfg.MinConns
	pc.MaxConnLifetime = cfg.MaxConnLifetime
	pc.ConnConfig.RuntimeParams["application_name"] = "nfce-api"

	dialCtx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(dialCtx, pc)
	if err != nil {
		logger.WithField("error", err.Error()).Error("Failed to create database pool")
		return nil, err
	}

	if err := pool.Ping(dialCtx); err != nil {
		pool.Close()
		logger.WithField("error", err.Error()).Error("Failed to ping database")
		return nil, err
	}

	logger.Info("Connected to database")
	return pool, nil
}

// HealthCheck pings the database with a bounded timeout
func HealthCheck(ctx context.Context, pool *pgxpool.Pool, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return pool.Ping(ctx)
}
