package db

import (
	"context"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Pool is the connection pool the Postgres store runs on
type Pool = pgxpool.Pool

// NewPool builds the pool for databaseURL. Connectivity is checked when the
// fx app starts, so a bad host fails startup rather than the first request.
func NewPool(lc fx.Lifecycle, logger *zap.Logger, databaseURL string, maxConns int32) (*pgxpool.Pool, error) {
	config, err := poolConfig(databaseURL, maxConns)
	if err != nil {
		return nil, err
	}
	target := describeTarget(config)
	logger = logger.With(zap.String("db_target", target))
	logger.Info("initializing meter store connection pool", zap.Int32("max_conns", config.MaxConns))

	pool, err := pgxpool.NewWithConfig(context.Background(), config)
	if err != nil {
		return nil, fmt.Errorf("[DATABASE] failed to create connection pool for %s: %w", target, err)
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := pool.Ping(ctx); err != nil {
				logger.Error("database ping failed", zap.Error(err))
				return fmt.Errorf("[DATABASE CONNECTION FAILED] cannot reach %s, check DATABASE_URL and that the server accepts connections: %w", target, err)
			}
			logger.Info("database connection established")
			return nil
		},
		OnStop: func(ctx context.Context) error {
			pool.Close()
			logger.Info("database connection closed")
			return nil
		},
	})

	return pool, nil
}

// poolConfig parses databaseURL; a positive maxConns overrides pool_max_conns.
func poolConfig(databaseURL string, maxConns int32) (*pgxpool.Config, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("[DATABASE] DATABASE_URL is empty")
	}
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("[DATABASE] failed to parse database URL: %w", err)
	}
	if maxConns > 0 {
		config.MaxConns = maxConns
	}
	return config, nil
}

// describeTarget renders user@host:port/database for logs. It is built from
// the parsed fields so the password never appears.
func describeTarget(config *pgxpool.Config) string {
	cc := config.ConnConfig
	target := cc.Host + ":" + strconv.Itoa(int(cc.Port)) + "/" + cc.Database
	if cc.User != "" {
		target = cc.User + "@" + target
	}
	return target
}
