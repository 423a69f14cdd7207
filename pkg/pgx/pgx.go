package pgx

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/orgball2608/insta-stories-viewer/pkg/config"
	"github.com/orgball2608/insta-stories-viewer/pkg/logger"
	"github.com/orgball2608/insta-stories-viewer/pkg/retry"
	"go.uber.org/fx"
)

type Opts struct {
	fx.In
	LC     fx.Lifecycle
	Logger logger.Logger
	Config *config.Config
}

// New builds the shared pool. Postgres often comes up after the service in
// compose setups, so the start hook retries the first ping.
func New(opts Opts) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(opts.Config.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres dsn: %w", err)
	}
	if n := opts.Config.Postgres.MaxConns; n > 0 {
		poolCfg.MaxConns = n
	}

	pool, err := pgxpool.NewWithConfig(context.Background(), poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create pgx pool: %w", err)
	}

	log := opts.Logger.WithComponent("Postgres")
	opts.LC.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := retry.Do(ctx, log, "postgres ping", func() error {
				return pool.Ping(ctx)
			}, retry.DefaultConfig()); err != nil {
				return fmt.Errorf("failed to ping postgres: %w", err)
			}
			log.Info("Connected to postgres",
				"host", opts.Config.Postgres.Host,
				"database", opts.Config.Postgres.Name,
				"max_conns", poolCfg.MaxConns,
			)
			return nil
		},
		OnStop: func(context.Context) error {
			pool.Close()
			return nil
		},
	})

	return pool, nil
}
