package kv

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/orgball2608/insta-stories-viewer/pkg/config"
	"github.com/orgball2608/insta-stories-viewer/pkg/logger"
	"go.uber.org/fx"
)

type Opts struct {
	fx.In
	LC fx.Lifecycle

	Config *config.Config
	Logger logger.Logger
	Pool   *pgxpool.Pool `optional:"true"`
}

// New picks the backend named by LEDGER_BACKEND.
func New(opts Opts) (Store, error) {
	backend := opts.Config.Ledger.Backend
	path := opts.Config.Ledger.Path

	switch backend {
	case BackendFile:
		return NewFileStore(path)
	case BackendMemory:
		return NewMemoryStore(), nil
	case BackendPebble:
		store, err := OpenPebble(path, nil)
		if err != nil {
			return nil, err
		}
		opts.LC.Append(fx.Hook{
			OnStop: func(context.Context) error {
				opts.Logger.Info("Closing pebble kv store", "path", path)
				return store.Close()
			},
		})
		return store, nil
	case BackendPostgres:
		if opts.Pool == nil {
			return nil, fmt.Errorf("kv backend %q needs a postgres pool", backend)
		}
		return NewPgxStore(opts.Pool, opts.Logger), nil
	default:
		return nil, fmt.Errorf("unknown kv backend %q", backend)
	}
}

var Module = fx.Provide(New)
