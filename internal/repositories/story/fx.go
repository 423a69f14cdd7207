package story

import (
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/orgball2608/insta-stories-viewer/pkg/config"
	"github.com/orgball2608/insta-stories-viewer/pkg/logger"
	"go.uber.org/fx"
)

type Opts struct {
	fx.In

	Config *config.Config
	Logger logger.Logger
	Pool   *pgxpool.Pool `optional:"true"`
}

// New picks the repository named by STORIES_SOURCE.
func New(opts Opts) (Repository, error) {
	switch opts.Config.Stories.Source {
	case SourceFile:
		return NewFileRepository(opts.Config.Stories.File), nil
	case SourcePostgres:
		if opts.Pool == nil {
			return nil, fmt.Errorf("story source %q needs a postgres pool", SourcePostgres)
		}
		return NewPgxRepository(opts.Pool, opts.Logger), nil
	default:
		return nil, fmt.Errorf("unknown story source %q", opts.Config.Stories.Source)
	}
}

var Module = fx.Provide(New)
