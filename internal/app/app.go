package app

import (
	"context"
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/orgball2608/insta-stories-viewer/internal/catalog"
	"github.com/orgball2608/insta-stories-viewer/internal/catalog/catalogimpl"
	"github.com/orgball2608/insta-stories-viewer/internal/ledger"
	"github.com/orgball2608/insta-stories-viewer/internal/migrations"
	"github.com/orgball2608/insta-stories-viewer/internal/ratelimit"
	repositories "github.com/orgball2608/insta-stories-viewer/internal/repositories/fx"
	"github.com/orgball2608/insta-stories-viewer/internal/server"
	"github.com/orgball2608/insta-stories-viewer/internal/viewer"
	"github.com/orgball2608/insta-stories-viewer/pkg/config"
	"github.com/orgball2608/insta-stories-viewer/pkg/logger"
	"github.com/orgball2608/insta-stories-viewer/pkg/pgx"
	"go.uber.org/fx"
)

// Module builds the application graph for cfg. The postgres pool and the
// schema migrations are only wired when a backend needs them.
func Module(cfg *config.Config) fx.Option {
	opts := []fx.Option{
		fx.Supply(cfg),
		fx.Provide(
			logger.FxOption,
			fx.Annotate(
				catalogimpl.New,
				fx.As(new(catalog.Client)),
			),
			fx.Annotate(
				newLimiter,
				fx.As(new(ratelimit.Limiter)),
			),
			server.New,
		),
		repositories.Module,
		ledger.Module,
		viewer.Module,
	}

	if cfg.NeedsPostgres() {
		opts = append(opts,
			fx.Provide(pgx.New),
			fx.Invoke(migrate),
		)
	}

	opts = append(opts, fx.Invoke(run))
	return fx.Options(opts...)
}

func newLimiter(cfg *config.Config) *ratelimit.InMemoryLimiter {
	return ratelimit.NewInMemoryLimiter(cfg.Websocket.MessagesPerSecond, time.Second, cfg.Websocket.Burst)
}

func migrate(cfg *config.Config, log logger.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	return migrations.Up(ctx, cfg.GetDSN(), log)
}

func run(lc fx.Lifecycle, log logger.Logger, cfg *config.Config, catalogClient catalog.Client, srv *server.Server) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(startCtx context.Context) error {
			if err := catalogClient.Reload(startCtx); err != nil {
				log.Error("Initial story load failed", "error", err)
			}

			if err := catalogClient.ScheduleReload(ctx); err != nil {
				log.Error("Schedule story reload error", "error", err)
			}

			go func() {
				defer close(done)
				if err := srv.Run(ctx, fmt.Sprintf(":%d", cfg.App.Port)); err != nil {
					log.Error("Server failed", "error", err)
				}
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			select {
			case <-done:
			case <-stopCtx.Done():
				log.Warn("Server did not stop in time")
			}
			sentry.Flush(2 * time.Second)
			return nil
		},
	})
}
