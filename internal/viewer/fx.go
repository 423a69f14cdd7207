package viewer

import (
	"github.com/jonboulle/clockwork"
	"github.com/orgball2608/insta-stories-viewer/pkg/config"
	"github.com/orgball2608/insta-stories-viewer/pkg/logger"
	"go.uber.org/fx"
)

// Factory builds viewers sharing one clock and the configured timings.
type Factory struct {
	opts Options
}

func NewFactory(cfg *config.Config, log logger.Logger, clock clockwork.Clock) *Factory {
	return &Factory{opts: Options{
		Clock:                clock,
		Scheduler:            NewClockScheduler(clock),
		DefaultImageDuration: cfg.Stories.DefaultImageDuration,
		ProgressInterval:     cfg.Viewer.ProgressInterval,
		Logger:               log,
	}}
}

func (f *Factory) New() *Machine {
	return New(f.opts)
}

var Module = fx.Options(
	fx.Provide(
		clockwork.NewRealClock,
		NewFactory,
	),
)
