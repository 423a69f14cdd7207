package catalogimpl

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// ScheduleReload reloads the collection every STORIES_RELOAD_INTERVAL until
// ctx is cancelled. A zero interval disables the job.
func (c *CatalogImpl) ScheduleReload(ctx context.Context) error {
	if c.reloadInterval <= 0 {
		c.Logger.Info("Story reload disabled")
		return nil
	}

	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("failed to create reload scheduler: %w", err)
	}

	_, err = scheduler.NewJob(
		gocron.DurationJob(c.reloadInterval),
		gocron.NewTask(func() {
			if ctx.Err() != nil {
				c.Logger.Info("Context cancelled, stopping story reload")
				return
			}
			taskCtx, cancel := context.WithTimeout(ctx, time.Minute)
			defer cancel()

			if err := c.Reload(taskCtx); err != nil {
				c.Logger.Warn("Scheduled reload failed, keeping previous stories", "error", err)
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule story reload: %w", err)
	}

	scheduler.Start()
	c.Logger.Info("Story reload scheduled", "interval", c.reloadInterval.String())

	go func() {
		<-ctx.Done()
		c.Logger.Info("Stopping story reload scheduler")
		if err := scheduler.Shutdown(); err != nil {
			c.Logger.Error("Failed to shut down reload scheduler", "error", err)
		}
	}()

	return nil
}
