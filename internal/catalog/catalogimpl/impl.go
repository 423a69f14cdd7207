package catalogimpl

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/orgball2608/insta-stories-viewer/internal/catalog"
	"github.com/orgball2608/insta-stories-viewer/internal/domain"
	"github.com/orgball2608/insta-stories-viewer/internal/repositories/story"
	"github.com/orgball2608/insta-stories-viewer/pkg/config"
	"github.com/orgball2608/insta-stories-viewer/pkg/logger"
	"go.uber.org/fx"
)

type Opts struct {
	fx.In

	StoryRepo story.Repository
	Logger    logger.Logger
	Config    *config.Config
}

type CatalogImpl struct {
	StoryRepo story.Repository
	Logger    logger.Logger

	defaultDuration time.Duration
	reloadInterval  time.Duration
	defaultAvatar   string
	probeAvatars    bool
	httpClient      *http.Client

	mu      sync.RWMutex
	stories []domain.Story
	loaded  bool
}

func New(opts Opts) *CatalogImpl {
	return &CatalogImpl{
		StoryRepo:       opts.StoryRepo,
		Logger:          opts.Logger.WithComponent("Catalog"),
		defaultDuration: opts.Config.Stories.DefaultImageDuration,
		reloadInterval:  opts.Config.Stories.ReloadInterval,
		defaultAvatar:   opts.Config.Stories.DefaultAvatarURL,
		probeAvatars:    opts.Config.Stories.ProbeAvatars,
		httpClient:      &http.Client{Timeout: 5 * time.Second},
	}
}

var _ catalog.Client = (*CatalogImpl)(nil)

// Stories returns the cached collection, loading it on first use.
func (c *CatalogImpl) Stories(ctx context.Context) ([]domain.Story, error) {
	c.mu.RLock()
	if c.loaded {
		out := append([]domain.Story(nil), c.stories...)
		c.mu.RUnlock()
		return out, nil
	}
	c.mu.RUnlock()

	if err := c.Reload(ctx); err != nil {
		return nil, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]domain.Story(nil), c.stories...), nil
}

// Reload reads the repository again. On failure the previous collection is
// kept.
func (c *CatalogImpl) Reload(ctx context.Context) error {
	raw, err := c.StoryRepo.List(ctx)
	if err != nil {
		c.Logger.Error("Failed to load stories", "error", err)
		return fmt.Errorf("failed to load stories: %w", err)
	}

	stories := Normalize(raw, c.defaultDuration, c.Logger)
	c.applyAvatars(ctx, stories)

	c.mu.Lock()
	c.stories = stories
	c.loaded = true
	c.mu.Unlock()

	c.Logger.Info("Stories loaded", "count", len(stories), "dropped", len(raw)-len(stories))
	return nil
}

// Normalize drops records the viewer cannot play and gives images without a
// duration the default one. Order is preserved.
func Normalize(raw []domain.Story, def time.Duration, log logger.Logger) []domain.Story {
	if def <= 0 {
		def = domain.DefaultImageDuration
	}
	out := make([]domain.Story, 0, len(raw))
	for _, s := range raw {
		if err := s.Validate(); err != nil {
			log.Warn("Skipping invalid story", "story_id", s.ID, "error", err)
			continue
		}
		if s.IsImage() && s.Duration == nil {
			s.Duration = domain.Millis(def.Milliseconds())
		}
		out = append(out, s)
	}
	return out
}
