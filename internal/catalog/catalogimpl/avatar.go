package catalogimpl

import (
	"context"
	"net/http"
	"strings"
	"sync"

	"github.com/orgball2608/insta-stories-viewer/internal/domain"
	"github.com/panjf2000/ants/v2"
	"github.com/samber/lo"
	"golang.org/x/time/rate"
)

const (
	probeWorkers = 4
	probeRate    = 10
)

// applyAvatars replaces empty avatar urls with the default one and, when
// probing is on, also replaces absolute urls that do not answer a HEAD.
func (c *CatalogImpl) applyAvatars(ctx context.Context, stories []domain.Story) {
	if c.defaultAvatar == "" {
		return
	}

	var broken map[string]bool
	if c.probeAvatars {
		urls := lo.Uniq(lo.FilterMap(stories, func(s domain.Story, _ int) (string, bool) {
			return s.UserAvatarURL, isRemote(s.UserAvatarURL)
		}))
		broken = c.probe(ctx, urls)
	}

	for i := range stories {
		if u := stories[i].UserAvatarURL; u == "" || broken[u] {
			stories[i].UserAvatarURL = c.defaultAvatar
		}
	}
}

func isRemote(u string) bool {
	return strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://")
}

func (c *CatalogImpl) probe(ctx context.Context, urls []string) map[string]bool {
	broken := make(map[string]bool)
	if len(urls) == 0 {
		return broken
	}

	pool, err := ants.NewPool(probeWorkers, ants.WithPreAlloc(true))
	if err != nil {
		c.Logger.Error("Failed to create avatar probe pool", "error", err)
		return broken
	}
	defer pool.Release()

	limiter := rate.NewLimiter(rate.Limit(probeRate), 1)
	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)

	for _, u := range urls {
		wg.Add(1)
		url := u
		err := pool.Submit(func() {
			defer wg.Done()
			if err := limiter.Wait(ctx); err != nil {
				return
			}
			if !c.reachable(ctx, url) {
				c.Logger.Warn("Avatar unreachable, using default", "url", url)
				mu.Lock()
				broken[url] = true
				mu.Unlock()
			}
		})
		if err != nil {
			wg.Done()
			c.Logger.Error("Failed to submit avatar probe", "url", url, "error", err)
		}
	}

	wg.Wait()
	return broken
}

func (c *CatalogImpl) reachable(ctx context.Context, url string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 400
}
