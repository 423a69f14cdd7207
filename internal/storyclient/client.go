// Package storyclient fetches the story collection from a running server.
package storyclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/orgball2608/insta-stories-viewer/internal/domain"
	"github.com/orgball2608/insta-stories-viewer/pkg/logger"
	"github.com/orgball2608/insta-stories-viewer/pkg/retry"
)

const StoriesPath = "/api/stories"

type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     logger.Logger
	retry      retry.Config
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.httpClient = c }
}

func WithRetry(cfg retry.Config) Option {
	return func(cl *Client) { cl.retry = cfg }
}

func New(baseURL string, log logger.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     log.WithComponent("StoryClient"),
		retry:      retry.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch returns the collection, or an empty list when the endpoint keeps
// failing. The failure is logged, never returned.
func (c *Client) Fetch(ctx context.Context) []domain.Story {
	stories, err := c.FetchErr(ctx)
	if err != nil {
		c.logger.Error("Error fetching stories", "url", c.baseURL+StoriesPath, "error", err)
		return []domain.Story{}
	}
	return stories
}

// FetchErr is Fetch with the error kept.
func (c *Client) FetchErr(ctx context.Context) ([]domain.Story, error) {
	stories, err := retry.DoValue(ctx, c.logger, "fetch stories", func() ([]domain.Story, error) {
		return c.fetchOnce(ctx)
	}, c.retry)
	if err != nil {
		return nil, err
	}
	if stories == nil {
		stories = []domain.Story{}
	}
	return stories, nil
}

func (c *Client) fetchOnce(ctx context.Context) ([]domain.Story, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+StoriesPath, nil)
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("failed to build request: %w", err))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("unexpected status %d", resp.StatusCode)
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return nil, retry.Permanent(err)
		}
		return nil, err
	}

	var stories []domain.Story
	if err := json.NewDecoder(resp.Body).Decode(&stories); err != nil {
		return nil, retry.Permanent(fmt.Errorf("failed to decode stories: %w", err))
	}
	return stories, nil
}
