package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/orgball2608/insta-stories-viewer/internal/repositories/kv"
	"github.com/orgball2608/insta-stories-viewer/pkg/logger"
)

// DefaultKey is the slot the viewed ids live under.
const DefaultKey = "viewedStoryIds"

// Ledger is the set of story ids a client has seen. It only grows.
type Ledger struct {
	store  kv.Store
	key    string
	logger logger.Logger

	writeMu sync.Mutex
	mu      sync.RWMutex
	ids     map[string]struct{}
	order   []string
}

// Load reads the ledger stored under key. A missing slot, a read failure or
// corrupt data all yield an empty ledger.
func Load(ctx context.Context, store kv.Store, key string, log logger.Logger) *Ledger {
	l := &Ledger{
		store:  store,
		key:    key,
		logger: log.WithComponent("Ledger"),
		ids:    make(map[string]struct{}),
	}

	raw, err := store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, kv.ErrNotFound) {
			l.logger.Warn("Failed to read viewed stories, starting empty", "key", key, "error", err)
		}
		return l
	}

	var ids []string
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		l.logger.Warn("Corrupt viewed stories data, starting empty", "key", key, "error", err)
		return l
	}
	for _, id := range ids {
		l.add(id)
	}
	return l
}

func (l *Ledger) add(id string) bool {
	if _, ok := l.ids[id]; ok {
		return false
	}
	l.ids[id] = struct{}{}
	l.order = append(l.order, id)
	return true
}

func (l *Ledger) IsViewed(storyID string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.ids[storyID]
	return ok
}

// MarkViewed adds storyID and rewrites the whole set. Already viewed ids are
// a no-op. On a write failure the id stays in memory and the error is
// returned.
func (l *Ledger) MarkViewed(ctx context.Context, storyID string) error {
	l.writeMu.Lock()
	defer l.writeMu.Unlock()

	l.mu.Lock()
	if !l.add(storyID) {
		l.mu.Unlock()
		return nil
	}
	payload, err := json.Marshal(l.order)
	l.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to encode viewed stories: %w", err)
	}

	if err := l.store.Set(ctx, l.key, string(payload)); err != nil {
		l.logger.Error("Failed to persist viewed stories", "key", l.key, "story_id", storyID, "error", err)
		return fmt.Errorf("failed to persist viewed stories: %w", err)
	}
	l.logger.Debug("Story marked viewed", "key", l.key, "story_id", storyID)
	return nil
}

// Viewed returns the ids in the order they were first viewed.
func (l *Ledger) Viewed() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]string, len(l.order))
	copy(out, l.order)
	return out
}

func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.order)
}
