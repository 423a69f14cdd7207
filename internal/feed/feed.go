// Package feed is the host around a viewer: it owns the story collection,
// records every story shown in the client's ledger and chains into the next
// user's group when one runs out.
package feed

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/orgball2608/insta-stories-viewer/internal/domain"
	"github.com/orgball2608/insta-stories-viewer/internal/ledger"
	"github.com/orgball2608/insta-stories-viewer/internal/viewer"
	"github.com/orgball2608/insta-stories-viewer/pkg/logger"
)

var ErrUnknownUser = errors.New("user has no stories")

const markTimeout = 5 * time.Second

type EventKind int

const (
	EventOpened EventKind = iota
	EventChained
	EventClosed
)

func (k EventKind) String() string {
	switch k {
	case EventOpened:
		return "opened"
	case EventChained:
		return "chained"
	case EventClosed:
		return "closed"
	default:
		return fmt.Sprintf("feed_event(%d)", int(k))
	}
}

type Event struct {
	Kind   EventKind
	UserID string
}

type Feed struct {
	viewer *viewer.Machine
	ledger *ledger.Ledger
	logger logger.Logger

	mu      sync.RWMutex
	stories []domain.Story
	current string

	subMu sync.Mutex
	subs  []func(Event)

	unsubscribe func()
}

func New(m *viewer.Machine, l *ledger.Ledger, log logger.Logger) *Feed {
	f := &Feed{
		viewer: m,
		ledger: l,
		logger: log.WithComponent("Feed"),
	}
	f.unsubscribe = m.Subscribe(f.onViewerEvent)
	return f
}

func (f *Feed) SetStories(stories []domain.Story) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stories = append([]domain.Story(nil), stories...)
}

// Groups returns the stories grouped by user in first-appearance order, with
// hasUnviewed taken from the ledger at call time.
func (f *Feed) Groups() []domain.UserStoryGroup {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return domain.GroupByUser(f.stories, f.ledger.IsViewed)
}

func (f *Feed) Viewer() *viewer.Machine { return f.viewer }

func (f *Feed) Ledger() *ledger.Ledger { return f.ledger }

// Current is the user whose group is open, or "" when the viewer is closed.
func (f *Feed) Current() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.current
}

// OpenUser opens the viewer on userID's group at its first story.
func (f *Feed) OpenUser(userID string) error {
	groups := f.Groups()
	i := domain.FindGroup(groups, userID)
	if i < 0 || len(groups[i].Stories) == 0 {
		return fmt.Errorf("%w: %s", ErrUnknownUser, userID)
	}

	f.setCurrent(userID)
	if err := f.viewer.Open(groups[i].Stories, 0); err != nil {
		f.setCurrent("")
		return err
	}
	f.logger.Info("Opened user stories", "user_id", userID, "stories", len(groups[i].Stories))
	f.publish(Event{Kind: EventOpened, UserID: userID})
	return nil
}

func (f *Feed) Close() {
	f.viewer.Close()
}

// Detach stops listening to the viewer.
func (f *Feed) Detach() {
	if f.unsubscribe != nil {
		f.unsubscribe()
	}
}

func (f *Feed) Subscribe(fn func(Event)) func() {
	f.subMu.Lock()
	defer f.subMu.Unlock()
	f.subs = append(f.subs, fn)
	idx := len(f.subs) - 1
	return func() {
		f.subMu.Lock()
		defer f.subMu.Unlock()
		f.subs[idx] = nil
	}
}

func (f *Feed) publish(ev Event) {
	f.subMu.Lock()
	subs := slices.Clone(f.subs)
	f.subMu.Unlock()
	for _, fn := range subs {
		if fn != nil {
			fn(ev)
		}
	}
}

func (f *Feed) setCurrent(userID string) {
	f.mu.Lock()
	f.current = userID
	f.mu.Unlock()
}

func (f *Feed) onViewerEvent(ev viewer.Event) {
	switch ev.Kind {
	case viewer.EventIndexChanged:
		if ev.Snapshot.Story != nil {
			f.markViewed(ev.Snapshot.Story.ID)
		}
	case viewer.EventExhausted:
		f.chain()
	case viewer.EventClosed:
		userID := f.Current()
		f.setCurrent("")
		f.logger.Debug("Viewer closed", "user_id", userID)
		f.publish(Event{Kind: EventClosed, UserID: userID})
	}
}

func (f *Feed) markViewed(storyID string) {
	ctx, cancel := context.WithTimeout(context.Background(), markTimeout)
	defer cancel()
	if err := f.ledger.MarkViewed(ctx, storyID); err != nil {
		f.logger.Warn("Failed to record viewed story", "story_id", storyID, "error", err)
	}
}

// chain re-opens the viewer on the group after the current one. With no
// next group the viewer closes on its own.
func (f *Feed) chain() {
	groups := f.Groups()
	i := domain.FindGroup(groups, f.Current())
	if i < 0 || i+1 >= len(groups) {
		return
	}
	next := groups[i+1]

	f.setCurrent(next.UserID)
	if err := f.viewer.Open(next.Stories, 0); err != nil {
		f.logger.Error("Failed to chain to next user", "user_id", next.UserID, "error", err)
		f.setCurrent("")
		return
	}
	f.logger.Info("Chained to next user", "user_id", next.UserID)
	f.publish(Event{Kind: EventChained, UserID: next.UserID})
}
