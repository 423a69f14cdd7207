// Command storyctl talks to a running story server: it lists user groups and
// plays them back headlessly, printing every viewer transition.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/orgball2608/insta-stories-viewer/internal/domain"
	"github.com/orgball2608/insta-stories-viewer/internal/feed"
	"github.com/orgball2608/insta-stories-viewer/internal/ledger"
	"github.com/orgball2608/insta-stories-viewer/internal/repositories/kv"
	"github.com/orgball2608/insta-stories-viewer/internal/storyclient"
	"github.com/orgball2608/insta-stories-viewer/internal/viewer"
	"github.com/orgball2608/insta-stories-viewer/pkg/logger"
)

const usage = "Usage: storyctl [list|play] [flags] <endpoint>"

type options struct {
	endpoint      string
	ledgerPath    string
	user          string
	videoDuration time.Duration
	logLevel      string
}

func main() {
	if len(os.Args) < 2 {
		log.Fatal(usage)
	}
	_ = godotenv.Load()

	command := os.Args[1]
	opts, err := parseFlags(command, os.Args[2:])
	if err != nil {
		log.Fatal(err)
	}

	lg := logger.New(logger.Opts{Level: opts.logLevel, Writer: os.Stderr})
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := kv.NewFileStore(opts.ledgerPath)
	if err != nil {
		log.Fatalf("Failed to open ledger: %v", err)
	}
	l := ledger.Load(ctx, store, ledger.DefaultKey, lg)
	stories := storyclient.New(opts.endpoint, lg).Fetch(ctx)

	switch command {
	case "list":
		list(stories, l)
	case "play":
		if err := play(ctx, stories, l, opts, lg); err != nil {
			log.Fatal(err)
		}
	default:
		log.Fatalf("Unknown command: %s\n%s", command, usage)
	}
}

func parseFlags(command string, args []string) (options, error) {
	var opts options
	fs := flag.NewFlagSet(command, flag.ContinueOnError)
	fs.StringVar(&opts.ledgerPath, "ledger", "./data/cli-ledger", "directory holding the viewed-story ledger")
	fs.StringVar(&opts.user, "user", "", "user to start playback from (default: first group)")
	fs.DurationVar(&opts.videoDuration, "video-duration", 3*time.Second, "how long a headless video plays")
	fs.StringVar(&opts.logLevel, "log-level", "warn", "log level")
	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	if fs.NArg() < 1 {
		return opts, fmt.Errorf("missing endpoint\n%s", usage)
	}
	opts.endpoint = fs.Arg(0)
	return opts, nil
}

func list(stories []domain.Story, l *ledger.Ledger) {
	groups := domain.GroupByUser(stories, l.IsViewed)
	if len(groups) == 0 {
		fmt.Println("No stories available.")
		return
	}
	for _, g := range groups {
		marker := " "
		if g.HasUnviewed {
			marker = "*"
		}
		fmt.Printf("%s %-20s %-24s %d stories\n", marker, g.UserID, g.UserName, len(g.Stories))
	}
}

// play runs the viewer until the last group is exhausted. Media is reported
// ready as soon as a story becomes active; videos end after videoDuration.
func play(ctx context.Context, stories []domain.Story, l *ledger.Ledger, opts options, lg logger.Logger) error {
	groups := domain.GroupByUser(stories, l.IsViewed)
	if len(groups) == 0 {
		fmt.Println("No stories available.")
		return nil
	}
	start := opts.user
	if start == "" {
		start = groups[0].UserID
	}

	m := viewer.New(viewer.Options{Logger: lg})
	f := feed.New(m, l, lg)
	defer f.Detach()
	f.SetStories(stories)

	var (
		mu        sync.Mutex
		videoStop func() bool
	)
	stopVideo := func() {
		mu.Lock()
		defer mu.Unlock()
		if videoStop != nil {
			videoStop()
			videoStop = nil
		}
	}

	closed := make(chan struct{})
	var once sync.Once
	f.Subscribe(func(ev feed.Event) {
		fmt.Printf("[%s] %s\n", ev.Kind, ev.UserID)
		if ev.Kind == feed.EventClosed {
			once.Do(func() { close(closed) })
		}
	})

	m.Subscribe(func(ev viewer.Event) {
		if ev.Kind == viewer.EventProgress {
			return
		}
		snap := ev.Snapshot
		if snap.Story != nil {
			fmt.Printf("  %-14s %d/%d %s %s\n", ev.Kind, snap.Index+1, snap.Total, snap.Story.Type, snap.Story.ID)
		} else {
			fmt.Printf("  %s\n", ev.Kind)
		}

		if ev.Kind != viewer.EventIndexChanged || snap.Story == nil {
			return
		}
		stopVideo()
		if snap.Story.IsVideo() {
			m.MediaReady(opts.videoDuration)
			t := time.AfterFunc(opts.videoDuration, m.MediaEnded)
			mu.Lock()
			videoStop = t.Stop
			mu.Unlock()
			return
		}
		m.MediaReady(0)
	})

	if err := f.OpenUser(start); err != nil {
		return err
	}

	select {
	case <-closed:
	case <-ctx.Done():
		f.Close()
	}
	stopVideo()
	fmt.Printf("Viewed %d stories.\n", l.Len())
	return nil
}
