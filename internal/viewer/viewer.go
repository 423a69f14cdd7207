// Package viewer drives full-screen playback of one user's story sequence:
// media-load gating, timed advance for images, event-driven advance for
// videos, pause/resume and the hand-off at either end of the sequence.
package viewer

import (
	"errors"
	"fmt"
	"time"

	"github.com/orgball2608/insta-stories-viewer/internal/domain"
)

var (
	ErrEmptySequence   = errors.New("story sequence is empty")
	ErrIndexOutOfRange = errors.New("start index out of range")
)

// DefaultProgressInterval is how often image progress is sampled.
const DefaultProgressInterval = 50 * time.Millisecond

type State int

const (
	StateClosed State = iota
	StateLoading
	StatePlaying
	StatePaused
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateLoading:
		return "loading"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(text []byte) error {
	for _, candidate := range []State{StateClosed, StateLoading, StatePlaying, StatePaused} {
		if candidate.String() == string(text) {
			*s = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown viewer state %q", text)
}

type EventKind int

const (
	// EventStateChanged covers load, pause and resume transitions.
	EventStateChanged EventKind = iota
	// EventProgress is a progress update within the active story.
	EventProgress
	// EventIndexChanged fires when a story becomes active, including on Open.
	EventIndexChanged
	// EventExhausted fires when navigation runs past the last story. The
	// session closes afterwards unless a subscriber re-opens it.
	EventExhausted
	EventClosed
)

func (k EventKind) String() string {
	switch k {
	case EventStateChanged:
		return "state_changed"
	case EventProgress:
		return "progress"
	case EventIndexChanged:
		return "index_changed"
	case EventExhausted:
		return "exhausted"
	case EventClosed:
		return "closed"
	default:
		return fmt.Sprintf("event(%d)", int(k))
	}
}

func (k EventKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

type Event struct {
	Kind     EventKind `json:"kind"`
	Seq      uint64    `json:"seq"`
	Session  uint64    `json:"session"`
	Snapshot Snapshot  `json:"snapshot"`
}

// Snapshot is a copy of the session state. Segments holds the width of each
// story's progress bar: 100 before the current index, 0 after it.
type Snapshot struct {
	State       State         `json:"state"`
	Index       int           `json:"index"`
	Total       int           `json:"total"`
	Story       *domain.Story `json:"story,omitempty"`
	Progress    float64       `json:"progress"`
	Loading     bool          `json:"loading"`
	Paused      bool          `json:"paused"`
	Segments    []float64     `json:"segments"`
	MeasuredMs  int64         `json:"measuredMs"`
	RemainingMs int64         `json:"remainingMs"`
}
