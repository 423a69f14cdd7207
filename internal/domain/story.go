package domain

import (
	"errors"
	"time"
)

type MediaType string

const (
	MediaTypeImage MediaType = "image"
	MediaTypeVideo MediaType = "video"
)

// DefaultImageDuration is how long an image story stays on screen when the
// record carries no duration.
const DefaultImageDuration = 5000 * time.Millisecond

var ErrInvalidStory = errors.New("invalid story")

// Story is one unit of media owned by a user. Duration is in milliseconds and
// only meaningful for images.
type Story struct {
	ID            string    `json:"id"`
	Type          MediaType `json:"type"`
	URL           string    `json:"url"`
	Duration      *int64    `json:"duration,omitempty"`
	UserID        string    `json:"userId"`
	UserName      string    `json:"userName"`
	UserAvatarURL string    `json:"userAvatarUrl"`
}

func (s Story) IsImage() bool { return s.Type == MediaTypeImage }
func (s Story) IsVideo() bool { return s.Type == MediaTypeVideo }

// DisplayDuration returns the story's own duration, or def when the record
// has none. An explicit zero is kept; negative durations clamp to zero.
func (s Story) DisplayDuration(def time.Duration) time.Duration {
	if s.Duration == nil {
		return max(def, 0)
	}
	return max(time.Duration(*s.Duration)*time.Millisecond, 0)
}

// Validate reports records the viewer cannot play.
func (s Story) Validate() error {
	if s.ID == "" {
		return errors.Join(ErrInvalidStory, errors.New("empty id"))
	}
	if s.Type != MediaTypeImage && s.Type != MediaTypeVideo {
		return errors.Join(ErrInvalidStory, errors.New("unknown media type "+string(s.Type)))
	}
	if s.UserID == "" {
		return errors.Join(ErrInvalidStory, errors.New("empty user id"))
	}
	return nil
}

// Millis is a helper for building optional durations.
func Millis(ms int64) *int64 { return &ms }
