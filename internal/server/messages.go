package server

import (
	"github.com/orgball2608/insta-stories-viewer/internal/domain"
	"github.com/orgball2608/insta-stories-viewer/internal/viewer"
)

// Client to server message types.
const (
	MsgOpen     = "open"
	MsgReady    = "ready"
	MsgProgress = "progress"
	MsgEnded    = "ended"
	MsgError    = "error"
	MsgPress    = "press"
	MsgRelease  = "release"
	MsgTap      = "tap"
	MsgNavigate = "navigate"
	MsgClose    = "close"
)

// Server to client message types.
const (
	MsgHello    = "hello"
	MsgSnapshot = "snapshot"
	MsgClosed   = "closed"
	MsgGroups   = "groups"
	MsgProblem  = "error"
)

const (
	TapLeft  = "left"
	TapRight = "right"
)

type ClientMessage struct {
	Type       string `json:"type"`
	UserID     string `json:"userId,omitempty"`
	DurationMs int64  `json:"durationMs,omitempty"`
	PositionMs int64  `json:"positionMs,omitempty"`
	TotalMs    int64  `json:"totalMs,omitempty"`
	Side       string `json:"side,omitempty"`
	Index      *int   `json:"index,omitempty"`
}

type ServerMessage struct {
	Type     string                  `json:"type"`
	ClientID string                  `json:"clientId,omitempty"`
	Event    string                  `json:"event,omitempty"`
	UserID   string                  `json:"userId,omitempty"`
	Snapshot *viewer.Snapshot        `json:"snapshot,omitempty"`
	Groups   []domain.UserStoryGroup `json:"groups,omitempty"`
	Message  string                  `json:"message,omitempty"`
}
