package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/orgball2608/insta-stories-viewer/internal/feed"
	"github.com/orgball2608/insta-stories-viewer/internal/viewer"
	apperrors "github.com/orgball2608/insta-stories-viewer/pkg/errors"
	"github.com/orgball2608/insta-stories-viewer/pkg/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBufferSize = 256
)

// viewerSession is one websocket connection driving one viewer. Reads happen
// on the handler goroutine and writes on writePump.
type viewerSession struct {
	id       string
	clientID string
	conn     *websocket.Conn
	feed     *feed.Feed
	logger   logger.Logger
	server   *Server

	send      chan ServerMessage
	done      chan struct{}
	closeOnce sync.Once
}

func (s *Server) handleViewer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	client := clientID(r)
	if client == "" {
		client = uuid.NewString()
	}

	stories, err := s.catalog.Stories(ctx)
	if err != nil {
		s.logger.Error("Error fetching stories for viewer", "client_id", client, "error", err)
		stories = nil
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("Websocket upgrade failed", "client_id", client, "error", err)
		return
	}

	l, release := s.ledgers.Acquire(ctx, client)
	defer release()

	f := feed.New(s.viewers.New(), l, s.logger)
	f.SetStories(stories)

	sess := &viewerSession{
		id:       uuid.NewString(),
		clientID: client,
		conn:     conn,
		feed:     f,
		server:   s,
		send:     make(chan ServerMessage, sendBufferSize),
		done:     make(chan struct{}),
	}
	sess.logger = s.logger.WithComponent("ViewerSession")
	sess.logger.Info("Viewer connected", "session_id", sess.id, "client_id", client, "stories", len(stories))

	unsubViewer := f.Viewer().Subscribe(sess.onViewerEvent)
	unsubFeed := f.Subscribe(sess.onFeedEvent)

	go sess.writePump()
	go func() {
		select {
		case <-ctx.Done():
			sess.shutdown()
		case <-sess.done:
		}
	}()

	sess.enqueue(ServerMessage{Type: MsgHello, ClientID: client})
	sess.enqueue(ServerMessage{Type: MsgGroups, Groups: f.Groups()})

	sess.readPump()

	unsubFeed()
	unsubViewer()
	f.Close()
	f.Detach()
	s.limiter.Forget(sess.id)
	sess.logger.Info("Viewer disconnected", "session_id", sess.id, "client_id", client)
}

func (v *viewerSession) shutdown() {
	v.closeOnce.Do(func() {
		close(v.done)
		_ = v.conn.Close()
	})
}

// enqueue hands msg to the write pump. A client too slow to drain its
// buffer is disconnected.
func (v *viewerSession) enqueue(msg ServerMessage) {
	select {
	case <-v.done:
	case v.send <- msg:
	default:
		v.logger.Warn("Viewer send buffer full, disconnecting", "session_id", v.id)
		v.shutdown()
	}
}

func (v *viewerSession) onViewerEvent(ev viewer.Event) {
	snap := ev.Snapshot
	v.enqueue(ServerMessage{
		Type:     MsgSnapshot,
		Event:    ev.Kind.String(),
		UserID:   v.feed.Current(),
		Snapshot: &snap,
	})
}

func (v *viewerSession) onFeedEvent(ev feed.Event) {
	if ev.Kind != feed.EventClosed {
		return
	}
	v.enqueue(ServerMessage{Type: MsgClosed, UserID: ev.UserID})
	v.enqueue(ServerMessage{Type: MsgGroups, Groups: v.feed.Groups()})
}

func (v *viewerSession) readPump() {
	defer v.shutdown()

	v.conn.SetReadLimit(maxMessageSize)
	_ = v.conn.SetReadDeadline(time.Now().Add(pongWait))
	v.conn.SetPongHandler(func(string) error {
		return v.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := v.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				v.logger.Warn("Unexpected websocket close", "session_id", v.id, "error", err)
			}
			return
		}

		var msg ClientMessage
		err = json.Unmarshal(raw, &msg)
		if (err != nil || !isPlaybackSignal(msg.Type)) && !v.server.limiter.Allow(v.id) {
			v.problem("", errRateLimited)
			continue
		}
		if err != nil {
			v.problem("", apperrors.WrapWithCode(errors.Join(apperrors.ErrBadRequest, err), apperrors.CodeBadRequest, "invalid message"))
			continue
		}
		v.handle(msg)
	}
}

var errRateLimited = apperrors.WrapWithCode(apperrors.ErrTooManyRequests, apperrors.CodeTooManyRequests, "rate limit exceeded")

// isPlaybackSignal reports messages the viewer cannot lose without stalling
// in Loading or Paused. They bypass the rate limiter; everything else counts.
func isPlaybackSignal(msgType string) bool {
	switch msgType {
	case MsgReady, MsgError, MsgEnded, MsgPress, MsgRelease, MsgClose:
		return true
	}
	return false
}

func badRequest(message string) error {
	return apperrors.WrapWithCode(apperrors.ErrBadRequest, apperrors.CodeBadRequest, message)
}

// problem tells the client its message was rejected. Client faults are
// logged at debug level.
func (v *viewerSession) problem(userID string, err error) {
	if apperrors.HTTPStatus(err) < http.StatusInternalServerError {
		v.logger.Debug("Viewer message rejected", "session_id", v.id, "error", err)
	} else {
		v.logger.Warn("Viewer message failed", "session_id", v.id, "error", err)
	}
	v.enqueue(ServerMessage{Type: MsgProblem, UserID: userID, Message: apperrors.GetMessage(err)})
}

func (v *viewerSession) handle(msg ClientMessage) {
	m := v.feed.Viewer()
	switch msg.Type {
	case MsgOpen:
		if err := v.feed.OpenUser(msg.UserID); err != nil {
			if errors.Is(err, feed.ErrUnknownUser) {
				err = apperrors.WrapWithCode(apperrors.ErrNotFound, apperrors.CodeNotFound, err.Error())
			}
			v.problem(msg.UserID, err)
		}
	case MsgReady:
		m.MediaReady(time.Duration(msg.DurationMs) * time.Millisecond)
	case MsgProgress:
		m.VideoProgress(time.Duration(msg.PositionMs)*time.Millisecond, time.Duration(msg.TotalMs)*time.Millisecond)
	case MsgEnded:
		m.MediaEnded()
	case MsgError:
		m.MediaError()
	case MsgPress:
		m.PressStart()
	case MsgRelease:
		m.PressEnd()
	case MsgTap:
		switch msg.Side {
		case TapLeft:
			m.TapLeft()
		case TapRight:
			m.TapRight()
		default:
			v.problem("", badRequest("unknown tap side "+msg.Side))
		}
	case MsgNavigate:
		if msg.Index == nil {
			v.problem("", badRequest("navigate needs an index"))
			return
		}
		m.Navigate(*msg.Index)
	case MsgClose:
		v.feed.Close()
	default:
		v.problem("", badRequest("unknown message type "+msg.Type))
	}
}

func (v *viewerSession) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		v.shutdown()
	}()

	for {
		select {
		case <-v.done:
			_ = v.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = v.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case msg := <-v.send:
			_ = v.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := v.conn.WriteJSON(msg); err != nil {
				v.logger.Debug("Websocket write failed", "session_id", v.id, "error", err)
				return
			}
		case <-ticker.C:
			_ = v.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := v.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
