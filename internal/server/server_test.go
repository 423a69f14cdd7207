package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	mock_catalog "github.com/orgball2608/insta-stories-viewer/internal/catalog/mocks"
	"github.com/orgball2608/insta-stories-viewer/internal/domain"
	"github.com/orgball2608/insta-stories-viewer/internal/ledger"
	"github.com/orgball2608/insta-stories-viewer/internal/ratelimit"
	"github.com/orgball2608/insta-stories-viewer/internal/repositories/kv"
	"github.com/orgball2608/insta-stories-viewer/internal/viewer"
	"github.com/orgball2608/insta-stories-viewer/pkg/config"
	"github.com/orgball2608/insta-stories-viewer/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

var fixture = []domain.Story{
	{ID: "a1", Type: domain.MediaTypeImage, URL: "/a1.jpg", Duration: domain.Millis(5000), UserID: "alice", UserName: "Alice"},
	{ID: "b1", Type: domain.MediaTypeVideo, URL: "/b1.mp4", UserID: "bob", UserName: "Bob"},
	{ID: "a2", Type: domain.MediaTypeImage, URL: "/a2.jpg", Duration: domain.Millis(5000), UserID: "alice", UserName: "Alice"},
	{ID: "b2", Type: domain.MediaTypeImage, URL: "/b2.jpg", Duration: domain.Millis(5000), UserID: "bob", UserName: "Bob"},
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.App.CorsOrigins = "*"
	cfg.Ledger.Key = ledger.DefaultKey
	cfg.Stories.DefaultImageDuration = 5 * time.Second
	cfg.Viewer.ProgressInterval = 50 * time.Millisecond
	return cfg
}

type fixtureOpts struct {
	stories []domain.Story
	err     error
	limiter ratelimit.Limiter
}

func newTestServer(t *testing.T, fo fixtureOpts) (*Server, kv.Store) {
	t.Helper()
	ctrl := gomock.NewController(t)
	cat := mock_catalog.NewMockClient(ctrl)
	cat.EXPECT().Stories(gomock.Any()).Return(fo.stories, fo.err).AnyTimes()

	cfg := testConfig()
	store := kv.NewMemoryStore()
	limiter := fo.limiter
	if limiter == nil {
		limiter = ratelimit.NewInMemoryLimiter(1000, time.Second, 1000)
	}

	return New(Opts{
		Config:  cfg,
		Logger:  logger.Discard(),
		Catalog: cat,
		Ledgers: ledger.NewRegistry(store, cfg, logger.Discard()),
		Viewers: viewer.NewFactory(cfg, logger.Discard(), clockwork.NewFakeClock()),
		Limiter: limiter,
	}), store
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t, fixtureOpts{})
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))
}

func TestRequestID_Echoed(t *testing.T) {
	s, _ := newTestServer(t, fixtureOpts{})
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(requestIDHeader, "req-42")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, "req-42", rec.Header().Get(requestIDHeader))
}

func TestStories(t *testing.T) {
	s, _ := newTestServer(t, fixtureOpts{stories: fixture[:1]})
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/stories", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `[{"id":"a1","type":"image","url":"/a1.jpg","duration":5000,"userId":"alice","userName":"Alice","userAvatarUrl":""}]`, rec.Body.String())
}

func TestStories_Error(t *testing.T) {
	s, _ := newTestServer(t, fixtureOpts{err: errors.New("file missing")})
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/stories", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"message":"Error fetching stories"}`, rec.Body.String())
}

func TestMarkViewedAndGroups(t *testing.T) {
	s, store := newTestServer(t, fixtureOpts{stories: fixture})
	h := s.Handler()

	for _, id := range []string{"a1", "a2"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/stories/"+id+"/viewed?client=c1", nil))
		require.Equal(t, http.StatusNoContent, rec.Code)
	}

	raw, err := store.Get(context.Background(), ledger.DefaultKey+":c1")
	require.NoError(t, err)
	assert.JSONEq(t, `["a1","a2"]`, raw)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/groups?client=c1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `"userId":"alice"`)
	assert.True(t, strings.Index(body, `"alice"`) < strings.Index(body, `"bob"`))

	groupsC1 := decodeGroups(t, h, "c1")
	groupsC2 := decodeGroups(t, h, "c2")
	assert.False(t, groupsC1[0].HasUnviewed)
	assert.True(t, groupsC1[1].HasUnviewed)
	assert.True(t, groupsC2[0].HasUnviewed, "ledgers are per client")
}

func TestGroups_Error(t *testing.T) {
	s, _ := newTestServer(t, fixtureOpts{err: errors.New("boom")})
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/groups", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"message":"Error fetching stories"}`, rec.Body.String())
}

func TestCORS_Preflight(t *testing.T) {
	s, _ := newTestServer(t, fixtureOpts{})
	req := httptest.NewRequest(http.MethodOptions, "/api/stories", nil)
	req.Header.Set("Origin", "http://example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCheckOrigin(t *testing.T) {
	s, _ := newTestServer(t, fixtureOpts{})
	s.config.App.CorsOrigins = "http://a.test, http://b.test"

	req := httptest.NewRequest(http.MethodGet, "/ws/viewer", nil)
	assert.True(t, s.checkOrigin(req), "no origin header")
	req.Header.Set("Origin", "http://b.test")
	assert.True(t, s.checkOrigin(req))
	req.Header.Set("Origin", "http://evil.test")
	assert.False(t, s.checkOrigin(req))
}

func decodeGroups(t *testing.T, h http.Handler, client string) []domain.UserStoryGroup {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/groups?client="+client, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var groups []domain.UserStoryGroup
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &groups))
	require.Len(t, groups, 2)
	return groups
}

func dialViewer(t *testing.T, srv *httptest.Server, client string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/viewer?client=" + client
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readUntil reads server messages until match accepts one.
func readUntil(t *testing.T, conn *websocket.Conn, match func(ServerMessage) bool) ServerMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		var msg ServerMessage
		require.NoError(t, conn.ReadJSON(&msg))
		if match(msg) {
			return msg
		}
	}
}

func isSnapshot(event string, storyID string) func(ServerMessage) bool {
	return func(m ServerMessage) bool {
		return m.Type == MsgSnapshot && m.Event == event &&
			m.Snapshot != nil && m.Snapshot.Story != nil && m.Snapshot.Story.ID == storyID
	}
}

func TestViewerSession_PlaysAndChains(t *testing.T) {
	s, store := newTestServer(t, fixtureOpts{stories: fixture})
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	conn := dialViewer(t, srv, "c1")

	hello := readUntil(t, conn, func(m ServerMessage) bool { return m.Type == MsgHello })
	assert.Equal(t, "c1", hello.ClientID)
	groups := readUntil(t, conn, func(m ServerMessage) bool { return m.Type == MsgGroups })
	require.Len(t, groups.Groups, 2)

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: MsgOpen, UserID: "alice"}))
	first := readUntil(t, conn, isSnapshot("index_changed", "a1"))
	assert.Equal(t, "alice", first.UserID)
	assert.Equal(t, viewer.StateLoading, first.Snapshot.State)

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: MsgReady}))
	playing := readUntil(t, conn, func(m ServerMessage) bool { return m.Type == MsgSnapshot && m.Event == "state_changed" })
	assert.Equal(t, viewer.StatePlaying, playing.Snapshot.State)

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: MsgTap, Side: TapRight}))
	readUntil(t, conn, isSnapshot("index_changed", "a2"))

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: MsgReady}))
	require.NoError(t, conn.WriteJSON(ClientMessage{Type: MsgTap, Side: TapRight}))
	chained := readUntil(t, conn, isSnapshot("index_changed", "b1"))
	assert.Equal(t, "bob", chained.UserID)
	assert.Equal(t, 0, chained.Snapshot.Index)

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: MsgClose}))
	closed := readUntil(t, conn, func(m ServerMessage) bool { return m.Type == MsgClosed })
	assert.Equal(t, "bob", closed.UserID)
	after := readUntil(t, conn, func(m ServerMessage) bool { return m.Type == MsgGroups })
	require.Len(t, after.Groups, 2)
	assert.False(t, after.Groups[0].HasUnviewed)
	assert.True(t, after.Groups[1].HasUnviewed)

	raw, err := store.Get(context.Background(), ledger.DefaultKey+":c1")
	require.NoError(t, err)
	assert.JSONEq(t, `["a1","a2","b1"]`, raw)
}

func TestViewerSession_RejectsBadMessages(t *testing.T) {
	s, _ := newTestServer(t, fixtureOpts{stories: fixture})
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	conn := dialViewer(t, srv, "c1")
	readUntil(t, conn, func(m ServerMessage) bool { return m.Type == MsgGroups })

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	problem := readUntil(t, conn, func(m ServerMessage) bool { return m.Type == MsgProblem })
	assert.Equal(t, "invalid message", problem.Message)

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: MsgOpen, UserID: "carol"}))
	problem = readUntil(t, conn, func(m ServerMessage) bool { return m.Type == MsgProblem })
	assert.Equal(t, "carol", problem.UserID)
	assert.Equal(t, "user has no stories: carol", problem.Message)

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: MsgNavigate}))
	problem = readUntil(t, conn, func(m ServerMessage) bool { return m.Type == MsgProblem })
	assert.Equal(t, "navigate needs an index", problem.Message)
}

func TestViewerSession_RateLimited(t *testing.T) {
	s, _ := newTestServer(t, fixtureOpts{
		stories: fixture,
		limiter: ratelimit.NewInMemoryLimiter(1, time.Hour, 1),
	})
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	conn := dialViewer(t, srv, "c1")
	readUntil(t, conn, func(m ServerMessage) bool { return m.Type == MsgGroups })

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: MsgOpen, UserID: "alice"}))
	readUntil(t, conn, isSnapshot("index_changed", "a1"))

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: MsgTap, Side: TapRight}))
	problem := readUntil(t, conn, func(m ServerMessage) bool { return m.Type == MsgProblem })
	assert.Equal(t, "rate limit exceeded", problem.Message)
}

func TestViewerSession_PlaybackSignalsBypassRateLimit(t *testing.T) {
	s, _ := newTestServer(t, fixtureOpts{
		stories: fixture,
		limiter: ratelimit.NewInMemoryLimiter(1, time.Hour, 1),
	})
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	conn := dialViewer(t, srv, "c1")
	readUntil(t, conn, func(m ServerMessage) bool { return m.Type == MsgGroups })

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: MsgOpen, UserID: "alice"}))
	readUntil(t, conn, isSnapshot("index_changed", "a1"))

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: MsgReady}))
	playing := readUntil(t, conn, func(m ServerMessage) bool { return m.Type == MsgSnapshot && m.Event == "state_changed" })
	assert.Equal(t, viewer.StatePlaying, playing.Snapshot.State)

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: MsgPress}))
	paused := readUntil(t, conn, func(m ServerMessage) bool { return m.Type == MsgSnapshot && m.Event == "state_changed" })
	assert.Equal(t, viewer.StatePaused, paused.Snapshot.State)

	for i := 0; i < 5; i++ {
		require.NoError(t, conn.WriteJSON(ClientMessage{Type: MsgProgress, PositionMs: int64(i * 100), TotalMs: 5000}))
	}
	problem := readUntil(t, conn, func(m ServerMessage) bool { return m.Type == MsgProblem })
	assert.Equal(t, "rate limit exceeded", problem.Message)

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: MsgRelease}))
	resumed := readUntil(t, conn, func(m ServerMessage) bool { return m.Type == MsgSnapshot && m.Event == "state_changed" })
	assert.Equal(t, viewer.StatePlaying, resumed.Snapshot.State)
	assert.False(t, resumed.Snapshot.Paused)
}

func TestViewerSession_ReleasesLedgerOnDisconnect(t *testing.T) {
	s, _ := newTestServer(t, fixtureOpts{stories: fixture})
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	for i := 0; i < 3; i++ {
		url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/viewer"
		conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
		require.NoError(t, err)
		if resp != nil && resp.Body != nil {
			resp.Body.Close()
		}
		readUntil(t, conn, func(m ServerMessage) bool { return m.Type == MsgGroups })
		conn.Close()
	}

	assert.Eventually(t, func() bool { return s.ledgers.Len() == 0 }, 3*time.Second, 10*time.Millisecond)
}
