package storyclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/orgball2608/insta-stories-viewer/pkg/logger"
	"github.com/orgball2608/insta-stories-viewer/pkg/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fastRetry = retry.Config{
	MaxRetries:      2,
	InitialInterval: time.Millisecond,
	MaxInterval:     5 * time.Millisecond,
	Multiplier:      1.5,
}

func TestFetch_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, StoriesPath, r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id":"1","type":"image","url":"/a.jpg","duration":3000,"userId":"u1","userName":"U","userAvatarUrl":"/u.png"}]`))
	}))
	defer srv.Close()

	c := New(srv.URL+"/", logger.Discard(), WithRetry(fastRetry))
	got := c.Fetch(context.Background())

	require.Len(t, got, 1)
	assert.Equal(t, "1", got[0].ID)
	require.NotNil(t, got[0].Duration)
	assert.EqualValues(t, 3000, *got[0].Duration)
}

func TestFetch_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	got, err := New(srv.URL, logger.Discard(), WithRetry(fastRetry)).FetchErr(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
	assert.Equal(t, int32(3), calls.Load())
}

func TestFetch_FailureYieldsEmptyList(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"message":"Error fetching stories"}`))
	}))
	defer srv.Close()

	got := New(srv.URL, logger.Discard(), WithRetry(fastRetry)).Fetch(context.Background())
	assert.NotNil(t, got)
	assert.Empty(t, got)
	assert.Equal(t, int32(3), calls.Load())
}

func TestFetch_ClientErrorsAreNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := New(srv.URL, logger.Discard(), WithRetry(fastRetry)).FetchErr(context.Background())
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestFetch_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"not":"a list"}`))
	}))
	defer srv.Close()

	got := New(srv.URL, logger.Discard(), WithRetry(fastRetry)).Fetch(context.Background())
	assert.Empty(t, got)
}
