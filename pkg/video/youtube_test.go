package video

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const twoVideos = `{
  "items": [
    {"id": {"kind": "youtube#video", "videoId": "abc"},
     "snippet": {"title": "First", "description": "one", "channelTitle": "Chan",
       "publishedAt": "2024-05-01T12:00:00Z",
       "thumbnails": {"default": {"url": "https://i/abc/default.jpg"}, "high": {"url": "https://i/abc/hq.jpg"}}}},
    {"id": {"kind": "youtube#channel"}, "snippet": {"title": "skip me"}},
    {"id": {"kind": "youtube#video", "videoId": "def"},
     "snippet": {"title": "Second", "description": "two", "channelTitle": "Other",
       "publishedAt": "not a date",
       "thumbnails": {"medium": {"url": "https://i/def/mq.jpg"}}}}
  ]
}`

func TestSearchVideosParsesResults(t *testing.T) {
	var gotQuery atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery.Store(r.URL.Query())
		fmt.Fprint(w, twoVideos)
	}))
	defer srv.Close()

	s := NewYouTubeSearcher("key-123", WithEndpoint(srv.URL), WithHTTPClient(srv.Client()))
	videos := s.SearchVideos(context.Background(), "solar startups")

	require.Len(t, videos, 2)
	assert.Equal(t, "abc", videos[0].ID)
	assert.Equal(t, "https://i/abc/hq.jpg", videos[0].Thumbnail)
	assert.Equal(t, "Chan", videos[0].ChannelTitle)
	assert.True(t, videos[0].PublishedAt.Equal(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)))
	assert.Equal(t, "def", videos[1].ID)
	assert.Equal(t, "https://i/def/mq.jpg", videos[1].Thumbnail)
	assert.True(t, videos[1].PublishedAt.IsZero())

	q, ok := gotQuery.Load().(url.Values)
	require.True(t, ok)
	assert.Equal(t, []string{"snippet"}, q["part"])
	assert.Equal(t, []string{"video"}, q["type"])
	assert.Equal(t, []string{"12"}, q["maxResults"])
	assert.Equal(t, []string{"solar startups"}, q["q"])
	assert.Equal(t, []string{"key-123"}, q["key"])
}

func TestSearchVideosDegradesToEmpty(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"api error", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusForbidden)
			fmt.Fprint(w, `{"error":{"code":403,"message":"quota exceeded"}}`)
		}},
		{"bad json", func(w http.ResponseWriter, _ *http.Request) { fmt.Fprint(w, `<html>`) }},
		{"server error", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			fmt.Fprint(w, `{}`)
		}},
		{"no items", func(w http.ResponseWriter, _ *http.Request) { fmt.Fprint(w, `{}`) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()
			s := NewYouTubeSearcher("k", WithEndpoint(srv.URL))
			videos := s.SearchVideos(context.Background(), "q")
			require.NotNil(t, videos)
			assert.Empty(t, videos)
		})
	}
}

func TestSearchVideosWithoutKeyMakesNoRequest(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { calls.Add(1) }))
	defer srv.Close()

	videos := NewYouTubeSearcher("", WithEndpoint(srv.URL)).SearchVideos(context.Background(), "q")
	assert.NotNil(t, videos)
	assert.Empty(t, videos)
	assert.Zero(t, calls.Load())
}

func TestSearchVideosTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	endpoint := srv.URL
	srv.Close()

	videos := NewYouTubeSearcher("k", WithEndpoint(endpoint)).SearchVideos(context.Background(), "q")
	assert.NotNil(t, videos)
	assert.Empty(t, videos)
}

func TestMaxResultsBounds(t *testing.T) {
	assert.Equal(t, 12, NewYouTubeSearcher("k", WithMaxResults(0)).maxResults)
	assert.Equal(t, 50, NewYouTubeSearcher("k", WithMaxResults(500)).maxResults)
	assert.Equal(t, 5, NewYouTubeSearcher("k", WithMaxResults(5)).maxResults)
}
