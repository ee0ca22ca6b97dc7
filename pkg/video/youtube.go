// Package video provides the video-search adapter used by the YouTube researcher.
package video

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"omniagent/pkg/config"
	"omniagent/pkg/logx"
	"omniagent/pkg/proto"
)

// maxBodyBytes caps how much of a search response is read.
const maxBodyBytes = 4 << 20

// Searcher finds videos for a query. Implementations never fail: any error
// degrades to an empty result.
type Searcher interface {
	SearchVideos(ctx context.Context, query string) []proto.VideoRecord
}

// YouTubeSearcher implements Searcher with the YouTube Data API v3 search endpoint.
type YouTubeSearcher struct {
	httpClient *http.Client
	logger     *logx.Logger
	endpoint   string
	apiKey     string
	maxResults int
}

// Option customizes a YouTubeSearcher.
type Option func(*YouTubeSearcher)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(s *YouTubeSearcher) { s.httpClient = c }
}

// WithEndpoint overrides the search endpoint URL.
func WithEndpoint(endpoint string) Option {
	return func(s *YouTubeSearcher) { s.endpoint = endpoint }
}

// WithMaxResults sets the result cap. Values outside 1..50 fall back to the default or the cap.
func WithMaxResults(n int) Option {
	return func(s *YouTubeSearcher) { s.maxResults = n }
}

// NewYouTubeSearcher creates a searcher. An empty apiKey is allowed; every
// search then logs a warning and returns no videos.
func NewYouTubeSearcher(apiKey string, opts ...Option) *YouTubeSearcher {
	s := &YouTubeSearcher{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logx.NewLogger("video"),
		endpoint:   config.DefaultVideoEndpoint,
		apiKey:     apiKey,
		maxResults: config.DefaultVideoMaxResults,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.maxResults <= 0 {
		s.maxResults = config.DefaultVideoMaxResults
	}
	if s.maxResults > config.MaxVideoResults {
		s.maxResults = config.MaxVideoResults
	}
	return s
}

// NewFromConfig builds a searcher from the video config section and the resolved key.
func NewFromConfig(cfg *config.Config) *YouTubeSearcher {
	return NewYouTubeSearcher(config.GetVideoAPIKey(),
		WithEndpoint(cfg.Video.Endpoint),
		WithMaxResults(cfg.Video.MaxResults))
}

type searchResponse struct {
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	Items []searchItem `json:"items"`
}

type searchItem struct {
	ID struct {
		VideoID string `json:"videoId"`
	} `json:"id"`
	Snippet struct {
		Title        string `json:"title"`
		Description  string `json:"description"`
		ChannelTitle string `json:"channelTitle"`
		PublishedAt  string `json:"publishedAt"`
		Thumbnails   map[string]struct {
			URL string `json:"url"`
		} `json:"thumbnails"`
	} `json:"snippet"`
}

// SearchVideos returns videos in provider order, or an empty slice on any failure.
func (s *YouTubeSearcher) SearchVideos(ctx context.Context, query string) []proto.VideoRecord {
	if s.apiKey == "" {
		s.logger.Warn("video search skipped: no %s configured", config.EnvYouTubeAPIKey)
		return []proto.VideoRecord{}
	}
	videos, err := s.search(ctx, query)
	if err != nil {
		s.logger.Warn("video search for %q failed: %v", query, err)
		return []proto.VideoRecord{}
	}
	s.logger.Debug("video search for %q returned %d results", query, len(videos))
	return videos
}

func (s *YouTubeSearcher) search(ctx context.Context, query string) ([]proto.VideoRecord, error) {
	u, err := url.Parse(s.endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint %q: %w", s.endpoint, err)
	}
	params := u.Query()
	params.Set("part", "snippet")
	params.Set("type", "video")
	params.Set("maxResults", strconv.Itoa(s.maxResults))
	params.Set("q", query)
	params.Set("key", s.apiKey)
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var parsed searchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse response (status %d): %w", resp.StatusCode, err)
	}
	if parsed.Error != nil {
		return nil, fmt.Errorf("API error %d: %s", parsed.Error.Code, parsed.Error.Message)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	videos := make([]proto.VideoRecord, 0, len(parsed.Items))
	for i := range parsed.Items {
		item := &parsed.Items[i]
		if item.ID.VideoID == "" {
			continue
		}
		videos = append(videos, toRecord(item))
		if len(videos) == s.maxResults {
			break
		}
	}
	return videos, nil
}

func toRecord(item *searchItem) proto.VideoRecord {
	rec := proto.VideoRecord{
		ID:           item.ID.VideoID,
		Title:        item.Snippet.Title,
		ChannelTitle: item.Snippet.ChannelTitle,
		Description:  item.Snippet.Description,
		Thumbnail:    thumbnail(item.Snippet.Thumbnails),
	}
	if ts, err := time.Parse(time.RFC3339, item.Snippet.PublishedAt); err == nil {
		rec.PublishedAt = ts
	}
	return rec
}

// thumbnail prefers the high-resolution image and falls back through smaller sizes.
func thumbnail(thumbs map[string]struct {
	URL string `json:"url"`
}) string {
	for _, size := range []string{"high", "medium", "default"} {
		if t, ok := thumbs[size]; ok && t.URL != "" {
			return t.URL
		}
	}
	return ""
}
