// Package streamd provides a client for the stream-resolution backend.
//
// The backend wraps a media extractor: given a URL or free-text query it
// returns a direct, time-limited streamable audio URL plus track metadata.
package streamd

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
)

// ErrNoMatch indicates the backend found nothing playable for the source.
var ErrNoMatch = errors.New("no playable stream found")

// Resolved represents a resolved stream.
type Resolved struct {
	URL      string        // Direct stream URL, time-limited
	Title    string        // Track title reported by the extractor
	Duration time.Duration // Track duration (zero when unknown)
}

// Client is a stream-resolution API client.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Config represents streamd client configuration.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// New creates a new streamd client.
func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// resolveResponse represents the backend's /resolve response body.
type resolveResponse struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	DurationSec int    `json:"duration_sec"`
	Error       string `json:"error,omitempty"`
}

// relatedResponse represents the backend's /related response body.
type relatedResponse struct {
	Queries []string `json:"queries"`
}

// Resolve converts a URL or search query into a direct stream.
func (c *Client) Resolve(ctx context.Context, source string) (*Resolved, error) {
	if source == "" {
		return nil, errors.Wrap(ErrNoMatch, "empty source")
	}

	params := url.Values{}
	params.Set("source", source)

	body, status, err := c.get(ctx, "/resolve", params)
	if err != nil {
		return nil, err
	}

	if status == http.StatusNotFound {
		return nil, errors.Wrapf(ErrNoMatch, "source %q", source)
	}
	if status != http.StatusOK {
		zlog.Warn().Msgf("streamd: backend returned status=%d body=%s", status, truncate(body, 200))
		return nil, errors.Newf("streamd returned status %d", status)
	}

	var parsed resolveResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, errors.Wrap(err, "failed to decode resolve response")
	}
	if parsed.Error != "" {
		return nil, errors.Wrapf(ErrNoMatch, "backend error: %s", parsed.Error)
	}
	if parsed.URL == "" {
		return nil, errors.Wrapf(ErrNoMatch, "source %q", source)
	}

	return &Resolved{
		URL:      parsed.URL,
		Title:    parsed.Title,
		Duration: time.Duration(parsed.DurationSec) * time.Second,
	}, nil
}

// Related returns search queries for tracks related to the seed titles.
// Used by the autoplay related provider.
func (c *Client) Related(ctx context.Context, seeds []string, count int) ([]string, error) {
	params := url.Values{}
	for _, s := range seeds {
		params.Add("seed", s)
	}
	params.Set("count", strconv.Itoa(count))

	body, status, err := c.get(ctx, "/related", params)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, errors.Newf("streamd returned status %d", status)
	}

	var parsed relatedResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, errors.Wrap(err, "failed to decode related response")
	}
	return parsed.Queries, nil
}

// get performs a GET request against the backend and returns the raw body.
func (c *Client) get(ctx context.Context, path string, params url.Values) ([]byte, int, error) {
	endpoint := c.baseURL + path + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, 0, errors.Wrap(err, "failed to build streamd request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, errors.Wrap(err, "streamd request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, errors.Wrap(err, "failed to read streamd response")
	}
	return body, resp.StatusCode, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
