// Package tts provides a client for the speech-synthesis backend.
//
// The backend is a small HTTP service: GET /tts?text=...&lang=... synthesizes
// the text and responds with the URL of a playable mp3.
package tts

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
)

// ErrSynthesisFailed indicates the backend could not produce audio for the text.
var ErrSynthesisFailed = errors.New("speech synthesis failed")

// Client is a speech-synthesis API client.
type Client struct {
	baseURL     string
	defaultLang string
	httpClient  *http.Client
}

// Config represents TTS client configuration.
type Config struct {
	BaseURL     string
	DefaultLang string
	Timeout     time.Duration
}

// New creates a new TTS client.
func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	lang := cfg.DefaultLang
	if lang == "" {
		lang = "en"
	}
	return &Client{
		baseURL:     cfg.BaseURL,
		defaultLang: lang,
		httpClient:  &http.Client{Timeout: timeout},
	}
}

// synthesizeResponse represents the backend's response body.
type synthesizeResponse struct {
	URL   string `json:"url"`
	Error string `json:"error,omitempty"`
}

// Synthesize converts text to speech and returns the URL of the audio file.
// lang falls back to the configured default when empty.
func (c *Client) Synthesize(ctx context.Context, text, lang string) (string, error) {
	if text == "" {
		return "", errors.Wrap(ErrSynthesisFailed, "empty text")
	}
	if lang == "" {
		lang = c.defaultLang
	}

	params := url.Values{}
	params.Set("text", text)
	params.Set("lang", lang)

	endpoint := c.baseURL + "/tts?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", errors.Wrap(err, "failed to build tts request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "tts request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.Wrap(err, "failed to read tts response")
	}

	if resp.StatusCode != http.StatusOK {
		zlog.Warn().Msgf("tts: backend returned status=%d body=%s", resp.StatusCode, truncate(body, 200))
		return "", errors.Wrapf(ErrSynthesisFailed, "status %d", resp.StatusCode)
	}

	var parsed synthesizeResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", errors.Wrap(err, "failed to decode tts response")
	}
	if parsed.Error != "" {
		return "", errors.Wrapf(ErrSynthesisFailed, "backend error: %s", parsed.Error)
	}
	if parsed.URL == "" {
		return "", errors.Wrap(ErrSynthesisFailed, "backend returned no url")
	}

	return parsed.URL, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
