// Package gateway implements the audio transport surfaces against a voice
// gateway daemon.
//
// The daemon owns the actual frame transport; this client instructs it over
// HTTP and tracks stream completion with a wall-clock timer armed from the
// stream duration (or status polling when the duration is unknown).
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/ahribot/foxbox/internal/app/resolve"
	"github.com/ahribot/foxbox/internal/audio"
)

// statusPollInterval is used when a stream's duration is unknown.
const statusPollInterval = 2 * time.Second

// Client talks to the voice gateway daemon. It implements audio.Directory.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Config represents gateway client configuration.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// New creates a new gateway client.
func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type connectResponse struct {
	SessionID string `json:"session_id"`
}

type channelResponse struct {
	ChannelID string `json:"channel_id"`
}

type statusResponse struct {
	Active bool `json:"active"`
}

// Connect establishes (or reuses) the daemon's voice session for the guild
// and returns a control handle for it.
func (c *Client) Connect(ctx context.Context, guildID, channelID string) (audio.Connection, error) {
	body, status, err := c.do(ctx, http.MethodPost, "/connect", map[string]any{
		"guild_id":   guildID,
		"channel_id": channelID,
	})
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, errors.Newf("gateway connect returned status %d", status)
	}

	var parsed connectResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, errors.Wrap(err, "failed to decode connect response")
	}
	if parsed.SessionID == "" {
		return nil, errors.New("gateway returned no session id")
	}

	zlog.Debug().Msgf("gateway: connected guild=%s channel=%s session=%s", guildID, channelID, parsed.SessionID)

	return &Conn{
		client:    c,
		sessionID: parsed.SessionID,
		guildID:   guildID,
	}, nil
}

// DefaultChannel returns the voice channel the guild currently populates.
func (c *Client) DefaultChannel(guildID string) (string, error) {
	body, status, err := c.do(context.Background(), http.MethodGet, "/guilds/"+guildID+"/channel", nil)
	if err != nil {
		return "", err
	}
	if status == http.StatusNotFound {
		return "", errors.Wrapf(audio.ErrChannelUnknown, "guild %s", guildID)
	}
	if status != http.StatusOK {
		return "", errors.Newf("gateway channel lookup returned status %d", status)
	}

	var parsed channelResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", errors.Wrap(err, "failed to decode channel response")
	}
	if parsed.ChannelID == "" {
		return "", errors.Wrapf(audio.ErrChannelUnknown, "guild %s", guildID)
	}
	return parsed.ChannelID, nil
}

// do performs a request against the daemon and returns the raw body.
func (c *Client) do(ctx context.Context, method, path string, payload map[string]any) ([]byte, int, error) {
	var reqBody io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, 0, errors.Wrap(err, "failed to encode gateway request")
		}
		reqBody = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, 0, errors.Wrap(err, "failed to build gateway request")
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, errors.Wrap(err, "gateway request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, errors.Wrap(err, "failed to read gateway response")
	}
	return body, resp.StatusCode, nil
}

// Conn is the control handle for one daemon voice session.
type Conn struct {
	client    *Client
	sessionID string
	guildID   string

	mu          sync.Mutex
	playing     bool
	paused      bool
	deadline    time.Time     // When the current stream is expected to end
	remaining   time.Duration // Remaining stream time while paused
	watchCancel func()        // Cancels the completion watcher
	done        chan struct{}
	doneOnce    *sync.Once
	closed      bool
}

// Play implements audio.Connection.
func (g *Conn) Play(ctx context.Context, stream resolve.Stream, volume float64) (<-chan struct{}, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return nil, errors.New("connection closed")
	}
	if g.playing || g.paused {
		return nil, errors.New("stream already active")
	}

	_, status, err := g.client.do(ctx, http.MethodPost, "/play", map[string]any{
		"session_id": g.sessionID,
		"url":        stream.URL,
		"volume":     volume,
	})
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, errors.Newf("gateway play returned status %d", status)
	}

	g.playing = true
	g.paused = false
	g.done = make(chan struct{})
	g.doneOnce = new(sync.Once)

	if stream.Duration > 0 {
		g.armTimerLocked(stream.Duration)
	} else {
		g.armPollerLocked()
	}

	zlog.Debug().Msgf("gateway: play guild=%s title=%s duration=%v", g.guildID, stream.Title, stream.Duration)
	return g.done, nil
}

// Pause implements audio.Connection.
func (g *Conn) Pause() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.playing {
		return errors.New("not playing")
	}

	if err := g.control("/pause"); err != nil {
		return err
	}

	g.cancelWatchLocked()
	g.remaining = time.Until(g.deadline)
	if g.remaining < 0 {
		g.remaining = 0
	}
	g.playing = false
	g.paused = true
	return nil
}

// Resume implements audio.Connection.
func (g *Conn) Resume() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.paused {
		return errors.New("not paused")
	}

	if err := g.control("/resume"); err != nil {
		return err
	}

	g.playing = true
	g.paused = false
	if g.remaining > 0 {
		g.armTimerLocked(g.remaining)
	} else {
		g.armPollerLocked()
	}
	return nil
}

// Stop implements audio.Connection. No-op when nothing is streaming.
func (g *Conn) Stop() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.playing && !g.paused {
		return nil
	}

	if err := g.control("/stop"); err != nil {
		return err
	}

	g.finishLocked()
	return nil
}

// SetVolume implements audio.Connection.
func (g *Conn) SetVolume(v float64) error {
	_, status, err := g.client.do(context.Background(), http.MethodPost, "/volume", map[string]any{
		"session_id": g.sessionID,
		"volume":     v,
	})
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return errors.Newf("gateway volume returned status %d", status)
	}
	return nil
}

// Playing reports whether a stream is currently streaming.
func (g *Conn) Playing() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.playing
}

// Paused reports whether the current stream is suspended.
func (g *Conn) Paused() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.paused
}

// Close implements audio.Connection.
func (g *Conn) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return nil
	}
	g.closed = true
	g.finishLocked()

	_, status, err := g.client.do(context.Background(), http.MethodDelete, "/session/"+g.sessionID, nil)
	if err != nil {
		return err
	}
	if status != http.StatusOK && status != http.StatusNotFound {
		return errors.Newf("gateway disconnect returned status %d", status)
	}
	zlog.Debug().Msgf("gateway: disconnected guild=%s session=%s", g.guildID, g.sessionID)
	return nil
}

// control posts a session control command with no response body of interest.
func (g *Conn) control(path string) error {
	_, status, err := g.client.do(context.Background(), http.MethodPost, path, map[string]any{
		"session_id": g.sessionID,
	})
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return errors.Newf("gateway %s returned status %d", path, status)
	}
	return nil
}

// armTimerLocked schedules stream completion after d. Must hold g.mu.
func (g *Conn) armTimerLocked(d time.Duration) {
	g.cancelWatchLocked()
	g.deadline = time.Now().Add(d)

	ctx, cancel := context.WithCancel(context.Background())
	g.watchCancel = cancel

	go func() {
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-ctx.Done():
		case <-t.C:
			g.onStreamEnd()
		}
	}()
}

// armPollerLocked watches the daemon's session status for completion.
// Used when the stream duration is unknown. Must hold g.mu.
func (g *Conn) armPollerLocked() {
	g.cancelWatchLocked()

	ctx, cancel := context.WithCancel(context.Background())
	g.watchCancel = cancel

	go func() {
		ticker := time.NewTicker(statusPollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				body, status, err := g.client.do(ctx, http.MethodGet, "/session/"+g.sessionID+"/status", nil)
				if err != nil || status != http.StatusOK {
					continue
				}
				var parsed statusResponse
				if err := json.Unmarshal(body, &parsed); err != nil {
					continue
				}
				if !parsed.Active {
					g.onStreamEnd()
					return
				}
			}
		}
	}()
}

// onStreamEnd handles natural completion reported by the watcher.
func (g *Conn) onStreamEnd() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.playing && !g.paused {
		return
	}
	zlog.Debug().Msgf("gateway: stream ended guild=%s session=%s", g.guildID, g.sessionID)
	g.finishLocked()
}

// finishLocked clears stream state and signals completion exactly once.
// Must hold g.mu.
func (g *Conn) finishLocked() {
	g.cancelWatchLocked()
	g.playing = false
	g.paused = false
	g.remaining = 0

	if g.done != nil && g.doneOnce != nil {
		done, once := g.done, g.doneOnce
		once.Do(func() { close(done) })
	}
}

// cancelWatchLocked stops the completion watcher if one is running.
// Must hold g.mu.
func (g *Conn) cancelWatchLocked() {
	if g.watchCancel != nil {
		g.watchCancel()
		g.watchCancel = nil
	}
}

// String implements fmt.Stringer for debug logs.
func (g *Conn) String() string {
	return fmt.Sprintf("gateway-session %s (guild %s)", g.sessionID, g.guildID)
}
