package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahribot/foxbox/internal/app/admission"
	"github.com/ahribot/foxbox/internal/app/guild"
	"github.com/ahribot/foxbox/internal/app/playback"
	"github.com/ahribot/foxbox/internal/app/resolve"
	"github.com/ahribot/foxbox/internal/audio"
	"github.com/ahribot/foxbox/internal/domain/track"
)

type stubConn struct {
	mu      sync.Mutex
	playing bool
	paused  bool
	done    chan struct{}
	once    *sync.Once
}

func (c *stubConn) Play(ctx context.Context, stream resolve.Stream, volume float64) (<-chan struct{}, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.playing || c.paused {
		return nil, errors.New("stream already active")
	}
	c.playing = true
	c.done = make(chan struct{})
	c.once = new(sync.Once)
	return c.done, nil
}

func (c *stubConn) Pause() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.playing, c.paused = false, true
	return nil
}

func (c *stubConn) Resume() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.playing, c.paused = true, false
	return nil
}

func (c *stubConn) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.playing && !c.paused {
		return nil
	}
	c.playing, c.paused = false, false
	done, once := c.done, c.once
	once.Do(func() { close(done) })
	return nil
}

func (c *stubConn) SetVolume(v float64) error { return nil }

func (c *stubConn) Close() error {
	return c.Stop()
}

type stubDirectory struct {
	channel string
}

func (d *stubDirectory) Connect(ctx context.Context, guildID, channelID string) (audio.Connection, error) {
	return &stubConn{}, nil
}

func (d *stubDirectory) DefaultChannel(guildID string) (string, error) {
	if d.channel == "" {
		return "", errors.Wrapf(audio.ErrChannelUnknown, "guild %s", guildID)
	}
	return d.channel, nil
}

type stubResolver struct{}

func (stubResolver) Resolve(ctx context.Context, t track.Track) (resolve.Stream, error) {
	return resolve.Stream{URL: "stream://" + t.Source, Title: t.Source, Duration: time.Minute}, nil
}

func newTestServer(t *testing.T) (*httptest.Server, *guild.Registry) {
	t.Helper()

	directory := &stubDirectory{channel: "general-voice"}
	registry := guild.NewRegistry(func(guildID string) *playback.Engine {
		return playback.NewEngine(guildID, stubResolver{}, directory, nil, playback.Config{})
	})
	t.Cleanup(registry.Close)

	volumeRange := admission.NewVolumeRangeFilter()
	require.NoError(t, volumeRange.ValidateConfig(map[string]any{"max": 2.0}))
	chain := admission.NewChain()
	chain.Add(volumeRange)

	handler := New(registry, directory, chain)
	server := httptest.NewServer(handler.Router())
	t.Cleanup(server.Close)
	return server, registry
}

func post(t *testing.T, server *httptest.Server, path string) (int, map[string]any) {
	t.Helper()
	resp, err := http.Post(server.URL+path, "", nil)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp.StatusCode, body
}

func get(t *testing.T, server *httptest.Server, path string) (int, map[string]any) {
	t.Helper()
	resp, err := http.Get(server.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp.StatusCode, body
}

func TestRoot(t *testing.T) {
	server, _ := newTestServer(t)

	status, body := get(t, server, "/")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "foxbox is purring", body["message"])
}

func TestPlay(t *testing.T) {
	server, registry := newTestServer(t)

	status, body := post(t, server, "/guilds/g1/play?source=some+song")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "queued", body["status"])
	assert.Equal(t, float64(0), body["position"])

	engine, ok := registry.Get("g1")
	require.True(t, ok)
	require.Eventually(t, func() bool {
		return engine.Snapshot().Playing
	}, 2*time.Second, 5*time.Millisecond)
}

func TestPlayMissingSource(t *testing.T) {
	server, _ := newTestServer(t)

	status, body := post(t, server, "/guilds/g1/play")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, body["error"], "source")
}

func TestPlayInvalidAutoplay(t *testing.T) {
	server, _ := newTestServer(t)

	status, _ := post(t, server, "/guilds/g1/play?source=x&autoplay=maybe")
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestPlayRejectedByAdmission(t *testing.T) {
	server, _ := newTestServer(t)

	status, body := post(t, server, "/guilds/g1/play?source=x&volume=9.5")
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, "volume_out_of_range", body["error"])
}

func TestSay(t *testing.T) {
	server, _ := newTestServer(t)

	status, body := post(t, server, "/guilds/g1/say?text=hello+there")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "speaking", body["status"])
}

func TestSayMissingText(t *testing.T) {
	server, _ := newTestServer(t)

	status, _ := post(t, server, "/guilds/g1/say")
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestSayBusyWithUserTrack(t *testing.T) {
	server, registry := newTestServer(t)

	status, _ := post(t, server, "/guilds/g1/play?source=song")
	require.Equal(t, http.StatusOK, status)

	engine, _ := registry.Get("g1")
	require.Eventually(t, func() bool {
		return engine.Snapshot().Playing
	}, 2*time.Second, 5*time.Millisecond)

	status, _ = post(t, server, "/guilds/g1/say?text=hello")
	assert.Equal(t, http.StatusConflict, status)
}

func TestSkipUnknownGuild(t *testing.T) {
	server, _ := newTestServer(t)

	status, body := post(t, server, "/guilds/nobody/skip")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "unknown guild", body["error"])
}

func TestSkipNothingPlaying(t *testing.T) {
	server, _ := newTestServer(t)

	// Touch the guild first so it exists without playing anything.
	status, _ := post(t, server, "/guilds/g1/say?text=hi")
	require.Equal(t, http.StatusOK, status)
	post(t, server, "/guilds/g1/stop")

	status, body := post(t, server, "/guilds/g1/skip")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "nothing playing", body["status"])
}

func TestPauseResumeFlow(t *testing.T) {
	server, registry := newTestServer(t)

	post(t, server, "/guilds/g1/play?source=song")
	engine, _ := registry.Get("g1")
	require.Eventually(t, func() bool {
		return engine.Snapshot().State == playback.StatePlaying
	}, 2*time.Second, 5*time.Millisecond)

	status, body := post(t, server, "/guilds/g1/pause")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "paused", body["status"])

	status, body = post(t, server, "/guilds/g1/pause")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "not playing", body["status"])

	status, body = post(t, server, "/guilds/g1/resume")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "resumed", body["status"])

	status, body = post(t, server, "/guilds/g1/resume")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "not paused", body["status"])
}

func TestVolume(t *testing.T) {
	server, _ := newTestServer(t)

	post(t, server, "/guilds/g1/play?source=song")

	status, body := post(t, server, "/guilds/g1/volume?volume=1.5")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, 1.5, body["volume"])

	status, body = post(t, server, "/guilds/g1/volume?volume=9.5")
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, "volume_out_of_range", body["error"])

	status, _ = post(t, server, "/guilds/g1/volume")
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestQueueSnapshot(t *testing.T) {
	server, registry := newTestServer(t)

	post(t, server, "/guilds/g1/play?source=first")
	engine, _ := registry.Get("g1")
	require.Eventually(t, func() bool {
		return engine.Snapshot().Playing
	}, 2*time.Second, 5*time.Millisecond)
	post(t, server, "/guilds/g1/play?source=second")

	status, body := get(t, server, "/guilds/g1/queue")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "playing", body["state"])
	assert.Equal(t, true, body["playing"])
	assert.Equal(t, "first", body["current"])
	assert.Equal(t, []any{"second"}, body["pending"])
}

func TestLeave(t *testing.T) {
	server, _ := newTestServer(t)

	post(t, server, "/guilds/g1/play?source=song")

	status, body := post(t, server, "/guilds/g1/leave")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "disconnected", body["status"])

	status, body = post(t, server, "/guilds/g1/leave")
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "not connected", body["error"])
}

func TestStop(t *testing.T) {
	server, registry := newTestServer(t)

	post(t, server, "/guilds/g1/play?source=song")
	post(t, server, "/guilds/g1/play?source=another")

	status, body := post(t, server, "/guilds/g1/stop")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "stopped", body["status"])

	engine, _ := registry.Get("g1")
	assert.Zero(t, engine.QueueLength())
}

func TestChannelFallbackUnknown(t *testing.T) {
	directory := &stubDirectory{} // No known channel
	registry := guild.NewRegistry(func(guildID string) *playback.Engine {
		return playback.NewEngine(guildID, stubResolver{}, directory, nil, playback.Config{})
	})
	defer registry.Close()

	handler := New(registry, directory, admission.NewChain())
	server := httptest.NewServer(handler.Router())
	defer server.Close()

	status, body := post(t, server, "/guilds/g1/play?source=song")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, body["error"], "no voice channel")
}

func TestExplicitChannelSkipsLookup(t *testing.T) {
	directory := &stubDirectory{} // Lookup would fail
	registry := guild.NewRegistry(func(guildID string) *playback.Engine {
		return playback.NewEngine(guildID, stubResolver{}, directory, nil, playback.Config{})
	})
	defer registry.Close()

	handler := New(registry, directory, admission.NewChain())
	server := httptest.NewServer(handler.Router())
	defer server.Close()

	status, _ := post(t, server, "/guilds/g1/play?source=song&channel=voice-7")
	assert.Equal(t, http.StatusOK, status)
}
