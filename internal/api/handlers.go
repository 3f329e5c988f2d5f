package api

import (
	"net/http"
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/go-chi/chi/v5"

	"github.com/ahribot/foxbox/internal/app/admission"
	"github.com/ahribot/foxbox/internal/app/playback"
	"github.com/ahribot/foxbox/internal/app/resolve"
	"github.com/ahribot/foxbox/internal/audio"
	"github.com/ahribot/foxbox/internal/domain/track"
)

// handleSay synthesizes text and plays it immediately.
func (a *API) handleSay(w http.ResponseWriter, r *http.Request) {
	guildID := chi.URLParam(r, "guildID")

	text := r.URL.Query().Get("text")
	if text == "" {
		writeError(w, http.StatusBadRequest, "missing text parameter")
		return
	}
	lang := r.URL.Query().Get("lang")

	volume, ok := a.parseVolume(w, r)
	if !ok {
		return
	}
	channel, ok := a.resolveChannel(w, r, guildID)
	if !ok {
		return
	}

	t := track.NewSpeech(text, lang, channel, volume)
	engine := a.registry.GetOrCreate(guildID)

	if res := a.admission.Execute(admission.Request{GuildID: guildID, Track: t, QueueLength: engine.QueueLength()}); !res.Accepted {
		writeError(w, http.StatusUnprocessableEntity, res.Code)
		return
	}

	if err := engine.Say(r.Context(), t); err != nil {
		a.writePlaybackError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "speaking"})
}

// handlePlay queues a track (URL or search query) for playback.
func (a *API) handlePlay(w http.ResponseWriter, r *http.Request) {
	guildID := chi.URLParam(r, "guildID")

	source := r.URL.Query().Get("source")
	if source == "" {
		writeError(w, http.StatusBadRequest, "missing source parameter")
		return
	}

	volume, ok := a.parseVolume(w, r)
	if !ok {
		return
	}
	channel, ok := a.resolveChannel(w, r, guildID)
	if !ok {
		return
	}

	var autoplay *bool
	if v := r.URL.Query().Get("autoplay"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid autoplay parameter")
			return
		}
		autoplay = &parsed
	}

	t := track.New(source, channel, volume)
	engine := a.registry.GetOrCreate(guildID)

	if res := a.admission.Execute(admission.Request{GuildID: guildID, Track: t, QueueLength: engine.QueueLength()}); !res.Accepted {
		writeError(w, http.StatusUnprocessableEntity, res.Code)
		return
	}

	pos, err := engine.Enqueue(r.Context(), t, autoplay)
	if err != nil {
		a.writePlaybackError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "queued", "position": pos})
}

// handleSkip skips the current track.
func (a *API) handleSkip(w http.ResponseWriter, r *http.Request) {
	engine, ok := a.lookupEngine(w, r)
	if !ok {
		return
	}

	if err := engine.Skip(); err != nil {
		if errors.Is(err, playback.ErrNothingPlaying) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "nothing playing"})
			return
		}
		a.writePlaybackError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "skipped"})
}

// handleStop clears the queue and releases the connection.
func (a *API) handleStop(w http.ResponseWriter, r *http.Request) {
	engine, ok := a.lookupEngine(w, r)
	if !ok {
		return
	}

	if err := engine.Stop(); err != nil {
		a.writePlaybackError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "stopped"})
}

// handlePause pauses the current track.
func (a *API) handlePause(w http.ResponseWriter, r *http.Request) {
	engine, ok := a.lookupEngine(w, r)
	if !ok {
		return
	}

	if err := engine.Pause(); err != nil {
		if errors.Is(err, playback.ErrNotPlaying) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "not playing"})
			return
		}
		a.writePlaybackError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "paused"})
}

// handleResume resumes a paused track.
func (a *API) handleResume(w http.ResponseWriter, r *http.Request) {
	engine, ok := a.lookupEngine(w, r)
	if !ok {
		return
	}

	if err := engine.Resume(); err != nil {
		if errors.Is(err, playback.ErrNotPaused) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "not paused"})
			return
		}
		a.writePlaybackError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "resumed"})
}

// handleVolume sets the guild's volume multiplier.
func (a *API) handleVolume(w http.ResponseWriter, r *http.Request) {
	engine, ok := a.lookupEngine(w, r)
	if !ok {
		return
	}

	raw := r.URL.Query().Get("volume")
	if raw == "" {
		writeError(w, http.StatusBadRequest, "missing volume parameter")
		return
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid volume parameter")
		return
	}

	// Speech origin with no source: only the volume filter applies.
	if res := a.admission.Execute(admission.Request{Track: track.Track{Origin: track.OriginSpeech, Volume: v}}); !res.Accepted {
		writeError(w, http.StatusUnprocessableEntity, res.Code)
		return
	}

	applied, err := engine.SetVolume(v)
	if err != nil {
		a.writePlaybackError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "volume set", "volume": v, "applied": applied})
}

// handleQueue returns a read-only snapshot of the guild's playback state.
func (a *API) handleQueue(w http.ResponseWriter, r *http.Request) {
	engine, ok := a.lookupEngine(w, r)
	if !ok {
		return
	}

	snap := engine.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"state":    snap.State.String(),
		"playing":  snap.Playing,
		"current":  snap.Current,
		"autoplay": snap.Autoplay,
		"pending":  snap.Pending,
	})
}

// handleLeave disconnects the guild from its voice channel.
func (a *API) handleLeave(w http.ResponseWriter, r *http.Request) {
	engine, ok := a.lookupEngine(w, r)
	if !ok {
		return
	}

	if err := engine.Leave(); err != nil {
		if errors.Is(err, playback.ErrNotConnected) {
			writeError(w, http.StatusConflict, "not connected")
			return
		}
		a.writePlaybackError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "disconnected"})
}

// lookupEngine fetches the addressed guild's engine for non-creating
// operations, writing a 404 when the guild was never referenced.
func (a *API) lookupEngine(w http.ResponseWriter, r *http.Request) (*playback.Engine, bool) {
	guildID := chi.URLParam(r, "guildID")
	engine, ok := a.registry.Get(guildID)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown guild")
		return nil, false
	}
	return engine, true
}

// resolveChannel picks the destination channel: the explicit parameter, or
// the guild's currently populated voice channel.
func (a *API) resolveChannel(w http.ResponseWriter, r *http.Request, guildID string) (string, bool) {
	if ch := r.URL.Query().Get("channel"); ch != "" {
		return ch, true
	}

	ch, err := a.directory.DefaultChannel(guildID)
	if err != nil {
		if errors.Is(err, audio.ErrChannelUnknown) {
			writeError(w, http.StatusBadRequest, "no voice channel specified and none known for guild")
		} else {
			writeError(w, http.StatusBadGateway, "voice channel lookup failed")
		}
		return "", false
	}
	return ch, true
}

// parseVolume parses the optional volume parameter. Zero means "use the
// guild's current volume".
func (a *API) parseVolume(w http.ResponseWriter, r *http.Request) (float64, bool) {
	raw := r.URL.Query().Get("volume")
	if raw == "" {
		return 0, true
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid volume parameter")
		return 0, false
	}
	return v, true
}

// writePlaybackError maps engine errors onto HTTP statuses.
func (a *API) writePlaybackError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, playback.ErrBusy):
		writeError(w, http.StatusConflict, "a requested track is already playing")
	case errors.Is(err, playback.ErrConnectFailed):
		writeError(w, http.StatusBadGateway, "could not establish voice connection")
	case resolve.IsResolutionErr(err):
		writeError(w, http.StatusBadGateway, "could not resolve a playable stream")
	case errors.Is(err, playback.ErrEngineClosed):
		writeError(w, http.StatusServiceUnavailable, "shutting down")
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
