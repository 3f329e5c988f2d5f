// Package track provides the Track domain entity.
package track

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Origin identifies who or what put a track into the playback pipeline.
type Origin string

const (
	OriginUser     Origin = "USER"     // Requested via the play endpoint
	OriginSpeech   Origin = "SPEECH"   // Synthesized speech from the say endpoint
	OriginAutoplay Origin = "AUTOPLAY" // Filler selected by the autoplay chain
)

// Track represents one playback request. It is immutable once enqueued;
// the engine only ever copies it.
type Track struct {
	ID        string    // Internal UUID
	Source    string    // Direct URL, search query, or speech text
	Lang      string    // Language code (speech tracks only)
	Title     string    // Best-effort display title, filled at resolve time
	Origin    Origin    // Who requested the track
	Volume    float64   // Volume multiplier to apply when the track starts
	ChannelID string    // Destination voice channel
	AddedAt   time.Time // Time when the request was admitted
}

// New creates a user track for a URL or search query.
func New(source, channelID string, volume float64) Track {
	return Track{
		ID:        uuid.NewString(),
		Source:    source,
		Origin:    OriginUser,
		Volume:    volume,
		ChannelID: channelID,
		AddedAt:   time.Now(),
	}
}

// NewSpeech creates a speech track for the say endpoint.
func NewSpeech(text, lang, channelID string, volume float64) Track {
	return Track{
		ID:        uuid.NewString(),
		Source:    text,
		Lang:      lang,
		Origin:    OriginSpeech,
		Volume:    volume,
		ChannelID: channelID,
		AddedAt:   time.Now(),
	}
}

// NewAutoplay creates a one-off filler track. Fillers are never persisted in
// the queue; they exist only for the duration of a single advance.
func NewAutoplay(query, channelID string, volume float64) Track {
	return Track{
		ID:        uuid.NewString(),
		Source:    query,
		Origin:    OriginAutoplay,
		Volume:    volume,
		ChannelID: channelID,
		AddedAt:   time.Now(),
	}
}

// IsDirectURL reports whether the source is a direct URL rather than a
// free-text search query.
func (t Track) IsDirectURL() bool {
	return strings.HasPrefix(t.Source, "http://") || strings.HasPrefix(t.Source, "https://")
}

// Display returns the best identifier for user-facing output.
func (t Track) Display() string {
	if t.Title != "" {
		return t.Title
	}
	return t.Source
}
