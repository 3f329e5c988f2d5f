// Package resolve turns tracks into playable streams.
//
// It isolates the playback engine from the synthesis and resolution backends:
// every failure mode (network error, no match, malformed response, timeout)
// surfaces as a resolution error the engine can recover from by skipping.
package resolve

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/ahribot/foxbox/internal/domain/track"
	"github.com/ahribot/foxbox/internal/infra/streamd"
	"github.com/ahribot/foxbox/internal/infra/tts"
)

// ErrUnresolvable indicates the track could not be turned into a stream.
var ErrUnresolvable = errors.New("track could not be resolved")

// Stream represents a playable stream for one track.
type Stream struct {
	URL      string        // Direct stream URL
	Title    string        // Display title
	Duration time.Duration // Stream duration (estimated for speech)
}

// Resolver converts a track into a playable stream.
type Resolver interface {
	Resolve(ctx context.Context, t track.Track) (Stream, error)
}

// SpeechBackend is the synthesis surface the adapter needs.
type SpeechBackend interface {
	Synthesize(ctx context.Context, text, lang string) (string, error)
}

// MediaBackend is the resolution surface the adapter needs.
type MediaBackend interface {
	Resolve(ctx context.Context, source string) (*streamd.Resolved, error)
}

// Adapter is the default Resolver implementation. It dispatches speech tracks
// to the synthesis backend and everything else to the media backend, applying
// a bounded wait so a hung backend never stalls a guild's control loop.
type Adapter struct {
	speech  SpeechBackend
	media   MediaBackend
	timeout time.Duration
}

// NewAdapter creates a resolver adapter.
func NewAdapter(speech SpeechBackend, media MediaBackend, timeout time.Duration) *Adapter {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Adapter{speech: speech, media: media, timeout: timeout}
}

// Resolve implements Resolver.
func (a *Adapter) Resolve(ctx context.Context, t track.Track) (Stream, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	if t.Origin == track.OriginSpeech {
		return a.resolveSpeech(ctx, t)
	}
	return a.resolveMedia(ctx, t)
}

func (a *Adapter) resolveSpeech(ctx context.Context, t track.Track) (Stream, error) {
	audioURL, err := a.speech.Synthesize(ctx, t.Source, t.Lang)
	if err != nil {
		return Stream{}, errors.Wrap(errors.Mark(err, ErrUnresolvable), "speech")
	}
	return Stream{
		URL:      audioURL,
		Title:    t.Source,
		Duration: estimateSpeechDuration(t.Source),
	}, nil
}

func (a *Adapter) resolveMedia(ctx context.Context, t track.Track) (Stream, error) {
	resolved, err := a.media.Resolve(ctx, t.Source)
	if err != nil {
		return Stream{}, errors.Wrap(errors.Mark(err, ErrUnresolvable), "media")
	}
	title := resolved.Title
	if title == "" {
		title = t.Source
	}
	return Stream{
		URL:      resolved.URL,
		Title:    title,
		Duration: resolved.Duration,
	}, nil
}

// IsResolutionErr reports whether err is a recoverable resolution failure,
// as opposed to a programming error.
func IsResolutionErr(err error) bool {
	return errors.Is(err, ErrUnresolvable) ||
		errors.Is(err, tts.ErrSynthesisFailed) ||
		errors.Is(err, streamd.ErrNoMatch) ||
		errors.Is(err, context.DeadlineExceeded)
}

// estimateSpeechDuration approximates mp3 length for synthesized speech.
// The synthesis backend does not report duration, so assume a typical
// speaking rate of roughly 14 characters per second.
func estimateSpeechDuration(text string) time.Duration {
	d := time.Duration(len(text)) * time.Second / 14
	if d < time.Second {
		d = time.Second
	}
	return d
}
