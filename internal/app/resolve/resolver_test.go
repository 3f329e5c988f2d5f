package resolve

import (
	"context"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahribot/foxbox/internal/domain/track"
	"github.com/ahribot/foxbox/internal/infra/streamd"
	"github.com/ahribot/foxbox/internal/infra/tts"
)

type fakeSpeech struct {
	url      string
	err      error
	lastText string
	lastLang string
}

func (f *fakeSpeech) Synthesize(ctx context.Context, text, lang string) (string, error) {
	f.lastText = text
	f.lastLang = lang
	return f.url, f.err
}

type fakeMedia struct {
	resolved   *streamd.Resolved
	err        error
	lastSource string
}

func (f *fakeMedia) Resolve(ctx context.Context, source string) (*streamd.Resolved, error) {
	f.lastSource = source
	return f.resolved, f.err
}

func TestAdapter_ResolveSpeech(t *testing.T) {
	speech := &fakeSpeech{url: "http://cdn/speech.mp3"}
	a := NewAdapter(speech, &fakeMedia{}, time.Second)

	stream, err := a.Resolve(context.Background(), track.NewSpeech("hello world", "de", "voice-1", 0))
	require.NoError(t, err)

	assert.Equal(t, "http://cdn/speech.mp3", stream.URL)
	assert.Equal(t, "hello world", stream.Title)
	assert.Equal(t, "hello world", speech.lastText)
	assert.Equal(t, "de", speech.lastLang)
	assert.GreaterOrEqual(t, stream.Duration, time.Second)
}

func TestAdapter_ResolveMedia(t *testing.T) {
	media := &fakeMedia{resolved: &streamd.Resolved{
		URL:      "http://cdn/track.webm",
		Title:    "Some Song",
		Duration: 3 * time.Minute,
	}}
	a := NewAdapter(&fakeSpeech{}, media, time.Second)

	stream, err := a.Resolve(context.Background(), track.New("some song", "voice-1", 0))
	require.NoError(t, err)

	assert.Equal(t, "http://cdn/track.webm", stream.URL)
	assert.Equal(t, "Some Song", stream.Title)
	assert.Equal(t, 3*time.Minute, stream.Duration)
	assert.Equal(t, "some song", media.lastSource)
}

func TestAdapter_ResolveMediaTitleFallback(t *testing.T) {
	media := &fakeMedia{resolved: &streamd.Resolved{URL: "http://cdn/track.webm"}}
	a := NewAdapter(&fakeSpeech{}, media, time.Second)

	stream, err := a.Resolve(context.Background(), track.New("my query", "voice-1", 0))
	require.NoError(t, err)
	assert.Equal(t, "my query", stream.Title)
}

func TestAdapter_FailuresAreResolutionErrs(t *testing.T) {
	tests := []struct {
		name string
		t    track.Track
		a    *Adapter
	}{
		{
			name: "synthesis failure",
			t:    track.NewSpeech("hello", "en", "voice-1", 0),
			a:    NewAdapter(&fakeSpeech{err: tts.ErrSynthesisFailed}, &fakeMedia{}, time.Second),
		},
		{
			name: "no match",
			t:    track.New("gibberish", "voice-1", 0),
			a:    NewAdapter(&fakeSpeech{}, &fakeMedia{err: streamd.ErrNoMatch}, time.Second),
		},
		{
			name: "backend network error",
			t:    track.New("song", "voice-1", 0),
			a:    NewAdapter(&fakeSpeech{}, &fakeMedia{err: errors.New("connection refused")}, time.Second),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.a.Resolve(context.Background(), tt.t)
			require.Error(t, err)
			assert.True(t, IsResolutionErr(err))
			assert.ErrorIs(t, err, ErrUnresolvable)
		})
	}
}

func TestIsResolutionErr(t *testing.T) {
	assert.True(t, IsResolutionErr(ErrUnresolvable))
	assert.True(t, IsResolutionErr(tts.ErrSynthesisFailed))
	assert.True(t, IsResolutionErr(streamd.ErrNoMatch))
	assert.True(t, IsResolutionErr(context.DeadlineExceeded))
	assert.False(t, IsResolutionErr(errors.New("unrelated")))
	assert.False(t, IsResolutionErr(nil))
}

func TestEstimateSpeechDuration(t *testing.T) {
	assert.Equal(t, time.Second, estimateSpeechDuration("hi"))
	assert.Equal(t, 10*time.Second, estimateSpeechDuration(string(make([]byte, 140))))
}
