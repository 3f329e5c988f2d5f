package track

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConstructors(t *testing.T) {
	user := New("some song", "voice-1", 1.5)
	assert.Equal(t, OriginUser, user.Origin)
	assert.Equal(t, "some song", user.Source)
	assert.Equal(t, 1.5, user.Volume)
	assert.NotEmpty(t, user.ID)
	assert.False(t, user.AddedAt.IsZero())

	speech := NewSpeech("hello", "de", "voice-1", 0)
	assert.Equal(t, OriginSpeech, speech.Origin)
	assert.Equal(t, "hello", speech.Source)
	assert.Equal(t, "de", speech.Lang)

	filler := NewAutoplay("lofi mix", "voice-1", 0)
	assert.Equal(t, OriginAutoplay, filler.Origin)

	assert.NotEqual(t, user.ID, speech.ID)
}

func TestIsDirectURL(t *testing.T) {
	tests := []struct {
		source string
		want   bool
	}{
		{"http://example.com/a", true},
		{"https://example.com/a", true},
		{"lofi hip hop radio", false},
		{"ftp://example.com/a", false},
		{"", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Track{Source: tt.source}.IsDirectURL(), "source: %q", tt.source)
	}
}

func TestDisplay(t *testing.T) {
	assert.Equal(t, "A Title", Track{Source: "query", Title: "A Title"}.Display())
	assert.Equal(t, "query", Track{Source: "query"}.Display())
}
