package admission

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahribot/foxbox/internal/domain/track"
)

func TestVolumeRangeFilter_ValidateConfig(t *testing.T) {
	tests := []struct {
		name     string
		settings map[string]any
		wantErr  bool
	}{
		{
			name:     "defaults applied",
			settings: map[string]any{},
		},
		{
			name:     "explicit range",
			settings: map[string]any{"min": 0.1, "max": 1.5},
		},
		{
			name:     "min above max rejected",
			settings: map[string]any{"min": 2.0, "max": 1.0},
			wantErr:  true,
		},
		{
			name:     "negative min rejected",
			settings: map[string]any{"min": -0.5},
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewVolumeRangeFilter()
			err := f.ValidateConfig(tt.settings)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestVolumeRangeFilter_Check(t *testing.T) {
	f := NewVolumeRangeFilter()
	require.NoError(t, f.ValidateConfig(map[string]any{"min": 0.0, "max": 2.0}))

	tests := []struct {
		name   string
		volume float64
		accept bool
	}{
		{name: "zero means engine default", volume: 0, accept: true},
		{name: "in range", volume: 1.0, accept: true},
		{name: "at max", volume: 2.0, accept: true},
		{name: "above max", volume: 2.5, accept: false},
		{name: "negative", volume: -1.0, accept: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := f.Check(Request{Track: track.Track{Origin: track.OriginUser, Volume: tt.volume}})
			assert.Equal(t, tt.accept, res.Accepted)
			if !tt.accept {
				assert.Equal(t, "volume_out_of_range", res.Code)
			}
		})
	}
}

func TestVolumeRangeFilter_AppliesTo(t *testing.T) {
	f := NewVolumeRangeFilter()

	assert.True(t, f.AppliesTo(track.OriginUser))
	assert.True(t, f.AppliesTo(track.OriginSpeech))
	assert.False(t, f.AppliesTo(track.OriginAutoplay))
}
