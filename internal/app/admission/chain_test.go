package admission

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahribot/foxbox/internal/domain/track"
	"github.com/ahribot/foxbox/internal/infra/config"
)

func TestChain_Execute(t *testing.T) {
	queueLimit := NewQueueLimitFilter()
	require.NoError(t, queueLimit.ValidateConfig(map[string]any{"max_length": 2}))
	volumeRange := NewVolumeRangeFilter()
	require.NoError(t, volumeRange.ValidateConfig(map[string]any{"max": 2.0}))

	chain := NewChain()
	chain.Add(queueLimit)
	chain.Add(volumeRange)

	tests := []struct {
		name     string
		req      Request
		accepted bool
		code     string
	}{
		{
			name:     "clean request",
			req:      Request{Track: track.New("song", "voice-1", 1.0), QueueLength: 0},
			accepted: true,
		},
		{
			name:     "first reject wins",
			req:      Request{Track: track.New("song", "voice-1", 9.0), QueueLength: 5},
			accepted: false,
			code:     "queue_full",
		},
		{
			name:     "later filter still checked",
			req:      Request{Track: track.New("song", "voice-1", 9.0), QueueLength: 0},
			accepted: false,
			code:     "volume_out_of_range",
		},
		{
			name: "non-applying origin skipped",
			// Queue limit ignores speech, so a full queue does not block it.
			req:      Request{Track: track.NewSpeech("hello", "en", "voice-1", 1.0), QueueLength: 5},
			accepted: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := chain.Execute(tt.req)
			assert.Equal(t, tt.accepted, res.Accepted)
			assert.Equal(t, tt.code, res.Code)
		})
	}
}

func TestChain_ExecuteEmpty(t *testing.T) {
	chain := NewChain()
	assert.True(t, chain.Execute(Request{Track: track.New("song", "voice-1", 0)}).Accepted)
}

func TestNewChainFromConfig(t *testing.T) {
	cfg := &config.Config{
		Admission: map[string]config.AdmissionEntry{
			"queue_limit":  {Enabled: true, Settings: map[string]any{"max_length": 10}},
			"volume_range": {Enabled: false},
		},
	}

	chain, err := NewChainFromConfig(cfg)
	require.NoError(t, err)
	require.Len(t, chain.Filters(), 1)
	assert.Equal(t, "queue_limit", chain.Filters()[0].Name())
}

func TestNewChainFromConfig_InvalidSettings(t *testing.T) {
	cfg := &config.Config{
		Admission: map[string]config.AdmissionEntry{
			"queue_limit": {Enabled: true, Settings: map[string]any{"max_length": -1}},
		},
	}

	_, err := NewChainFromConfig(cfg)
	assert.Error(t, err)
}
