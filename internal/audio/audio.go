// Package audio defines the transport surfaces the playback engine drives.
//
// The engine never moves audio frames itself. A Connection is the control
// handle for one guild's live voice session on the transport; a Directory
// hands out connections and knows which channel a guild currently populates.
package audio

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/ahribot/foxbox/internal/app/resolve"
)

// ErrChannelUnknown indicates the directory has no voice channel for the guild.
var ErrChannelUnknown = errors.New("no voice channel known for guild")

// Connection is the control handle for one live voice session.
// It is owned by exactly one playback engine; no other component may drive it.
type Connection interface {
	// Play starts streaming and returns a channel that is closed exactly once
	// when the stream ends, whether it ran to completion or was stopped.
	Play(ctx context.Context, stream resolve.Stream, volume float64) (<-chan struct{}, error)

	// Pause suspends the current stream.
	Pause() error
	// Resume continues a paused stream.
	Resume() error
	// Stop aborts the current stream. The done channel from Play closes.
	Stop() error

	// SetVolume adjusts the live multiplier. Takes effect immediately while
	// streaming and persists across pause/resume.
	SetVolume(v float64) error

	// Close tears down the voice session. Any current stream is stopped.
	Close() error
}

// Directory maps guilds to voice channels and hands out connections.
type Directory interface {
	// Connect returns a live connection to the given channel, reusing the
	// transport session when one already exists for the guild.
	Connect(ctx context.Context, guildID, channelID string) (Connection, error)

	// DefaultChannel returns the guild's currently populated voice channel.
	// Returns ErrChannelUnknown when the guild has none.
	DefaultChannel(guildID string) (string, error)
}
