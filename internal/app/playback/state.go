// Package playback provides the per-guild playback engine.
package playback

// State represents a guild's playback state.
type State int

const (
	StateIdle          State = iota // No track playing (connection may still be live)
	StateConnecting                 // Establishing the connection or resolving the next track
	StatePlaying                    // Track is streaming
	StatePaused                     // Track is paused
	StateDisconnecting              // Idle timeout is tearing down the connection
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateDisconnecting:
		return "disconnecting"
	default:
		return "unknown"
	}
}
