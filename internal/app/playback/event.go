package playback

import "github.com/ahribot/foxbox/internal/domain/track"

// EventType represents a playback event type.
type EventType int

const (
	EventTrackStarted  EventType = iota // Track started streaming
	EventTrackEnded                     // Track finished streaming
	EventTrackSkipped                   // Track was skipped
	EventResolveFailed                  // A track could not be resolved and was skipped
	EventQueueDrained                   // Queue emptied with autoplay off; idle timer armed
	EventIdleTimeout                    // Idle timeout released the connection
	EventStateChanged                   // Pause/resume/stop state change
)

// String returns the string representation of the event type.
func (e EventType) String() string {
	switch e {
	case EventTrackStarted:
		return "track_started"
	case EventTrackEnded:
		return "track_ended"
	case EventTrackSkipped:
		return "track_skipped"
	case EventResolveFailed:
		return "resolve_failed"
	case EventQueueDrained:
		return "queue_drained"
	case EventIdleTimeout:
		return "idle_timeout"
	case EventStateChanged:
		return "state_changed"
	default:
		return "unknown"
	}
}

// Event represents a playback event.
type Event struct {
	Type  EventType
	Track *track.Track // Affected track (nil for some events)
	State State        // Engine state after the event
}
