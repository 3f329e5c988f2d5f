// Package admission provides the filter chain for control-plane requests.
//
// Filters bound what the playback engine will accept (queue length, volume
// range, source scheme) before a request ever touches a guild's state.
package admission

import "github.com/ahribot/foxbox/internal/domain/track"

// Request represents a playback request to be validated.
type Request struct {
	GuildID     string
	Track       track.Track
	QueueLength int // Pending queue length for the guild at admission time
}

// Result represents the result of a filter check.
type Result struct {
	Accepted bool
	Code     string // e.g., "queue_full", "volume_out_of_range"
}

// Accept returns an accepted result.
func Accept() Result {
	return Result{Accepted: true}
}

// Reject returns a rejected result with the given code.
func Reject(code string) Result {
	return Result{Accepted: false, Code: code}
}

// Filter is the interface for admission filters.
type Filter interface {
	// Name returns the filter name (used in config).
	Name() string
	// Description returns a human-readable description.
	Description() string
	// ReturnCodes returns the codes this filter can return.
	ReturnCodes() []string
	// ValidateConfig validates and applies the filter configuration.
	ValidateConfig(settings map[string]any) error
	// AppliesTo returns true if this filter should be applied to the given origin.
	AppliesTo(origin track.Origin) bool
	// Check performs the filter check.
	Check(req Request) Result
}

// registry holds registered filter factories.
var registry = make(map[string]func() Filter)

// Register registers a filter factory.
func Register(name string, factory func() Filter) {
	registry[name] = factory
}

// GetRegistered returns all registered filter factories.
func GetRegistered() map[string]func() Filter {
	return registry
}
