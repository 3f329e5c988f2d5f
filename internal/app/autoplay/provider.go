// Package autoplay provides filler track selection strategies.
//
// When a guild's queue empties with autoplay enabled, the playback engine
// asks the chain for a single search query and plays it as a one-off track.
package autoplay

import "context"

// Provider is the interface for filler query providers. Different
// implementations select queries through various strategies (fixed candidate
// set, related-track lookup, etc.).
type Provider interface {
	// Next returns one filler search query.
	// seeds: titles of recently played tracks, usable as recommendation hints
	// exclude: queries already played recently (for variety)
	Next(ctx context.Context, seeds []string, exclude map[string]bool) (string, error)

	// Name returns the provider name (used in config).
	Name() string
}

// RelatedClient defines the backend surface the related provider needs.
type RelatedClient interface {
	Related(ctx context.Context, seeds []string, count int) ([]string, error)
}
