// Package guild provides the per-guild engine registry.
package guild

import (
	"sync"

	zlog "github.com/rs/zerolog/log"

	"github.com/ahribot/foxbox/internal/app/playback"
)

// EngineFactory creates the playback engine for a guild on first reference.
type EngineFactory func(guildID string) *playback.Engine

// Registry is the single point of truth mapping guild ids to their playback
// engines. Records are created lazily and live until process shutdown; idle
// cleanup only tears down a guild's connection, never its record.
type Registry struct {
	mu      sync.Mutex
	engines map[string]*playback.Engine
	factory EngineFactory
	wg      sync.WaitGroup
}

// NewRegistry creates a registry with the given engine factory.
func NewRegistry(factory EngineFactory) *Registry {
	return &Registry{
		engines: make(map[string]*playback.Engine),
		factory: factory,
	}
}

// GetOrCreate returns the guild's engine, creating it on first touch.
// Creation is idempotent under concurrent callers.
func (r *Registry) GetOrCreate(guildID string) *playback.Engine {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.engines[guildID]; ok {
		return e
	}

	e := r.factory(guildID)
	r.engines[guildID] = e
	r.wg.Add(1)
	go r.drainEvents(e)
	zlog.Debug().Msgf("guild: created engine guild=%s", guildID)
	return e
}

// Get returns the guild's engine if one exists.
func (r *Registry) Get(guildID string) (*playback.Engine, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.engines[guildID]
	return e, ok
}

// Size returns the number of registered guilds.
func (r *Registry) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.engines)
}

// Close shuts down every engine. Called once at process shutdown.
func (r *Registry) Close() {
	r.mu.Lock()
	engines := make([]*playback.Engine, 0, len(r.engines))
	for _, e := range r.engines {
		engines = append(engines, e)
	}
	r.mu.Unlock()

	for _, e := range engines {
		e.Close()
	}
	r.wg.Wait()
}

// drainEvents logs each engine's playback events. One drain goroutine per
// engine; it exits when the engine's event channel closes.
func (r *Registry) drainEvents(e *playback.Engine) {
	defer r.wg.Done()

	for ev := range e.Events() {
		switch ev.Type {
		case playback.EventTrackStarted:
			zlog.Info().Msgf("guild %s: track started: %s", e.GuildID(), display(ev))
		case playback.EventTrackEnded:
			zlog.Info().Msgf("guild %s: track ended: %s", e.GuildID(), display(ev))
		case playback.EventTrackSkipped:
			zlog.Info().Msgf("guild %s: track skipped: %s", e.GuildID(), display(ev))
		case playback.EventResolveFailed:
			zlog.Warn().Msgf("guild %s: track unresolvable, skipped: %s", e.GuildID(), display(ev))
		case playback.EventQueueDrained:
			zlog.Info().Msgf("guild %s: queue drained, idle timer armed", e.GuildID())
		case playback.EventIdleTimeout:
			zlog.Info().Msgf("guild %s: idle timeout, connection released", e.GuildID())
		case playback.EventStateChanged:
			zlog.Debug().Msgf("guild %s: state changed: %s", e.GuildID(), ev.State)
		}
	}
}

func display(ev playback.Event) string {
	if ev.Track == nil {
		return "<none>"
	}
	return ev.Track.Display()
}
