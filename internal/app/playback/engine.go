package playback

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/ahribot/foxbox/internal/app/resolve"
	"github.com/ahribot/foxbox/internal/audio"
	"github.com/ahribot/foxbox/internal/domain/track"
)

// Errors
var (
	ErrEngineClosed   = errors.New("engine closed")
	ErrBusy           = errors.New("a requested track is already playing")
	ErrNotConnected   = errors.New("not connected")
	ErrNothingPlaying = errors.New("nothing playing")
	ErrNotPlaying     = errors.New("not playing")
	ErrNotPaused      = errors.New("not paused")
	ErrConnectFailed  = errors.New("could not establish voice connection")
)

// recentTitleCap bounds the seed list handed to autoplay providers.
const recentTitleCap = 10

// Config holds engine configuration.
type Config struct {
	IdleTimeout   time.Duration // Disconnect after this long with nothing to play
	SelectTimeout time.Duration // Bounded wait for autoplay query selection
	DefaultVolume float64       // Initial volume multiplier
}

// AutoplayProvider selects filler queries when the queue empties.
type AutoplayProvider interface {
	Next(ctx context.Context, seeds []string, exclude map[string]bool) (string, error)
}

// Snapshot is a read-only view of a guild's playback state.
type Snapshot struct {
	State    State
	Playing  bool
	Current  string
	Autoplay bool
	Pending  []string
}

// Engine owns playback for a single guild: the queue, the connection, the
// autoplay policy and the idle-disconnect lifecycle. All state transitions
// for the guild serialize on its mutex; resolution and autoplay selection
// are the only suspension points and run outside the lock with epoch and
// generation checks on re-entry.
type Engine struct {
	guildID   string
	resolver  resolve.Resolver
	directory audio.Directory
	autoplay  AutoplayProvider
	config    Config

	mu sync.Mutex

	state      State
	queue      []track.Track
	autoplayOn bool
	conn       audio.Connection
	channelID  string // Channel of the live connection
	current    *track.Track
	lastVolume float64

	// epoch invalidates in-flight advances across stop/leave/close.
	// playGen invalidates stream-completion watchers across interrupts.
	// idleGen is the atomic claim between idle-timer cancel and fire.
	epoch      uint64
	playGen    uint64
	idleGen    uint64
	advancing  bool
	idleCancel context.CancelFunc

	recentTitles  []string
	recentQueries map[string]bool

	events chan Event
	ctx    context.Context
	cancel context.CancelFunc
	closed bool
}

// NewEngine creates the playback engine for one guild.
func NewEngine(guildID string, resolver resolve.Resolver, directory audio.Directory, autoplay AutoplayProvider, config Config) *Engine {
	if config.IdleTimeout <= 0 {
		config.IdleTimeout = 10 * time.Minute
	}
	if config.SelectTimeout <= 0 {
		config.SelectTimeout = 10 * time.Second
	}
	if config.DefaultVolume <= 0 {
		config.DefaultVolume = 1.0
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		guildID:       guildID,
		resolver:      resolver,
		directory:     directory,
		autoplay:      autoplay,
		config:        config,
		state:         StateIdle,
		lastVolume:    config.DefaultVolume,
		recentQueries: make(map[string]bool),
		events:        make(chan Event, 16),
		ctx:           ctx,
		cancel:        cancel,
	}
}

// GuildID returns the guild this engine serves.
func (e *Engine) GuildID() string {
	return e.guildID
}

// Events returns the event channel.
func (e *Engine) Events() <-chan Event {
	return e.events
}

// Enqueue admits a track. With no live connection the engine connects to the
// track's channel and starts playing immediately; otherwise the track joins
// the queue tail. Returns the track's queue position (0 = playing next).
func (e *Engine) Enqueue(ctx context.Context, t track.Track, autoplayOn *bool) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return 0, ErrEngineClosed
	}

	e.cancelIdleLocked()
	if autoplayOn != nil {
		e.autoplayOn = *autoplayOn
	}

	if e.conn == nil {
		if err := e.connectLocked(ctx, t.ChannelID); err != nil {
			return 0, err
		}
	}

	e.queue = append(e.queue, t)
	pos := len(e.queue) - 1
	zlog.Debug().Msgf("playback: enqueued guild=%s source=%s position=%d", e.guildID, t.Source, pos)

	e.kickAdvanceLocked()
	return pos, nil
}

// Say plays a speech track immediately. It pre-empts idle and autoplay
// filler; an explicit user track already playing returns ErrBusy. The
// synthesis result is awaited synchronously so resolution failures surface
// to the caller.
func (e *Engine) Say(ctx context.Context, t track.Track) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrEngineClosed
	}
	if e.current != nil && e.current.Origin == track.OriginUser {
		e.mu.Unlock()
		return ErrBusy
	}
	e.mu.Unlock()

	stream, err := e.resolver.Resolve(ctx, t)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrEngineClosed
	}
	if e.current != nil && e.current.Origin == track.OriginUser {
		return ErrBusy
	}

	e.cancelIdleLocked()

	if e.conn == nil {
		if err := e.connectLocked(ctx, t.ChannelID); err != nil {
			return err
		}
	}

	// Interrupt filler or previous speech; it is not resumed.
	if e.current != nil {
		e.playGen++ // Orphan the interrupted stream's watcher
		if err := e.conn.Stop(); err != nil {
			zlog.Warn().Msgf("playback: failed to stop filler for speech: guild=%s error=%v", e.guildID, err)
		}
		e.current = nil
	}

	if err := e.startStreamLocked(t, stream); err != nil {
		// The idle timer was cancelled and a filler may have been stopped
		// above; fall back to the empty-queue policy so a failed start
		// cannot strand the connection with no timer running.
		if len(e.queue) > 0 {
			e.kickAdvanceLocked()
		} else {
			e.enterIdleLocked()
		}
		return err
	}
	return nil
}

// Skip stops the current track; the completion path advances to the next
// queue entry exactly once.
func (e *Engine) Skip() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrEngineClosed
	}
	if e.state != StatePlaying && e.state != StatePaused {
		return ErrNothingPlaying
	}

	e.emitLocked(Event{Type: EventTrackSkipped, Track: e.current, State: e.state})

	// Stop fires the stream's done signal; the watcher drives the advance,
	// the same path as a natural end, so the advance happens exactly once.
	if err := e.conn.Stop(); err != nil {
		return errors.Wrap(err, "failed to stop stream")
	}
	return nil
}

// Stop clears the queue, stops the sink, and releases the connection.
func (e *Engine) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrEngineClosed
	}

	e.teardownLocked()
	e.queue = nil
	e.emitLocked(Event{Type: EventStateChanged, State: e.state})
	zlog.Debug().Msgf("playback: stopped guild=%s", e.guildID)
	return nil
}

// Pause suspends the current track.
func (e *Engine) Pause() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrEngineClosed
	}
	if e.state != StatePlaying {
		return ErrNotPlaying
	}

	if err := e.conn.Pause(); err != nil {
		return errors.Wrap(err, "failed to pause stream")
	}
	e.state = StatePaused
	e.emitLocked(Event{Type: EventStateChanged, Track: e.current, State: e.state})
	return nil
}

// Resume continues a paused track. The last set volume is applied so a
// volume change made while paused takes effect without a restart.
func (e *Engine) Resume() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrEngineClosed
	}
	if e.state != StatePaused {
		return ErrNotPaused
	}

	if err := e.conn.Resume(); err != nil {
		return errors.Wrap(err, "failed to resume stream")
	}
	if err := e.conn.SetVolume(e.lastVolume); err != nil {
		zlog.Warn().Msgf("playback: failed to reapply volume on resume: guild=%s error=%v", e.guildID, err)
	}
	e.state = StatePlaying
	e.emitLocked(Event{Type: EventStateChanged, Track: e.current, State: e.state})
	return nil
}

// SetVolume stores the guild's volume multiplier and applies it to the live
// sink when one exists. Without a connection it takes effect on next play.
func (e *Engine) SetVolume(v float64) (applied bool, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return false, ErrEngineClosed
	}

	e.lastVolume = v
	if e.conn == nil {
		return false, nil
	}
	if err := e.conn.SetVolume(v); err != nil {
		return false, errors.Wrap(err, "failed to set volume")
	}
	return true, nil
}

// Leave disconnects from the voice channel. The queue is preserved; a later
// play request reconnects and resumes it.
func (e *Engine) Leave() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrEngineClosed
	}
	if e.conn == nil {
		return ErrNotConnected
	}

	e.teardownLocked()
	e.emitLocked(Event{Type: EventStateChanged, State: e.state})
	zlog.Debug().Msgf("playback: left voice guild=%s", e.guildID)
	return nil
}

// SetAutoplay toggles the autoplay policy.
func (e *Engine) SetAutoplay(on bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.autoplayOn = on
}

// QueueLength returns the number of pending tracks.
func (e *Engine) QueueLength() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.queue)
}

// Snapshot returns a read-only view of the guild's playback state.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	snap := Snapshot{
		State:    e.state,
		Playing:  e.state == StatePlaying || e.state == StatePaused,
		Autoplay: e.autoplayOn,
		Pending:  make([]string, 0, len(e.queue)),
	}
	if e.current != nil {
		snap.Current = e.current.Display()
	}
	for _, t := range e.queue {
		snap.Pending = append(snap.Pending, t.Display())
	}
	return snap
}

// Close shuts the engine down at process exit.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return
	}
	e.teardownLocked()
	e.closed = true
	e.cancel()
	close(e.events)
}

// connectLocked establishes the guild's voice connection. Must hold e.mu;
// holding the lock across the call is what makes a second concurrent
// connection impossible.
func (e *Engine) connectLocked(ctx context.Context, channelID string) error {
	e.state = StateConnecting
	conn, err := e.directory.Connect(ctx, e.guildID, channelID)
	if err != nil {
		e.state = StateIdle
		return errors.Wrap(errors.Mark(err, ErrConnectFailed), "connect")
	}
	e.conn = conn
	e.channelID = channelID
	zlog.Debug().Msgf("playback: connected guild=%s channel=%s", e.guildID, channelID)
	return nil
}

// teardownLocked releases the connection and resets playback state. The
// epoch bump aborts any in-flight advance; the playGen bump orphans any
// stream watcher. Must hold e.mu.
func (e *Engine) teardownLocked() {
	e.epoch++
	e.playGen++
	e.advancing = false
	e.cancelIdleLocked()
	if e.conn != nil {
		if err := e.conn.Close(); err != nil {
			zlog.Warn().Msgf("playback: error closing connection: guild=%s error=%v", e.guildID, err)
		}
		e.conn = nil
	}
	e.current = nil
	e.state = StateIdle
}

// kickAdvanceLocked starts the advance loop when nothing is playing and no
// advance is already in flight. Must hold e.mu.
func (e *Engine) kickAdvanceLocked() {
	if e.advancing || e.current != nil || e.conn == nil {
		return
	}
	e.advancing = true
	e.state = StateConnecting
	go e.advanceLoop(e.epoch)
}

// advanceLoop pops and plays the next track. It runs until a stream starts,
// the queue (and autoplay) is exhausted, or the epoch changes under it.
// Resolution failures skip to the next entry; the loop never stalls.
func (e *Engine) advanceLoop(epoch uint64) {
	for {
		e.mu.Lock()
		if e.staleLocked(epoch) {
			e.mu.Unlock()
			return
		}

		// Another operation (say) started a stream while this advance was
		// suspended. Leave the flag to it and bow out.
		if e.current != nil {
			e.advancing = false
			e.mu.Unlock()
			return
		}

		var t track.Track
		popped := false
		if len(e.queue) > 0 {
			t = e.queue[0]
			e.queue = e.queue[1:]
			popped = true
		}

		if !popped && (!e.autoplayOn || e.autoplay == nil) {
			e.enterIdleLocked()
			e.mu.Unlock()
			return
		}

		channel := e.channelID
		seeds := append([]string(nil), e.recentTitles...)
		exclude := make(map[string]bool, len(e.recentQueries))
		for q := range e.recentQueries {
			exclude[q] = true
		}
		e.mu.Unlock()

		if !popped {
			// Synthesize a one-off filler; it never enters the queue.
			selectCtx, cancel := context.WithTimeout(e.ctx, e.config.SelectTimeout)
			query, err := e.autoplay.Next(selectCtx, seeds, exclude)
			cancel()
			if err != nil {
				zlog.Warn().Msgf("playback: autoplay selection failed: guild=%s error=%v", e.guildID, err)
				e.mu.Lock()
				if !e.staleLocked(epoch) {
					e.enterIdleLocked()
				}
				e.mu.Unlock()
				return
			}
			t = track.NewAutoplay(query, channel, 0)
		}

		stream, err := e.resolver.Resolve(e.ctx, t)
		if err != nil {
			zlog.Warn().Msgf("playback: resolution failed, skipping: guild=%s source=%s error=%v", e.guildID, t.Source, err)
			e.mu.Lock()
			if e.staleLocked(epoch) {
				e.mu.Unlock()
				return
			}
			e.emitLocked(Event{Type: EventResolveFailed, Track: &t, State: e.state})
			if t.Origin == track.OriginAutoplay {
				// A failed filler falls back to the idle policy rather than
				// hammering the backend in a tight loop.
				e.enterIdleLocked()
				e.mu.Unlock()
				return
			}
			e.mu.Unlock()
			continue
		}

		e.mu.Lock()
		if e.staleLocked(epoch) {
			e.mu.Unlock()
			return
		}
		if e.current != nil {
			// A speech track started during resolution. Put the popped track
			// back so the next advance plays it in order.
			if popped {
				e.queue = append([]track.Track{t}, e.queue...)
			}
			e.advancing = false
			e.mu.Unlock()
			return
		}
		if t.Origin == track.OriginAutoplay && len(e.queue) > 0 {
			// A real request arrived while the filler resolved; it wins.
			e.mu.Unlock()
			continue
		}
		if err := e.startStreamLocked(t, stream); err != nil {
			zlog.Warn().Msgf("playback: failed to start stream, skipping: guild=%s source=%s error=%v", e.guildID, t.Source, err)
			e.mu.Unlock()
			continue
		}
		e.advancing = false
		e.mu.Unlock()
		return
	}
}

// startStreamLocked starts a resolved stream on the live connection and
// registers its completion watcher. Must hold e.mu with e.conn non-nil.
func (e *Engine) startStreamLocked(t track.Track, stream resolve.Stream) error {
	e.cancelIdleLocked()

	vol := t.Volume
	if vol <= 0 {
		vol = e.lastVolume
	} else {
		e.lastVolume = vol
	}

	e.playGen++
	gen := e.playGen

	done, err := e.conn.Play(e.ctx, stream, vol)
	if err != nil {
		return errors.Wrap(err, "failed to start stream")
	}

	t.Title = stream.Title
	e.current = &t
	e.state = StatePlaying
	e.rememberLocked(t, stream)
	e.emitLocked(Event{Type: EventTrackStarted, Track: e.current, State: e.state})
	zlog.Debug().Msgf("playback: now playing guild=%s title=%s duration=%v", e.guildID, stream.Title, stream.Duration)

	go e.watchStream(done, gen)
	return nil
}

// watchStream waits for one stream's completion and feeds it back into the
// engine as a generation-tagged event.
func (e *Engine) watchStream(done <-chan struct{}, gen uint64) {
	select {
	case <-done:
	case <-e.ctx.Done():
		return
	}
	e.onStreamDone(gen)
}

// onStreamDone handles a stream completion. Stale generations (interrupted
// or torn-down streams) are dropped, which is what makes the advance fire
// exactly once per stop or natural end.
func (e *Engine) onStreamDone(gen uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed || gen != e.playGen {
		return
	}

	ended := e.current
	e.current = nil
	if ended != nil {
		e.emitLocked(Event{Type: EventTrackEnded, Track: ended, State: e.state})
	}

	if e.conn == nil {
		e.state = StateIdle
		return
	}
	if e.advancing {
		return
	}
	e.advancing = true
	e.state = StateConnecting
	go e.advanceLoop(e.epoch)
}

// enterIdleLocked applies the empty-queue policy: stay connected, arm the
// idle disconnect timer. Must hold e.mu.
func (e *Engine) enterIdleLocked() {
	e.current = nil
	e.state = StateIdle
	e.advancing = false
	e.armIdleLocked()
	e.emitLocked(Event{Type: EventQueueDrained, State: e.state})
	zlog.Debug().Msgf("playback: queue drained guild=%s idle_timeout=%v", e.guildID, e.config.IdleTimeout)
}

// armIdleLocked installs the single-slot idle timer, replacing any pending
// one. Must hold e.mu.
func (e *Engine) armIdleLocked() {
	e.cancelIdleLocked()

	e.idleGen++
	gen := e.idleGen

	ctx, cancel := context.WithCancel(context.Background())
	e.idleCancel = cancel

	go func() {
		timer := time.NewTimer(e.config.IdleTimeout)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
		e.onIdleTimeout(gen)
	}()
}

// cancelIdleLocked claims the idle timer away from a concurrent fire: the
// generation bump makes an already-elapsed timer a no-op. Must hold e.mu.
func (e *Engine) cancelIdleLocked() {
	e.idleGen++
	if e.idleCancel != nil {
		e.idleCancel()
		e.idleCancel = nil
	}
}

// onIdleTimeout releases the connection after the idle interval. The
// generation check is the fire side of the cancel/fire claim: whichever
// acts first wins, the loser is a no-op.
func (e *Engine) onIdleTimeout(gen uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed || gen != e.idleGen || e.conn == nil || e.state != StateIdle {
		return
	}

	e.state = StateDisconnecting
	e.idleCancel = nil
	zlog.Info().Msgf("playback: idle timeout, disconnecting guild=%s", e.guildID)

	e.epoch++
	e.playGen++
	if err := e.conn.Close(); err != nil {
		zlog.Warn().Msgf("playback: error closing idle connection: guild=%s error=%v", e.guildID, err)
	}
	e.conn = nil
	e.state = StateIdle
	e.emitLocked(Event{Type: EventIdleTimeout, State: e.state})
}

// rememberLocked records autoplay hints from a started stream. Must hold e.mu.
func (e *Engine) rememberLocked(t track.Track, stream resolve.Stream) {
	if stream.Title != "" && t.Origin != track.OriginSpeech {
		e.recentTitles = append(e.recentTitles, stream.Title)
		if len(e.recentTitles) > recentTitleCap {
			e.recentTitles = e.recentTitles[len(e.recentTitles)-recentTitleCap:]
		}
	}
	if t.Origin == track.OriginAutoplay {
		if len(e.recentQueries) > 50 {
			e.recentQueries = make(map[string]bool)
		}
		e.recentQueries[t.Source] = true
	}
}

// staleLocked reports whether the calling advance belongs to a torn-down
// epoch. Must hold e.mu.
func (e *Engine) staleLocked(epoch uint64) bool {
	return e.closed || e.epoch != epoch
}

// emitLocked sends an event without blocking. Must hold e.mu.
func (e *Engine) emitLocked(ev Event) {
	if e.closed {
		return
	}
	select {
	case e.events <- ev:
	default:
		// Buffer full, drop
	}
}
