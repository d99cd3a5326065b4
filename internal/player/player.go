package player

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// Options configures a Player.
type Options struct {
	// PrimaryURL and SecondaryURL are the clip sources. Either may be
	// empty; with both empty the player is disabled.
	PrimaryURL   string
	SecondaryURL string

	// Label is shown next to the active language, e.g. "Al-Fatiha 1:1".
	Label string

	// AutoPlay starts playback in the background whenever sources are
	// supplied.
	AutoPlay bool

	// OnPlayStart fires once per fresh sequence start: the move out of
	// idle. It does not fire on resume or on the automatic advance from
	// the primary to the secondary track.
	OnPlayStart func()

	// OnPlayComplete fires once when the last available track ends on
	// its own. Pause and skip never fire it.
	OnPlayComplete func()

	// OnChange receives a snapshot after every state change.
	OnChange func(Session)

	// OnError receives transport failures that happen outside of a play
	// request, such as a stream breaking mid-clip. They arrive as *Error
	// with CodeTransport.
	OnError func(error)

	// Logger defaults to log.Default().
	Logger *log.Logger
}

// Player plays a primary clip and then a secondary clip as one session.
// It is safe for concurrent use.
//
// Two locks are involved. mu guards the session. tmu orders the
// non-blocking transport calls (pause, seek, load, volume) so that they
// reach the transports in the order the session changed; it is always
// taken before mu. Neither lock is held while Transport.Play blocks or
// while callbacks run.
type Player struct {
	tmu sync.Mutex
	mu  sync.Mutex

	transports [3]Transport // indexed by Track
	urls       [3]string    // indexed by Track
	label      string

	session Session

	// want is the latest play intent. gen is bumped whenever the intent
	// changes so that a play request resolving late can tell it is stale;
	// cancel aborts the request of the current gen while it is in flight.
	want   bool
	gen    uint64
	cancel context.CancelFunc

	// played holds, per track, the generation of the last request that
	// called Play on its transport.
	played [3]uint64

	closed bool

	opts   Options
	logger *log.Logger
}

// playRequest is a play decision taken under the lock and carried out
// after it is released.
type playRequest struct {
	ctx     context.Context
	cancel  context.CancelFunc
	gen     uint64
	track   Track
	target  Transport
	other   Transport
	restart bool
}

// notice collects the callbacks a mutation has to fire.
type notice struct {
	start    bool
	complete bool
	change   bool
	snap     Session
	err      error
}

// New creates a player over two transports: primary plays the Arabic
// recitation, secondary the English translation.
func New(primary, secondary Transport, opts Options) *Player {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	p := &Player{
		opts:   opts,
		logger: logger,
		label:  opts.Label,
		session: Session{
			Volume: 1,
		},
	}
	p.transports[TrackPrimary] = primary
	p.transports[TrackSecondary] = secondary
	p.urls[TrackPrimary] = opts.PrimaryURL
	p.urls[TrackSecondary] = opts.SecondaryURL

	for _, t := range []Track{TrackPrimary, TrackSecondary} {
		track := t
		tr := p.transports[track]
		tr.SetHandler(func(ev Event) { p.handleEvent(track, ev) })
		tr.SetVolume(p.session.Volume)
		tr.SetMuted(false)
		tr.Load(p.urls[track])
	}

	if opts.AutoPlay && p.Enabled() {
		p.playInBackground()
	}

	return p
}

// Enabled reports whether at least one track has a source.
func (p *Player) Enabled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.enabledLocked()
}

func (p *Player) enabledLocked() bool {
	return p.urls[TrackPrimary] != "" || p.urls[TrackSecondary] != ""
}

// HasTrack reports whether the given track has a source.
func (p *Player) HasTrack(t Track) bool {
	if t != TrackPrimary && t != TrackSecondary {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.urls[t] != ""
}

// Sources returns the primary and secondary sources.
func (p *Player) Sources() (Source, Source) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Source{URL: p.urls[TrackPrimary], Track: TrackPrimary},
		Source{URL: p.urls[TrackSecondary], Track: TrackSecondary}
}

// Label returns the display label of the session.
func (p *Player) Label() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.label
}

// Snapshot returns the current session.
func (p *Player) Snapshot() Session {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.session
}

// State returns the current state machine state.
func (p *Player) State() State {
	return p.Snapshot().State()
}

// Play starts a new sequence when idle, or resumes the active track. It
// blocks until the transport has resolved the request.
func (p *Player) Play(ctx context.Context) error {
	p.tmu.Lock()
	p.mu.Lock()
	if err := p.usableLocked("play"); err != nil {
		p.mu.Unlock()
		p.tmu.Unlock()
		return err
	}
	if p.want {
		// Already playing or a request for the active track is in flight.
		p.mu.Unlock()
		p.tmu.Unlock()
		return nil
	}

	prev := p.session.State()
	var n notice
	restart := false
	track := p.session.Active
	if track == TrackNone {
		track = p.firstTrackLocked()
		p.session.Active = track
		p.session.Position = 0
		p.session.Duration = 0
		restart = true
		n.start = true
	}
	req := p.requestLocked(ctx, track, restart)
	n.change = true
	n.snap = p.commitLocked(prev)
	p.mu.Unlock()

	p.prepare(req)
	p.tmu.Unlock()

	p.notify(n)
	return p.carryOut(req)
}

// Pause stops the active track and keeps its position.
func (p *Player) Pause() error {
	p.tmu.Lock()
	p.mu.Lock()
	if err := p.usableLocked("pause"); err != nil {
		p.mu.Unlock()
		p.tmu.Unlock()
		return err
	}
	if p.session.Active == TrackNone || (!p.want && !p.session.Playing) {
		p.mu.Unlock()
		p.tmu.Unlock()
		return nil
	}

	prev := p.session.State()
	p.supersedeLocked()
	p.want = false
	p.session.Playing = false
	p.session.Pending = false
	tr := p.transports[p.session.Active]
	n := notice{change: true, snap: p.commitLocked(prev)}
	p.mu.Unlock()

	tr.Pause()
	p.tmu.Unlock()
	p.notify(n)
	return nil
}

// TogglePlay pauses when playing and plays otherwise. A play request
// still in flight counts as playing, so a second press cancels it.
func (p *Player) TogglePlay(ctx context.Context) error {
	p.mu.Lock()
	playing := p.want || p.session.Playing
	p.mu.Unlock()

	if playing {
		return p.Pause()
	}
	return p.Play(ctx)
}

// Skip switches to the given track and plays it from the start. It does
// nothing when the track is already active and playing.
func (p *Player) Skip(ctx context.Context, target Track) error {
	p.tmu.Lock()
	p.mu.Lock()
	if err := p.usableLocked("skip"); err != nil {
		p.mu.Unlock()
		p.tmu.Unlock()
		return err
	}
	if (target != TrackPrimary && target != TrackSecondary) || p.urls[target] == "" {
		p.mu.Unlock()
		p.tmu.Unlock()
		return ErrTrackUnavailable
	}
	if p.session.Active == target && p.want {
		p.mu.Unlock()
		p.tmu.Unlock()
		return nil
	}

	prev := p.session.State()
	n := notice{change: true, start: p.session.Active == TrackNone}
	p.session.Active = target
	p.session.Playing = false
	p.session.Position = 0
	p.session.Duration = 0
	req := p.requestLocked(ctx, target, true)
	n.snap = p.commitLocked(prev)
	p.mu.Unlock()

	p.prepare(req)
	p.tmu.Unlock()

	p.notify(n)
	return p.carryOut(req)
}

// Seek moves the active track to pos, clamped to [0, duration]. The upper
// bound only applies once the duration is known.
func (p *Player) Seek(pos time.Duration) error {
	p.tmu.Lock()
	p.mu.Lock()
	if err := p.usableLocked("seek"); err != nil {
		p.mu.Unlock()
		p.tmu.Unlock()
		return err
	}
	track := p.session.Active
	if track == TrackNone {
		p.mu.Unlock()
		p.tmu.Unlock()
		return ErrNoActiveTrack
	}

	pos = p.clampLocked(pos)
	prev := p.session.State()
	p.session.Position = pos
	tr := p.transports[track]
	n := notice{change: true, snap: p.commitLocked(prev)}
	p.mu.Unlock()

	err := tr.Seek(pos)
	p.tmu.Unlock()

	p.notify(n)
	if err != nil {
		p.logger.Warn("seek failed", "track", track, "position", pos, "err", err)
		return newError(CodeSeek, "seek", track, err)
	}
	return nil
}

// SetVolume sets the volume of both transports. Raising the volume above
// zero while muted also unmutes.
func (p *Player) SetVolume(v float64) {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}

	p.tmu.Lock()
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.tmu.Unlock()
		return
	}
	prev := p.session.State()
	unmute := v > 0 && p.session.Muted
	p.session.Volume = v
	if unmute {
		p.session.Muted = false
	}
	trs := p.bothLocked()
	n := notice{change: true, snap: p.commitLocked(prev)}
	p.mu.Unlock()

	for _, tr := range trs {
		tr.SetVolume(v)
		if unmute {
			tr.SetMuted(false)
		}
	}
	p.tmu.Unlock()
	p.notify(n)
}

// ToggleMute flips the mute flag. The stored volume is left untouched.
func (p *Player) ToggleMute() {
	p.mu.Lock()
	muted := !p.session.Muted
	p.mu.Unlock()
	p.SetMuted(muted)
}

// SetMuted sets the mute flag on both transports.
func (p *Player) SetMuted(muted bool) {
	p.tmu.Lock()
	p.mu.Lock()
	if p.closed || p.session.Muted == muted {
		p.mu.Unlock()
		p.tmu.Unlock()
		return
	}
	prev := p.session.State()
	p.session.Muted = muted
	trs := p.bothLocked()
	n := notice{change: true, snap: p.commitLocked(prev)}
	p.mu.Unlock()

	for _, tr := range trs {
		tr.SetMuted(muted)
	}
	p.tmu.Unlock()
	p.notify(n)
}

// SetSources replaces the clips, e.g. when moving to another verse. When
// either URL differs from the current one the session goes back to idle;
// volume and mute are kept. With AutoPlay set, playback of the new
// sequence starts in the background.
func (p *Player) SetSources(primaryURL, secondaryURL, label string) {
	p.tmu.Lock()
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.tmu.Unlock()
		return
	}
	p.label = label
	if p.urls[TrackPrimary] == primaryURL && p.urls[TrackSecondary] == secondaryURL {
		n := notice{change: true, snap: p.session}
		p.mu.Unlock()
		p.tmu.Unlock()
		p.notify(n)
		return
	}

	prev := p.session.State()
	p.urls[TrackPrimary] = primaryURL
	p.urls[TrackSecondary] = secondaryURL
	p.supersedeLocked()
	p.want = false
	p.session = Session{Volume: p.session.Volume, Muted: p.session.Muted}
	trs := p.bothLocked()
	enabled := p.enabledLocked()
	n := notice{change: true, snap: p.commitLocked(prev)}
	p.mu.Unlock()

	trs[0].Pause()
	trs[1].Pause()
	trs[0].Load(primaryURL)
	trs[1].Load(secondaryURL)
	p.tmu.Unlock()

	p.logger.Debug("sources changed", "label", label, "primary", primaryURL, "secondary", secondaryURL)
	p.notify(n)

	if p.opts.AutoPlay && enabled {
		p.playInBackground()
	}
}

// Close stops playback and releases both transports.
func (p *Player) Close() error {
	p.tmu.Lock()
	defer p.tmu.Unlock()

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.supersedeLocked()
	p.want = false
	trs := p.bothLocked()
	p.mu.Unlock()

	var firstErr error
	for _, tr := range trs {
		tr.Pause()
		if err := tr.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// handleEvent applies a transport event. Events of the track that is not
// active are stale and dropped.
func (p *Player) handleEvent(track Track, ev Event) {
	p.tmu.Lock()
	p.mu.Lock()
	if p.closed || track != p.session.Active {
		p.mu.Unlock()
		p.tmu.Unlock()
		return
	}

	prev := p.session.State()
	var n notice
	switch ev.Type {
	case EventTimeUpdate:
		p.session.Position = p.clampLocked(ev.Position)
		n = notice{change: true, snap: p.commitLocked(prev)}

	case EventMetadata:
		p.session.Duration = ev.Duration
		if ev.Duration > 0 && p.session.Position > ev.Duration {
			p.session.Position = ev.Duration
		}
		n = notice{change: true, snap: p.commitLocked(prev)}

	case EventEnded:
		if !p.want {
			// The end was detected before a pause took effect. A paused
			// track never advances or completes on its own.
			p.mu.Unlock()
			p.tmu.Unlock()
			p.logger.Debug("end of paused track dropped", "track", track)
			return
		}
		p.handleEnded(track, prev)
		return

	case EventError:
		p.supersedeLocked()
		p.want = false
		p.session.Playing = false
		p.session.Pending = false
		n = notice{change: true, snap: p.commitLocked(prev), err: newError(CodeTransport, "playback", track, ev.Err)}
		p.logger.Error("transport failed", "track", track, "err", ev.Err)
	}
	p.mu.Unlock()
	p.tmu.Unlock()
	p.notify(n)
}

// handleEnded advances to the secondary track or completes the sequence.
// It is entered with both locks held and releases them.
func (p *Player) handleEnded(track Track, prev State) {
	if track == TrackPrimary && p.urls[TrackSecondary] != "" {
		p.session.Active = TrackSecondary
		p.session.Playing = false
		p.session.Position = 0
		p.session.Duration = 0
		req := p.requestLocked(context.Background(), TrackSecondary, true)
		n := notice{change: true, snap: p.commitLocked(prev)}
		label := p.label
		p.mu.Unlock()

		p.prepare(req)
		p.tmu.Unlock()

		p.logger.Debug("primary ended, advancing", "label", label)
		p.notify(n)
		if err := p.carryOut(req); err != nil {
			p.logger.Warn("could not advance to secondary track", "err", err)
		}
		return
	}

	p.supersedeLocked()
	p.want = false
	p.session = Session{Volume: p.session.Volume, Muted: p.session.Muted}
	n := notice{change: true, complete: true, snap: p.commitLocked(prev)}
	p.mu.Unlock()
	p.tmu.Unlock()

	p.logger.Debug("sequence complete", "last", track)
	p.notify(n)
}

// requestLocked records the intent to play track and returns the request
// to carry out once the lock is released. The request is cancelled as soon
// as a newer intent replaces it.
func (p *Player) requestLocked(parent context.Context, track Track, restart bool) playRequest {
	p.supersedeLocked()
	ctx, cancel := context.WithCancel(parent)
	p.cancel = cancel
	p.want = true
	p.session.Pending = true
	p.played[track] = p.gen
	return playRequest{
		ctx:     ctx,
		cancel:  cancel,
		gen:     p.gen,
		track:   track,
		target:  p.transports[track],
		other:   p.transports[otherTrack(track)],
		restart: restart,
	}
}

// supersedeLocked invalidates the request in flight, if any.
func (p *Player) supersedeLocked() {
	p.gen++
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
}

// prepare silences the other track and rewinds the target. It runs with
// tmu held.
func (p *Player) prepare(req playRequest) {
	req.other.Pause()
	if req.restart {
		if err := req.target.Seek(0); err != nil {
			p.logger.Debug("could not rewind track", "track", req.track, "err", err)
		}
	}
}

// carryOut plays the target and applies the result unless the intent
// changed while the transport was resolving it.
func (p *Player) carryOut(req playRequest) error {
	defer req.cancel()
	err := req.target.Play(req.ctx)

	p.tmu.Lock()
	p.mu.Lock()
	if p.closed || req.gen != p.gen {
		// A newer request for the same track owns its transport now and
		// settles it on its own.
		owned := p.closed || p.played[req.track] == req.gen
		p.mu.Unlock()
		if err == nil && owned {
			req.target.Pause()
		}
		p.tmu.Unlock()
		p.logger.Debug("stale play resolution dropped", "track", req.track, "err", err)
		return nil
	}

	prev := p.session.State()
	p.session.Pending = false
	if err != nil {
		p.want = false
		p.session.Playing = false
		n := notice{change: true, snap: p.commitLocked(prev)}
		p.mu.Unlock()
		p.tmu.Unlock()

		p.logger.Warn("play request rejected", "track", req.track, "err", err)
		p.notify(n)
		return newError(CodeRejected, "play", req.track, err)
	}

	p.session.Playing = true
	n := notice{change: true, snap: p.commitLocked(prev)}
	p.mu.Unlock()
	p.tmu.Unlock()

	p.notify(n)
	return nil
}

func (p *Player) playInBackground() {
	go func() {
		if err := p.Play(context.Background()); err != nil {
			p.logger.Warn("autoplay failed", "err", err)
		}
	}()
}

// commitLocked checks the transition and returns the snapshot to publish.
func (p *Player) commitLocked(prev State) Session {
	next := p.session.State()
	if !CanTransition(prev, next) {
		p.logger.Error("illegal player transition", "from", prev, "to", next)
	}
	return p.session
}

func (p *Player) notify(n notice) {
	if n.start && p.opts.OnPlayStart != nil {
		p.opts.OnPlayStart()
	}
	if n.change && p.opts.OnChange != nil {
		p.opts.OnChange(n.snap)
	}
	if n.complete && p.opts.OnPlayComplete != nil {
		p.opts.OnPlayComplete()
	}
	if n.err != nil && p.opts.OnError != nil {
		p.opts.OnError(n.err)
	}
}

func (p *Player) usableLocked(op string) error {
	if p.closed {
		return newError(CodeClosed, op, TrackNone, ErrClosed)
	}
	if !p.enabledLocked() {
		return ErrNoSource
	}
	return nil
}

func (p *Player) firstTrackLocked() Track {
	if p.urls[TrackPrimary] != "" {
		return TrackPrimary
	}
	return TrackSecondary
}

func (p *Player) clampLocked(pos time.Duration) time.Duration {
	if pos < 0 {
		return 0
	}
	if p.session.Duration > 0 && pos > p.session.Duration {
		return p.session.Duration
	}
	return pos
}

func (p *Player) bothLocked() [2]Transport {
	return [2]Transport{p.transports[TrackPrimary], p.transports[TrackSecondary]}
}

func otherTrack(t Track) Track {
	if t == TrackPrimary {
		return TrackSecondary
	}
	return TrackPrimary
}
