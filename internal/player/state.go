package player

import "time"

// Track identifies one of the two clips of a session.
type Track int

const (
	// TrackNone means no clip is loaded into the audible transport.
	TrackNone Track = iota
	// TrackPrimary is the original-language recitation (Arabic).
	TrackPrimary
	// TrackSecondary is the translated narration (English).
	TrackSecondary
)

// String returns the string representation of the track.
func (t Track) String() string {
	switch t {
	case TrackNone:
		return "none"
	case TrackPrimary:
		return "primary"
	case TrackSecondary:
		return "secondary"
	default:
		return "unknown"
	}
}

// Language returns the display name used by the player header.
func (t Track) Language() string {
	switch t {
	case TrackPrimary:
		return "Arabic"
	case TrackSecondary:
		return "English"
	default:
		return "Audio"
	}
}

// ParseTrack accepts the names used on the wire and in key bindings.
func ParseTrack(s string) (Track, bool) {
	switch s {
	case "primary", "arabic", "ar":
		return TrackPrimary, true
	case "secondary", "english", "en":
		return TrackSecondary, true
	default:
		return TrackNone, false
	}
}

// State is the player state derived from the active track and transport.
type State int

const (
	StateIdle State = iota
	StatePlayingPrimary
	StatePausedPrimary
	StatePlayingSecondary
	StatePausedSecondary
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePlayingPrimary:
		return "playing-primary"
	case StatePausedPrimary:
		return "paused-primary"
	case StatePlayingSecondary:
		return "playing-secondary"
	case StatePausedSecondary:
		return "paused-secondary"
	default:
		return "unknown"
	}
}

// Track returns the track the state refers to.
func (s State) Track() Track {
	switch s {
	case StatePlayingPrimary, StatePausedPrimary:
		return TrackPrimary
	case StatePlayingSecondary, StatePausedSecondary:
		return TrackSecondary
	default:
		return TrackNone
	}
}

// IsPlaying reports whether the state has a running transport.
func (s State) IsPlaying() bool {
	return s == StatePlayingPrimary || s == StatePlayingSecondary
}

// stateOf maps an active track and a playing flag to a State.
func stateOf(t Track, playing bool) State {
	switch {
	case t == TrackPrimary && playing:
		return StatePlayingPrimary
	case t == TrackPrimary:
		return StatePausedPrimary
	case t == TrackSecondary && playing:
		return StatePlayingSecondary
	case t == TrackSecondary:
		return StatePausedSecondary
	default:
		return StateIdle
	}
}

// transitions lists the legal moves of the session state machine. Skip
// moves are only legal towards a track whose URL is present; that check
// happens in the player, not here.
var transitions = map[State][]State{
	StateIdle:             {StatePlayingPrimary, StatePlayingSecondary, StatePausedPrimary, StatePausedSecondary},
	StatePlayingPrimary:   {StatePausedPrimary, StatePlayingSecondary, StatePausedSecondary, StateIdle},
	StatePausedPrimary:    {StatePlayingPrimary, StatePlayingSecondary, StatePausedSecondary, StateIdle},
	StatePlayingSecondary: {StatePausedSecondary, StatePlayingPrimary, StatePausedPrimary, StateIdle},
	StatePausedSecondary:  {StatePlayingSecondary, StatePlayingPrimary, StatePausedPrimary, StateIdle},
}

// CanTransition reports whether moving from one state to another is legal.
// Staying in the same state is always legal.
func CanTransition(from, to State) bool {
	if from == to {
		return true
	}
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Session is a snapshot of the playback session.
type Session struct {
	Active   Track
	Playing  bool
	Position time.Duration
	Duration time.Duration
	Volume   float64
	Muted    bool

	// Pending is true while a play request has not resolved yet.
	Pending bool
}

// State returns the state machine state of the snapshot.
func (s Session) State() State {
	return stateOf(s.Active, s.Playing)
}

// Progress returns the playback progress of the active track in [0,1].
func (s Session) Progress() float64 {
	if s.Duration <= 0 {
		return 0
	}
	p := float64(s.Position) / float64(s.Duration)
	if p > 1 {
		return 1
	}
	return p
}

// Source is one clip of a session.
type Source struct {
	URL   string
	Track Track
}

// Present reports whether the source has a URL.
func (s Source) Present() bool {
	return s.URL != ""
}
