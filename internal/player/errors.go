package player

import (
	"errors"
	"fmt"
)

var (
	// ErrNoSource is returned when neither track has a URL.
	ErrNoSource = errors.New("no audio source")

	// ErrTrackUnavailable is returned when an operation targets a track
	// whose URL is absent.
	ErrTrackUnavailable = errors.New("track has no audio source")

	// ErrNoActiveTrack is returned by operations that need a loaded track
	// while the player is idle.
	ErrNoActiveTrack = errors.New("no active track")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("player is closed")
)

// ErrorCode classifies player errors.
type ErrorCode string

const (
	// CodeRejected means the transport refused to start playback, for
	// example because the clip could not be fetched or the audio device
	// is unavailable.
	CodeRejected ErrorCode = "PLAY_REJECTED"

	// CodeTransport means a transport failed outside of a play request.
	CodeTransport ErrorCode = "TRANSPORT_FAILURE"

	// CodeSeek means the transport could not seek.
	CodeSeek ErrorCode = "SEEK_FAILURE"

	// CodeClosed means the player was closed.
	CodeClosed ErrorCode = "PLAYER_CLOSED"
)

// Error is a player error with the operation and track it relates to.
type Error struct {
	Code  ErrorCode
	Op    string
	Track Track
	Err   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Track == TrackNone {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Op, e.Err)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s %s: %v", e.Code, e.Op, e.Track, e.Err)
	}
	return fmt.Sprintf("%s: %s %s", e.Code, e.Op, e.Track)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// IsRecoverable reports whether the player stays usable after the error.
// Only a closed player is beyond recovery; for everything else the user
// can press play again.
func (e *Error) IsRecoverable() bool {
	return !errors.Is(e.Err, ErrClosed)
}

func newError(code ErrorCode, op string, track Track, err error) *Error {
	return &Error{Code: code, Op: op, Track: track, Err: err}
}
