package player

import (
	"context"
	"time"
)

// EventType identifies a transport event.
type EventType int

const (
	// EventTimeUpdate reports the current playback position.
	EventTimeUpdate EventType = iota
	// EventMetadata reports the clip duration once it is known.
	EventMetadata
	// EventEnded reports that the clip played to its natural end.
	EventEnded
	// EventError reports a transport failure outside of a play request.
	EventError
)

// String returns the string representation of the event type.
func (t EventType) String() string {
	switch t {
	case EventTimeUpdate:
		return "timeupdate"
	case EventMetadata:
		return "loadedmetadata"
	case EventEnded:
		return "ended"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is emitted by a transport.
type Event struct {
	Type     EventType
	Position time.Duration // EventTimeUpdate
	Duration time.Duration // EventMetadata
	Err      error         // EventError
}

// Transport is one audio output able to play a single clip. The player
// holds two of them, one per track, and keeps both loaded for the whole
// session so that switching does not wait for a download.
type Transport interface {
	// Load replaces the clip. An empty URL unloads the transport.
	// Implementations may start fetching in the background.
	Load(url string)

	// Play starts or resumes playback at the current position. It
	// returns once the clip is audible or the request was rejected.
	Play(ctx context.Context) error

	// Pause stops playback and keeps the position.
	Pause()

	// Seek moves the playback position.
	Seek(pos time.Duration) error

	// SetVolume sets the output volume in [0,1].
	SetVolume(v float64)

	// SetMuted silences the output without changing the volume.
	SetMuted(muted bool)

	// SetHandler registers the receiver of transport events. Events
	// may be delivered from any goroutine, and from inside Play, but
	// never from inside the other methods.
	SetHandler(fn func(Event))

	// Close releases the transport.
	Close() error
}
