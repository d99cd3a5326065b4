package remote

import (
	"math"
	"time"

	"github.com/reminderdev/reminder/internal/player"
)

// Client to server op codes.
const (
	OpIdentify uint8 = 0
	OpLoad     uint8 = 1
	OpPlay     uint8 = 2
	OpPause    uint8 = 3
	OpToggle   uint8 = 4
	OpSkip     uint8 = 5
	OpSeek     uint8 = 6
	OpVolume   uint8 = 7
	OpMute     uint8 = 8
	OpPing     uint8 = 9

	// OpNone marks errors that answer no particular request.
	OpNone uint8 = 255
)

// Server to client op codes.
const (
	OpReady            uint8 = 0
	OpPlayerUpdate     uint8 = 1
	OpSequenceStart    uint8 = 2
	OpSequenceComplete uint8 = 3
	OpError            uint8 = 4
	OpPong             uint8 = 5
)

// Message is the envelope of every websocket message.
type Message struct {
	Op   uint8 `json:"op"`
	Data any   `json:"d,omitempty"`
}

type IdentifyData struct {
	ClientName string `json:"client_name"`
}

// LoadData replaces the sources. With Ref set and a resolver configured
// the URLs and label are looked up from the reference.
type LoadData struct {
	Ref          string `json:"ref,omitempty"`
	PrimaryURL   string `json:"primary_url,omitempty"`
	SecondaryURL string `json:"secondary_url,omitempty"`
	Label        string `json:"label,omitempty"`
}

type SkipData struct {
	Track string `json:"track"`
}

type SeekData struct {
	PositionMs int64 `json:"position_ms"`
}

type VolumeData struct {
	Volume float64 `json:"volume"`
}

type ReadyData struct {
	SessionID string `json:"session_id"`
}

type PlayerUpdateData struct {
	// Seq increases with every broadcast update.
	Seq          uint64  `json:"seq"`
	State        string  `json:"state"`
	Track        string  `json:"track"`
	Playing      bool    `json:"playing"`
	Pending      bool    `json:"pending,omitempty"`
	PositionMs   int64   `json:"position_ms"`
	DurationMs   int64   `json:"duration_ms"`
	Volume       float64 `json:"volume"`
	Muted        bool    `json:"muted"`
	Label        string  `json:"label,omitempty"`
	PrimaryURL   string  `json:"primary_url,omitempty"`
	SecondaryURL string  `json:"secondary_url,omitempty"`
}

type SequenceData struct {
	Label string `json:"label,omitempty"`
}

type ErrorData struct {
	Op      uint8  `json:"op"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

func playerUpdate(s player.Session, label string, primary, secondary player.Source) PlayerUpdateData {
	return PlayerUpdateData{
		State:        s.State().String(),
		Track:        s.Active.String(),
		Playing:      s.Playing,
		Pending:      s.Pending,
		PositionMs:   s.Position.Milliseconds(),
		DurationMs:   s.Duration.Milliseconds(),
		Volume:       s.Volume,
		Muted:        s.Muted,
		Label:        label,
		PrimaryURL:   primary.URL,
		SecondaryURL: secondary.URL,
	}
}

// maxPositionMs keeps the conversion to time.Duration from overflowing.
const maxPositionMs = math.MaxInt64 / int64(time.Millisecond)

func (d SeekData) position() time.Duration {
	ms := min(max(d.PositionMs, 0), maxPositionMs)
	return time.Duration(ms) * time.Millisecond
}
