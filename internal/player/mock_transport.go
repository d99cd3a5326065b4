package player

import (
	"context"
	"errors"
	"sync"
	"time"
)

// MockTransport implements Transport for testing. It never produces sound;
// tests drive time, metadata and end-of-stream by hand.
type MockTransport struct {
	mu sync.Mutex

	url      string
	playing  bool
	position time.Duration
	duration time.Duration
	volume   float64
	muted    bool
	closed   bool

	handler func(Event)

	// Error injection
	playErr error
	seekErr error

	// gate, when set, holds Play until Release is called so tests can
	// interleave operations with a pending play request.
	gate chan struct{}

	history []string
}

// NewMockTransport creates a mock transport reporting the given clip
// duration on play. A zero duration behaves like a stream without
// metadata.
func NewMockTransport(duration time.Duration) *MockTransport {
	return &MockTransport{
		duration: duration,
		volume:   1,
	}
}

// Load replaces the clip.
func (m *MockTransport) Load(url string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.url = url
	m.playing = false
	m.position = 0
	m.record("load " + url)
}

// Play starts playback unless an error was injected.
func (m *MockTransport) Play(ctx context.Context) error {
	m.mu.Lock()
	m.record("play")
	gate := m.gate
	m.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return errors.New("transport closed")
	}
	if err := ctx.Err(); err != nil {
		m.mu.Unlock()
		return err
	}
	if m.playErr != nil {
		err := m.playErr
		m.mu.Unlock()
		return err
	}
	if m.url == "" {
		m.mu.Unlock()
		return errors.New("no source loaded")
	}
	m.playing = true
	duration := m.duration
	handler := m.handler
	m.mu.Unlock()

	if duration > 0 && handler != nil {
		handler(Event{Type: EventMetadata, Duration: duration})
	}
	return nil
}

// Pause stops playback and keeps the position.
func (m *MockTransport) Pause() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.playing = false
	m.record("pause")
}

// Seek moves the position.
func (m *MockTransport) Seek(pos time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.seekErr != nil {
		return m.seekErr
	}
	m.position = pos
	m.record("seek")
	return nil
}

// SetVolume stores the volume.
func (m *MockTransport) SetVolume(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.volume = v
}

// SetMuted stores the mute flag.
func (m *MockTransport) SetMuted(muted bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.muted = muted
}

// SetHandler registers the event receiver.
func (m *MockTransport) SetHandler(fn func(Event)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handler = fn
}

// Close marks the transport closed.
func (m *MockTransport) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.playing = false
	m.record("close")
	return nil
}

// SetPlayError makes subsequent Play calls fail with err.
func (m *MockTransport) SetPlayError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.playErr = err
}

// SetSeekError makes subsequent Seek calls fail with err.
func (m *MockTransport) SetSeekError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seekErr = err
}

// Hold makes subsequent Play calls block until Release.
func (m *MockTransport) Hold() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gate = make(chan struct{})
}

// Release unblocks every Play waiting since Hold.
func (m *MockTransport) Release() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gate != nil {
		close(m.gate)
		m.gate = nil
	}
}

// Advance moves the position forward and emits a time update.
func (m *MockTransport) Advance(d time.Duration) {
	m.mu.Lock()
	m.position += d
	pos := m.position
	handler := m.handler
	m.mu.Unlock()

	if handler != nil {
		handler(Event{Type: EventTimeUpdate, Position: pos})
	}
}

// Finish plays the clip to its natural end.
func (m *MockTransport) Finish() {
	m.mu.Lock()
	m.playing = false
	m.position = m.duration
	handler := m.handler
	m.mu.Unlock()

	if handler != nil {
		handler(Event{Type: EventEnded})
	}
}

// Fail emits a transport error.
func (m *MockTransport) Fail(err error) {
	m.mu.Lock()
	m.playing = false
	handler := m.handler
	m.mu.Unlock()

	if handler != nil {
		handler(Event{Type: EventError, Err: err})
	}
}

// IsPlaying reports whether the transport is audible.
func (m *MockTransport) IsPlaying() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.playing
}

// Position returns the transport position.
func (m *MockTransport) Position() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.position
}

// Volume returns the last volume set.
func (m *MockTransport) Volume() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.volume
}

// Muted returns the last mute flag set.
func (m *MockTransport) Muted() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.muted
}

// URL returns the loaded clip URL.
func (m *MockTransport) URL() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.url
}

// History returns the calls made so far.
func (m *MockTransport) History() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.history))
	copy(out, m.history)
	return out
}

// Count returns how many times call was recorded.
func (m *MockTransport) Count(call string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, h := range m.history {
		if h == call {
			n++
		}
	}
	return n
}

func (m *MockTransport) record(call string) {
	m.history = append(m.history, call)
}
