package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/reminderdev/reminder/internal/player"
)

var (
	// ErrNotLoaded is returned by Play when no clip was loaded.
	ErrNotLoaded = errors.New("no clip loaded")

	// ErrTransportClosed is returned after Close.
	ErrTransportClosed = errors.New("transport closed")

	// ErrClipChanged is returned by a Play that was overtaken by Load.
	ErrClipChanged = errors.New("clip changed while loading")
)

const defaultPollInterval = 250 * time.Millisecond

// output is the part of *oto.Player the transport drives.
type output interface {
	Play()
	Pause()
	IsPlaying() bool
	SetVolume(volume float64)
	BufferedSize() int
	Seek(offset int64, whence int) (int64, error)
}

// loadJob is a background fetch and decode of one clip.
type loadJob struct {
	done   chan struct{}
	cancel context.CancelFunc
	clip   *Clip
	err    error
}

// Transport plays one clip at a time on the shared audio context. It
// implements player.Transport.
type Transport struct {
	sampleRate   int
	fetch        func(ctx context.Context, src string) ([]byte, error)
	decode       func(data []byte, sampleRate int) (*Clip, error)
	newOutput    func(r io.ReadSeeker) output
	pollInterval time.Duration
	logger       *log.Logger

	mu      sync.Mutex
	url     string
	job     *loadJob
	clip    *Clip // keeps the PCM alive while oto reads it
	reader  *pcmReader
	out     output
	startAt int64 // offset requested before the output existed
	volume  float64
	muted   bool
	handler func(player.Event)
	stop    chan struct{} // closes the poll loop
	closed  bool
}

// NewTransport creates a transport on the shared audio context.
func NewTransport(ac *Context, fetcher *Fetcher, logger *log.Logger) *Transport {
	t := newTransport(ac.SampleRate(), fetcher.Fetch, logger)
	t.newOutput = func(r io.ReadSeeker) output { return ac.newPlayer(r) }
	return t
}

func newTransport(sampleRate int, fetch func(context.Context, string) ([]byte, error), logger *log.Logger) *Transport {
	if logger == nil {
		logger = log.Default()
	}
	return &Transport{
		sampleRate:   sampleRate,
		fetch:        fetch,
		decode:       Decode,
		pollInterval: defaultPollInterval,
		logger:       logger,
		volume:       1,
	}
}

// Load replaces the clip and starts fetching it in the background, so that
// both tracks of a verse are ready before they are played.
func (t *Transport) Load(url string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed || (url == t.url && t.job != nil) {
		return
	}

	t.resetLocked()
	t.url = url
	if url == "" {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	job := &loadJob{done: make(chan struct{}), cancel: cancel}
	t.job = job
	go t.runJob(ctx, job, url)
}

func (t *Transport) runJob(ctx context.Context, job *loadJob, url string) {
	defer close(job.done)

	start := time.Now()
	data, err := t.fetch(ctx, url)
	if err != nil {
		job.err = err
		return
	}
	clip, err := t.decode(data, t.sampleRate)
	if err != nil {
		job.err = fmt.Errorf("decode %s: %w", url, err)
		return
	}
	job.clip = clip
	t.logger.Debug("clip ready", "url", url, "duration", clip.Duration(), "took", time.Since(start))
}

// Play waits for the clip to be ready and starts the output at the
// current position.
func (t *Transport) Play(ctx context.Context) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrTransportClosed
	}
	job := t.job
	t.mu.Unlock()

	if job == nil {
		return ErrNotLoaded
	}

	select {
	case <-job.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	if job.err != nil {
		return job.err
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrTransportClosed
	}
	if t.job != job {
		t.mu.Unlock()
		return ErrClipChanged
	}
	if err := ctx.Err(); err != nil {
		// The request was superseded while the clip was loading.
		t.mu.Unlock()
		return err
	}

	if t.out == nil {
		t.clip = job.clip
		t.reader = newPCMReader(job.clip.PCM)
		if t.startAt > 0 {
			if _, err := t.reader.Seek(t.startAt, io.SeekStart); err != nil {
				t.mu.Unlock()
				return fmt.Errorf("seek clip: %w", err)
			}
		}
		t.out = t.newOutput(t.reader)
	}
	t.out.SetVolume(t.effectiveVolumeLocked())
	t.out.Play()

	if t.stop == nil {
		t.stop = make(chan struct{})
		go t.poll(t.stop)
	}
	handler := t.handler
	duration := t.clip.Duration()
	t.mu.Unlock()

	if handler != nil {
		handler(player.Event{Type: player.EventMetadata, Duration: duration})
	}
	return nil
}

// Pause stops the output and keeps the position.
func (t *Transport) Pause() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.out != nil {
		t.out.Pause()
	}
	t.stopPollLocked()
}

// Seek moves to pos, rounded down to a whole frame.
func (t *Transport) Seek(pos time.Duration) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return ErrTransportClosed
	}

	if t.clip == nil {
		c := Clip{SampleRate: t.sampleRate}
		frames := int64(pos) * int64(c.SampleRate) / int64(time.Second)
		if frames < 0 {
			frames = 0
		}
		t.startAt = frames * frameSize
		return nil
	}

	off := t.clip.offsetOf(pos)
	if _, err := t.out.Seek(off, io.SeekStart); err != nil {
		return fmt.Errorf("seek clip: %w", err)
	}
	return nil
}

// SetVolume sets the output volume in [0,1].
func (t *Transport) SetVolume(v float64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.volume = v
	if t.out != nil {
		t.out.SetVolume(t.effectiveVolumeLocked())
	}
}

// SetMuted silences the output and keeps the volume.
func (t *Transport) SetMuted(muted bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.muted = muted
	if t.out != nil {
		t.out.SetVolume(t.effectiveVolumeLocked())
	}
}

// SetHandler registers the event receiver.
func (t *Transport) SetHandler(fn func(player.Event)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handler = fn
}

// Position returns the audible position.
func (t *Transport) Position() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.positionLocked()
}

// Close stops the output and cancels any pending load.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	t.resetLocked()
	t.closed = true
	return nil
}

// poll reports the position while the clip plays and detects its end.
func (t *Transport) poll(stop chan struct{}) {
	ticker := time.NewTicker(t.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		t.mu.Lock()
		if t.stop != stop || t.out == nil {
			t.mu.Unlock()
			return
		}
		pos := t.positionLocked()
		ended := t.reader.drained() && t.out.BufferedSize() == 0 && !t.out.IsPlaying()
		if ended {
			t.stopPollLocked()
		}
		handler := t.handler
		t.mu.Unlock()

		if handler == nil {
			continue
		}
		handler(player.Event{Type: player.EventTimeUpdate, Position: pos})
		if ended {
			handler(player.Event{Type: player.EventEnded})
			return
		}
	}
}

func (t *Transport) positionLocked() time.Duration {
	if t.clip == nil {
		c := Clip{SampleRate: t.sampleRate}
		return c.durationOf(t.startAt)
	}
	played := t.reader.offset() - int64(t.out.BufferedSize())
	if played < 0 {
		played = 0
	}
	return t.clip.durationOf(played)
}

func (t *Transport) effectiveVolumeLocked() float64 {
	if t.muted {
		return 0
	}
	return t.volume
}

func (t *Transport) stopPollLocked() {
	if t.stop != nil {
		close(t.stop)
		t.stop = nil
	}
}

// resetLocked drops the current clip and output.
func (t *Transport) resetLocked() {
	t.stopPollLocked()
	if t.out != nil {
		t.out.Pause()
	}
	if t.job != nil {
		t.job.cancel()
	}
	t.job = nil
	t.out = nil
	t.reader = nil
	t.clip = nil
	t.startAt = 0
}
