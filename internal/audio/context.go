package audio

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
)

const (
	// go-mp3 always decodes to interleaved stereo.
	channels       = 2
	bytesPerSample = 2
	frameSize      = channels * bytesPerSample
)

// Config configures the audio output.
type Config struct {
	SampleRate int           // 44100 or 48000 Hz
	BufferSize time.Duration // device buffer, zero lets oto decide
}

// DefaultConfig returns the default output configuration.
func DefaultConfig() Config {
	return Config{
		SampleRate: 44100,
		BufferSize: 100 * time.Millisecond,
	}
}

func validateConfig(cfg Config) error {
	if cfg.SampleRate != 44100 && cfg.SampleRate != 48000 {
		return fmt.Errorf("sample rate must be 44100 or 48000 Hz, got %d", cfg.SampleRate)
	}
	if cfg.BufferSize < 0 {
		return errors.New("buffer size must not be negative")
	}
	return nil
}

// Context is the process-wide audio output. oto allows a single context
// per process, so NewContext hands out the same one on every call.
type Context struct {
	otoCtx *oto.Context
	cfg    Config
}

var (
	sharedOnce sync.Once
	shared     *Context
	sharedErr  error
)

// NewContext opens the audio device. Only the configuration of the first
// call is used.
func NewContext(cfg Config) (*Context, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("invalid audio config: %w", err)
	}

	sharedOnce.Do(func() {
		op := &oto.NewContextOptions{
			SampleRate:   cfg.SampleRate,
			ChannelCount: channels,
			Format:       oto.FormatSignedInt16LE,
			BufferSize:   cfg.BufferSize,
		}
		otoCtx, ready, err := oto.NewContext(op)
		if err != nil {
			sharedErr = fmt.Errorf("open audio device: %w", err)
			return
		}
		<-ready
		shared = &Context{otoCtx: otoCtx, cfg: cfg}
	})
	return shared, sharedErr
}

// SampleRate returns the output sample rate.
func (c *Context) SampleRate() int {
	return c.cfg.SampleRate
}

func (c *Context) newPlayer(r io.Reader) *oto.Player {
	return c.otoCtx.NewPlayer(r)
}
