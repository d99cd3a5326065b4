package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/hajimehoshi/go-mp3"
)

// ErrEmptyClip is returned when a clip decodes to no samples.
var ErrEmptyClip = errors.New("clip has no audio")

// Clip is decoded PCM ready for the output: 16-bit little-endian
// interleaved stereo.
type Clip struct {
	PCM        []byte
	SampleRate int
}

// Duration returns the playing time of the clip.
func (c *Clip) Duration() time.Duration {
	return c.durationOf(int64(len(c.PCM)))
}

func (c *Clip) durationOf(n int64) time.Duration {
	frames := n / frameSize
	return time.Duration(frames) * time.Second / time.Duration(c.SampleRate)
}

// offsetOf returns the frame-aligned byte offset of pos.
func (c *Clip) offsetOf(pos time.Duration) int64 {
	if pos <= 0 {
		return 0
	}
	frames := int64(pos) * int64(c.SampleRate) / int64(time.Second)
	off := frames * frameSize
	if off > int64(len(c.PCM)) {
		off = int64(len(c.PCM)) / frameSize * frameSize
	}
	return off
}

// Decode decodes MP3 data and resamples it to sampleRate when the clip was
// recorded at another rate.
func Decode(data []byte, sampleRate int) (*Clip, error) {
	dec, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create mp3 decoder: %w", err)
	}

	pcm, err := io.ReadAll(dec)
	if err != nil {
		return nil, fmt.Errorf("decode mp3: %w", err)
	}
	pcm = pcm[:len(pcm)/frameSize*frameSize]
	if len(pcm) == 0 {
		return nil, ErrEmptyClip
	}

	if src := dec.SampleRate(); src != sampleRate {
		pcm = resampleLinear(pcm, src, sampleRate)
	}
	return &Clip{PCM: pcm, SampleRate: sampleRate}, nil
}

// resampleLinear converts interleaved stereo PCM between sample rates by
// linear interpolation.
func resampleLinear(pcm []byte, from, to int) []byte {
	inFrames := len(pcm) / frameSize
	if inFrames == 0 || from == to {
		return pcm
	}
	outFrames := int(int64(inFrames) * int64(to) / int64(from))
	out := make([]byte, outFrames*frameSize)
	ratio := float64(from) / float64(to)

	sample := func(frame, ch int) float64 {
		i := frame*frameSize + ch*bytesPerSample
		return float64(int16(binary.LittleEndian.Uint16(pcm[i:])))
	}

	for i := 0; i < outFrames; i++ {
		pos := float64(i) * ratio
		idx := int(pos)
		frac := pos - float64(idx)
		next := idx + 1
		if next >= inFrames {
			next = inFrames - 1
		}
		if idx >= inFrames {
			idx = inFrames - 1
		}

		for ch := 0; ch < channels; ch++ {
			s0, s1 := sample(idx, ch), sample(next, ch)
			v := int16(s0 + frac*(s1-s0))
			binary.LittleEndian.PutUint16(out[i*frameSize+ch*bytesPerSample:], uint16(v))
		}
	}
	return out
}

// pcmReader is the source handed to oto. oto reads it from its own
// goroutine while the transport asks for the offset, so access is locked.
type pcmReader struct {
	mu sync.Mutex
	r  *bytes.Reader
}

func newPCMReader(pcm []byte) *pcmReader {
	return &pcmReader{r: bytes.NewReader(pcm)}
}

func (p *pcmReader) Read(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.r.Read(b)
}

func (p *pcmReader) Seek(offset int64, whence int) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.r.Seek(offset, whence)
}

// offset returns how many bytes have been handed out so far.
func (p *pcmReader) offset() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.r.Size() - int64(p.r.Len())
}

// drained reports whether every byte has been read.
func (p *pcmReader) drained() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.r.Len() == 0
}
