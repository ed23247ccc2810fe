package audio

import (
	"errors"
	"fmt"
	"math"
	"sync"
)

// ErrFadeTooLong is returned when a segment is not longer than the fade.
var ErrFadeTooLong = errors.New("audio: segment not longer than crossfade")

// Fade overlap-adds the tail of the previous segment into the head of the
// next one. The last size frames of every segment are held back until the
// following call resolves them.
type Fade struct {
	size     int
	channels int
	ramp     []float32 // ascending, ramp[i] + ramp[size-1-i] == 1

	mu   sync.Mutex
	tail []float32 // interleaved, already multiplied by the descending ramp
}

// NewFade creates a crossfade of size frames per channel.
func NewFade(size, channels int) *Fade {
	if size < 0 {
		size = 0
	}
	return &Fade{
		size:     size,
		channels: channels,
		ramp:     Ramp(size),
		tail:     make([]float32, size*channels),
	}
}

// Ramp returns the sin² fade-in curve over n points, endpoint inclusive.
func Ramp(n int) []float32 {
	r := make([]float32, n)
	if n == 1 {
		r[0] = 1
		return r
	}
	// Mirror the first half so the two ramps sum to exactly one.
	for i := 0; i < (n+1)/2; i++ {
		x := float64(i) * (math.Pi / 2) / float64(n-1)
		s := math.Sin(x)
		r[i] = float32(s * s)
		r[n-1-i] = 1 - r[i]
	}
	return r
}

// Size returns the fade length in frames per channel.
func (f *Fade) Size() int {
	return f.size
}

// Reset silences the stored tail so the next segment starts from nothing.
func (f *Fade) Reset() {
	f.mu.Lock()
	clear(f.tail)
	f.mu.Unlock()
}

// Process blends seg with the stored tail and returns the playable part,
// which is seg minus its last Size() frames. seg is not modified.
func (f *Fade) Process(seg Segment) (Segment, error) {
	if seg.Channels != f.channels {
		return Segment{}, fmt.Errorf("audio: fade expects %d channels, got %d", f.channels, seg.Channels)
	}
	frames := seg.Frames()
	if f.size == 0 {
		return Segment{Samples: append([]float32(nil), seg.Samples[:frames*f.channels]...), Channels: f.channels}, nil
	}
	if frames <= f.size {
		return Segment{}, fmt.Errorf("%w: %d frames, fade %d", ErrFadeTooLong, frames, f.size)
	}

	ch := f.channels
	buf := make([]float32, frames*ch)
	copy(buf, seg.Samples)

	f.mu.Lock()
	defer f.mu.Unlock()

	for i := 0; i < f.size; i++ {
		w := f.ramp[i]
		for c := 0; c < ch; c++ {
			j := i*ch + c
			buf[j] = buf[j]*w + f.tail[j]
		}
	}

	// The tail overlaps the blended head only when the segment is shorter
	// than twice the fade; otherwise it is the untouched input.
	start := (frames - f.size) * ch
	next := make([]float32, f.size*ch)
	for i := 0; i < f.size; i++ {
		w := f.ramp[f.size-1-i]
		for c := 0; c < ch; c++ {
			next[i*ch+c] = buf[start+i*ch+c] * w
		}
	}
	f.tail = next

	return Segment{Samples: buf[:start:start], Channels: ch}, nil
}
