package audio

import (
	"fmt"
	"math"
	"time"
)

const (
	SampleRate = 48000
	Channels   = 2
	BitDepth   = 16
	FrameSize  = 960 // samples per channel per frame (20ms at 48kHz)
)

// Format describes the PCM layout of a session. It is fixed for the lifetime
// of a pipeline and must match what the consumer expects out-of-band.
type Format struct {
	SampleRate int
	Channels   int
}

// DefaultFormat is 48kHz stereo, what the WebRTC consumer expects.
var DefaultFormat = Format{SampleRate: SampleRate, Channels: Channels}

// Validate reports whether the format is usable.
func (f Format) Validate() error {
	if f.SampleRate <= 0 {
		return fmt.Errorf("audio: invalid sample rate %d", f.SampleRate)
	}
	if f.Channels <= 0 {
		return fmt.Errorf("audio: invalid channel count %d", f.Channels)
	}
	return nil
}

// FrameSamples returns total interleaved samples per frame.
func (f Format) FrameSamples() int {
	return FrameSize * f.Channels
}

// FrameBytes returns bytes per frame (int16 = 2 bytes).
func (f Format) FrameBytes() int {
	return f.FrameSamples() * BitDepth / 8
}

// FrameDuration returns the playback duration of one frame.
func (f Format) FrameDuration() time.Duration {
	return time.Duration(FrameSize) * time.Second / time.Duration(f.SampleRate)
}

// SamplesIn returns the number of samples per channel in the given seconds.
func (f Format) SamplesIn(seconds float64) int {
	return int(math.Round(seconds * float64(f.SampleRate)))
}

// Segment is one block of generated float audio, interleaved by channel.
type Segment struct {
	Samples  []float32
	Channels int
}

// Frames returns the number of samples per channel.
func (s Segment) Frames() int {
	if s.Channels <= 0 {
		return 0
	}
	return len(s.Samples) / s.Channels
}
