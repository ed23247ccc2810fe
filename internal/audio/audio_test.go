package audio

import (
	"errors"
	"math"
	"testing"
	"time"
)

// --- Format ---

func TestDefaultFormat(t *testing.T) {
	f := DefaultFormat
	// 48kHz * 20ms = 960 samples per channel
	if got := f.FrameDuration(); got != 20*time.Millisecond {
		t.Errorf("FrameDuration = %v, want 20ms", got)
	}
	if f.FrameSamples() != FrameSize*Channels {
		t.Errorf("FrameSamples = %d, want %d", f.FrameSamples(), FrameSize*Channels)
	}
	if f.FrameBytes() != 3840 {
		t.Errorf("FrameBytes = %d, want 3840", f.FrameBytes())
	}
}

func TestFormatValidate(t *testing.T) {
	tests := []struct {
		f       Format
		wantErr bool
	}{
		{Format{48000, 2}, false},
		{Format{16000, 1}, false},
		{Format{0, 2}, true},
		{Format{48000, 0}, true},
	}
	for _, tt := range tests {
		if err := tt.f.Validate(); (err != nil) != tt.wantErr {
			t.Errorf("Validate(%+v) err = %v, wantErr %v", tt.f, err, tt.wantErr)
		}
	}
}

// --- Ramp ---

func TestRampComplementary(t *testing.T) {
	for _, n := range []int{2, 3, 10, 11, 4800} {
		r := Ramp(n)
		if r[0] != 0 || r[n-1] != 1 {
			t.Errorf("Ramp(%d) endpoints = %v, %v, want 0, 1", n, r[0], r[n-1])
		}
		for i := range r {
			if sum := r[i] + r[n-1-i]; sum != 1 {
				t.Fatalf("Ramp(%d): r[%d]+r[%d] = %v, want 1", n, i, n-1-i, sum)
			}
		}
	}
}

func TestRampMonotonic(t *testing.T) {
	r := Ramp(1000)
	for i := 1; i < len(r); i++ {
		if r[i] < r[i-1] {
			t.Fatalf("Ramp not monotonic at %d: %v < %v", i, r[i], r[i-1])
		}
	}
}

// --- Fade ---

func constSegment(frames, channels int, v float32) Segment {
	s := make([]float32, frames*channels)
	for i := range s {
		s[i] = v
	}
	return Segment{Samples: s, Channels: channels}
}

func TestFadeOutputLength(t *testing.T) {
	f := NewFade(100, 2)
	out, err := f.Process(constSegment(1000, 2, 0.5))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if out.Frames() != 900 {
		t.Errorf("output frames = %d, want 900", out.Frames())
	}
	if out.Channels != 2 {
		t.Errorf("output channels = %d, want 2", out.Channels)
	}
}

func TestFadeFirstSegmentFadesIn(t *testing.T) {
	f := NewFade(10, 1)
	out, err := f.Process(constSegment(50, 1, 1))
	if err != nil {
		t.Fatal(err)
	}
	if out.Samples[0] != 0 {
		t.Errorf("first sample = %v, want 0 (silence tail)", out.Samples[0])
	}
	if out.Samples[20] != 1 {
		t.Errorf("sample after fade = %v, want 1", out.Samples[20])
	}
}

func TestFadeConstantAmplitudeStaysInRange(t *testing.T) {
	for _, amp := range []float32{1, -1, 0.5} {
		f := NewFade(480, 2)
		for n := 0; n < 5; n++ {
			out, err := f.Process(constSegment(2000, 2, amp))
			if err != nil {
				t.Fatal(err)
			}
			for i, v := range out.Samples {
				if v > 1 || v < -1 {
					t.Fatalf("amp %v segment %d sample %d = %v, out of [-1,1]", amp, n, i, v)
				}
				// After the first segment the seam must reconstruct the input.
				if n > 0 && math.Abs(float64(v-amp)) > 1e-6 {
					t.Fatalf("amp %v segment %d sample %d = %v, want %v", amp, n, i, v, amp)
				}
			}
		}
	}
}

func TestFadeShortSegmentTailIsBlended(t *testing.T) {
	const size = 10
	f := NewFade(size, 1)
	// 15 frames: the held tail (frames 5..14) overlaps the blended head.
	if _, err := f.Process(constSegment(15, 1, 1)); err != nil {
		t.Fatal(err)
	}
	out, err := f.Process(constSegment(20, 1, 0))
	if err != nil {
		t.Fatal(err)
	}

	r := Ramp(size)
	want := r[5] * r[size-1]
	if d := math.Abs(float64(out.Samples[0] - want)); d > 1e-6 {
		t.Errorf("first sample = %v, want %v (blended head times fade-out)", out.Samples[0], want)
	}
	if want >= r[size-1] {
		t.Fatalf("test setup: blended value %v not below raw %v", want, r[size-1])
	}
}

func TestFadeResetSilencesTail(t *testing.T) {
	f := NewFade(10, 1)
	if _, err := f.Process(constSegment(50, 1, 1)); err != nil {
		t.Fatal(err)
	}
	f.Reset()
	out, err := f.Process(constSegment(50, 1, 0))
	if err != nil {
		t.Fatal(err)
	}
	for i, v := range out.Samples {
		if v != 0 {
			t.Fatalf("sample %d = %v after reset, want 0", i, v)
		}
	}
}

func TestFadeDoesNotModifyInput(t *testing.T) {
	f := NewFade(10, 1)
	seg := constSegment(50, 1, 1)
	if _, err := f.Process(seg); err != nil {
		t.Fatal(err)
	}
	for i, v := range seg.Samples {
		if v != 1 {
			t.Fatalf("input sample %d modified to %v", i, v)
		}
	}
}

func TestFadeErrors(t *testing.T) {
	f := NewFade(100, 2)
	if _, err := f.Process(constSegment(100, 2, 0)); !errors.Is(err, ErrFadeTooLong) {
		t.Errorf("segment == fade: err = %v, want ErrFadeTooLong", err)
	}
	if _, err := f.Process(constSegment(1000, 1, 0)); err == nil {
		t.Error("channel mismatch should fail")
	}
}

func TestFadeZeroSizePassThrough(t *testing.T) {
	f := NewFade(0, 1)
	seg := Segment{Samples: []float32{0.1, 0.2, 0.3}, Channels: 1}
	out, err := f.Process(seg)
	if err != nil {
		t.Fatal(err)
	}
	if len(out.Samples) != 3 || out.Samples[2] != 0.3 {
		t.Errorf("pass-through = %v", out.Samples)
	}
}

// --- Quantize ---

func TestQuantize(t *testing.T) {
	in := []float32{0, 1, -1, 0.5, 1.5, -2}
	want := []int16{0, 32767, -32767, 16383, 32767, -32767}
	got, peak := Quantize(in)
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Quantize[%d] = %d, want %d", i, got[i], want[i])
		}
	}
	if peak != 2 {
		t.Errorf("peak = %v, want 2", peak)
	}
}

// --- SamplesToBytes / round-trip ---

func TestSamplesToBytes(t *testing.T) {
	samples := []int16{0, 1, -1, 32767, -32768, 256}
	buf := SamplesToBytes(samples)
	if len(buf) != len(samples)*2 {
		t.Fatalf("SamplesToBytes length = %d, want %d", len(buf), len(samples)*2)
	}

	// 256 = 0x0100 -> bytes [0x00, 0x01]
	idx := 5 * 2
	if buf[idx] != 0x00 || buf[idx+1] != 0x01 {
		t.Errorf("Sample 256 encoded as [%02x, %02x], want [00, 01]", buf[idx], buf[idx+1])
	}
}

func TestSamplesBytesRoundTrip(t *testing.T) {
	original := []int16{0, 1, -1, 32767, -32768, 12345, -6789}
	recovered := BytesToSamples(SamplesToBytes(original))
	for i, v := range original {
		if recovered[i] != v {
			t.Errorf("Round-trip sample[%d]: got %d, want %d", i, recovered[i], v)
		}
	}
}
