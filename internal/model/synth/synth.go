// Package synth is a small deterministic stand-in for the generative model.
// Each style name hashes to a key, a chord quality and a tremolo rate; each
// segment plays one chord of a four-chord progression picked by the seed.
package synth

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"

	"github.com/satindergrewal/rtradio/internal/audio"
	"github.com/satindergrewal/rtradio/internal/model"
)

const embeddingSize = 8

// DefaultConfig mirrors the real-time model: 48kHz stereo, 2s chunks,
// 40ms crossfade.
var DefaultConfig = model.Config{
	SampleRate:      audio.SampleRate,
	Channels:        audio.Channels,
	CrossfadeLength: 0.04,
	ChunkLength:     2.0,
}

// progression holds semitone offsets of I-vi-IV-V.
var progression = [4]float64{0, 9, 5, 7}

// State carries oscillator phases across segments.
type State struct {
	Phases [3]float64
}

// Model synthesizes chords from a style embedding.
type Model struct {
	cfg model.Config
}

// New creates a synthesizer. A zero config uses DefaultConfig.
func New(cfg model.Config) *Model {
	if cfg == (model.Config{}) {
		cfg = DefaultConfig
	}
	return &Model{cfg: cfg}
}

// Config implements model.Model.
func (m *Model) Config() model.Config {
	return m.cfg
}

// EmbedStyle hashes the style name into a vector in [0, 1).
func (m *Model) EmbedStyle(ctx context.Context, name string) (model.Embedding, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if name == "" {
		return nil, fmt.Errorf("synth: empty style")
	}
	emb := make(model.Embedding, embeddingSize)
	h := fnv.New64a()
	for i := range emb {
		fmt.Fprintf(h, "%s/%d", name, i)
		emb[i] = float32(h.Sum64()%10000) / 10000
	}
	return emb, nil
}

// Generate implements model.Model.
func (m *Model) Generate(ctx context.Context, state model.State, style model.Embedding, seed int) (audio.Segment, model.State, error) {
	if err := ctx.Err(); err != nil {
		return audio.Segment{}, nil, err
	}
	if len(style) < 3 {
		return audio.Segment{}, nil, fmt.Errorf("synth: embedding too short (%d)", len(style))
	}

	var st State
	if s, ok := state.(State); ok {
		st = s
	}

	root := 45 + math.Floor(float64(style[0])*12) // A2..G#3
	third := 4.0
	if style[1] < 0.5 {
		third = 3
	}
	tremolo := 0.5 + float64(style[2])*4 // Hz

	degree := progression[((seed%4)+4)%4]
	notes := [3]float64{root + degree, root + degree + third, root + degree + 7}
	var freqs [3]float64
	for i, n := range notes {
		freqs[i] = 440 * math.Pow(2, (n-69)/12)
	}
	pans := [3]float64{0.5, 0.25, 0.75}

	rate := float64(m.cfg.SampleRate)
	frames := m.cfg.ChunkFrames()
	ch := m.cfg.Channels
	out := make([]float32, frames*ch)
	for i := 0; i < frames; i++ {
		t := float64(i) / rate
		env := 0.8 + 0.2*math.Sin(2*math.Pi*tremolo*t)
		var l, r float64
		for p := range freqs {
			v := 0.2 * env * math.Sin(st.Phases[p])
			l += v * (1 - pans[p])
			r += v * pans[p]
			st.Phases[p] += 2 * math.Pi * freqs[p] / rate
		}
		if ch == 1 {
			out[i] = float32(l + r)
			continue
		}
		out[i*ch] = float32(l)
		out[i*ch+1] = float32(r)
		for c := 2; c < ch; c++ {
			out[i*ch+c] = float32((l + r) / 2)
		}
	}
	for p := range st.Phases {
		st.Phases[p] = math.Mod(st.Phases[p], 2*math.Pi)
	}

	return audio.Segment{Samples: out, Channels: ch}, st, nil
}
