// Package model defines the boundary to the generative music model.
//
// The model is external, slow, stateful and fallible. The pipeline only
// sees this interface, so it can run against a remote model server, the
// built-in synthesizer, or scripted fakes in tests.
package model

import (
	"context"

	"github.com/satindergrewal/rtradio/internal/audio"
)

// Embedding is a style vector conditioning generation.
type Embedding []float32

// State is the opaque continuity token threaded between Generate calls.
// A nil State starts a fresh piece.
type State any

// Config is the model's static audio configuration.
type Config struct {
	SampleRate      int     `json:"sample_rate"`
	Channels        int     `json:"channels"`
	CrossfadeLength float64 `json:"crossfade_length"` // seconds
	ChunkLength     float64 `json:"chunk_length"`     // seconds
}

// Format returns the PCM format the model produces.
func (c Config) Format() audio.Format {
	return audio.Format{SampleRate: c.SampleRate, Channels: c.Channels}
}

// CrossfadeFrames returns the crossfade length in samples per channel.
func (c Config) CrossfadeFrames() int {
	return c.Format().SamplesIn(c.CrossfadeLength)
}

// ChunkFrames returns the segment length in samples per channel.
func (c Config) ChunkFrames() int {
	return c.Format().SamplesIn(c.ChunkLength)
}

// Model generates audio one segment at a time.
type Model interface {
	Config() Config
	EmbedStyle(ctx context.Context, name string) (Embedding, error)
	Generate(ctx context.Context, state State, style Embedding, seed int) (audio.Segment, State, error)
}
