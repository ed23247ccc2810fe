// Package config binds the radio's runtime configuration to command-line
// flags, RADIO_* environment variables and an optional plain config file.
package config

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"time"

	"github.com/peterbourgon/ff/v3"

	"github.com/satindergrewal/rtradio/internal/autodj"
	"github.com/satindergrewal/rtradio/internal/pipeline"
)

// EnvPrefix is prepended to flag names to form environment variables, so
// -genre-file is also RADIO_GENRE_FILE.
const EnvPrefix = "RADIO"

// Transports and models selectable at startup.
const (
	TransportPipe   = "pipe"
	TransportWebRTC = "webrtc"

	ModelSynth  = "synth"
	ModelRemote = "remote"
)

// Config holds all runtime configuration.
type Config struct {
	// Generation
	Genre     string
	GenreFile string
	Model     string
	ModelURL  string
	ModelKey  string
	ModelWait time.Duration // how long to wait for a remote model to become healthy

	// Output
	Transport   string
	PipePath    string
	Port        int
	OpusBitrate int
	OpusFEC     bool

	// Pipeline tuning
	QueueCapacity   int
	PushTimeout     time.Duration
	PopTimeout      time.Duration
	QueueRetryPause time.Duration
	PollInterval    time.Duration
	JoinTimeout     time.Duration

	// Auto-DJ
	AutoDJ   bool
	DwellMin time.Duration
	DwellMax time.Duration

	LogLevel string
}

// Register binds every setting to a flag in fs, with defaults.
func Register(fs *flag.FlagSet) *Config {
	cfg := &Config{}
	pd := pipeline.DefaultConfig()
	dj := autodj.DefaultSchedulerConfig()

	fs.StringVar(&cfg.Genre, "genre", pd.Genre, "initial genre")
	fs.StringVar(&cfg.GenreFile, "genre-file", "/tmp/genre_request.txt", "file polled for genre requests")
	fs.StringVar(&cfg.Model, "model", ModelSynth, "generative model: synth or remote")
	fs.StringVar(&cfg.ModelURL, "model-url", "http://localhost:8000", "remote model server URL")
	fs.StringVar(&cfg.ModelKey, "model-key", "", "remote model API key (optional)")
	fs.DurationVar(&cfg.ModelWait, "model-wait", 5*time.Minute, "max wait for the remote model to become healthy")

	fs.StringVar(&cfg.Transport, "transport", TransportPipe, "frame transport: pipe or webrtc")
	fs.StringVar(&cfg.PipePath, "pipe", "/tmp/audio_pipe", "named pipe frames are written to")
	fs.IntVar(&cfg.Port, "port", 8080, "HTTP control and streaming port")
	fs.IntVar(&cfg.OpusBitrate, "opus-bitrate", 128000, "Opus bitrate for WebRTC listeners")
	fs.BoolVar(&cfg.OpusFEC, "opus-fec", true, "Opus in-band forward error correction")

	fs.IntVar(&cfg.QueueCapacity, "queue-capacity", pd.QueueCapacity, "segments buffered ahead of the writer")
	fs.DurationVar(&cfg.PushTimeout, "push-timeout", pd.PushTimeout, "generator wait on a full queue")
	fs.DurationVar(&cfg.PopTimeout, "pop-timeout", pd.PopTimeout, "writer wait on an empty queue")
	fs.DurationVar(&cfg.QueueRetryPause, "queue-retry-pause", pd.QueueRetryPause, "generator pause after a full queue")
	fs.DurationVar(&cfg.PollInterval, "poll-interval", pd.PollInterval, "genre file polling interval")
	fs.DurationVar(&cfg.JoinTimeout, "join-timeout", pd.JoinTimeout, "per-worker wait on shutdown")

	fs.BoolVar(&cfg.AutoDJ, "autodj", false, "walk related genres automatically")
	fs.DurationVar(&cfg.DwellMin, "dwell-min", dj.DwellMin, "min time per genre in auto-DJ mode")
	fs.DurationVar(&cfg.DwellMax, "dwell-max", dj.DwellMax, "max time per genre in auto-DJ mode")

	fs.StringVar(&cfg.LogLevel, "log-level", "info", "debug, info, warn or error")
	return cfg
}

// Options returns the ff options shared by every command.
func Options() []ff.Option {
	return []ff.Option{
		ff.WithConfigFileFlag("config"),
		ff.WithConfigFileParser(ff.PlainParser),
		ff.WithEnvVarPrefix(EnvPrefix),
	}
}

// NewFlagSet returns a flag set carrying every setting plus the -config
// flag that Options reads.
func NewFlagSet(name string, handling flag.ErrorHandling) (*flag.FlagSet, *Config) {
	fs := flag.NewFlagSet(name, handling)
	_ = fs.String("config", "", "config file (optional)")
	return fs, Register(fs)
}

// Load parses args, then the environment, then the config file.
func Load(args []string) (*Config, error) {
	fs, cfg := NewFlagSet("radio", flag.ContinueOnError)
	if err := ff.Parse(fs, args, Options()...); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks settings that flag parsing cannot.
func (c *Config) Validate() error {
	var errs []error
	switch c.Transport {
	case TransportPipe, TransportWebRTC:
	default:
		errs = append(errs, fmt.Errorf("unknown transport %q", c.Transport))
	}
	switch c.Model {
	case ModelSynth, ModelRemote:
	default:
		errs = append(errs, fmt.Errorf("unknown model %q", c.Model))
	}
	if c.Genre == "" {
		errs = append(errs, errors.New("genre is required"))
	}
	if c.QueueCapacity < 1 {
		errs = append(errs, fmt.Errorf("queue capacity %d < 1", c.QueueCapacity))
	}
	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	for _, d := range []struct {
		name string
		v    time.Duration
	}{
		{"poll interval", c.PollInterval},
		{"push timeout", c.PushTimeout},
		{"pop timeout", c.PopTimeout},
		{"join timeout", c.JoinTimeout},
	} {
		if d.v <= 0 {
			errs = append(errs, fmt.Errorf("%s %v must be positive", d.name, d.v))
		}
	}
	if c.DwellMax < c.DwellMin {
		errs = append(errs, fmt.Errorf("dwell max %v < min %v", c.DwellMax, c.DwellMin))
	}
	if _, err := c.Level(); err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// Level parses LogLevel.
func (c *Config) Level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("log level: %w", err)
	}
	return l, nil
}

// Pipeline returns the pipeline tuning.
func (c *Config) Pipeline() pipeline.Config {
	return pipeline.Config{
		Genre:           c.Genre,
		QueueCapacity:   c.QueueCapacity,
		PushTimeout:     c.PushTimeout,
		PopTimeout:      c.PopTimeout,
		QueueRetryPause: c.QueueRetryPause,
		PollInterval:    c.PollInterval,
		JoinTimeout:     c.JoinTimeout,
	}
}

// Scheduler returns the auto-DJ settings.
func (c *Config) Scheduler() autodj.SchedulerConfig {
	dj := autodj.DefaultSchedulerConfig()
	dj.StartingGenre = c.Genre
	dj.Enabled = c.AutoDJ
	dj.DwellMin = c.DwellMin
	dj.DwellMax = c.DwellMax
	return dj
}
