package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Genre != "synthwave" {
		t.Errorf("Genre = %q, want synthwave", cfg.Genre)
	}
	if cfg.GenreFile != "/tmp/genre_request.txt" {
		t.Errorf("GenreFile = %q, want default", cfg.GenreFile)
	}
	if cfg.PipePath != "/tmp/audio_pipe" {
		t.Errorf("PipePath = %q, want default", cfg.PipePath)
	}
	if cfg.Transport != TransportPipe {
		t.Errorf("Transport = %q, want pipe", cfg.Transport)
	}
	if cfg.Model != ModelSynth {
		t.Errorf("Model = %q, want synth", cfg.Model)
	}
	if cfg.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Port)
	}
	if cfg.QueueCapacity != 5 {
		t.Errorf("QueueCapacity = %d, want 5", cfg.QueueCapacity)
	}
	if cfg.PushTimeout != 5*time.Second {
		t.Errorf("PushTimeout = %v, want 5s", cfg.PushTimeout)
	}
	if cfg.PopTimeout != time.Second {
		t.Errorf("PopTimeout = %v, want 1s", cfg.PopTimeout)
	}
	if cfg.PollInterval != 500*time.Millisecond {
		t.Errorf("PollInterval = %v, want 500ms", cfg.PollInterval)
	}
	if cfg.JoinTimeout != 2*time.Second {
		t.Errorf("JoinTimeout = %v, want 2s", cfg.JoinTimeout)
	}
	if cfg.AutoDJ {
		t.Error("AutoDJ = true, want off by default")
	}
	if l, _ := cfg.Level(); l != slog.LevelInfo {
		t.Errorf("Level = %v, want info", l)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("RADIO_GENRE", "jazz")
	t.Setenv("RADIO_GENRE_FILE", "/run/genre")
	t.Setenv("RADIO_TRANSPORT", "webrtc")
	t.Setenv("RADIO_MODEL", "remote")
	t.Setenv("RADIO_MODEL_URL", "http://model:9000")
	t.Setenv("RADIO_MODEL_KEY", "test-key-123")
	t.Setenv("RADIO_PORT", "3000")
	t.Setenv("RADIO_QUEUE_CAPACITY", "8")
	t.Setenv("RADIO_POLL_INTERVAL", "250ms")
	t.Setenv("RADIO_AUTODJ", "true")
	t.Setenv("RADIO_DWELL_MIN", "2m")
	t.Setenv("RADIO_DWELL_MAX", "10m")
	t.Setenv("RADIO_LOG_LEVEL", "debug")

	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Genre != "jazz" {
		t.Errorf("Genre = %q, want jazz", cfg.Genre)
	}
	if cfg.GenreFile != "/run/genre" {
		t.Errorf("GenreFile = %q, want env override", cfg.GenreFile)
	}
	if cfg.Transport != TransportWebRTC {
		t.Errorf("Transport = %q, want webrtc", cfg.Transport)
	}
	if cfg.Model != ModelRemote || cfg.ModelURL != "http://model:9000" || cfg.ModelKey != "test-key-123" {
		t.Errorf("model = %q %q %q, want env overrides", cfg.Model, cfg.ModelURL, cfg.ModelKey)
	}
	if cfg.Port != 3000 {
		t.Errorf("Port = %d, want 3000", cfg.Port)
	}
	if cfg.QueueCapacity != 8 {
		t.Errorf("QueueCapacity = %d, want 8", cfg.QueueCapacity)
	}
	if cfg.PollInterval != 250*time.Millisecond {
		t.Errorf("PollInterval = %v, want 250ms", cfg.PollInterval)
	}
	if !cfg.AutoDJ {
		t.Error("AutoDJ = false, want env override")
	}
	if cfg.DwellMin != 2*time.Minute || cfg.DwellMax != 10*time.Minute {
		t.Errorf("dwell = %v..%v, want 2m..10m", cfg.DwellMin, cfg.DwellMax)
	}
	if l, _ := cfg.Level(); l != slog.LevelDebug {
		t.Errorf("Level = %v, want debug", l)
	}
}

func TestFlagsOverrideEnv(t *testing.T) {
	t.Setenv("RADIO_GENRE", "jazz")
	cfg, err := Load([]string{"-genre", "ambient"})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Genre != "ambient" {
		t.Errorf("Genre = %q, want flag value", cfg.Genre)
	}
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "radio.conf")
	content := "genre disco funk\nqueue-capacity 3\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load([]string{"-config", path})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Genre != "disco funk" {
		t.Errorf("Genre = %q, want 'disco funk'", cfg.Genre)
	}
	if cfg.QueueCapacity != 3 {
		t.Errorf("QueueCapacity = %d, want 3", cfg.QueueCapacity)
	}
}

func TestEnvIntInvalid(t *testing.T) {
	t.Setenv("RADIO_PORT", "not-a-number")
	if _, err := Load(nil); err == nil {
		t.Error("Load accepted a non-numeric port")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"transport", []string{"-transport", "carrier-pigeon"}, "unknown transport"},
		{"model", []string{"-model", "gpt"}, "unknown model"},
		{"capacity", []string{"-queue-capacity", "0"}, "queue capacity"},
		{"port", []string{"-port", "70000"}, "port"},
		{"dwell", []string{"-dwell-min", "10m", "-dwell-max", "1m"}, "dwell"},
		{"log level", []string{"-log-level", "loud"}, "log level"},
		{"genre", []string{"-genre", ""}, "genre is required"},
		{"poll interval", []string{"-poll-interval=0"}, "poll interval"},
		{"join timeout", []string{"-join-timeout=-1s"}, "join timeout"},
		{"push timeout", []string{"-push-timeout=0"}, "push timeout"},
		{"pop timeout", []string{"-pop-timeout=-5ms"}, "pop timeout"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(tt.args)
			if err == nil {
				t.Fatal("Load succeeded")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestDerivedConfigs(t *testing.T) {
	cfg, err := Load([]string{"-genre", "rock", "-autodj", "-opus-bitrate", "96000"})
	if err != nil {
		t.Fatal(err)
	}
	if p := cfg.Pipeline(); p.Genre != "rock" || p.QueueCapacity != 5 {
		t.Errorf("Pipeline = %+v", p)
	}
	if s := cfg.Scheduler(); s.StartingGenre != "rock" || !s.Enabled {
		t.Errorf("Scheduler = %+v", s)
	}
	if cfg.OpusBitrate != 96000 || !cfg.OpusFEC {
		t.Errorf("opus = %d fec %v", cfg.OpusBitrate, cfg.OpusFEC)
	}
}
