package autodj

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/satindergrewal/rtradio/internal/style"
)

// SchedulerConfig holds auto-DJ parameters.
type SchedulerConfig struct {
	StartingGenre string
	Enabled       bool
	DwellMin      time.Duration // min time per genre
	DwellMax      time.Duration // max time per genre
	Tick          time.Duration // how often the dwell timer is checked
}

// DefaultSchedulerConfig returns the dwell used by the radio binary.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		StartingGenre: "synthwave",
		DwellMin:      5 * time.Minute,
		DwellMax:      15 * time.Minute,
		Tick:          time.Second,
	}
}

// SchedulerStatus is the current state of the auto-DJ.
type SchedulerStatus struct {
	CurrentGenre   string  `json:"genre"`
	AutoDJ         bool    `json:"auto_dj"`
	DwellRemaining float64 `json:"dwell_remaining"` // seconds
	Transitions    int     `json:"transitions"`
}

// Scheduler publishes smooth genre transitions along the mood graph.
type Scheduler struct {
	pub    style.Publisher
	cfg    SchedulerConfig
	logger *slog.Logger
	rng    *rand.Rand

	mu           sync.Mutex
	currentGenre string
	autoDJ       bool
	dwellEnd     time.Time
	transitions  int
}

// NewScheduler creates an auto-DJ scheduler. rng may be nil.
func NewScheduler(pub style.Publisher, cfg SchedulerConfig, rng *rand.Rand, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if cfg.Tick <= 0 {
		cfg.Tick = time.Second
	}
	s := &Scheduler{
		pub:          pub,
		cfg:          cfg,
		logger:       logger.With("component", "autodj"),
		rng:          rng,
		currentGenre: cfg.StartingGenre,
		autoDJ:       cfg.Enabled,
	}
	s.resetDwell()
	return s
}

// Status returns the current DJ state.
func (s *Scheduler) Status() SchedulerStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	remaining := time.Until(s.dwellEnd).Seconds()
	if remaining < 0 || !s.autoDJ {
		remaining = 0
	}
	return SchedulerStatus{
		CurrentGenre:   s.currentGenre,
		AutoDJ:         s.autoDJ,
		DwellRemaining: remaining,
		Transitions:    s.transitions,
	}
}

// SetGenre records a genre chosen by a listener and restarts the dwell, so
// the auto-DJ does not move away from it immediately.
func (s *Scheduler) SetGenre(genre string) {
	s.mu.Lock()
	s.currentGenre = genre
	s.resetDwell()
	s.mu.Unlock()
	s.logger.Info("genre set manually", "genre", genre)
}

// SetAutoDJ enables or disables automatic genre transitions.
func (s *Scheduler) SetAutoDJ(enabled bool) {
	s.mu.Lock()
	s.autoDJ = enabled
	if enabled {
		s.resetDwell()
	}
	s.mu.Unlock()
	s.logger.Info("auto-dj toggled", "enabled", enabled)
}

// Run checks the dwell timer until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	s.logger.Info("auto-dj started", "genre", s.Status().CurrentGenre, "enabled", s.Status().AutoDJ)
	ticker := time.NewTicker(s.cfg.Tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.step()
		}
	}
}

// step transitions if the auto-DJ is on and the dwell has expired.
func (s *Scheduler) step() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.autoDJ || time.Now().Before(s.dwellEnd) {
		return false
	}

	next := Next(s.currentGenre, s.rng.IntN)
	req := style.Request{Genre: next, Mode: style.Smooth}
	if err := s.pub.Publish(req); err != nil {
		s.logger.Warn("auto-dj publish failed", "genre", next, "err", err)
		s.resetDwell()
		return false
	}
	s.logger.Info("auto-dj transition", "from", s.currentGenre, "to", next)
	s.currentGenre = next
	s.transitions++
	s.resetDwell()
	return true
}

// resetDwell sets a new random dwell timer. Must be called with mu held.
func (s *Scheduler) resetDwell() {
	dwell := s.cfg.DwellMin
	if spread := s.cfg.DwellMax - s.cfg.DwellMin; spread > 0 {
		dwell += time.Duration(s.rng.Int64N(int64(spread)))
	}
	s.dwellEnd = time.Now().Add(dwell)
}
