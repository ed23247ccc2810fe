// Package pipeline turns a stream of generated audio segments into a
// continuous stream of fixed-size PCM frames.
//
// Three goroutines cooperate:
//
//	generator: model.Generate -> crossfade -> quantize -> Queue
//	writer:    Queue -> running buffer -> frames -> transport
//	monitor:   style.Signal -> re-embed -> drain Queue + clear buffer
//
// Any fatal error from the generator or writer cancels the shared context
// and stops the other two.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/satindergrewal/rtradio/internal/audio"
	"github.com/satindergrewal/rtradio/internal/model"
	"github.com/satindergrewal/rtradio/internal/style"
	"github.com/satindergrewal/rtradio/internal/transport"
)

var (
	// ErrJoinTimeout is returned by Stop when a worker was abandoned.
	ErrJoinTimeout = errors.New("pipeline: worker did not stop in time")
	// ErrStarted is returned when Start is called twice.
	ErrStarted = errors.New("pipeline: already started")
)

// Config holds pipeline tuning.
type Config struct {
	Genre           string        // initial style
	QueueCapacity   int           // segments buffered between generator and writer
	PushTimeout     time.Duration // bounded wait when the queue is full
	PopTimeout      time.Duration // bounded wait when the queue is empty
	QueueRetryPause time.Duration // generator pause after a full queue
	PollInterval    time.Duration // style signal polling
	JoinTimeout     time.Duration // per worker, on Stop
}

// DefaultConfig returns the tuning used by the radio binary.
func DefaultConfig() Config {
	return Config{
		Genre:           "synthwave",
		QueueCapacity:   5,
		PushTimeout:     5 * time.Second,
		PopTimeout:      time.Second,
		QueueRetryPause: 500 * time.Millisecond,
		PollInterval:    500 * time.Millisecond,
		JoinTimeout:     2 * time.Second,
	}
}

// Deps are the pipeline's external collaborators.
type Deps struct {
	Model     model.Model
	Signal    style.Signal
	Transport transport.Transport
	Logger    *slog.Logger
}

// WorkerState is the lifecycle of one worker goroutine.
type WorkerState int32

const (
	WorkerIdle WorkerState = iota
	WorkerRunning
	WorkerTerminated
)

func (s WorkerState) String() string {
	switch s {
	case WorkerRunning:
		return "running"
	case WorkerTerminated:
		return "terminated"
	}
	return "idle"
}

type worker struct {
	name  string
	state atomic.Int32
	done  chan struct{}
}

func newWorker(name string) *worker {
	return &worker{name: name, done: make(chan struct{})}
}

func (w *worker) State() WorkerState {
	return WorkerState(w.state.Load())
}

// Pipeline owns the queue, the running buffer and the three workers.
// Lifecycle: New -> Start -> Stop. A Pipeline cannot be restarted.
type Pipeline struct {
	cfg       Config
	format    audio.Format
	model     model.Model
	signal    style.Signal
	transport transport.Transport
	logger    *slog.Logger
	sessionID string

	queue *Queue
	style *styleState

	// bufMu guards the running buffer and makes a queue drain plus buffer
	// clear one atomic step as seen by the writer.
	bufMu  sync.Mutex
	buf    []int16
	bufOff int

	generator *worker
	writer    *worker
	monitor   *worker

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc

	segments atomic.Int64
	frames   atomic.Int64
	bytes    atomic.Int64
	switches atomic.Int64
}

// New validates the configuration against the model and embeds the
// initial style.
func New(ctx context.Context, cfg Config, deps Deps) (*Pipeline, error) {
	if deps.Model == nil || deps.Signal == nil || deps.Transport == nil {
		return nil, errors.New("pipeline: model, signal and transport are required")
	}
	if cfg.Genre == "" {
		return nil, errors.New("pipeline: initial genre is required")
	}
	if cfg.QueueCapacity < 1 {
		return nil, fmt.Errorf("pipeline: queue capacity %d < 1", cfg.QueueCapacity)
	}
	for _, d := range []struct {
		name string
		v    time.Duration
	}{
		{"poll interval", cfg.PollInterval},
		{"push timeout", cfg.PushTimeout},
		{"pop timeout", cfg.PopTimeout},
		{"join timeout", cfg.JoinTimeout},
	} {
		if d.v <= 0 {
			return nil, fmt.Errorf("pipeline: %s %v must be positive", d.name, d.v)
		}
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	mcfg := deps.Model.Config()
	format := mcfg.Format()
	if err := format.Validate(); err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	fadeFrames := mcfg.CrossfadeFrames()
	if fadeFrames >= mcfg.ChunkFrames() {
		return nil, fmt.Errorf("pipeline: crossfade %d frames must be shorter than chunk %d frames", fadeFrames, mcfg.ChunkFrames())
	}

	sessionID := uuid.NewString()
	logger = logger.With("session", sessionID)

	logger.Info("embedding initial style", "genre", cfg.Genre)
	emb, err := deps.Model.EmbedStyle(ctx, cfg.Genre)
	if err != nil {
		return nil, fmt.Errorf("pipeline: embed initial style %q: %w", cfg.Genre, err)
	}

	logger.Info("pipeline configured",
		"sample_rate", format.SampleRate,
		"channels", format.Channels,
		"frame_size", audio.FrameSize,
		"crossfade_frames", fadeFrames,
		"queue_capacity", cfg.QueueCapacity,
	)

	return &Pipeline{
		cfg:       cfg,
		format:    format,
		model:     deps.Model,
		signal:    deps.Signal,
		transport: deps.Transport,
		logger:    logger,
		sessionID: sessionID,
		queue:     NewQueue(cfg.QueueCapacity),
		style:     newStyleState(cfg.Genre, emb, audio.NewFade(fadeFrames, format.Channels)),
		generator: newWorker("generator"),
		writer:    newWorker("writer"),
		monitor:   newWorker("monitor"),
	}, nil
}

// Format returns the PCM format written to the transport.
func (p *Pipeline) Format() audio.Format {
	return p.format
}

// Start opens the transport, which blocks until a reader attaches, then
// runs the workers until ctx is done, Stop is called, or a worker fails.
// It returns the first fatal error, or nil after a requested stop.
func (p *Pipeline) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return ErrStarted
	}
	p.started = true
	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.mu.Unlock()
	defer cancel()

	out, err := p.transport.Open(runCtx)
	if err != nil {
		if runCtx.Err() != nil {
			return nil
		}
		return fmt.Errorf("pipeline: open transport: %w", err)
	}

	g, gctx := errgroup.WithContext(runCtx)
	p.launch(gctx, g, p.generator, p.runGenerator)
	p.launch(gctx, g, p.writer, func(ctx context.Context) error {
		return p.runWriter(ctx, out)
	})
	p.launch(gctx, g, p.monitor, p.runMonitor)
	p.logger.Info("music generator is running")

	<-gctx.Done()
	if err := p.Stop(); err != nil {
		if cause := context.Cause(gctx); !errors.Is(cause, context.Canceled) {
			return errors.Join(cause, err)
		}
		return err
	}
	return g.Wait()
}

func (p *Pipeline) launch(ctx context.Context, g *errgroup.Group, w *worker, run func(context.Context) error) {
	w.state.Store(int32(WorkerRunning))
	g.Go(func() error {
		defer close(w.done)
		defer w.state.Store(int32(WorkerTerminated))
		p.logger.Debug("worker started", "worker", w.name)
		err := run(ctx)
		if err != nil {
			p.logger.Error("worker failed", "worker", w.name, "err", err)
		} else {
			p.logger.Info("worker stopped", "worker", w.name)
		}
		return err
	})
}

// Stop cancels the workers and waits up to JoinTimeout for each. Workers
// that do not finish in time are abandoned and reported.
func (p *Pipeline) Stop() error {
	p.mu.Lock()
	cancel := p.cancel
	p.mu.Unlock()
	if cancel != nil {
		cancel()
	}

	var abandoned []string
	for _, w := range []*worker{p.writer, p.generator, p.monitor} {
		if w.State() == WorkerIdle {
			continue
		}
		timer := time.NewTimer(p.cfg.JoinTimeout)
		select {
		case <-w.done:
		case <-timer.C:
			p.logger.Warn("abandoning worker", "worker", w.name, "timeout", p.cfg.JoinTimeout)
			abandoned = append(abandoned, w.name)
		}
		timer.Stop()
	}
	if len(abandoned) > 0 {
		return fmt.Errorf("%w: %s", ErrJoinTimeout, strings.Join(abandoned, ", "))
	}
	return nil
}

// WorkerStates reports each worker's lifecycle state by name.
func (p *Pipeline) WorkerStates() map[string]WorkerState {
	return map[string]WorkerState{
		p.generator.name: p.generator.State(),
		p.writer.name:    p.writer.State(),
		p.monitor.name:   p.monitor.State(),
	}
}

// CurrentGenre returns the active genre.
func (p *Pipeline) CurrentGenre() string {
	genre, _, _ := p.style.current()
	return genre
}

// BufferedSamples returns the interleaved samples held in the running buffer.
func (p *Pipeline) BufferedSamples() int {
	p.bufMu.Lock()
	defer p.bufMu.Unlock()
	return len(p.buf) - p.bufOff
}

// QueueLen returns the number of segments waiting for the writer.
func (p *Pipeline) QueueLen() int {
	return p.queue.Len()
}

// Status is a point-in-time view of the pipeline.
type Status struct {
	SessionID       string            `json:"session_id"`
	Genre           string            `json:"genre"`
	Mode            string            `json:"mode"`
	Epoch           uint64            `json:"epoch"`
	Switches        int64             `json:"switches"`
	LastSwitch      time.Time         `json:"last_switch,omitzero"`
	Continuity      bool              `json:"continuity"`
	QueueLen        int               `json:"queue_len"`
	QueueCap        int               `json:"queue_cap"`
	BufferedSamples int               `json:"buffered_samples"`
	Segments        int64             `json:"segments"`
	Frames          int64             `json:"frames"`
	Bytes           int64             `json:"bytes"`
	Workers         map[string]string `json:"workers"`
}

// Status returns current pipeline counters.
func (p *Pipeline) Status() Status {
	genre, mode, last := p.style.current()
	workers := make(map[string]string, 3)
	for name, st := range p.WorkerStates() {
		workers[name] = st.String()
	}
	return Status{
		SessionID:       p.sessionID,
		Genre:           genre,
		Mode:            mode.String(),
		Epoch:           p.style.epoch.Load(),
		Switches:        p.switches.Load(),
		LastSwitch:      last,
		Continuity:      p.style.hasToken(),
		QueueLen:        p.queue.Len(),
		QueueCap:        p.queue.Cap(),
		BufferedSamples: p.BufferedSamples(),
		Segments:        p.segments.Load(),
		Frames:          p.frames.Load(),
		Bytes:           p.bytes.Load(),
		Workers:         workers,
	}
}
