package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/satindergrewal/rtradio/internal/audio"
)

var (
	// ErrPartialFrame is returned by a broadcast writer given a buffer that
	// is not a whole number of frames.
	ErrPartialFrame = errors.New("stream: write is not a whole number of frames")
	// ErrClosed is returned by writes after Close.
	ErrClosed = errors.New("stream: writer closed")
)

// Transport feeds pipeline frames into a Broadcaster. Open waits for the
// first listener; listeners may come and go afterwards without ending the
// stream.
type Transport struct {
	b      *Broadcaster
	format audio.Format
	logger *slog.Logger

	// Pace is the interval between frames. Zero disables pacing.
	Pace time.Duration
}

// NewTransport creates a broadcast transport paced at real time.
func NewTransport(b *Broadcaster, format audio.Format, logger *slog.Logger) *Transport {
	if logger == nil {
		logger = slog.Default()
	}
	return &Transport{b: b, format: format, logger: logger, Pace: format.FrameDuration()}
}

// Open implements transport.Transport.
func (t *Transport) Open(ctx context.Context) (io.WriteCloser, error) {
	t.logger.Info("waiting for a listener to connect")
	if err := t.b.WaitForListener(ctx); err != nil {
		return nil, err
	}
	t.logger.Info("listener connected", "listeners", t.b.ListenerCount())

	runCtx, cancel := context.WithCancel(ctx)
	source := make(chan []int16, listenerBuffer)
	w := &broadcastWriter{
		ctx:        runCtx,
		cancel:     cancel,
		source:     source,
		frameBytes: t.format.FrameBytes(),
		done:       make(chan struct{}),
	}
	if t.Pace > 0 {
		w.ticker = time.NewTicker(t.Pace)
	}
	go func() {
		defer close(w.done)
		t.b.Run(runCtx, source)
	}()
	return w, nil
}

type broadcastWriter struct {
	ctx        context.Context
	cancel     context.CancelFunc
	source     chan []int16
	ticker     *time.Ticker
	frameBytes int
	done       chan struct{}
	closeOnce  sync.Once
}

func (w *broadcastWriter) Write(p []byte) (int, error) {
	if w.ctx.Err() != nil {
		return 0, ErrClosed
	}
	if len(p)%w.frameBytes != 0 {
		return 0, fmt.Errorf("%w: %d bytes, frame is %d", ErrPartialFrame, len(p), w.frameBytes)
	}
	for off := 0; off < len(p); off += w.frameBytes {
		if w.ticker != nil {
			select {
			case <-w.ctx.Done():
				return off, ErrClosed
			case <-w.ticker.C:
			}
		}
		frame := audio.BytesToSamples(p[off : off+w.frameBytes])
		select {
		case <-w.ctx.Done():
			return off, ErrClosed
		case w.source <- frame:
		}
	}
	return len(p), nil
}

func (w *broadcastWriter) Close() error {
	w.closeOnce.Do(func() {
		w.cancel()
		if w.ticker != nil {
			w.ticker.Stop()
		}
		<-w.done
	})
	return nil
}
