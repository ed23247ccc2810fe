//go:build unix

package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"golang.org/x/sys/unix"
)

// Pipe writes frames to a named pipe. The FIFO is created if the path does
// not exist.
type Pipe struct {
	Path string

	// RetryInterval is how often Open checks for a reader.
	RetryInterval time.Duration

	Logger *slog.Logger
}

// NewPipe creates a named pipe transport.
func NewPipe(path string, logger *slog.Logger) *Pipe {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipe{Path: path, RetryInterval: 100 * time.Millisecond, Logger: logger}
}

// Open waits for a reader to open the FIFO and returns the write end.
// A plain open(2) would block without regard to ctx, so the FIFO is opened
// non-blocking and retried while no reader is present (ENXIO).
func (p *Pipe) Open(ctx context.Context) (io.WriteCloser, error) {
	if err := p.ensureFIFO(); err != nil {
		return nil, err
	}

	p.Logger.Info("waiting for reader on pipe", "path", p.Path)
	ticker := time.NewTicker(p.RetryInterval)
	defer ticker.Stop()
	for {
		f, err := os.OpenFile(p.Path, os.O_WRONLY|unix.O_NONBLOCK, 0)
		if err == nil {
			p.Logger.Info("pipe opened by a reader", "path", p.Path)
			return f, nil
		}
		if !errors.Is(err, unix.ENXIO) {
			return nil, fmt.Errorf("transport: open pipe %s: %w", p.Path, err)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (p *Pipe) ensureFIFO() error {
	info, err := os.Stat(p.Path)
	if errors.Is(err, fs.ErrNotExist) {
		if err := unix.Mkfifo(p.Path, 0o644); err != nil {
			return fmt.Errorf("transport: mkfifo %s: %w", p.Path, err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("transport: stat %s: %w", p.Path, err)
	}
	if info.Mode()&fs.ModeNamedPipe == 0 {
		return fmt.Errorf("transport: %s exists and is not a named pipe", p.Path)
	}
	return nil
}
