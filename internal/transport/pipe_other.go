//go:build !unix

package transport

import (
	"context"
	"io"
	"log/slog"
	"time"
)

// Pipe is unavailable without POSIX named pipes.
type Pipe struct {
	Path          string
	RetryInterval time.Duration
	Logger        *slog.Logger
}

// NewPipe creates a named pipe transport.
func NewPipe(path string, logger *slog.Logger) *Pipe {
	return &Pipe{Path: path, Logger: logger}
}

// Open always fails with ErrUnsupported.
func (p *Pipe) Open(ctx context.Context) (io.WriteCloser, error) {
	return nil, ErrUnsupported
}
