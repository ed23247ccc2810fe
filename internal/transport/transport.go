// Package transport opens the byte stream that PCM frames are written to.
package transport

import (
	"context"
	"errors"
	"io"
)

// ErrUnsupported is returned where a transport is unavailable on this platform.
var ErrUnsupported = errors.New("transport: unsupported on this platform")

// Transport opens a writer for PCM frames. Open blocks until a reader is
// attached on the other end or ctx is done.
type Transport interface {
	Open(ctx context.Context) (io.WriteCloser, error)
}

// Func adapts a function to Transport.
type Func func(ctx context.Context) (io.WriteCloser, error)

// Open implements Transport.
func (f Func) Open(ctx context.Context) (io.WriteCloser, error) {
	return f(ctx)
}
