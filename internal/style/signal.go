package style

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Signal is an externally controlled source of style requests. Poll returns
// ok=false when nothing new has arrived since the previous call.
type Signal interface {
	Poll(ctx context.Context) (req Request, ok bool, err error)
}

// Publisher accepts style requests on behalf of a Signal.
type Publisher interface {
	Publish(req Request) error
}

// FileSignal watches a text file for genre requests by polling its
// modification time. A missing file means no request.
type FileSignal struct {
	path string

	mu          sync.Mutex
	lastMod     time.Time
	lastSize    int64
	lastContent string
}

// NewFileSignal creates a signal backed by the file at path.
func NewFileSignal(path string) *FileSignal {
	return &FileSignal{path: path}
}

// Path returns the watched file.
func (s *FileSignal) Path() string {
	return s.path
}

// Poll implements Signal.
func (s *FileSignal) Poll(ctx context.Context) (Request, bool, error) {
	if err := ctx.Err(); err != nil {
		return Request{}, false, err
	}

	info, err := os.Stat(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return Request{}, false, nil
	}
	if err != nil {
		return Request{}, false, fmt.Errorf("style: stat %s: %w", s.path, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if info.ModTime().Equal(s.lastMod) && info.Size() == s.lastSize {
		return Request{}, false, nil
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return Request{}, false, fmt.Errorf("style: read %s: %w", s.path, err)
	}
	s.lastMod = info.ModTime()
	s.lastSize = info.Size()

	content := string(data)
	if content == s.lastContent {
		return Request{}, false, nil
	}
	s.lastContent = content
	return Parse(content)
}

// Publish writes req to the file atomically.
func (s *FileSignal) Publish(req Request) error {
	if err := validate(req); err != nil {
		return err
	}
	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".genre-*")
	if err != nil {
		return fmt.Errorf("style: create temp: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(req.String()); err != nil {
		tmp.Close()
		return fmt.Errorf("style: write request: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("style: close temp: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("style: chmod: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("style: rename to %s: %w", s.path, err)
	}
	return nil
}

// MemorySignal is an in-process Signal. Only the latest published content
// is kept.
type MemorySignal struct {
	mu      sync.Mutex
	pending *string
}

// NewMemorySignal creates an empty in-process signal.
func NewMemorySignal() *MemorySignal {
	return &MemorySignal{}
}

// Set stores raw signal content, exactly as a file would hold it.
func (s *MemorySignal) Set(content string) {
	s.mu.Lock()
	s.pending = &content
	s.mu.Unlock()
}

// Publish implements Publisher.
func (s *MemorySignal) Publish(req Request) error {
	if err := validate(req); err != nil {
		return err
	}
	s.Set(req.String())
	return nil
}

// Poll implements Signal.
func (s *MemorySignal) Poll(ctx context.Context) (Request, bool, error) {
	if err := ctx.Err(); err != nil {
		return Request{}, false, err
	}
	s.mu.Lock()
	p := s.pending
	s.pending = nil
	s.mu.Unlock()
	if p == nil {
		return Request{}, false, nil
	}
	return Parse(*p)
}

func validate(req Request) error {
	_, ok, err := Parse(req.String())
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: empty genre", ErrMalformed)
	}
	return nil
}
