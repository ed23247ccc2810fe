// Package style carries genre change requests from the outside world to
// the pipeline.
//
// A request is a bare genre name, optionally prefixed with "SMOOTH:" to ask
// for a transition that keeps generation continuity:
//
//	synthwave
//	SMOOTH:disco funk
package style

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// SmoothPrefix selects a smooth transition.
const SmoothPrefix = "SMOOTH:"

// MaxGenreLen bounds the genre name in bytes.
const MaxGenreLen = 128

// ErrMalformed is returned for content that cannot be a genre request.
var ErrMalformed = errors.New("style: malformed request")

// Mode controls what survives a style change.
type Mode int

const (
	// Hard discards generation state and crossfade history.
	Hard Mode = iota
	// Smooth keeps both, briefly blending the old texture into the new genre.
	Smooth
)

func (m Mode) String() string {
	if m == Smooth {
		return "smooth"
	}
	return "hard"
}

// Request asks the pipeline to switch genre.
type Request struct {
	Genre string
	Mode  Mode
}

// String renders the request in the signal grammar.
func (r Request) String() string {
	if r.Mode == Smooth {
		return SmoothPrefix + r.Genre
	}
	return r.Genre
}

// Parse reads a request from signal content. ok is false for empty content.
func Parse(content string) (req Request, ok bool, err error) {
	s := strings.TrimSpace(content)
	if s == "" {
		return Request{}, false, nil
	}
	if !utf8.ValidString(s) {
		return Request{}, false, fmt.Errorf("%w: invalid utf-8", ErrMalformed)
	}
	if rest, found := strings.CutPrefix(s, SmoothPrefix); found {
		req.Mode = Smooth
		s = strings.TrimSpace(rest)
	}
	if s == "" {
		return Request{}, false, fmt.Errorf("%w: empty genre", ErrMalformed)
	}
	if len(s) > MaxGenreLen {
		return Request{}, false, fmt.Errorf("%w: genre longer than %d bytes", ErrMalformed, MaxGenreLen)
	}
	if strings.IndexFunc(s, unicode.IsControl) >= 0 {
		return Request{}, false, fmt.Errorf("%w: control character in genre", ErrMalformed)
	}
	req.Genre = s
	return req, true, nil
}
