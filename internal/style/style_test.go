package style

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParse(t *testing.T) {
	tests := []struct {
		content string
		want    Request
		ok      bool
		wantErr bool
	}{
		{"synthwave", Request{"synthwave", Hard}, true, false},
		{"  jazz \n", Request{"jazz", Hard}, true, false},
		{"SMOOTH:disco funk", Request{"disco funk", Smooth}, true, false},
		{"SMOOTH: ambient\n", Request{"ambient", Smooth}, true, false},
		{"", Request{}, false, false},
		{"   \n", Request{}, false, false},
		{"SMOOTH:", Request{}, false, true},
		{"rock\x00", Request{}, false, true},
		{"jazz\nrock", Request{}, false, true},
		{"\xff\xfe", Request{}, false, true},
		{strings.Repeat("a", MaxGenreLen+1), Request{}, false, true},
		{"smooth:jazz", Request{"smooth:jazz", Hard}, true, false}, // prefix is case sensitive
	}
	for _, tt := range tests {
		got, ok, err := Parse(tt.content)
		if (err != nil) != tt.wantErr {
			t.Errorf("Parse(%q) err = %v, wantErr %v", tt.content, err, tt.wantErr)
			continue
		}
		if err != nil && !errors.Is(err, ErrMalformed) {
			t.Errorf("Parse(%q) err = %v, want ErrMalformed", tt.content, err)
		}
		if ok != tt.ok || got != tt.want {
			t.Errorf("Parse(%q) = %+v, %v, want %+v, %v", tt.content, got, ok, tt.want, tt.ok)
		}
	}
}

func TestRequestStringRoundTrip(t *testing.T) {
	for _, req := range []Request{{"jazz", Hard}, {"lofi hip hop", Smooth}} {
		got, ok, err := Parse(req.String())
		if err != nil || !ok || got != req {
			t.Errorf("round trip %+v -> %q -> %+v, %v, %v", req, req.String(), got, ok, err)
		}
	}
}

func TestModeString(t *testing.T) {
	if Hard.String() != "hard" || Smooth.String() != "smooth" {
		t.Errorf("Mode strings = %q, %q", Hard, Smooth)
	}
}

func TestFileSignalMissingFile(t *testing.T) {
	s := NewFileSignal(filepath.Join(t.TempDir(), "genre.txt"))
	_, ok, err := s.Poll(context.Background())
	if ok || err != nil {
		t.Errorf("missing file: ok=%v err=%v, want no-op", ok, err)
	}
}

func TestFileSignalPublishAndPoll(t *testing.T) {
	ctx := context.Background()
	s := NewFileSignal(filepath.Join(t.TempDir(), "genre.txt"))

	if err := s.Publish(Request{Genre: "jazz", Mode: Smooth}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	data, _ := os.ReadFile(s.Path())
	if string(data) != "SMOOTH:jazz" {
		t.Errorf("file content = %q, want SMOOTH:jazz", data)
	}

	req, ok, err := s.Poll(ctx)
	if err != nil || !ok {
		t.Fatalf("Poll: ok=%v err=%v", ok, err)
	}
	if req != (Request{"jazz", Smooth}) {
		t.Errorf("Poll = %+v", req)
	}

	// Unchanged file is a no-op.
	if _, ok, _ := s.Poll(ctx); ok {
		t.Error("second poll of unchanged file returned a request")
	}
}

func TestFileSignalDetectsRewrite(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "genre.txt")
	s := NewFileSignal(path)

	if err := os.WriteFile(path, []byte("rock"), 0o644); err != nil {
		t.Fatal(err)
	}
	if req, ok, _ := s.Poll(ctx); !ok || req.Genre != "rock" {
		t.Fatalf("first poll = %+v, %v", req, ok)
	}

	if err := os.WriteFile(path, []byte("classical"), 0o644); err != nil {
		t.Fatal(err)
	}
	// Force a distinct mtime even on coarse filesystems.
	later := time.Now().Add(2 * time.Second)
	os.Chtimes(path, later, later)

	req, ok, err := s.Poll(ctx)
	if err != nil || !ok || req.Genre != "classical" {
		t.Errorf("after rewrite = %+v, %v, %v", req, ok, err)
	}
}

func TestFileSignalSameContentTouched(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "genre.txt")
	os.WriteFile(path, []byte("rock"), 0o644)
	s := NewFileSignal(path)
	s.Poll(ctx)

	later := time.Now().Add(2 * time.Second)
	os.Chtimes(path, later, later)
	if _, ok, _ := s.Poll(ctx); ok {
		t.Error("touched file with same content should be a no-op")
	}
}

func TestFileSignalMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "genre.txt")
	os.WriteFile(path, []byte("SMOOTH:"), 0o644)
	s := NewFileSignal(path)
	_, ok, err := s.Poll(context.Background())
	if ok || !errors.Is(err, ErrMalformed) {
		t.Errorf("malformed: ok=%v err=%v", ok, err)
	}
}

func TestMemorySignal(t *testing.T) {
	ctx := context.Background()
	s := NewMemorySignal()

	if _, ok, _ := s.Poll(ctx); ok {
		t.Error("empty signal returned a request")
	}

	s.Publish(Request{Genre: "ambient"})
	s.Publish(Request{Genre: "rock", Mode: Smooth})
	req, ok, err := s.Poll(ctx)
	if err != nil || !ok || req != (Request{"rock", Smooth}) {
		t.Errorf("Poll = %+v, %v, %v, want latest request", req, ok, err)
	}
	if _, ok, _ := s.Poll(ctx); ok {
		t.Error("request delivered twice")
	}

	s.Set("SMOOTH:")
	if _, _, err := s.Poll(ctx); !errors.Is(err, ErrMalformed) {
		t.Errorf("malformed set: err = %v", err)
	}
}

func TestPublishRejectsMalformed(t *testing.T) {
	if err := NewMemorySignal().Publish(Request{Genre: ""}); err == nil {
		t.Error("publishing empty genre should fail")
	}
}
