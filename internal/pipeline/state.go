package pipeline

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/satindergrewal/rtradio/internal/audio"
	"github.com/satindergrewal/rtradio/internal/model"
	"github.com/satindergrewal/rtradio/internal/style"
)

// styleState is what the monitor writes and the generator reads: the active
// style, the model's continuity token and the crossfade history. Every
// switch bumps epoch; work started under an older epoch is discarded.
type styleState struct {
	fade *audio.Fade

	mu         sync.Mutex
	genre      string
	mode       style.Mode
	embedding  model.Embedding
	token      model.State
	lastSwitch time.Time

	epoch atomic.Uint64
}

func newStyleState(genre string, emb model.Embedding, fade *audio.Fade) *styleState {
	return &styleState{fade: fade, genre: genre, embedding: emb}
}

// snapshot returns what the next Generate call should use.
func (s *styleState) snapshot() (model.Embedding, model.State, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.embedding, s.token, s.epoch.Load()
}

// commit stores the model's new token and runs seg through the crossfade,
// unless a switch happened since epoch was read. ok is false in that case
// and both seg and token are dropped.
func (s *styleState) commit(epoch uint64, token model.State, seg audio.Segment) (out audio.Segment, ok bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch.Load() != epoch {
		return audio.Segment{}, false, nil
	}
	out, err = s.fade.Process(seg)
	if err != nil {
		return audio.Segment{}, false, err
	}
	s.token = token
	return out, true, nil
}

// switchTo installs a new style. A hard switch also forgets the model's
// continuity token and the crossfade tail; a smooth one keeps both.
func (s *styleState) switchTo(req style.Request, emb model.Embedding) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.genre = req.Genre
	s.mode = req.Mode
	s.embedding = emb
	s.lastSwitch = time.Now()
	if req.Mode == style.Hard {
		s.token = nil
		s.fade.Reset()
	}
	return s.epoch.Add(1)
}

func (s *styleState) current() (genre string, mode style.Mode, lastSwitch time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.genre, s.mode, s.lastSwitch
}

func (s *styleState) hasToken() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token != nil
}
