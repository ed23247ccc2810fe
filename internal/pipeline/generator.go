package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/satindergrewal/rtradio/internal/audio"
)

// runGenerator drives the model one segment at a time. A model failure is
// fatal to the whole pipeline.
func (p *Pipeline) runGenerator(ctx context.Context) error {
	p.logger.Info("starting audio generation")
	seed := 0
	for ctx.Err() == nil {
		seed++
		emb, token, epoch := p.style.snapshot()

		seg, next, err := p.model.Generate(ctx, token, emb, seed)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("generate segment %d: %w", seed, err)
		}

		faded, ok, err := p.style.commit(epoch, next, seg)
		if err != nil {
			return fmt.Errorf("crossfade segment %d: %w", seed, err)
		}
		if !ok {
			p.logger.Debug("dropping segment generated before style switch", "seed", seed)
			continue
		}

		pcm, peak := audio.Quantize(faded.Samples)
		if peak > 1 {
			p.logger.Warn("audio signal is hot", "max_amplitude", peak)
		}

		if err := p.push(ctx, Chunk{Epoch: epoch, Samples: pcm}); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		n := p.segments.Add(1)
		if n%10 == 0 {
			p.logger.Info("generated segments", "count", n, "genre", p.CurrentGenre())
		}
	}
	return nil
}

// push retries a full queue after a short pause instead of dropping the
// chunk, so generation slows to the writer's pace. A chunk superseded by a
// style switch while waiting is dropped.
func (p *Pipeline) push(ctx context.Context, c Chunk) error {
	for {
		err := p.queue.Push(ctx, c, p.cfg.PushTimeout)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrQueueFull) {
			return err
		}
		p.logger.Warn("generation queue is full, generator is pausing")
		if p.style.epoch.Load() != c.Epoch {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.cfg.QueueRetryPause):
		}
	}
}
