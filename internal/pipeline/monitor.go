package pipeline

import (
	"context"
	"time"

	"github.com/satindergrewal/rtradio/internal/style"
)

// runMonitor polls the style signal. Every failure here is recoverable:
// a bad request or a failed embedding leaves the current style playing.
func (p *Pipeline) runMonitor(ctx context.Context) error {
	p.logger.Info("starting genre monitor", "interval", p.cfg.PollInterval)
	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		req, ok, err := p.signal.Poll(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			p.logger.Warn("ignoring style request", "err", err)
			continue
		}
		if ok {
			p.applyStyle(ctx, req)
		}
	}
}

// applyStyle switches to req's genre. The embedding runs without any lock
// held; only the queue drain and buffer clear happen under bufMu.
func (p *Pipeline) applyStyle(ctx context.Context, req style.Request) bool {
	prev := p.CurrentGenre()
	if req.Genre == prev {
		return false
	}
	p.logger.Info("genre change detected", "from", prev, "to", req.Genre, "mode", req.Mode)

	emb, err := p.model.EmbedStyle(ctx, req.Genre)
	if err != nil {
		p.logger.Warn("style embedding failed, keeping previous genre", "genre", prev, "err", err)
		return false
	}

	p.bufMu.Lock()
	epoch := p.style.switchTo(req, emb)
	dropped := p.queue.Drain()
	stale := len(p.buf) - p.bufOff
	p.clearBufferLocked()
	p.bufMu.Unlock()

	p.switches.Add(1)
	p.logger.Info("buffers cleared, new genre will start shortly",
		"genre", req.Genre,
		"epoch", epoch,
		"dropped_segments", dropped,
		"dropped_samples", stale,
	)
	return true
}
