package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/satindergrewal/rtradio/internal/audio"
)

// runWriter frames queued audio and writes whole frames to out. Leftover
// samples stay in the running buffer until the next chunk completes them.
// A write error is fatal; out is closed on return.
func (p *Pipeline) runWriter(ctx context.Context, out io.WriteCloser) error {
	defer out.Close()
	p.logger.Info("starting frame writer", "frame_bytes", p.format.FrameBytes())

	frame := make([]byte, p.format.FrameBytes())
	for ctx.Err() == nil {
		if !p.nextFrame(frame) {
			c, err := p.queue.Pop(ctx, p.cfg.PopTimeout)
			if errors.Is(err, ErrQueueEmpty) {
				p.logger.Warn("generation queue is empty, writer is waiting")
				continue
			}
			if err != nil {
				return nil
			}
			p.appendChunk(c)
			continue
		}

		// Outside bufMu: a slow reader must not stall the monitor.
		if _, err := out.Write(frame); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("write frame: %w", err)
		}
		p.frames.Add(1)
		p.bytes.Add(int64(len(frame)))
	}
	return nil
}

// nextFrame encodes one frame into dst if the running buffer holds enough
// samples and advances past it.
func (p *Pipeline) nextFrame(dst []byte) bool {
	n := p.format.FrameSamples()
	p.bufMu.Lock()
	defer p.bufMu.Unlock()
	if len(p.buf)-p.bufOff < n {
		return false
	}
	audio.PutSamples(dst, p.buf[p.bufOff:p.bufOff+n])
	p.bufOff += n
	return true
}

// appendChunk adds c to the running buffer unless a style switch made it
// stale. The leftover is compacted first, which copies less than a frame.
func (p *Pipeline) appendChunk(c Chunk) {
	p.bufMu.Lock()
	defer p.bufMu.Unlock()
	if c.Epoch != p.style.epoch.Load() {
		p.logger.Debug("dropping stale chunk", "epoch", c.Epoch)
		return
	}
	if p.bufOff > 0 {
		k := copy(p.buf, p.buf[p.bufOff:])
		p.buf = p.buf[:k]
		p.bufOff = 0
	}
	p.buf = append(p.buf, c.Samples...)
}

// clearBufferLocked empties the running buffer. bufMu must be held.
func (p *Pipeline) clearBufferLocked() {
	p.buf = p.buf[:0]
	p.bufOff = 0
}
