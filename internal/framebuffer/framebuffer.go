// Package framebuffer holds the bounded, per-camera ring of recently
// captured frames that every downstream stage (sampler, analyzer,
// MJPEG stream, MCP capture_frame) reads from.
package framebuffer

import (
	"sync"
	"time"

	"github.com/technosupport/physical-mcp/internal/frame"
)

// DefaultMaxFrames is the default ring size.
const DefaultMaxFrames = 300

// Buffer is a bounded deque of Frames, newest last, protected by a
// single mutex. A one-shot "new frame" broadcast wakes any
// wait_for_frame callers.
type Buffer struct {
	mu        sync.Mutex
	maxFrames int
	frames    []frame.Frame

	waitMu sync.Mutex
	waitCh chan struct{}
}

// New creates a Buffer bounded to maxFrames (DefaultMaxFrames if <= 0).
func New(maxFrames int) *Buffer {
	if maxFrames <= 0 {
		maxFrames = DefaultMaxFrames
	}
	return &Buffer{
		maxFrames: maxFrames,
		frames:    make([]frame.Frame, 0, maxFrames),
		waitCh:    make(chan struct{}),
	}
}

// Push appends a frame, evicting the oldest on overflow, then pulses
// the wake signal for any wait_for_frame callers.
func (b *Buffer) Push(f frame.Frame) {
	b.mu.Lock()
	b.frames = append(b.frames, f)
	if len(b.frames) > b.maxFrames {
		overflow := len(b.frames) - b.maxFrames
		b.frames = b.frames[overflow:]
	}
	b.mu.Unlock()
	b.pulse()
}

func (b *Buffer) pulse() {
	b.waitMu.Lock()
	close(b.waitCh)
	b.waitCh = make(chan struct{})
	b.waitMu.Unlock()
}

// Latest returns the most recently pushed frame, or false if empty.
func (b *Buffer) Latest() (frame.Frame, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.frames) == 0 {
		return frame.Frame{}, false
	}
	return b.frames[len(b.frames)-1], true
}

// Size returns the current number of buffered frames.
func (b *Buffer) Size() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.frames)
}

// Clear empties the buffer. Exported for test harness use — the
// perception loop itself never calls this.
func (b *Buffer) Clear() {
	b.mu.Lock()
	b.frames = b.frames[:0]
	b.mu.Unlock()
}

// GetFramesSince returns every buffered frame with Timestamp >= t, in
// buffered order.
func (b *Buffer) GetFramesSince(t time.Time) []frame.Frame {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]frame.Frame, 0, len(b.frames))
	for _, f := range b.frames {
		if !f.Timestamp.Before(t) {
			out = append(out, f)
		}
	}
	return out
}

// GetSampled returns k evenly-spaced frames. If the buffer holds <= k
// frames, all of them are returned; otherwise frames at indices
// floor(i*size/k) for i in [0,k) are returned.
func (b *Buffer) GetSampled(k int) []frame.Frame {
	b.mu.Lock()
	defer b.mu.Unlock()
	size := len(b.frames)
	if k <= 0 || size == 0 {
		return nil
	}
	if size <= k {
		out := make([]frame.Frame, size)
		copy(out, b.frames)
		return out
	}
	out := make([]frame.Frame, 0, k)
	for i := 0; i < k; i++ {
		idx := i * size / k
		out = append(out, b.frames[idx])
	}
	return out
}

// WaitForFrame blocks until the next push or until timeout elapses,
// then returns Latest().
func (b *Buffer) WaitForFrame(timeout time.Duration) (frame.Frame, bool) {
	b.waitMu.Lock()
	ch := b.waitCh
	b.waitMu.Unlock()

	if timeout <= 0 {
		<-ch
		return b.Latest()
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-ch:
	case <-timer.C:
	}
	return b.Latest()
}
