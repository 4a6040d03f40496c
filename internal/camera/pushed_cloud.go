package camera

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/technosupport/physical-mcp/internal/frame"
)

// PushedCloudCamera has no capture loop of its own: frames arrive from
// outside (a mobile app or cloud relay pushing JPEGs through the
// VisionAPI ingress) and are handed in via Push. GrabFrame simply
// returns the most recently pushed frame.
type PushedCloudCamera struct {
	cfg  Config
	open atomic.Bool

	mu       sync.Mutex
	latest   frame.Frame
	hasFrame bool
	sequence uint64
}

// NewPushedCloudCamera constructs a PushedCloudCamera from cfg.
func NewPushedCloudCamera(cfg Config) *PushedCloudCamera {
	return &PushedCloudCamera{cfg: cfg}
}

func (c *PushedCloudCamera) Open(ctx context.Context) error {
	if c.open.Load() {
		return ErrAlreadyOpen
	}
	c.open.Store(true)
	return nil
}

func (c *PushedCloudCamera) Close(ctx context.Context) error {
	c.open.Store(false)
	return nil
}

// Push ingests externally-captured JPEG bytes as the latest frame.
// Returns ErrNotOpen if the source hasn't been opened (registered).
func (c *PushedCloudCamera) Push(data []byte) error {
	if !c.open.Load() {
		return ErrNotOpen
	}
	c.mu.Lock()
	c.sequence++
	seq := c.sequence
	c.mu.Unlock()

	f, err := frame.DecodeJPEG(data, c.cfg.ID, seq, time.Now())
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.latest = f
	c.hasFrame = true
	c.mu.Unlock()
	return nil
}

func (c *PushedCloudCamera) GrabFrame(ctx context.Context) (frame.Frame, error) {
	if !c.open.Load() {
		return frame.Frame{}, ErrNotOpen
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.hasFrame {
		return frame.Frame{}, ErrNotOpen
	}
	return c.latest, nil
}

func (c *PushedCloudCamera) IsOpen() bool     { return c.open.Load() }
func (c *PushedCloudCamera) SourceID() string { return c.cfg.ID }
