package camera

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/technosupport/physical-mcp/internal/frame"
	"github.com/technosupport/physical-mcp/internal/obslog"
)

// USBCamera captures from a local V4L2-style device index via ffmpeg.
// Mirrors the reference implementation's background-thread-plus-
// latest-frame-slot design: grabbing never blocks the caller on the
// actual device I/O beyond the single in-flight capture.
type USBCamera struct {
	cfg Config
	log *obslog.Logger

	mu       sync.Mutex
	sequence uint64
	open     atomic.Bool
}

// NewUSBCamera constructs a USBCamera from cfg.
func NewUSBCamera(cfg Config) *USBCamera {
	return &USBCamera{cfg: cfg, log: obslog.New("camera").With("id=" + cfg.ID)}
}

func (c *USBCamera) Open(ctx context.Context) error {
	if c.open.Load() {
		return ErrAlreadyOpen
	}
	// A single probe capture confirms the device responds before we
	// report success.
	if _, err := c.capture(ctx); err != nil {
		return fmt.Errorf("opening usb camera %s: %w", c.cfg.ID, err)
	}
	c.open.Store(true)
	c.log.Printf("opened device index %d", c.cfg.DeviceIndex)
	return nil
}

func (c *USBCamera) Close(ctx context.Context) error {
	c.open.Store(false)
	return nil
}

func (c *USBCamera) GrabFrame(ctx context.Context) (frame.Frame, error) {
	if !c.open.Load() {
		return frame.Frame{}, ErrNotOpen
	}
	return c.capture(ctx)
}

func (c *USBCamera) capture(ctx context.Context) (frame.Frame, error) {
	inputArgs := []string{"-f", "v4l2", "-i", fmt.Sprintf("/dev/video%d", c.cfg.DeviceIndex)}
	if c.cfg.Width > 0 && c.cfg.Height > 0 {
		inputArgs = append([]string{"-video_size", fmt.Sprintf("%dx%d", c.cfg.Width, c.cfg.Height)}, inputArgs...)
	}
	data, err := grabJPEGViaFFmpeg(ctx, inputArgs, 5*time.Second)
	if err != nil {
		return frame.Frame{}, err
	}
	c.mu.Lock()
	c.sequence++
	seq := c.sequence
	c.mu.Unlock()
	return frame.DecodeJPEG(data, c.cfg.ID, seq, time.Now())
}

func (c *USBCamera) IsOpen() bool    { return c.open.Load() }
func (c *USBCamera) SourceID() string { return c.cfg.ID }
