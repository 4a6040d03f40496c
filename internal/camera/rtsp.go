package camera

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/technosupport/physical-mcp/internal/frame"
	"github.com/technosupport/physical-mcp/internal/obslog"
)

// RTSPCamera pulls single frames from an RTSP stream via ffmpeg,
// with auto-reconnect bookkeeping mirroring the reference
// implementation: a bounded number of consecutive-failure retries
// before the camera reports itself unreachable.
type RTSPCamera struct {
	cfg  Config
	log  *obslog.Logger
	open atomic.Bool

	mu                  sync.Mutex
	sequence            uint64
	consecutiveFailures int
}

// NewRTSPCamera constructs an RTSPCamera from cfg.
func NewRTSPCamera(cfg Config) (*RTSPCamera, error) {
	if cfg.URL == "" {
		return nil, errors.New("rtsp camera requires a url")
	}
	if cfg.MaxReconnects <= 0 {
		cfg.MaxReconnects = 5
	}
	return &RTSPCamera{cfg: cfg, log: obslog.New("camera").With("id=" + cfg.ID)}, nil
}

func (c *RTSPCamera) Open(ctx context.Context) error {
	if c.open.Load() {
		return ErrAlreadyOpen
	}
	if _, err := c.capture(ctx); err != nil {
		return fmt.Errorf("opening rtsp stream %s: %w", MaskCredentials(c.cfg.URL), err)
	}
	c.open.Store(true)
	c.log.Printf("rtsp stream opened: %s", MaskCredentials(c.cfg.URL))
	return nil
}

func (c *RTSPCamera) Close(ctx context.Context) error {
	c.open.Store(false)
	return nil
}

func (c *RTSPCamera) GrabFrame(ctx context.Context) (frame.Frame, error) {
	if !c.open.Load() {
		return frame.Frame{}, ErrNotOpen
	}
	f, err := c.capture(ctx)
	if err != nil {
		c.mu.Lock()
		c.consecutiveFailures++
		failures := c.consecutiveFailures
		c.mu.Unlock()
		if failures >= c.cfg.MaxReconnects {
			c.open.Store(false)
			c.log.Printf("giving up after %d consecutive failures on %s", failures, MaskCredentials(c.cfg.URL))
		}
		return frame.Frame{}, err
	}
	c.mu.Lock()
	c.consecutiveFailures = 0
	c.mu.Unlock()
	return f, nil
}

func (c *RTSPCamera) capture(ctx context.Context) (frame.Frame, error) {
	inputArgs := []string{"-i", c.cfg.URL}
	if c.cfg.TCPTransport {
		inputArgs = append([]string{"-rtsp_transport", "tcp"}, inputArgs...)
	}
	data, err := grabJPEGViaFFmpeg(ctx, inputArgs, 8*time.Second)
	if err != nil {
		return frame.Frame{}, err
	}
	c.mu.Lock()
	c.sequence++
	seq := c.sequence
	c.mu.Unlock()
	return frame.DecodeJPEG(data, c.cfg.ID, seq, time.Now())
}

func (c *RTSPCamera) IsOpen() bool     { return c.open.Load() }
func (c *RTSPCamera) SourceID() string { return c.cfg.ID }
