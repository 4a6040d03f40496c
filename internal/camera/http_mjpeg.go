package camera

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/technosupport/physical-mcp/internal/frame"
	"github.com/technosupport/physical-mcp/internal/obslog"
)

// HTTPMJPEGCamera consumes a multipart/x-mixed-replace MJPEG stream
// over HTTP. Unlike RTSP/USB it keeps one long-lived connection open
// in a background goroutine and serves GrabFrame from a latest-frame
// slot, since re-dialing per frame would defeat the point of an
// already-open HTTP stream.
type HTTPMJPEGCamera struct {
	cfg    Config
	log    *obslog.Logger
	client *http.Client

	mu       sync.Mutex
	latest   frame.Frame
	hasFrame bool
	sequence uint64
	lastErr  error

	open    atomic.Bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewHTTPMJPEGCamera constructs an HTTPMJPEGCamera from cfg.
func NewHTTPMJPEGCamera(cfg Config) (*HTTPMJPEGCamera, error) {
	if cfg.StreamURL == "" {
		return nil, errors.New("http_mjpeg camera requires a stream_url")
	}
	return &HTTPMJPEGCamera{
		cfg:    cfg,
		log:    obslog.New("camera").With("id=" + cfg.ID),
		client: &http.Client{},
	}, nil
}

func (c *HTTPMJPEGCamera) Open(ctx context.Context) error {
	if c.open.Load() {
		return ErrAlreadyOpen
	}
	runCtx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.done = make(chan struct{})

	ready := make(chan error, 1)
	go c.run(runCtx, ready)

	select {
	case err := <-ready:
		if err != nil {
			cancel()
			return fmt.Errorf("opening mjpeg stream %s: %w", MaskCredentials(c.cfg.StreamURL), err)
		}
	case <-time.After(8 * time.Second):
		cancel()
		return fmt.Errorf("timed out waiting for first frame from %s", MaskCredentials(c.cfg.StreamURL))
	case <-ctx.Done():
		cancel()
		return ctx.Err()
	}

	c.open.Store(true)
	c.log.Printf("mjpeg stream opened: %s", MaskCredentials(c.cfg.StreamURL))
	return nil
}

func (c *HTTPMJPEGCamera) run(ctx context.Context, ready chan<- error) {
	defer close(c.done)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.StreamURL, nil)
	if err != nil {
		ready <- err
		return
	}
	if c.cfg.AuthUser != "" {
		req.SetBasicAuth(c.cfg.AuthUser, c.cfg.AuthPass)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		ready <- err
		return
	}
	defer resp.Body.Close()

	mediaType, params, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil || mediaType != "multipart/x-mixed-replace" {
		ready <- fmt.Errorf("unexpected content-type %q", resp.Header.Get("Content-Type"))
		return
	}
	boundary := params["boundary"]
	if boundary == "" {
		ready <- errors.New("mjpeg stream missing multipart boundary")
		return
	}

	mr := multipart.NewReader(bufio.NewReader(resp.Body), boundary)
	firstFrameSent := false
	for {
		if ctx.Err() != nil {
			return
		}
		part, err := mr.NextPart()
		if err != nil {
			if !firstFrameSent {
				ready <- err
			} else {
				c.recordErr(err)
			}
			return
		}
		data, err := io.ReadAll(part)
		part.Close()
		if err != nil {
			continue
		}
		c.mu.Lock()
		c.sequence++
		seq := c.sequence
		c.mu.Unlock()

		f, err := frame.DecodeJPEG(data, c.cfg.ID, seq, time.Now())
		if err != nil {
			continue
		}
		c.mu.Lock()
		c.latest = f
		c.hasFrame = true
		c.mu.Unlock()

		if !firstFrameSent {
			firstFrameSent = true
			ready <- nil
		}
	}
}

func (c *HTTPMJPEGCamera) recordErr(err error) {
	c.mu.Lock()
	c.lastErr = err
	c.mu.Unlock()
}

func (c *HTTPMJPEGCamera) Close(ctx context.Context) error {
	if !c.open.Load() {
		return nil
	}
	c.open.Store(false)
	if c.cancel != nil {
		c.cancel()
	}
	if c.done != nil {
		<-c.done
	}
	return nil
}

func (c *HTTPMJPEGCamera) GrabFrame(ctx context.Context) (frame.Frame, error) {
	if !c.open.Load() {
		return frame.Frame{}, ErrNotOpen
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.hasFrame {
		if c.lastErr != nil {
			return frame.Frame{}, c.lastErr
		}
		return frame.Frame{}, errors.New("no frame received yet")
	}
	return c.latest, nil
}

func (c *HTTPMJPEGCamera) IsOpen() bool     { return c.open.Load() }
func (c *HTTPMJPEGCamera) SourceID() string { return c.cfg.ID }
