package camera

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"time"
)

// grabJPEGViaFFmpeg shells out to ffmpeg to pull a single JPEG frame
// from inputArgs. No Go RTSP/V4L2 client exists in this module's
// dependency set, so capture goes through the same CLI-tool-shelling
// pattern used elsewhere in this daemon for OS integration — ffmpeg is
// close to universally present wherever this daemon would be deployed
// alongside physical cameras.
func grabJPEGViaFFmpeg(ctx context.Context, inputArgs []string, timeout time.Duration) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := append(append([]string{}, inputArgs...),
		"-frames:v", "1",
		"-f", "image2pipe",
		"-vcodec", "mjpeg",
		"-loglevel", "error",
		"-",
	)

	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg capture failed: %w: %s", err, stderr.String())
	}
	if stdout.Len() == 0 {
		return nil, fmt.Errorf("ffmpeg produced no frame data")
	}
	return stdout.Bytes(), nil
}
