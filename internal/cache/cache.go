// Package cache publishes each camera's latest scene snapshot outside
// the daemon's process, so a lightweight file-based proxy (or another
// replica of the VisionAPI behind a load balancer) can answer "what is
// this camera currently looking at" without round-tripping into the
// perception loop. The default backend is a single JSON file; an
// optional Redis-backed one keeps replicas consistent.
package cache

import (
	"context"

	"github.com/technosupport/physical-mcp/internal/scene"
)

// Entry is what gets published per camera.
type Entry struct {
	CameraID string         `json:"camera_id"`
	Snapshot scene.Snapshot `json:"snapshot"`
}

// SceneCache is the capability interface both backends implement.
type SceneCache interface {
	Set(ctx context.Context, cameraID string, snap scene.Snapshot) error
	Get(ctx context.Context, cameraID string) (scene.Snapshot, bool, error)
	All(ctx context.Context) ([]Entry, error)
}
