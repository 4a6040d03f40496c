// Package visionapi is the daemon's REST/SSE/MJPEG/push HTTP surface:
// it exposes camera frames, scene state, watch rules, alerts and the
// relay push-ingress path to any HTTP client, sharing the same
// perception-loop state the MCP tool server reads from.
package visionapi

import (
	"context"
	"crypto/rand"
	"errors"
	"sort"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/technosupport/physical-mcp/internal/camera"
	"github.com/technosupport/physical-mcp/internal/framebuffer"
	"github.com/technosupport/physical-mcp/internal/scene"
)

// claimCodeTTL matches spec's "claim codes expire automatically after
// 15 min" resource policy.
const claimCodeTTL = 15 * time.Minute

// ErrUnknownCamera is returned by registry lookups for an id nobody
// has registered.
var ErrUnknownCamera = errors.New("camera_not_found")

// ErrAlreadyRegistered guards against silently replacing a live camera.
var ErrAlreadyRegistered = errors.New("camera_already_registered")

// CameraEntry is one camera's wiring in the registry: its capture
// source plus the per-camera state the perception loop and this API
// both read.
type CameraEntry struct {
	ID           string
	Name         string
	Kind         camera.Kind
	Source       camera.Source
	Buffer       *framebuffer.Buffer
	Scene        *scene.State
	RegisteredAt time.Time
}

// PendingCamera is a cloud camera that has announced itself (e.g. via
// LAN discovery phoning home) and awaits an operator's accept/reject
// decision before it is wired into the running registry.
type PendingCamera struct {
	CameraID        string
	Name            string
	FirmwareVersion string
	RegisteredAt    time.Time
}

type pendingClaim struct {
	CameraID   string
	CameraName string
	OwnerRef   string
}

// Registry holds every configured/registered camera plus the
// claim-code and pending-approval bookkeeping the push-ingress and
// cloud-camera-approval routes need. Safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*CameraEntry
	pending map[string]PendingCamera

	claims *lru.LRU[string, pendingClaim]

	bufferSize int

	// onRegister, if set, is invoked after a camera is newly added
	// (directly or via accept/register) so the caller can start its
	// perception loop. Registry itself never starts loops.
	onRegister func(*CameraEntry)
}

// NewRegistry returns an empty Registry. bufferSize sizes the
// FrameBuffer created for cameras added dynamically (cloud/push);
// onRegister may be nil.
func NewRegistry(bufferSize int, onRegister func(*CameraEntry)) *Registry {
	return &Registry{
		entries:    map[string]*CameraEntry{},
		pending:    map[string]PendingCamera{},
		claims:     lru.NewLRU[string, pendingClaim](256, nil, claimCodeTTL),
		bufferSize: bufferSize,
		onRegister: onRegister,
	}
}

// Add registers a fully-constructed entry, e.g. one of the cameras
// configured in config.yaml at startup. Returns ErrAlreadyRegistered
// if the id is already present.
func (r *Registry) Add(entry *CameraEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[entry.ID]; ok {
		return ErrAlreadyRegistered
	}
	if entry.RegisteredAt.IsZero() {
		entry.RegisteredAt = time.Now()
	}
	r.entries[entry.ID] = entry
	return nil
}

// Get looks up a camera by id.
func (r *Registry) Get(id string) (*CameraEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	return e, ok
}

// First returns an arbitrary camera, used by routes that default to
// "the" camera when no id is given and exactly one (or more) exists.
// Matches the reference API's "no id -> first registered camera"
// fallback.
func (r *Registry) First() (*CameraEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.entries {
		return e, true
	}
	return nil, false
}

// List returns every registered camera, sorted by id for stable output.
func (r *Registry) List() []*CameraEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*CameraEntry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len reports how many cameras are registered.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// AddCloudCamera builds and opens a pushed-cloud camera entry under
// id, wiring a fresh FrameBuffer and SceneState, and registers it.
// Used by POST /cameras (type=cloud) and by claim-code redemption.
func (r *Registry) AddCloudCamera(id, name string) (*CameraEntry, error) {
	r.mu.Lock()
	if _, ok := r.entries[id]; ok {
		r.mu.Unlock()
		return nil, ErrAlreadyRegistered
	}
	r.mu.Unlock()

	src := camera.NewPushedCloudCamera(camera.Config{ID: id, Kind: camera.KindPushedCloud})
	if err := src.Open(context.Background()); err != nil {
		return nil, err
	}
	if name == "" {
		name = id
	}
	entry := &CameraEntry{
		ID:           id,
		Name:         name,
		Kind:         camera.KindPushedCloud,
		Source:       src,
		Buffer:       framebuffer.New(r.bufferSize),
		Scene:        scene.New(0),
		RegisteredAt: time.Now(),
	}

	r.mu.Lock()
	if _, ok := r.entries[id]; ok {
		r.mu.Unlock()
		return nil, ErrAlreadyRegistered
	}
	r.entries[id] = entry
	r.mu.Unlock()

	if r.onRegister != nil {
		r.onRegister(entry)
	}
	return entry, nil
}

// IssueClaimCode mints a 6-character alphanumeric claim code for a
// not-yet-paired relay board, valid for claimCodeTTL. ownerRef is an
// opaque reference (e.g. a Telegram chat id) the issuer can use to
// notify whoever claims it.
func (r *Registry) IssueClaimCode(cameraID, cameraName, ownerRef string) string {
	code := randomClaimCode()
	r.claims.Add(code, pendingClaim{CameraID: cameraID, CameraName: cameraName, OwnerRef: ownerRef})
	return code
}

// RedeemClaim looks up and consumes a claim code (case-insensitive),
// returning the paired camera id/name, or false if the code is
// unknown or expired.
func (r *Registry) RedeemClaim(code string) (cameraID, cameraName string, ok bool) {
	code = normalizeClaimCode(code)
	claim, found := r.claims.Get(code)
	if !found {
		return "", "", false
	}
	r.claims.Remove(code)
	return claim.CameraID, claim.CameraName, true
}

// AddPendingAnnouncement records a cloud camera that phoned home
// without an operator having added it yet, awaiting accept/reject.
func (r *Registry) AddPendingAnnouncement(cameraID, name, firmwareVersion string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending[cameraID] = PendingCamera{
		CameraID:        cameraID,
		Name:            name,
		FirmwareVersion: firmwareVersion,
		RegisteredAt:    time.Now(),
	}
}

// ListPending returns every cloud camera awaiting approval, oldest first.
func (r *Registry) ListPending() []PendingCamera {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]PendingCamera, 0, len(r.pending))
	for _, p := range r.pending {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RegisteredAt.Before(out[j].RegisteredAt) })
	return out
}

// AcceptPending promotes a pending cloud camera into the live
// registry, opening it exactly as AddCloudCamera does.
func (r *Registry) AcceptPending(cameraID string) (*CameraEntry, error) {
	r.mu.Lock()
	p, ok := r.pending[cameraID]
	if !ok {
		r.mu.Unlock()
		return nil, ErrUnknownCamera
	}
	delete(r.pending, cameraID)
	r.mu.Unlock()

	return r.AddCloudCamera(p.CameraID, p.Name)
}

// RejectPending discards a pending cloud camera without wiring it in,
// reporting whether it existed.
func (r *Registry) RejectPending(cameraID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.pending[cameraID]; !ok {
		return false
	}
	delete(r.pending, cameraID)
	return true
}

const claimCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

func randomClaimCode() string {
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		return "AAAAAA"
	}
	out := make([]byte, 6)
	for i, b := range buf {
		out[i] = claimCodeAlphabet[int(b)%len(claimCodeAlphabet)]
	}
	return string(out)
}

func normalizeClaimCode(code string) string {
	out := make([]byte, 0, len(code))
	for i := 0; i < len(code); i++ {
		c := code[i]
		if c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		out = append(out, c)
	}
	return string(out)
}
