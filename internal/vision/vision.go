// Package vision defines the VisionProvider capability interface and
// its concrete LLM backends, plus the FrameAnalyzer that orchestrates
// calls through whichever provider is configured.
package vision

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"
)

// DefaultCallTimeout bounds a single provider HTTP call. A call that
// runs past this is treated as a timeout (empty-summary scene, no
// backoff bump), not an API failure.
const DefaultCallTimeout = 15 * time.Second

// Provider is the interface every vision-capable LLM backend
// implements. Implementations issue raw HTTP requests against each
// vendor's API directly — no vendor SDK for any of these providers
// appears anywhere in the example pack, so reaching for one would be
// an ungrounded dependency; a single HTTP request/response shape per
// provider is a small, self-contained surface anyway.
type Provider interface {
	AnalyzeImage(ctx context.Context, imageB64, prompt string) (string, error)
	AnalyzeImageJSON(ctx context.Context, imageB64, prompt string) (map[string]any, error)
	ProviderName() string
	ModelName() string
}

// MultiImageProvider is implemented by providers that can accept more
// than one image per call; callers fall back to the most recent frame
// when a Provider doesn't implement this.
type MultiImageProvider interface {
	Provider
	AnalyzeImages(ctx context.Context, imagesB64 []string, prompt string) (string, error)
	AnalyzeImagesJSON(ctx context.Context, imagesB64 []string, prompt string) (map[string]any, error)
}

// AnalyzeImages dispatches to p's MultiImageProvider implementation if
// present, else analyzes only the most recent image.
func AnalyzeImages(ctx context.Context, p Provider, imagesB64 []string, prompt string) (string, error) {
	if mp, ok := p.(MultiImageProvider); ok {
		return mp.AnalyzeImages(ctx, imagesB64, prompt)
	}
	return p.AnalyzeImage(ctx, imagesB64[len(imagesB64)-1], prompt)
}

// AnalyzeImagesJSON is the JSON-returning counterpart of AnalyzeImages.
func AnalyzeImagesJSON(ctx context.Context, p Provider, imagesB64 []string, prompt string) (map[string]any, error) {
	if mp, ok := p.(MultiImageProvider); ok {
		return mp.AnalyzeImagesJSON(ctx, imagesB64, prompt)
	}
	return p.AnalyzeImageJSON(ctx, imagesB64[len(imagesB64)-1], prompt)
}

// IsAPIError reports whether err looks like a rate-limit, auth or
// billing failure that should trigger perception-loop backoff, as
// opposed to a transient/parse error that can just be logged and
// retried next cycle.
func IsAPIError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	keywords := []string{
		"429", "rate", "quota", "resource_exhausted",
		"401", "403", "unauthorized", "forbidden",
		"400", "credit", "balance", "billing",
	}
	for _, kw := range keywords {
		if strings.Contains(msg, kw) {
			return true
		}
	}
	return false
}

// IsTimeoutError reports whether err is the HTTP client or context
// deadline expiring on a provider call, as opposed to a server-side
// API failure. A timed-out call yields an empty-summary scene and
// never triggers perception-loop backoff.
func IsTimeoutError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return false
}
