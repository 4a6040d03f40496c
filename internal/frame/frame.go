// Package frame defines the immutable Frame value shared across the
// capture, detection, sampling and analysis stages of the perception
// pipeline.
package frame

import (
	"bytes"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"time"
)

// ErrInvalidFrame is returned when a pushed/decoded image cannot be parsed.
var ErrInvalidFrame = errors.New("invalid_frame")

// Resolution is a frame's pixel dimensions.
type Resolution struct {
	Width  int
	Height int
}

// Frame is an immutable capture from a camera source. Once produced it
// is never mutated; every consumer reads a shared reference.
type Frame struct {
	Image      image.Image
	Timestamp  time.Time
	SourceID   string
	Sequence   uint64
	Resolution Resolution
}

// New wraps a decoded image into a Frame, stamping resolution from the
// image bounds.
func New(img image.Image, sourceID string, sequence uint64, ts time.Time) Frame {
	b := img.Bounds()
	return Frame{
		Image:      img,
		Timestamp:  ts,
		SourceID:   sourceID,
		Sequence:   sequence,
		Resolution: Resolution{Width: b.Dx(), Height: b.Dy()},
	}
}

// DecodeJPEG decodes raw JPEG bytes into a Frame. Returns ErrInvalidFrame
// on any decode failure — callers should treat this as a rejected push,
// never a crash.
func DecodeJPEG(data []byte, sourceID string, sequence uint64, ts time.Time) (Frame, error) {
	if len(data) == 0 {
		return Frame{}, ErrInvalidFrame
	}
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return Frame{}, ErrInvalidFrame
	}
	return New(img, sourceID, sequence, ts), nil
}

// EncodeJPEG renders the frame to JPEG bytes at the given quality (1-100).
func (f Frame) EncodeJPEG(quality int) ([]byte, error) {
	if quality <= 0 || quality > 100 {
		quality = 80
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, f.Image, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Thumbnail downsamples the frame so its longest edge is at most maxDim,
// then encodes it to base64 JPEG — the shape every vision-provider call
// sends over the wire.
func (f Frame) Thumbnail(maxDim, quality int) (string, error) {
	img := f.Image
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if maxDim > 0 && (w > maxDim || h > maxDim) {
		scale := float64(maxDim) / float64(max(w, h))
		nw := int(float64(w) * scale)
		nh := int(float64(h) * scale)
		if nw < 1 {
			nw = 1
		}
		if nh < 1 {
			nh = 1
		}
		img = resizeNearest(img, nw, nh)
	}
	var buf bytes.Buffer
	q := quality
	if q <= 0 || q > 100 {
		q = 70
	}
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: q}); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// resizeNearest is a dependency-free nearest-neighbor resize, adequate
// for the small thumbnails sent to vision providers.
func resizeNearest(src image.Image, w, h int) image.Image {
	sb := src.Bounds()
	sw, sh := sb.Dx(), sb.Dy()
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		sy := sb.Min.Y + y*sh/h
		for x := 0; x < w; x++ {
			sx := sb.Min.X + x*sw/w
			dst.Set(x, y, color.RGBAModel.Convert(src.At(sx, sy)))
		}
	}
	return dst
}
