// Package sampler implements the Frame Sampler (spec §4.1): a perceptual
// change detector that decides whether a newly captured frame differs
// enough from the last one to warrant processing.
//
// No example repo in the retrieval pack does perceptual frame diffing, so
// this is built directly from spec.md using the standard image package for
// decode/resample — deliberately: no pack dependency covers a 16x16
// grayscale nearest-neighbor thumbnail, and reaching for a perceptual-hash
// library would be a heavier dependency than the operation warrants (see
// DESIGN.md).
package sampler

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"sync"
)

// Config exposes the Sampler's tunables, addressing Open Question/Design
// Note §9: thumbnail size and per-pixel delta threshold were hard-coded
// magic numbers in the source; here they are configuration.
type Config struct {
	ThumbnailSize   int     // default 16 (square)
	DiffThreshold   float64 // default 0.05
	PixelDelta      uint8   // default 25
	HeartbeatEvery  int     // default 5: after 4 consecutive skips the 5th frame is accepted
}

// DefaultConfig returns the spec's documented defaults.
func DefaultConfig() Config {
	return Config{
		ThumbnailSize:  16,
		DiffThreshold:  0.05,
		PixelDelta:     25,
		HeartbeatEvery: 5,
	}
}

// Sampler maintains one cached thumbnail and the bookkeeping needed to
// implement hasChanged's four trigger conditions (spec §4.1).
type Sampler struct {
	cfg Config

	mu        sync.Mutex
	thumb     []byte // cached grayscale thumbnail, len == size*size
	skips     int
	forceNext bool
}

// New constructs a Sampler with cfg, filling in documented defaults for any
// zero field.
func New(cfg Config) *Sampler {
	if cfg.ThumbnailSize <= 0 {
		cfg.ThumbnailSize = 16
	}
	if cfg.DiffThreshold <= 0 {
		cfg.DiffThreshold = 0.05
	}
	if cfg.PixelDelta == 0 {
		cfg.PixelDelta = 25
	}
	if cfg.HeartbeatEvery <= 0 {
		cfg.HeartbeatEvery = 5
	}
	return &Sampler{cfg: cfg}
}

// ForceCapture sets a one-shot flag consumed by the next HasChanged call.
func (s *Sampler) ForceCapture() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.forceNext = true
}

// Reset clears the cached thumbnail, skip counter and force flag.
func (s *Sampler) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.thumb = nil
	s.skips = 0
	s.forceNext = false
}

// HasChanged decides whether frame differs enough from the cached
// thumbnail to warrant processing, per spec §4.1's four conditions.
// Resampling errors propagate with no partial state mutated.
func (s *Sampler) HasChanged(frame []byte) (bool, error) {
	thumb, err := resampleGrayscale(frame, s.cfg.ThumbnailSize)
	if err != nil {
		return false, fmt.Errorf("resample frame: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.forceNext {
		s.forceNext = false
		s.thumb = thumb
		s.skips = 0
		return true, nil
	}
	if s.thumb == nil {
		s.thumb = thumb
		s.skips = 0
		return true, nil
	}

	ratio := diffRatio(s.thumb, thumb, s.cfg.PixelDelta)
	if ratio > s.cfg.DiffThreshold {
		s.thumb = thumb
		s.skips = 0
		return true, nil
	}
	if s.skips+1 >= s.cfg.HeartbeatEvery {
		s.thumb = thumb
		s.skips = 0
		return true, nil
	}
	s.skips++
	return false, nil
}

// diffRatio compares corresponding grayscale bytes, counting pixels whose
// absolute delta exceeds delta (to ignore JPEG compression noise), divided
// by total compared pixels. If either thumbnail is empty the ratio is 1.
func diffRatio(a, b []byte, delta uint8) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 1
	}
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	if n == 0 {
		return 1
	}
	var differing int
	for i := 0; i < n; i++ {
		d := int(a[i]) - int(b[i])
		if d < 0 {
			d = -d
		}
		if d > int(delta) {
			differing++
		}
	}
	return float64(differing) / float64(n)
}

// resampleGrayscale decodes frame (JPEG or PNG) and fill-fit resamples it
// into a size x size grayscale thumbnail, returned as a flat byte slice.
func resampleGrayscale(frame []byte, size int) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(frame))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	// Fill-fit nearest-neighbor resample: the thumbnail is for coarse
	// perceptual diffing only, so a full filtering kernel is unwarranted.
	bounds := img.Bounds()
	srcW, srcH := bounds.Dx(), bounds.Dy()
	out := make([]byte, size*size)
	if srcW == 0 || srcH == 0 {
		return out, nil
	}
	for y := 0; y < size; y++ {
		srcY := bounds.Min.Y + y*srcH/size
		for x := 0; x < size; x++ {
			srcX := bounds.Min.X + x*srcW/size
			gray := color.GrayModel.Convert(img.At(srcX, srcY)).(color.Gray)
			out[y*size+x] = gray.Y
		}
	}
	return out, nil
}
