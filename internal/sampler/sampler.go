// Package sampler implements the cost gate that decides whether a
// captured frame is worth sending to a vision-language model.
package sampler

import (
	"time"

	"github.com/technosupport/physical-mcp/internal/changedetect"
	"github.com/technosupport/physical-mcp/internal/frame"
)

// minorDebounceMultiplier makes the MINOR debounce window 1.5x longer
// than MODERATE's, so subtle flicker needs more sustained evidence
// before it costs an LLM call.
const minorDebounceMultiplier = 1.5

// Config tunes the sampler's timing knobs.
type Config struct {
	HeartbeatInterval time.Duration
	DebounceSeconds   time.Duration
	CooldownSeconds   time.Duration
}

// DefaultConfig matches the reference implementation's defaults.
func DefaultConfig() Config {
	return Config{
		HeartbeatInterval: 300 * time.Second,
		DebounceSeconds:   3 * time.Second,
		CooldownSeconds:   10 * time.Second,
	}
}

// Sampler wraps a per-camera Detector with the pending-debounce state
// machine described in spec §4.4. Not safe for concurrent use by more
// than one goroutine — each camera's perception loop owns its Sampler.
type Sampler struct {
	detector *changedetect.Detector
	cfg      Config

	lastAnalysis time.Time

	pendingModerate bool
	moderateAt      time.Time
	pendingMinor    bool
	minorAt         time.Time
}

// New creates a Sampler driving the given Detector.
func New(detector *changedetect.Detector, cfg Config) *Sampler {
	return &Sampler{detector: detector, cfg: cfg}
}

// ShouldAnalyze evaluates whether now's frame warrants a VLM call.
// hasActiveRules gates everything: with no watch rules, the sampler
// never auto-triggers, keeping idle cost at zero.
func (s *Sampler) ShouldAnalyze(f frame.Frame, now time.Time, hasActiveRules bool) (bool, changedetect.Result) {
	result := s.detector.Detect(f)
	return s.decide(result, now, hasActiveRules), result
}

// decide runs the ordered decision table from spec §4.4 against an
// already-computed ChangeResult — split out so tests can drive the
// state machine without constructing real frames.
func (s *Sampler) decide(result changedetect.Result, now time.Time, hasActiveRules bool) bool {
	if !hasActiveRules {
		return false
	}

	sinceLast := now.Sub(s.lastAnalysis)
	if s.lastAnalysis.IsZero() {
		sinceLast = time.Duration(1<<62 - 1)
	}
	if sinceLast < s.cfg.CooldownSeconds {
		return false
	}

	// Pending-debounce firing: a prior MODERATE/MINOR spike that has
	// aged past its debounce window fires now even if the current
	// frame reads calm. This is what catches a brief action (a quick
	// sip) that spikes once and settles the very next tick.
	if s.pendingModerate {
		if now.Sub(s.moderateAt) >= s.cfg.DebounceSeconds {
			s.lastAnalysis = now
			s.pendingModerate = false
			s.pendingMinor = false
			return true
		}
	}
	if s.pendingMinor {
		minorDebounce := time.Duration(float64(s.cfg.DebounceSeconds) * minorDebounceMultiplier)
		if now.Sub(s.minorAt) >= minorDebounce {
			s.lastAnalysis = now
			s.pendingMinor = false
			return true
		}
	}

	switch result.Level {
	case changedetect.LevelMajor:
		s.lastAnalysis = now
		s.pendingModerate = false
		s.pendingMinor = false
		return true

	case changedetect.LevelModerate:
		if !s.pendingModerate {
			s.pendingModerate = true
			s.moderateAt = now
			s.pendingMinor = false // moderate supersedes minor
		}
		return false

	case changedetect.LevelMinor:
		if !s.pendingMinor && !s.pendingModerate {
			s.pendingMinor = true
			s.minorAt = now
		}
		return false

	default: // LevelNone
		if sinceLast >= s.cfg.HeartbeatInterval {
			s.lastAnalysis = now
			return true
		}
		return false
	}
}
