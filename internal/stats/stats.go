// Package stats tracks analysis volume, cost estimate and alert counts
// so the daemon can self-limit spend and report usage via the API.
package stats

import (
	"sync"
	"time"
)

// costPerAnalysisUSD is a rough per-call estimate for a vision LLM
// request with one image, used only to project budget usage — not an
// accounting-grade figure.
const costPerAnalysisUSD = 0.0003

// Tracker accumulates analysis/alert counters. Safe for concurrent use.
type Tracker struct {
	mu sync.Mutex

	dailyBudgetUSD float64 // 0 = unlimited
	maxPerHour     int

	startTime      time.Time
	totalAnalyses  int
	totalAlerts    int
	today          time.Time // truncated to day
	todayAnalyses  int
	hourAnalyses   []time.Time
}

// New creates a Tracker. dailyBudgetUSD <= 0 means unlimited spend;
// maxPerHour <= 0 falls back to 120 (the reference default).
func New(dailyBudgetUSD float64, maxPerHour int) *Tracker {
	if maxPerHour <= 0 {
		maxPerHour = 120
	}
	now := time.Now()
	return &Tracker{
		dailyBudgetUSD: dailyBudgetUSD,
		maxPerHour:     maxPerHour,
		startTime:      now,
		today:          now.Truncate(24 * time.Hour),
	}
}

func (t *Tracker) checkDayRolloverLocked() {
	today := time.Now().Truncate(24 * time.Hour)
	if !today.Equal(t.today) {
		t.today = today
		t.todayAnalyses = 0
	}
}

func (t *Tracker) pruneHourLocked() {
	cutoff := time.Now().Add(-time.Hour)
	kept := t.hourAnalyses[:0:0]
	for _, ts := range t.hourAnalyses {
		if !ts.Before(cutoff) {
			kept = append(kept, ts)
		}
	}
	t.hourAnalyses = kept
}

// RecordAnalysis logs one completed analysis call.
func (t *Tracker) RecordAnalysis() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.checkDayRolloverLocked()
	t.totalAnalyses++
	t.todayAnalyses++
	t.hourAnalyses = append(t.hourAnalyses, time.Now())
	t.pruneHourLocked()
}

// RecordAlert logs one alert fired.
func (t *Tracker) RecordAlert() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.totalAlerts++
}

// BudgetExceeded reports whether today's estimated spend or this
// hour's call volume has crossed its configured limit.
func (t *Tracker) BudgetExceeded() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.checkDayRolloverLocked()

	if t.dailyBudgetUSD > 0 {
		estimated := float64(t.todayAnalyses) * costPerAnalysisUSD
		if estimated >= t.dailyBudgetUSD {
			return true
		}
	}

	t.pruneHourLocked()
	return len(t.hourAnalyses) >= t.maxPerHour
}

// Summary is the reportable snapshot of tracked stats.
type Summary struct {
	TotalAnalyses        int
	TodayAnalyses        int
	EstimatedTodayCostUSD float64
	DailyBudgetUSD        float64
	BudgetRemainingPct    *float64
	AnalysesThisHour      int
	MaxPerHour            int
	TotalAlerts           int
	UptimeSeconds         float64
}

// Summary returns the current stats snapshot.
func (t *Tracker) Summary() Summary {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.checkDayRolloverLocked()
	t.pruneHourLocked()

	estimatedToday := float64(t.todayAnalyses) * costPerAnalysisUSD

	var remainingPct *float64
	if t.dailyBudgetUSD > 0 {
		pct := (1 - estimatedToday/t.dailyBudgetUSD) * 100
		remainingPct = &pct
	}

	return Summary{
		TotalAnalyses:         t.totalAnalyses,
		TodayAnalyses:         t.todayAnalyses,
		EstimatedTodayCostUSD: estimatedToday,
		DailyBudgetUSD:        t.dailyBudgetUSD,
		BudgetRemainingPct:    remainingPct,
		AnalysesThisHour:      len(t.hourAnalyses),
		MaxPerHour:            t.maxPerHour,
		TotalAlerts:           t.totalAlerts,
		UptimeSeconds:         time.Since(t.startTime).Seconds(),
	}
}
