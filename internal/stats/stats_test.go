package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRecordAnalysisIncrementsCounters(t *testing.T) {
	tr := New(0, 120)
	tr.RecordAnalysis()
	tr.RecordAnalysis()

	s := tr.Summary()
	assert.Equal(t, 2, s.TotalAnalyses)
	assert.Equal(t, 2, s.TodayAnalyses)
	assert.Equal(t, 2, s.AnalysesThisHour)
}

func TestRecordAlertIncrementsTotal(t *testing.T) {
	tr := New(0, 120)
	tr.RecordAlert()
	tr.RecordAlert()
	tr.RecordAlert()
	assert.Equal(t, 3, tr.Summary().TotalAlerts)
}

func TestBudgetExceededByHourlyRate(t *testing.T) {
	tr := New(0, 2)
	tr.RecordAnalysis()
	tr.RecordAnalysis()
	assert.True(t, tr.BudgetExceeded())
}

func TestBudgetNotExceededUnderLimits(t *testing.T) {
	tr := New(10.0, 120)
	tr.RecordAnalysis()
	assert.False(t, tr.BudgetExceeded())
}

func TestBudgetExceededByDailySpend(t *testing.T) {
	tr := New(0.0003, 1000) // one analysis worth of budget
	tr.RecordAnalysis()
	assert.True(t, tr.BudgetExceeded())
}

func TestSummaryBudgetRemainingPctNilWhenUnlimited(t *testing.T) {
	tr := New(0, 120)
	s := tr.Summary()
	assert.Nil(t, s.BudgetRemainingPct)
}

func TestSummaryBudgetRemainingPctSetWhenLimited(t *testing.T) {
	tr := New(1.0, 120)
	tr.RecordAnalysis()
	s := tr.Summary()
	if assert.NotNil(t, s.BudgetRemainingPct) {
		assert.Greater(t, *s.BudgetRemainingPct, 0.0)
	}
}
