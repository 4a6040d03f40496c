package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/technosupport/physical-mcp/internal/alertqueue"
	"github.com/technosupport/physical-mcp/internal/camhealth"
	"github.com/technosupport/physical-mcp/internal/eventbus"
	"github.com/technosupport/physical-mcp/internal/stats"
)

func TestCollectExposesCameraAndStatsGauges(t *testing.T) {
	health := camhealth.New()
	health.RecordFrame("cam1", "Front Door")
	health.RecordAnalysisSuccess("cam1", "Front Door")

	st := stats.New(0, 120)
	st.RecordAnalysis()
	st.RecordAlert()

	alerts := alertqueue.New(0, 0)
	bus := eventbus.New("")
	bus.Subscribe("alert", func(eventbus.Event) error { return nil })

	c := NewCollector(Sources{Health: health, Stats: st, Alerts: alerts, Events: bus})
	c.collect()

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, req)
	require.Equal(t, 200, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, `physical_mcp_camera_up{camera_id="cam1"} 1`)
	assert.Contains(t, body, "physical_mcp_analyses_total 1")
	assert.Contains(t, body, "physical_mcp_alerts_total 1")
	assert.Contains(t, body, `physical_mcp_eventbus_subscribers{topic="alert"} 1`)
	assert.True(t, strings.Contains(body, "physical_mcp_alert_queue_depth 0"))
}

func TestLastSnapshotUpdatesAfterCollect(t *testing.T) {
	c := NewCollector(Sources{})
	assert.True(t, c.LastSnapshot().IsZero())
	c.collect()
	assert.False(t, c.LastSnapshot().IsZero())
}
