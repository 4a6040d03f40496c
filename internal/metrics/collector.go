// Package metrics exposes the daemon's operational counters as
// Prometheus gauges, polled from the same shared components the REST
// API and MCP tool server read from.
package metrics

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/technosupport/physical-mcp/internal/alertqueue"
	"github.com/technosupport/physical-mcp/internal/camhealth"
	"github.com/technosupport/physical-mcp/internal/eventbus"
	"github.com/technosupport/physical-mcp/internal/stats"
)

// busTopics are the topics the collector reports subscriber counts
// for — the fixed set perception/mcpserver/visionapi actually publish
// and subscribe to.
var busTopics = []string{"alert", "scene_change", "mcp_log"}

// Sources wires the collector to the daemon's shared state. All
// fields are required.
type Sources struct {
	Health *camhealth.Tracker
	Stats  *stats.Tracker
	Alerts *alertqueue.Queue
	Events *eventbus.Bus
}

// Collector polls Sources on an interval and exposes them as
// Prometheus gauges via Handler().
type Collector struct {
	sources  Sources
	registry *prometheus.Registry

	mu           sync.Mutex
	lastSnapshot time.Time

	cameraUp                *prometheus.GaugeVec
	cameraConsecutiveErrors *prometheus.GaugeVec
	cameraLastFrameAgeSecs  *prometheus.GaugeVec

	analysesTotal      prometheus.Gauge
	analysesToday       prometheus.Gauge
	analysesThisHour    prometheus.Gauge
	estimatedCostToday  prometheus.Gauge
	alertsTotal         prometheus.Gauge
	alertQueueDepth     prometheus.Gauge
	uptimeSeconds       prometheus.Gauge
	eventBusSubscribers *prometheus.GaugeVec
}

// NewCollector builds a Collector and registers all of its gauges
// against a fresh registry.
func NewCollector(sources Sources) *Collector {
	reg := prometheus.NewRegistry()
	c := &Collector{sources: sources, registry: reg}

	c.cameraUp = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "physical_mcp_camera_up",
		Help: "1 if the camera's status is running or starting, 0 if degraded/backoff/unknown",
	}, []string{"camera_id"})
	c.cameraConsecutiveErrors = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "physical_mcp_camera_consecutive_errors",
		Help: "Consecutive vision-provider analysis errors for this camera",
	}, []string{"camera_id"})
	c.cameraLastFrameAgeSecs = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "physical_mcp_camera_last_frame_age_seconds",
		Help: "Seconds since the last frame was captured for this camera",
	}, []string{"camera_id"})

	c.analysesTotal = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "physical_mcp_analyses_total",
		Help: "Total vision-provider analysis calls made since startup",
	})
	c.analysesToday = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "physical_mcp_analyses_today",
		Help: "Vision-provider analysis calls made so far today",
	})
	c.analysesThisHour = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "physical_mcp_analyses_this_hour",
		Help: "Vision-provider analysis calls made in the trailing hour",
	})
	c.estimatedCostToday = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "physical_mcp_estimated_cost_today_usd",
		Help: "Rough estimated spend on vision-provider calls today",
	})
	c.alertsTotal = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "physical_mcp_alerts_total",
		Help: "Total watch-rule alerts fired since startup",
	})
	c.alertQueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "physical_mcp_alert_queue_depth",
		Help: "Pending alerts awaiting client-side evaluation",
	})
	c.uptimeSeconds = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "physical_mcp_uptime_seconds",
		Help: "Seconds since the stats tracker was created",
	})
	c.eventBusSubscribers = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "physical_mcp_eventbus_subscribers",
		Help: "Active EventBus subscriber count per topic",
	}, []string{"topic"})

	reg.MustRegister(
		c.cameraUp, c.cameraConsecutiveErrors, c.cameraLastFrameAgeSecs,
		c.analysesTotal, c.analysesToday, c.analysesThisHour, c.estimatedCostToday,
		c.alertsTotal, c.alertQueueDepth, c.uptimeSeconds, c.eventBusSubscribers,
	)

	return c
}

// Start polls Sources every interval until ctx is cancelled.
func (c *Collector) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	c.collect()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.collect()
		}
	}
}

// Handler returns the promhttp handler for this collector's registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Collector) collect() {
	now := time.Now()

	if c.sources.Health != nil {
		for id, h := range c.sources.Health.All() {
			up := 0.0
			if h.Status == camhealth.StatusRunning || h.Status == camhealth.StatusStarting {
				up = 1.0
			}
			c.cameraUp.WithLabelValues(id).Set(up)
			c.cameraConsecutiveErrors.WithLabelValues(id).Set(float64(h.ConsecutiveErrors))
			if h.LastFrameAt != nil {
				c.cameraLastFrameAgeSecs.WithLabelValues(id).Set(now.Sub(*h.LastFrameAt).Seconds())
			}
		}
	}

	if c.sources.Stats != nil {
		summary := c.sources.Stats.Summary()
		c.analysesTotal.Set(float64(summary.TotalAnalyses))
		c.analysesToday.Set(float64(summary.TodayAnalyses))
		c.analysesThisHour.Set(float64(summary.AnalysesThisHour))
		c.estimatedCostToday.Set(summary.EstimatedTodayCostUSD)
		c.alertsTotal.Set(float64(summary.TotalAlerts))
		c.uptimeSeconds.Set(summary.UptimeSeconds)
	}

	if c.sources.Alerts != nil {
		c.alertQueueDepth.Set(float64(c.sources.Alerts.Size()))
	}

	if c.sources.Events != nil {
		for _, topic := range busTopics {
			c.eventBusSubscribers.WithLabelValues(topic).Set(float64(c.sources.Events.SubscriberCount(topic)))
		}
	}

	c.mu.Lock()
	c.lastSnapshot = now
	c.mu.Unlock()
}

// LastSnapshot reports when metrics were last polled.
func (c *Collector) LastSnapshot() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastSnapshot
}
