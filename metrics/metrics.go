// Package metrics exposes prometheus collectors for location resolution,
// reminder scheduling and the geocode cache.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type collectors struct {
	resolutionStages  *prometheus.CounterVec
	resolutionResults *prometheus.CounterVec
	remindersEnqueued prometheus.Counter
	remindersSkipped  prometheus.Counter
	remindersFired    *prometheus.CounterVec
	pendingReminders  prometheus.Gauge
	cacheHits         *prometheus.CounterVec
	cacheMisses       *prometheus.CounterVec
}

var (
	global     *collectors
	globalOnce sync.Once
)

func getCollectors() *collectors {
	globalOnce.Do(func() {
		global = &collectors{
			resolutionStages: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "ekadashi_location_stage_total",
					Help: "Location cascade stage attempts by stage and outcome",
				},
				[]string{"stage", "outcome"},
			),
			resolutionResults: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "ekadashi_location_resolution_total",
					Help: "Completed location resolutions by outcome",
				},
				[]string{"outcome"},
			),
			remindersEnqueued: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "ekadashi_reminders_enqueued_total",
					Help: "Reminders handed to the durable queue",
				},
			),
			remindersSkipped: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "ekadashi_reminders_skipped_total",
					Help: "Reminders skipped because their trigger instant was in the past",
				},
			),
			remindersFired: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "ekadashi_reminders_fired_total",
					Help: "Due reminders executed by outcome",
				},
				[]string{"outcome"},
			),
			pendingReminders: promauto.NewGauge(
				prometheus.GaugeOpts{
					Name: "ekadashi_reminders_pending",
					Help: "Reminders currently held by the durable queue",
				},
			),
			cacheHits: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "ekadashi_geocode_cache_hits_total",
					Help: "The total number of geocode cache hits",
				},
				[]string{"cache_type"},
			),
			cacheMisses: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "ekadashi_geocode_cache_misses_total",
					Help: "The total number of geocode cache misses",
				},
				[]string{"cache_type"},
			),
		}
	})
	return global
}

// ResolutionMetrics records location cascade activity. A nil receiver is a
// no-op so tests can pass nil freely.
type ResolutionMetrics struct {
	c *collectors
}

// NewResolutionMetrics creates a recorder for the location cascade
func NewResolutionMetrics() *ResolutionMetrics {
	return &ResolutionMetrics{c: getCollectors()}
}

// RecordStage counts one stage attempt with its outcome
func (m *ResolutionMetrics) RecordStage(stage, outcome string) {
	if m == nil {
		return
	}
	m.c.resolutionStages.WithLabelValues(stage, outcome).Inc()
}

// RecordResolution counts one completed resolution with its outcome
func (m *ResolutionMetrics) RecordResolution(outcome string) {
	if m == nil {
		return
	}
	m.c.resolutionResults.WithLabelValues(outcome).Inc()
}

// SchedulerMetrics records reminder queue activity; nil receiver is a no-op
type SchedulerMetrics struct {
	c *collectors
}

// NewSchedulerMetrics creates a recorder for the reminder queue
func NewSchedulerMetrics() *SchedulerMetrics {
	return &SchedulerMetrics{c: getCollectors()}
}

// RecordEnqueued counts reminders handed to the durable queue
func (m *SchedulerMetrics) RecordEnqueued(n int) {
	if m == nil {
		return
	}
	m.c.remindersEnqueued.Add(float64(n))
}

// RecordSkipped counts reminders skipped as already past
func (m *SchedulerMetrics) RecordSkipped(n int) {
	if m == nil {
		return
	}
	m.c.remindersSkipped.Add(float64(n))
}

// RecordFired counts one executed due reminder with its outcome
func (m *SchedulerMetrics) RecordFired(outcome string) {
	if m == nil {
		return
	}
	m.c.remindersFired.WithLabelValues(outcome).Inc()
}

// SetPending publishes the current pending-work gauge
func (m *SchedulerMetrics) SetPending(n int64) {
	if m == nil {
		return
	}
	m.c.pendingReminders.Set(float64(n))
}

// CacheMetrics records geocode cache hits and misses per cache type
type CacheMetrics struct {
	cacheType string
	c         *collectors
}

// NewCacheMetrics creates a recorder for one cache implementation
func NewCacheMetrics(cacheType string) *CacheMetrics {
	return &CacheMetrics{cacheType: cacheType, c: getCollectors()}
}

// RecordHit counts a cache hit
func (m *CacheMetrics) RecordHit() {
	if m == nil {
		return
	}
	m.c.cacheHits.WithLabelValues(m.cacheType).Inc()
}

// RecordMiss counts a cache miss
func (m *CacheMetrics) RecordMiss() {
	if m == nil {
		return
	}
	m.c.cacheMisses.WithLabelValues(m.cacheType).Inc()
}
