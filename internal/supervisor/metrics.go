package supervisor

import (
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shirou/gopsutil/v3/cpu"
)

// Metrics registers the gauges the Supervisor updates as status events and
// control commands pass through it (spec.md §4.5 level meters, clip
// counter, rate-adjust ratio), mirroring the teacher's MetricsCollector
// enabled-flag pattern (internal/audiocore/metrics.go) but registered
// in-process with no HTTP exposition, since the websocket/HTTP control
// surface is out of scope.
type Metrics struct {
	mu      sync.Mutex
	enabled bool

	playbackPeak *prometheus.GaugeVec
	clipped      prometheus.Gauge
	rateAdjust   prometheus.Gauge
}

// NewMetrics builds and registers a Metrics against reg. A nil registry
// disables recording, matching the teacher's "metricsInstance != nil"
// no-op mode.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{enabled: reg != nil}
	if !m.enabled {
		return m
	}

	m.playbackPeak = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "camilladsp",
		Name:      "playback_peak_level",
		Help:      "Most recent per-channel playback peak level.",
	}, []string{"channel"})
	m.clipped = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "camilladsp",
		Name:      "clipped_samples_total",
		Help:      "Cumulative out-of-range sample count since the last reset.",
	})
	m.rateAdjust = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "camilladsp",
		Name:      "rate_adjust_ratio",
		Help:      "Current capture/playback rate-adjust ratio.",
	})

	reg.MustRegister(m.playbackPeak, m.clipped, m.rateAdjust)
	return m
}

// RecordLevels publishes a per-channel playback peak snapshot.
func (m *Metrics) RecordLevels(peak []float64) {
	if !m.enabled {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for ch, v := range peak {
		m.playbackPeak.WithLabelValues(strconv.Itoa(ch)).Set(v)
	}
}

// RecordClipped publishes the current cumulative clip count.
func (m *Metrics) RecordClipped(n int) {
	if !m.enabled {
		return
	}
	m.clipped.Set(float64(n))
}

// RecordRateAdjust publishes the current rate-adjust ratio.
func (m *Metrics) RecordRateAdjust(ratio float64) {
	if !m.enabled {
		return
	}
	m.rateAdjust.Set(ratio)
}

// processingLoad samples instantaneous CPU utilization as a 0-100 value
// for GetProcessingLoad (spec.md §6), grounded on the teacher's
// internal/monitor.SystemMonitor use of gopsutil's cpu.Percent.
func processingLoad() float64 {
	pct, err := cpu.Percent(0, false)
	if err != nil || len(pct) == 0 {
		return 0
	}
	return pct[0]
}
