// Package metrics holds the Prometheus collectors of a Converter.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "ggconvert"

// Metrics is a set of conversion collectors on their own registry. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	reg *prometheus.Registry

	conversions *prometheus.CounterVec
	pages       *prometheus.CounterVec
	tiles       prometheus.Counter
	resident    prometheus.Gauge
	duration    *prometheus.HistogramVec
}

// New creates the collectors and registers them, together with the Go
// runtime collectors, on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		conversions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conversions_total",
			Help:      "Conversions finished, by output format and result.",
		}, []string{"format", "result"}),
		pages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pages_total",
			Help:      "Pages processed, by result.",
		}, []string{"result"}),
		tiles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tiles_rendered_total",
			Help:      "Raster tiles rendered.",
		}),
		resident: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "resident_tile_pixels",
			Help:      "Tile pixels currently held in memory.",
		}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "conversion_duration_seconds",
			Help:      "Wall time of finished conversions.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
		}, []string{"format"}),
	}
	m.reg.MustRegister(
		m.conversions, m.pages, m.tiles, m.resident, m.duration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.reg
}

// Handler serves the collectors in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// Conversion records a finished conversion. result is "ok", "error" or
// "cancelled".
func (m *Metrics) Conversion(format, result string, d time.Duration) {
	if m == nil {
		return
	}
	m.conversions.WithLabelValues(format, result).Inc()
	m.duration.WithLabelValues(format).Observe(d.Seconds())
}

// Page records one page. result is "ok" or "failed".
func (m *Metrics) Page(result string) {
	if m == nil {
		return
	}
	m.pages.WithLabelValues(result).Inc()
}

// Tiles records rendered tiles.
func (m *Metrics) Tiles(n int) {
	if m == nil {
		return
	}
	m.tiles.Add(float64(n))
}

// Resident adjusts the resident tile pixel gauge by delta.
func (m *Metrics) Resident(delta int64) {
	if m == nil {
		return
	}
	m.resident.Add(float64(delta))
}
