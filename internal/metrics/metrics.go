// SPDX-License-Identifier: MIT
// Package metrics provides Prometheus instrumentation for the visualizer
// pipeline. All recording methods are no-ops on a nil *Metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "audioviz"

// Metrics contains the pipeline collectors.
type Metrics struct {
	registry *prometheus.Registry

	// Producer edge
	chunksEnqueued prometheus.Counter
	streamErrors   prometheus.Counter
	queueDepth     prometheus.Gauge

	// Ingestion
	chunksIngested   prometheus.Counter
	samplesDiscarded prometheus.Counter
	samplesEvicted   prometheus.Counter

	// Analysis and output
	spectrumTicks  *prometheus.CounterVec
	tickDuration   prometheus.Histogram
	framesRendered prometheus.Counter
	renderErrors   prometheus.Counter

	collectors []prometheus.Collector
}

// New creates the collectors and registers them with registry.
func New(registry *prometheus.Registry) (*Metrics, error) {
	m := &Metrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Metrics) initMetrics() {
	m.chunksEnqueued = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "chunks_enqueued_total",
		Help:      "Total number of captured chunks handed to the queue",
	})
	m.streamErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "stream_errors_total",
		Help:      "Total number of errors reported by the capture stream",
	})
	m.queueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "queue_depth",
		Help:      "Chunks waiting for the consumer at the start of the last tick",
	})

	m.chunksIngested = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "chunks_ingested_total",
		Help:      "Total number of chunks de-interleaved into channel buffers",
	})
	m.samplesDiscarded = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "samples_discarded_total",
		Help:      "Samples dropped because they formed an incomplete trailing frame",
	})
	m.samplesEvicted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "samples_evicted_total",
		Help:      "Samples evicted from full channel buffers",
	})

	m.spectrumTicks = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "spectrum_ticks_total",
		Help:      "Consumer ticks by whether a spectrum could be computed",
	}, []string{"ready"})
	m.tickDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "tick_duration_seconds",
		Help:      "Time taken to drain, ingest and analyse one tick",
		Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 12), // 100µs to ~200ms
	})
	m.framesRendered = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "frames_rendered_total",
		Help:      "Total number of frames handed to renderers without error",
	})
	m.renderErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "render_errors_total",
		Help:      "Total number of frames a renderer failed to output",
	})

	m.collectors = []prometheus.Collector{
		m.chunksEnqueued, m.streamErrors, m.queueDepth,
		m.chunksIngested, m.samplesDiscarded, m.samplesEvicted,
		m.spectrumTicks, m.tickDuration, m.framesRendered, m.renderErrors,
	}
}

// Describe implements the Collector interface
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	for _, collector := range m.collectors {
		collector.Describe(ch)
	}
}

// Collect implements the Collector interface
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	for _, collector := range m.collectors {
		collector.Collect(ch)
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) ChunkEnqueued() {
	if m == nil {
		return
	}
	m.chunksEnqueued.Inc()
}

func (m *Metrics) StreamError() {
	if m == nil {
		return
	}
	m.streamErrors.Inc()
}

func (m *Metrics) SetQueueDepth(depth int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(depth))
}

// RecordIngest records one ingested chunk.
func (m *Metrics) RecordIngest(discarded, evicted int) {
	if m == nil {
		return
	}
	m.chunksIngested.Inc()
	m.samplesDiscarded.Add(float64(discarded))
	m.samplesEvicted.Add(float64(evicted))
}

// RecordTick records the outcome and duration of one consumer tick.
func (m *Metrics) RecordTick(ready bool, d time.Duration) {
	if m == nil {
		return
	}
	m.spectrumTicks.WithLabelValues(strconv.FormatBool(ready)).Inc()
	m.tickDuration.Observe(d.Seconds())
}

// RecordRender records the result of rendering one frame.
func (m *Metrics) RecordRender(err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.renderErrors.Inc()
		return
	}
	m.framesRendered.Inc()
}
