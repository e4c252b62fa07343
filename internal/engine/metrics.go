// SPDX-License-Identifier: MIT

package engine

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics collects counters and duration histograms for Engine
// operations, following the same prometheus.NewGaugeFunc/Register
// style cmd/qrank-webserver uses for its own "last modified" gauge,
// generalized here into a small bundle a caller registers once (via
// NewMetrics) and then passes to Open via WithMetrics.
type Metrics struct {
	TilesDecoded    prometheus.Counter
	TilesWritten    prometheus.Counter
	ImportDuration  prometheus.Histogram
	ReadDuration    prometheus.Histogram
	PyramidDuration prometheus.Histogram
	Errors          *prometheus.CounterVec
}

// NewMetrics creates a Metrics bundle under the "rl2" namespace and
// registers it with reg. Pass prometheus.DefaultRegisterer to expose it
// on the default /metrics handler (promhttp.Handler()).
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		TilesDecoded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "rl2", Name: "tiles_decoded_total",
			Help: "Number of tiles decoded while serving windowed reads.",
		}),
		TilesWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "rl2", Name: "tiles_written_total",
			Help: "Number of tiles written while importing raster sections.",
		}),
		ImportDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "rl2", Name: "import_duration_seconds",
			Help:    "Wall-clock time spent importing one raster file.",
			Buckets: prometheus.DefBuckets,
		}),
		ReadDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "rl2", Name: "read_duration_seconds",
			Help:    "Wall-clock time spent serving one windowed read.",
			Buckets: prometheus.DefBuckets,
		}),
		PyramidDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "rl2", Name: "pyramid_build_duration_seconds",
			Help:    "Wall-clock time spent building or rebuilding a section's pyramid.",
			Buckets: prometheus.DefBuckets,
		}),
		Errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rl2", Name: "operation_errors_total",
			Help: "Number of Engine operations that returned an error, by operation.",
		}, []string{"operation"}),
	}
	for _, c := range []prometheus.Collector{m.TilesDecoded, m.TilesWritten, m.ImportDuration, m.ReadDuration, m.PyramidDuration, m.Errors} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (e *Engine) metricsStart() time.Time {
	return time.Now()
}

func (e *Engine) metricsObserveImport(start time.Time, err error) {
	if e.metrics == nil {
		return
	}
	e.metrics.ImportDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		e.metrics.Errors.WithLabelValues("import").Inc()
	}
}

func (e *Engine) metricsObserveRead(start time.Time, err error) {
	if e.metrics == nil {
		return
	}
	e.metrics.ReadDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		e.metrics.Errors.WithLabelValues("read").Inc()
	}
}

func (e *Engine) metricsObservePyramid(start time.Time, err error) {
	if e.metrics == nil {
		return
	}
	e.metrics.PyramidDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		e.metrics.Errors.WithLabelValues("pyramid_build").Inc()
	}
}
