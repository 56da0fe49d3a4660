package acquisition

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics exports receiver activity to Prometheus. A nil *Metrics records
// nothing.
type Metrics struct {
	gatherer prometheus.Gatherer

	Symbols         prometheus.Counter
	Peaks           prometheus.Counter
	Restarts        prometheus.Counter
	Detections      *prometheus.CounterVec // by nid2
	Cells           prometheus.Counter
	Errors          prometheus.Counter
	PeakCorrelation prometheus.Histogram
}

// NewMetrics registers the receiver metrics against reg, defaulting to the
// global registry when nil. Registering twice reuses the existing
// collectors.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	m := &Metrics{gatherer: gatherer}
	var err error
	if m.Symbols, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "nrsync_symbols_total",
		Help: "OFDM symbols consumed by the detector.",
	}), "nrsync_symbols_total"); err != nil {
		return nil, err
	}
	if m.Peaks, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "nrsync_pss_peaks_total",
		Help: "PSS correlation peaks at or above the detection threshold.",
	}), "nrsync_pss_peaks_total"); err != nil {
		return nil, err
	}
	if m.Restarts, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "nrsync_collection_restarts_total",
		Help: "Block collections abandoned for a later peak.",
	}), "nrsync_collection_restarts_total"); err != nil {
		return nil, err
	}
	if m.Detections, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "nrsync_ssb_detections_total",
		Help: "Completed SS/PBCH block collections, labeled by N_ID2.",
	}, []string{"nid2"}), "nrsync_ssb_detections_total"); err != nil {
		return nil, err
	}
	if m.Cells, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "nrsync_cells_decoded_total",
		Help: "Blocks decoded into a cell identity and PBCH payload.",
	}), "nrsync_cells_decoded_total"); err != nil {
		return nil, err
	}
	if m.Errors, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "nrsync_decode_errors_total",
		Help: "Detected blocks that failed to decode.",
	}), "nrsync_decode_errors_total"); err != nil {
		return nil, err
	}
	if m.PeakCorrelation, err = register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "nrsync_pss_peak_correlation",
		Help:    "PSS correlation magnitude of accepted peaks.",
		Buckets: prometheus.LinearBuckets(0, 16, 9),
	}), "nrsync_pss_peak_correlation"); err != nil {
		return nil, err
	}
	return m, nil
}

func register[T prometheus.Collector](reg prometheus.Registerer, c T, name string) (T, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
			var zero T
			return zero, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		var zero T
		return zero, fmt.Errorf("register %s: %w", name, err)
	}
	return c, nil
}

// Handler exposes the registry the metrics were registered against.
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func (m *Metrics) observeStep(s State) {
	if m == nil {
		return
	}
	m.Symbols.Inc()
	if s.Triggered {
		m.Peaks.Inc()
		m.PeakCorrelation.Observe(s.Peak.Correlation)
	}
	if s.Restarted {
		m.Restarts.Inc()
	}
}

func (m *Metrics) observeDetection(d *Detection) {
	if m == nil {
		return
	}
	m.Detections.WithLabelValues(strconv.Itoa(d.NID2)).Inc()
}

func (m *Metrics) observeDecode(err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.Errors.Inc()
		return
	}
	m.Cells.Inc()
}
