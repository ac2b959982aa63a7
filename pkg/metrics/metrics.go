package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	OutcomeSuccess  = "success"
	OutcomeOCRError = "ocr_error"
	OutcomeTimeout  = "timeout"
	OutcomeRejected = "rejected"
)

// Metrics tracks extraction volume, latency and result quality.
type Metrics struct {
	Extractions        *prometheus.CounterVec
	ExtractionDuration prometheus.Histogram
	Completeness       prometheus.Histogram
	ParseWarnings      prometheus.Counter
	OCRFailures        *prometheus.CounterVec
	Detections         *prometheus.CounterVec
}

// New registers the extraction metrics on reg. A nil reg uses a private
// registry so tests can build as many instances as they need.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Metrics{
		Extractions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ktp_extractions_total",
			Help: "Total number of KTP extractions by outcome",
		}, []string{"outcome"}),
		ExtractionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "ktp_extraction_duration_seconds",
			Help:    "Duration of a full extraction including preprocessing and OCR",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		Completeness: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "ktp_extraction_completeness_ratio",
			Help:    "Fraction of the 15 KTP fields resolved per extraction",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		}),
		ParseWarnings: factory.NewCounter(prometheus.CounterOpts{
			Name: "ktp_parse_warnings_total",
			Help: "Total number of parse warnings emitted",
		}),
		OCRFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ktp_ocr_failures_total",
			Help: "Total number of OCR engine failures by engine",
		}, []string{"engine"}),
		Detections: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ktp_frame_detections_total",
			Help: "Total number of detector runs on capture frames by result",
		}, []string{"result"}),
	}
}

// ObserveExtraction records a finished extraction. Call with time.Now() at
// the start of the operation.
func (m *Metrics) ObserveExtraction(start time.Time, outcome string, completeness float64, warnings int) {
	m.Extractions.WithLabelValues(outcome).Inc()
	m.ExtractionDuration.Observe(time.Since(start).Seconds())
	if outcome == OutcomeSuccess {
		m.Completeness.Observe(completeness)
		m.ParseWarnings.Add(float64(warnings))
	}
}

func (m *Metrics) IncrementOCRFailure(engine string) {
	m.OCRFailures.WithLabelValues(engine).Inc()
}

func (m *Metrics) IncrementDetection(found bool) {
	if found {
		m.Detections.WithLabelValues("card").Inc()
		return
	}
	m.Detections.WithLabelValues("no_card").Inc()
}
