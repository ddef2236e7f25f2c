package metrics

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/nao1215/calibreport/internal/model"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ErrWriteFailed is returned when the textfile cannot be written.
var ErrWriteFailed = errors.New("metrics textfile write failed")

// Label names.
const (
	labelReport   = "report"
	labelBin      = "bin"
	labelStrategy = "strategy"
)

// Recorder records calibration metrics on its own registry.
// It is safe for concurrent use.
type Recorder struct {
	namespace   string
	buckets     []float64
	constLabels prometheus.Labels
	registry    *prometheus.Registry

	ece             *prometheus.GaugeVec
	accuracy        *prometheus.GaugeVec
	records         *prometheus.GaugeVec
	grade           *prometheus.GaugeVec
	binSamples      *prometheus.GaugeVec
	binGap          *prometheus.GaugeVec
	reportsObserved prometheus.Counter
	buildFailures   prometheus.Counter
	buildDuration   prometheus.Histogram
}

// NewRecorder creates a Recorder with a fresh registry.
func NewRecorder(opts ...Option) *Recorder {
	r := &Recorder{
		namespace: "calibreport",
		buckets:   prometheus.DefBuckets,
		registry:  prometheus.NewRegistry(),
	}

	for _, opt := range opts {
		opt(r)
	}

	r.initializeMetrics()

	return r
}

// initializeMetrics creates all the Prometheus metrics.
func (r *Recorder) initializeMetrics() {
	auto := promauto.With(r.registry)

	r.ece = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace:   r.namespace,
		Name:        "expected_calibration_error",
		Help:        "Expected calibration error of the latest report",
		ConstLabels: r.constLabels,
	}, []string{labelReport, labelStrategy})

	r.accuracy = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace:   r.namespace,
		Name:        "overall_accuracy_ratio",
		Help:        "Fraction of positive outcomes; absent for reports without records",
		ConstLabels: r.constLabels,
	}, []string{labelReport})

	r.records = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace:   r.namespace,
		Name:        "records",
		Help:        "Number of evaluation records in the latest report",
		ConstLabels: r.constLabels,
	}, []string{labelReport})

	r.grade = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace:   r.namespace,
		Name:        "grade",
		Help:        "Calibration grade: 0 ungraded, 1 well, 2 slight, 3 moderate, 4 severe",
		ConstLabels: r.constLabels,
	}, []string{labelReport})

	r.binSamples = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace:   r.namespace,
		Name:        "bin_samples",
		Help:        "Number of records per bin",
		ConstLabels: r.constLabels,
	}, []string{labelReport, labelBin})

	r.binGap = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace:   r.namespace,
		Name:        "bin_calibration_gap",
		Help:        "Absolute difference between mean confidence and mean accuracy per populated bin",
		ConstLabels: r.constLabels,
	}, []string{labelReport, labelBin})

	r.reportsObserved = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   r.namespace,
		Name:        "reports_observed_total",
		Help:        "Total number of reports observed, group reports included",
		ConstLabels: r.constLabels,
	})

	r.buildFailures = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   r.namespace,
		Name:        "build_failures_total",
		Help:        "Total number of inputs that failed to produce a report",
		ConstLabels: r.constLabels,
	})

	r.buildDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   r.namespace,
		Name:        "build_duration_seconds",
		Help:        "Time spent building one report",
		Buckets:     r.buckets,
		ConstLabels: r.constLabels,
	})
}

// ObserveReport sets the gauges for the report called name.
// Series from an earlier report with the same name are replaced.
func (r *Recorder) ObserveReport(name string, rep *model.Report) {
	match := prometheus.Labels{labelReport: name}
	r.ece.DeletePartialMatch(match)
	r.binSamples.DeletePartialMatch(match)
	r.binGap.DeletePartialMatch(match)
	r.accuracy.DeletePartialMatch(match)

	r.ece.WithLabelValues(name, rep.GeneratedWith().BinStrategy.String()).Set(rep.ExpectedCalibrationError())
	r.records.WithLabelValues(name).Set(float64(rep.RecordCount()))
	r.grade.WithLabelValues(name).Set(float64(rep.Grade()))
	if acc, ok := rep.OverallAccuracy().Get(); ok {
		r.accuracy.WithLabelValues(name).Set(acc)
	}

	for i, b := range rep.Bins() {
		bin := strconv.Itoa(i)
		r.binSamples.WithLabelValues(name, bin).Set(float64(b.SampleCount))
		if gap, ok := b.Gap().Get(); ok {
			r.binGap.WithLabelValues(name, bin).Set(gap)
		}
	}

	r.reportsObserved.Inc()
}

// ObserveBuildDuration records how long one build took.
func (r *Recorder) ObserveBuildDuration(d time.Duration) {
	r.buildDuration.Observe(d.Seconds())
}

// RecordFailure counts an input that failed to produce a report.
func (r *Recorder) RecordFailure() {
	r.buildFailures.Inc()
}

// Registry returns the registry holding the recorder's metrics.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// WriteTextfile writes all metrics to path in the text exposition format.
// The file is replaced atomically.
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	return nil
}
