package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/calibreport/internal/model"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func testReport() *model.Report {
	return model.NewReport(model.ReportParams{
		RecordCount:              4,
		OverallAccuracy:          model.Some(0.75),
		ExpectedCalibrationError: 0.25,
		GeneratedWith: model.GeneratedWith{
			BinCount:    2,
			BinStrategy: model.EqualWidth,
		},
		Bins: []model.BinStat{
			{LowerBound: 0, UpperBound: 0.5, SampleCount: 2, MeanConfidence: model.Some(0.25), MeanAccuracy: model.Some(0.5)},
			{LowerBound: 0.5, UpperBound: 1, SampleCount: 2, MeanConfidence: model.Some(0.75), MeanAccuracy: model.Some(1)},
		},
	})
}

func emptyReport() *model.Report {
	return model.NewReport(model.ReportParams{
		GeneratedWith: model.GeneratedWith{
			BinCount:    3,
			BinStrategy: model.EqualWidth,
		},
		Bins: []model.BinStat{
			{LowerBound: 0, UpperBound: 1.0 / 3},
			{LowerBound: 1.0 / 3, UpperBound: 2.0 / 3},
			{LowerBound: 2.0 / 3, UpperBound: 1},
		},
	})
}

func TestRecorderOptions(t *testing.T) {
	Convey("Given recorder options", t, func() {
		Convey("When a namespace is set", func() {
			r := NewRecorder(WithNamespace("ml"))

			Convey("Then metric names use it", func() {
				r.ObserveReport("nightly", testReport())
				mfs, err := r.Registry().Gather()
				So(err, ShouldBeNil)
				So(len(mfs), ShouldBeGreaterThan, 0)
				for _, mf := range mfs {
					So(strings.HasPrefix(mf.GetName(), "ml_"), ShouldBeTrue)
				}
			})
		})

		Convey("When empty values are given", func() {
			r := NewRecorder(WithNamespace(""), WithHistogramBuckets(nil), WithConstLabels(nil))

			Convey("Then the defaults are kept", func() {
				So(r.namespace, ShouldEqual, "calibreport")
				So(len(r.buckets), ShouldBeGreaterThan, 0)
				So(r.constLabels, ShouldBeNil)
			})
		})

		Convey("When const labels are given", func() {
			r := NewRecorder(WithConstLabels(map[string]string{"env": "test"}))
			r.ObserveReport("nightly", testReport())

			Convey("Then every series carries them", func() {
				mfs, err := r.Registry().Gather()
				So(err, ShouldBeNil)
				for _, mf := range mfs {
					for _, m := range mf.GetMetric() {
						found := false
						for _, lp := range m.GetLabel() {
							if lp.GetName() == "env" && lp.GetValue() == "test" {
								found = true
							}
						}
						So(found, ShouldBeTrue)
					}
				}
			})
		})
	})
}

func TestObserveReport(t *testing.T) {
	Convey("Given a recorder", t, func() {
		r := NewRecorder()

		Convey("When a populated report is observed", func() {
			r.ObserveReport("nightly", testReport())

			Convey("Then the summary gauges are set", func() {
				So(testutil.ToFloat64(r.ece.WithLabelValues("nightly", "EQUAL_WIDTH")), ShouldEqual, 0.25)
				So(testutil.ToFloat64(r.accuracy.WithLabelValues("nightly")), ShouldEqual, 0.75)
				So(testutil.ToFloat64(r.records.WithLabelValues("nightly")), ShouldEqual, 4)
				So(testutil.ToFloat64(r.grade.WithLabelValues("nightly")), ShouldEqual, float64(model.GradeSevere))
				So(testutil.ToFloat64(r.reportsObserved), ShouldEqual, 1)
			})

			Convey("Then the bin gauges are set", func() {
				So(testutil.CollectAndCount(r.binSamples), ShouldEqual, 2)
				So(testutil.ToFloat64(r.binSamples.WithLabelValues("nightly", "1")), ShouldEqual, 2)
				So(testutil.ToFloat64(r.binGap.WithLabelValues("nightly", "0")), ShouldEqual, 0.25)
				So(testutil.ToFloat64(r.binGap.WithLabelValues("nightly", "1")), ShouldEqual, 0.25)
			})
		})

		Convey("When a report is replaced by an empty one under the same name", func() {
			r.ObserveReport("nightly", testReport())
			r.ObserveReport("nightly", emptyReport())

			Convey("Then stale series are removed", func() {
				So(testutil.CollectAndCount(r.binSamples), ShouldEqual, 3)
				So(testutil.CollectAndCount(r.binGap), ShouldEqual, 0)
				So(testutil.CollectAndCount(r.accuracy), ShouldEqual, 0)
				So(testutil.ToFloat64(r.records.WithLabelValues("nightly")), ShouldEqual, 0)
				So(testutil.ToFloat64(r.grade.WithLabelValues("nightly")), ShouldEqual, float64(model.GradeUngraded))
				So(testutil.ToFloat64(r.reportsObserved), ShouldEqual, 2)
			})
		})

		Convey("When two names are observed", func() {
			r.ObserveReport("a", testReport())
			r.ObserveReport("b", emptyReport())

			Convey("Then both keep their series", func() {
				So(testutil.CollectAndCount(r.binSamples), ShouldEqual, 5)
				So(testutil.CollectAndCount(r.records), ShouldEqual, 2)
			})
		})
	})
}

func TestBuildCounters(t *testing.T) {
	Convey("Given a recorder", t, func() {
		r := NewRecorder(WithHistogramBuckets([]float64{0.001, 0.01, 0.1}))

		Convey("When durations and failures are recorded", func() {
			r.ObserveBuildDuration(5 * time.Millisecond)
			r.ObserveBuildDuration(50 * time.Millisecond)
			r.RecordFailure()

			Convey("Then they are counted", func() {
				So(testutil.CollectAndCount(r.buildDuration), ShouldEqual, 1)
				So(testutil.ToFloat64(r.buildFailures), ShouldEqual, 1)
			})
		})
	})
}

func TestWriteTextfile(t *testing.T) {
	Convey("Given a recorder with one report", t, func() {
		r := NewRecorder()
		r.ObserveReport("nightly", testReport())

		Convey("When the textfile is written", func() {
			path := filepath.Join(t.TempDir(), "calibreport.prom")
			err := r.WriteTextfile(path)

			Convey("Then it holds the exposition text", func() {
				So(err, ShouldBeNil)
				data, err := os.ReadFile(path)
				So(err, ShouldBeNil)
				So(string(data), ShouldContainSubstring, `calibreport_expected_calibration_error{report="nightly",strategy="EQUAL_WIDTH"} 0.25`)
				So(string(data), ShouldContainSubstring, "calibreport_reports_observed_total 1")
			})
		})

		Convey("When the directory does not exist", func() {
			path := filepath.Join(t.TempDir(), "missing", "calibreport.prom")
			err := r.WriteTextfile(path)

			Convey("Then ErrWriteFailed is returned", func() {
				So(errors.Is(err, ErrWriteFailed), ShouldBeTrue)
			})
		})
	})
}
