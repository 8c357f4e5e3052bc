package metrics

import (
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestManagerCreation(t *testing.T) {
	Convey("Given a fresh registry", t, func() {
		registry := prometheus.NewRegistry()

		Convey("When creating a manager with defaults", func() {
			m := NewManager(WithPrometheusRegistry(registry))

			Convey("Then metrics are named under akut_grader", func() {
				m.grades.WithLabelValues("GREEN").Inc()
				families, err := registry.Gather()
				So(err, ShouldBeNil)

				found := false
				for _, f := range families {
					if f.GetName() == "akut_grader_grades_total" {
						found = true
					}
				}
				So(found, ShouldBeTrue)
			})
		})

		Convey("When creating a manager with custom options", func() {
			m := NewManager(
				WithNamespace("train"),
				WithSubsystem("eval"),
				WithHistogramBuckets([]float64{1, 2, 3}),
				WithConstLabels(map[string]string{"env": "test"}),
				WithPrometheusRegistry(registry),
			)

			Convey("Then the options are applied", func() {
				So(m.namespace, ShouldEqual, "train")
				So(m.subsystem, ShouldEqual, "eval")
				So(m.histogramBuckets, ShouldResemble, []float64{1, 2, 3})
				So(m.constLabels["env"], ShouldEqual, "test")
			})
		})

		Convey("When empty option values are passed", func() {
			m := NewManager(WithNamespace(""), WithSubsystem(""), WithHistogramBuckets(nil), WithPrometheusRegistry(registry))

			Convey("Then defaults are kept", func() {
				So(m.namespace, ShouldEqual, "akut")
				So(m.subsystem, ShouldEqual, "grader")
				So(len(m.histogramBuckets), ShouldBeGreaterThan, 0)
			})
		})
	})
}

func TestRecordGrade(t *testing.T) {
	Convey("Given the global manager", t, func() {
		before := testutil.ToFloat64(globalManager.grades.WithLabelValues("YELLOW"))

		Convey("When a known status is recorded", func() {
			So(RecordGrade("YELLOW"), ShouldBeNil)

			Convey("Then the status counter grows", func() {
				So(testutil.ToFloat64(globalManager.grades.WithLabelValues("YELLOW")), ShouldEqual, before+1)
			})
		})

		Convey("When an unknown status is recorded", func() {
			err := RecordGrade("BLUE")

			Convey("Then ErrUnknownStatus is returned", func() {
				So(errors.Is(err, ErrUnknownStatus), ShouldBeTrue)
				So(err.Error(), ShouldContainSubstring, "BLUE")
			})
		})
	})
}

func TestRecordRemoteEventMerged(t *testing.T) {
	Convey("Given merged remote events", t, func() {
		merged := testutil.ToFloat64(globalManager.remoteEventsMerged)
		unmapped := testutil.ToFloat64(globalManager.unmappedEvents)

		RecordRemoteEventMerged(true)
		RecordRemoteEventMerged(false)

		Convey("Then only pass-through events count as unmapped", func() {
			So(testutil.ToFloat64(globalManager.remoteEventsMerged), ShouldEqual, merged+2)
			So(testutil.ToFloat64(globalManager.unmappedEvents), ShouldEqual, unmapped+1)
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given the package level recorders", t, func() {
		Convey("Then none of them panic", func() {
			So(func() {
				RecordEvaluation("sync", 1.5)
				RecordExtraActions(3)
				RecordEvaluatorRecovered()
				RecordRunScore(75)
				RecordSessionEvent()
				RecordSessionEventDuplicate()
				RecordRunSubmitted()
				RecordRunDuplicate()
				RecordRunGraded()
				RecordRunFailed("store")
				UpdateCatalogCases(4)
				RecordCatalogRejected()
				RecordCatalogLintWarnings(2)
				UpdateQueueSize(10)
				UpdateQueueCapacity(100)
				UpdateQueueUtilization(0.1)
				RecordQueueEnqueue()
				RecordQueueDequeue()
				RecordQueueEnqueueError()
				UpdateWorkerCount(4)
				RecordWorkerProcessingLatency(2)
				RecordWorkerError()
				UpdateRepositoryRecordsTotal(7)
				RecordRepositoryUpdateLatency(0.2)
				RecordRepositoryQueryLatency(0.1)
				RecordHTTPRequest("/evaluate", "POST", "200")
				RecordHTTPRequestDuration("/evaluate", "POST", "200", 3)
				RecordErrorByComponent("catalog", "lint")
				RecordErrorByEndpoint("/runs", "POST", "queue_full")
				UpdateSystemMemoryUsage(1 << 20)
				UpdateSystemGoroutineCount(12)
				RecordSystemGCPauseTime(0.5)
			}, ShouldNotPanic)
		})

		Convey("Then the custom registry exposes them", func() {
			RecordEvaluation("worker", 1)
			families, err := GetRegistry().Gather()
			So(err, ShouldBeNil)

			var names []string
			for _, f := range families {
				names = append(names, f.GetName())
			}
			joined := strings.Join(names, ",")
			So(joined, ShouldContainSubstring, "akut_grader_evaluations_total")
			So(joined, ShouldContainSubstring, "akut_grader_queue_size")
		})
	})
}
