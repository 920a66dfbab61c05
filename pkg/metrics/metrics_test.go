package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	. "github.com/smartystreets/goconvey/convey"
)

// gathered sums every sample of the named family in the custom registry.
func gathered(name string) float64 {
	families, err := GetRegistry().Gather()
	if err != nil {
		return -1
	}
	var total float64
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		for _, m := range f.GetMetric() {
			switch {
			case m.GetCounter() != nil:
				total += m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				total += m.GetGauge().GetValue()
			}
		}
	}
	return total
}

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with default options on a fresh registry", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(WithPrometheusRegistry(registry))

			Convey("Then it uses the service namespace", func() {
				So(manager, ShouldNotBeNil)
				So(manager.namespace, ShouldEqual, "codegolf")
				So(manager.subsystem, ShouldEqual, "scoring")
			})
		})

		Convey("When creating with custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("golf_test"),
				WithSubsystem("unit"),
				WithMetricPrefix("x"),
				WithHistogramBuckets([]float64{0.1, 0.5, 1.0}),
				WithCustomLabels(map[string]string{"env": "test"}),
				WithPrometheusRegistry(registry),
			)
			manager.submissionsDuplicate.Inc()

			Convey("Then metric names carry namespace, subsystem and prefix", func() {
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				found := false
				for _, f := range families {
					if f.GetName() == "golf_test_unit_x_submissions_duplicate_total" {
						found = true
						So(f.GetMetric()[0].GetLabel()[0].GetValue(), ShouldEqual, "test")
					}
				}
				So(found, ShouldBeTrue)
			})
		})

		Convey("When empty options are passed", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(WithNamespace(""), WithSubsystem(""), WithHistogramBuckets(nil), WithPrometheusRegistry(registry))

			Convey("Then defaults are kept", func() {
				So(manager.namespace, ShouldEqual, "codegolf")
				So(len(manager.histogramBuckets), ShouldEqual, len(prometheus.DefBuckets))
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given the global metrics manager", t, func() {
		Convey("When recording submission outcomes", func() {
			before := gathered("codegolf_scoring_submissions_accepted_total")
			RecordSubmissionAccepted("7")
			RecordSubmissionRejected("invalid_input")

			Convey("Then the labelled counters move", func() {
				So(gathered("codegolf_scoring_submissions_accepted_total"), ShouldEqual, before+1)
				So(gathered("codegolf_scoring_submissions_rejected_total"), ShouldBeGreaterThanOrEqualTo, 1)
			})
		})

		Convey("When setting gauges", func() {
			UpdateQueueSize(3)
			UpdateQueueCapacity(10)
			UpdateQueueUtilization(0.3)
			UpdateTotalSubmitters(5)

			Convey("Then they report the last value", func() {
				So(gathered("codegolf_scoring_queue_size"), ShouldEqual, 3)
				So(gathered("codegolf_scoring_queue_capacity"), ShouldEqual, 10)
				So(gathered("codegolf_scoring_submitters_total"), ShouldEqual, 5)
			})
		})

		Convey("When recording the remaining series", func() {
			So(func() {
				RecordSubmissionDuplicate()
				RecordScoringLatency(0.4)
				RecordMinimumImprovement()
				RecordEstimate()
				UpdateWorkerCount(4)
				UpdateTotalChallenges(2)
				UpdateTotalSubmissions(9)
				RecordQueueEnqueue()
				RecordQueueDequeue()
				RecordQueueEnqueueError()
				RecordRateLimited()
				RecordDispatchPublished()
				RecordDispatchError()
				RecordDispatchLatency(1.2)
				RecordCatalogFetch("problems", "ok")
				RecordCatalogLatency(12)
				UpdateCatalogLastRefresh(1700000000)
				RecordHTTPRequest("/ladder", "GET", "200")
				RecordHTTPRequestDuration("/ladder", "GET", "200", 1.5)
				RecordRepositoryUpdateLatency(0.1)
				RecordRepositoryQueryLatency(0.2)
				RecordRepositorySnapshotRebuildDuration(0.3)
				RecordErrorByComponent("catalog", "network")
				RecordErrorByEndpoint("/ladder", "GET", "bad_request")
				UpdateSystemMemoryUsage(1024)
				UpdateSystemGoroutineCount(12)
				RecordSystemGCPauseTime(0.05)
			}, ShouldNotPanic)
		})

		Convey("When gathering the custom registry", func() {
			RecordHTTPRequest("/healthz", "GET", "200")
			families, err := GetRegistry().Gather()

			Convey("Then only codegolf series are exposed", func() {
				So(err, ShouldBeNil)
				So(len(families), ShouldBeGreaterThan, 0)
				for _, f := range families {
					So(strings.HasPrefix(f.GetName(), "codegolf_scoring_"), ShouldBeTrue)
				}
			})
		})
	})
}
