package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given a fresh registry", t, func() {
		registry := prometheus.NewRegistry()

		Convey("When creating a manager with custom options", func() {
			m := NewManager(
				WithNamespace("test"),
				WithSubsystem("connect"),
				WithHistogramBuckets([]float64{1, 10}),
				WithConstLabels(map[string]string{"env": "test"}),
				WithPrometheusRegistry(registry),
			)

			Convey("Then collectors are registered under the namespace", func() {
				So(m, ShouldNotBeNil)
				m.stripeCalls.WithLabelValues("account.create", "ok").Inc()
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				names := make([]string, 0, len(families))
				for _, f := range families {
					names = append(names, f.GetName())
				}
				So(names, ShouldContain, "test_connect_stripe_calls_total")
			})
		})
	})
}

func TestGlobalRecorders(t *testing.T) {
	Convey("Given the global manager", t, func() {
		Convey("When recording webhook events", func() {
			before := testutil.ToFloat64(globalManager.webhookEvents.WithLabelValues("payout.paid", "processed"))
			RecordWebhookEvent("payout.paid", "processed")

			Convey("Then the counter increases by one", func() {
				after := testutil.ToFloat64(globalManager.webhookEvents.WithLabelValues("payout.paid", "processed"))
				So(after-before, ShouldEqual, 1.0)
			})
		})

		Convey("When setting gauges", func() {
			UpdateWebhookQueueCapacity(42)
			UpdateWebhookQueueSize(7)
			UpdateWebhookWorkers(3)

			Convey("Then they hold the last value", func() {
				So(testutil.ToFloat64(globalManager.webhookQueueCapacity), ShouldEqual, 42.0)
				So(testutil.ToFloat64(globalManager.webhookQueueSize), ShouldEqual, 7.0)
				So(testutil.ToFloat64(globalManager.webhookWorkers), ShouldEqual, 3.0)
			})
		})

		Convey("When recording other metrics", func() {
			So(func() {
				RecordHTTPRequest("stripe-accounts", "GET", "200", 12)
				RecordStripeCall("account.get", "error", 80)
				RecordWebhookDispatch(3)
				RecordStorageOp("list", "ok")
				RecordError("api", "invalid")
				UpdateRuntime(1024, 10)
			}, ShouldNotPanic)
			So(GetRegistry(), ShouldNotBeNil)
		})
	})
}
