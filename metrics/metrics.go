// Package metrics exports statistics about a test run in the Prometheus text format.
package metrics

import (
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/launchdarkly/test-report-aggregator/framework"
	"github.com/launchdarkly/test-report-aggregator/report"
	"github.com/launchdarkly/test-report-aggregator/servicedef"
)

const Namespace = "test_report"

// Metrics holds the collectors for one run. Each run gets its own registry and a random run_id
// label, so that textfiles from several runs can be scraped side by side.
type Metrics struct {
	registry   *prometheus.Registry
	runID      string
	apiVersion string

	eventsTotal       *prometheus.CounterVec
	testsTotal        *prometheus.CounterVec
	suitesTotal       *prometheus.CounterVec
	transactionsTotal *prometheus.CounterVec
	anomaliesTotal    *prometheus.CounterVec
	testDuration      *prometheus.HistogramVec
	runResult         *prometheus.GaugeVec
}

func New(apiVersion string) *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)
	return &Metrics{
		registry:   registry,
		runID:      uuid.New().String(),
		apiVersion: apiVersion,
		eventsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "events_total",
			Help:      "Count of engine events received",
		}, []string{"run_id", "kind"}),
		testsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "tests_total",
			Help:      "Count of reported tests",
		}, []string{"run_id", "api_version", "outcome"}),
		suitesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "suites_total",
			Help:      "Count of reported suites, nested ones included",
		}, []string{"run_id", "api_version"}),
		transactionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "transactions_total",
			Help:      "Count of HTTP transactions attached to tests",
		}, []string{"run_id", "api_version"}),
		anomaliesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "anomalies_total",
			Help:      "Count of event sequence anomalies",
		}, []string{"run_id"}),
		testDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "test_duration_seconds",
			Help:      "Elapsed time of tests",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}, []string{"run_id", "outcome"}),
		runResult: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "run_ok",
			Help:      "1 if no test in the run failed",
		}, []string{"run_id", "api_version"}),
	}
}

func (m *Metrics) RunID() string { return m.runID }

// SubscribedEvents counts every known event kind as it is dispatched.
func (m *Metrics) SubscribedEvents() []framework.Subscription {
	var ret []framework.Subscription
	for _, kind := range servicedef.AllEventKinds {
		ret = append(ret, framework.Subscription{
			Kind:     kind,
			Handler:  m.countEvent,
			Priority: framework.DefaultPriority,
		})
	}
	return ret
}

func (m *Metrics) countEvent(e servicedef.Event) {
	m.eventsTotal.WithLabelValues(m.runID, string(e.Kind)).Inc()
}

// Observe records the contents of a finished report. Its signature matches framework.FinalizeHook.
func (m *Metrics) Observe(tree *report.Tree, anomalies []error) error {
	suites := m.suitesTotal.WithLabelValues(m.runID, m.apiVersion)
	transactions := m.transactionsTotal.WithLabelValues(m.runID, m.apiVersion)
	tree.Walk(func(_ []string, n report.Node) {
		switch node := n.(type) {
		case *report.Suite:
			suites.Inc()
		case *report.Test:
			m.testsTotal.WithLabelValues(m.runID, m.apiVersion, string(node.Outcome)).Inc()
			m.testDuration.WithLabelValues(m.runID, string(node.Outcome)).Observe(node.ElapsedTime.Seconds())
			transactions.Add(float64(len(node.Transactions)))
		}
	})
	m.anomaliesTotal.WithLabelValues(m.runID).Add(float64(len(anomalies)))
	ok := 0.0
	if tree.OK() {
		ok = 1
	}
	m.runResult.WithLabelValues(m.runID, m.apiVersion).Set(ok)
	return nil
}

// WriteTextfile writes the current values in the format read by the node exporter's textfile
// collector.
func (m *Metrics) WriteTextfile(path string) error {
	return errors.Wrapf(prometheus.WriteToTextfile(path, m.registry), "writing metrics to %s", path)
}

// TextfileHook returns a framework.FinalizeHook that observes the report and then writes the
// metrics to path.
func (m *Metrics) TextfileHook(path string) framework.FinalizeHook {
	return func(tree *report.Tree, anomalies []error) error {
		if err := m.Observe(tree, anomalies); err != nil {
			return err
		}
		return m.WriteTextfile(path)
	}
}
