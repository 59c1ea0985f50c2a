package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry holds the tool's metrics. It is separate from the default registry so
// that a textfile export contains only urlmapedit series.
var Registry = prometheus.NewRegistry()

// Prometheus metrics
var (
	MetricHostRules = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "urlmapedit_host_rules_total",
			Help: "Host rules processed, by outcome (added or exists)",
		},
		[]string{"outcome"},
	)
	MetricPathMatchers = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "urlmapedit_path_matchers_total",
			Help: "Path matchers processed, by outcome (added or merged)",
		},
		[]string{"outcome"},
	)
	MetricPathRulesAppended = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "urlmapedit_path_rules_appended_total",
			Help: "Path rules appended to an existing path matcher",
		},
	)
	MetricDuplicatePathRules = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "urlmapedit_duplicate_path_rules_total",
			Help: "Appended path rules that were already present in the path matcher",
		},
	)
	MetricLastSuccess = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "urlmapedit_last_success_timestamp_seconds",
			Help: "Unix time of the last successful write of the url map",
		},
	)
)

// InitMetrics registers Prometheus metrics
func InitMetrics() {
	Registry.MustRegister(MetricHostRules)
	Registry.MustRegister(MetricPathMatchers)
	Registry.MustRegister(MetricPathRulesAppended)
	Registry.MustRegister(MetricDuplicatePathRules)
	Registry.MustRegister(MetricLastSuccess)
}

// WriteTextfile writes the registry in the text exposition format, for the
// node exporter textfile collector
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, Registry)
}
