package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	RateLimitAllowed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "dflow", Name: "rate_limit_allowed_total", Help: "Number of allowed requests by limiter type."},
		[]string{"limiter"},
	)
	RateLimitRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "dflow", Name: "rate_limit_rejected_total", Help: "Number of rejected requests by limiter type."},
		[]string{"limiter"},
	)
	// Merges counts merge requests by result (ok|empty|error).
	Merges = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "dflow", Name: "merges_total", Help: "Number of model merges by result."},
		[]string{"result"},
	)
	MergeInputs = prometheus.NewHistogram(
		prometheus.HistogramOpts{Namespace: "dflow", Name: "merge_input_documents", Help: "Number of documents contributing to a merge.", Buckets: []float64{1, 2, 5, 10, 25, 50, 100}},
	)
	// ToolchainRuns counts validator/codegen invocations by operation and result.
	ToolchainRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "dflow", Name: "toolchain_runs_total", Help: "Number of DSL toolchain runs by operation and result."},
		[]string{"op", "result"},
	)
	ToolchainDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Namespace: "dflow", Name: "toolchain_duration_seconds", Help: "DSL toolchain run duration.", Buckets: prometheus.DefBuckets},
		[]string{"op"},
	)
	ModelsStored = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "dflow", Name: "models_stored_total", Help: "Number of model documents stored."},
	)
)

func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(RateLimitAllowed)
	reg.MustRegister(RateLimitRejected)
	reg.MustRegister(Merges, MergeInputs)
	reg.MustRegister(ToolchainRuns, ToolchainDuration)
	reg.MustRegister(ModelsStored)
}
