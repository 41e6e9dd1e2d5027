// Package dnnmetrics exposes process-wide Prometheus instrumentation
// for the import pipeline, registered the same way the teacher's
// internal/embeddings/metrics.go registers its GPU/tokenization
// metrics: package-level promauto vars, no per-call registry lookups.
package dnnmetrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ParseDuration tracks how long each import phase takes, labeled by
	// phase name (the dnntrace Phase* constants).
	ParseDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dnncore_parse_duration_seconds",
		Help:    "Time spent in each import phase",
		Buckets: prometheus.DefBuckets,
	}, []string{"phase"})

	// SchemaCacheHits/Misses count MessageSchema memoization outcomes
	// during Schema Builder recursion (spec §4.6 step 3).
	SchemaCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dnncore_schema_cache_hits_total",
		Help: "Message schemas resolved from the build-time memo instead of rebuilt",
	})
	SchemaCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dnncore_schema_cache_misses_total",
		Help: "Message schemas built fresh during descriptor resolution",
	})

	// LayersLowered/GraphDepth describe the runtime graph a Graph
	// Lowerer run produced.
	LayersLowered = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dnncore_layers_lowered_total",
		Help: "Layer nodes placed into a runtime graph, labeled by layer type",
	}, []string{"layer_type"})

	GraphDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dnncore_graph_depth",
		Help: "Longest parent-to-leaf chain in the most recently lowered graph",
	})

	// BackReferenceHits counts legacy stream back-reference dedup hits
	// (spec §8 invariant 4).
	BackReferenceHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dnncore_legacy_backreference_hits_total",
		Help: "Legacy stream object indexes resolved from a prior read instead of re-parsed",
	})

	// ImportErrors counts failed imports by the dnnerrors.Kind string.
	ImportErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dnncore_import_errors_total",
		Help: "Import failures, labeled by error kind",
	}, []string{"kind"})
)
