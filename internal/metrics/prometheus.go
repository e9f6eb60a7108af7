package metrics

import (
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	OracleDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mas_rag_oracle_duration_seconds",
			Help:    "Generation oracle call duration in seconds",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 40, 80},
		},
		[]string{"provider", "status"},
	)

	OracleTokensUsed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mas_rag_oracle_tokens_used",
			Help: "Total oracle tokens used",
		},
		[]string{"model", "type"},
	)

	OracleOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mas_rag_oracle_outcomes_total",
			Help: "Parsed oracle responses by stage and outcome",
		},
		[]string{"stage", "outcome"},
	)

	CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mas_rag_cache_hits_total",
			Help: "Total cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mas_rag_cache_misses_total",
			Help: "Total cache misses",
		},
		[]string{"cache_type"},
	)

	StageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mas_rag_stage_item_duration_seconds",
			Help:    "Per-record processing duration by stage",
			Buckets: []float64{0.01, 0.1, 0.5, 1, 5, 10, 30, 60},
		},
		[]string{"stage"},
	)

	RecordsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mas_rag_records_total",
			Help: "Records handled by stage and outcome",
		},
		[]string{"stage", "outcome"},
	)

	BridgeRows = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mas_rag_bridge_rows",
			Help:    "Rows returned by accepted bridge queries",
			Buckets: []float64{1, 2, 5, 10, 20, 50, 100},
		},
	)

	CheckpointWrites = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mas_rag_checkpoint_writes_total",
			Help: "Checkpoint rewrites by status",
		},
		[]string{"status"},
	)

	BreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "mas_rag_circuit_breaker_state",
			Help: "Circuit breaker state (0 closed, 1 half-open, 2 open)",
		},
		[]string{"name"},
	)

	RunsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "mas_rag_runs_active",
			Help: "Pipeline runs currently executing",
		},
	)

	DocumentsIndexed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "mas_rag_documents_indexed_total",
			Help: "Total document chunks inserted into the vector index",
		},
	)

	LineageRecords = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "mas_rag_lineage_records_total",
			Help: "Total records exported to the lineage graph",
		},
	)
)

var initOnce sync.Once

func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(OracleDuration)
		prometheus.MustRegister(OracleTokensUsed)
		prometheus.MustRegister(OracleOutcomes)
		prometheus.MustRegister(CacheHits)
		prometheus.MustRegister(CacheMisses)
		prometheus.MustRegister(StageDuration)
		prometheus.MustRegister(RecordsTotal)
		prometheus.MustRegister(BridgeRows)
		prometheus.MustRegister(CheckpointWrites)
		prometheus.MustRegister(BreakerState)
		prometheus.MustRegister(RunsActive)
		prometheus.MustRegister(DocumentsIndexed)
		prometheus.MustRegister(LineageRecords)
	})
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
