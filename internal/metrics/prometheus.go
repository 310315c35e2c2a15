package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Decision metrics
	DecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arbiter_decisions_total",
			Help: "Total number of decisions made",
		},
		[]string{"decision_type", "mode"},
	)

	DecisionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "arbiter_decision_duration_seconds",
			Help:    "End-to-end decision latency in seconds",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		},
		[]string{"mode"},
	)

	ConflictsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arbiter_conflicts_total",
			Help: "Total number of inter-agent conflicts detected",
		},
		[]string{"decision_type"},
	)

	// Agent metrics
	AgentCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arbiter_agent_calls_total",
			Help: "Total number of agent model calls",
		},
		[]string{"agent", "model", "status"}, // status: success|error|rate_limited
	)

	AgentLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "arbiter_agent_latency_seconds",
			Help:    "Agent model call latency in seconds",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
		},
		[]string{"agent", "model"},
	)

	AgentTokens = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arbiter_agent_tokens_total",
			Help: "Total tokens used by agent model calls",
		},
		[]string{"agent", "model", "type"}, // type: input|output
	)

	FallbackContributions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arbiter_fallback_contributions_total",
			Help: "Total number of fallback contributions substituted for failed agents",
		},
		[]string{"agent"},
	)

	// Policy metrics
	ExperiencesRecorded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arbiter_policy_experiences_total",
			Help: "Total number of experiences recorded by the policy engine",
		},
		[]string{"status"}, // status: recorded|rewarded
	)

	TrainingRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arbiter_policy_training_runs_total",
			Help: "Total number of policy training iterations",
		},
		[]string{"status"}, // status: success|skipped|error
	)

	PolicyLoss = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "arbiter_policy_loss",
			Help: "Loss of the most recent policy training iteration",
		},
	)

	ExplorationRate = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "arbiter_policy_exploration_rate",
			Help: "Current epsilon-greedy exploration rate",
		},
	)

	// Explanation metrics
	ExplanationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arbiter_explanations_total",
			Help: "Total number of explanations generated",
		},
		[]string{"audience", "format", "cache"}, // cache: hit|miss
	)

	// Worker metrics
	WorkerExecutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arbiter_worker_executions_total",
			Help: "Total number of worker executions",
		},
		[]string{"worker", "status"}, // status: success|error
	)

	WorkerDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "arbiter_worker_duration_seconds",
			Help:    "Worker execution duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"worker"},
	)

	WorkerLastRun = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "arbiter_worker_last_run_timestamp",
			Help: "Unix timestamp of last worker execution",
		},
		[]string{"worker"},
	)

	// Storage metrics
	DBQueries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arbiter_db_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"database", "operation", "status"}, // database: postgres|clickhouse|redis
	)

	DBQueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "arbiter_db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2},
		},
		[]string{"database", "operation"},
	)

	KafkaMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arbiter_kafka_messages_total",
			Help: "Total Kafka messages produced/consumed",
		},
		[]string{"topic", "direction", "status"}, // direction: produced|consumed
	)
)

// Init registers all metrics with Prometheus
func Init() {
	prometheus.MustRegister(DecisionsTotal)
	prometheus.MustRegister(DecisionDuration)
	prometheus.MustRegister(ConflictsTotal)

	prometheus.MustRegister(AgentCalls)
	prometheus.MustRegister(AgentLatency)
	prometheus.MustRegister(AgentTokens)
	prometheus.MustRegister(FallbackContributions)

	prometheus.MustRegister(ExperiencesRecorded)
	prometheus.MustRegister(TrainingRuns)
	prometheus.MustRegister(PolicyLoss)
	prometheus.MustRegister(ExplorationRate)

	prometheus.MustRegister(ExplanationsTotal)

	prometheus.MustRegister(WorkerExecutions)
	prometheus.MustRegister(WorkerDuration)
	prometheus.MustRegister(WorkerLastRun)

	prometheus.MustRegister(DBQueries)
	prometheus.MustRegister(DBQueryDuration)
	prometheus.MustRegister(KafkaMessages)
}

// Handler returns Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordWorkerExecution records a worker execution
func RecordWorkerExecution(worker string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}

	WorkerExecutions.WithLabelValues(worker, status).Inc()
	WorkerDuration.WithLabelValues(worker).Observe(duration.Seconds())
	WorkerLastRun.WithLabelValues(worker).SetToCurrentTime()
}

// RecordAgentCall records an agent model invocation
func RecordAgentCall(agent, model string, latency time.Duration, inputTokens, outputTokens int, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}

	AgentCalls.WithLabelValues(agent, model, status).Inc()
	AgentLatency.WithLabelValues(agent, model).Observe(latency.Seconds())

	if inputTokens > 0 {
		AgentTokens.WithLabelValues(agent, model, "input").Add(float64(inputTokens))
	}
	if outputTokens > 0 {
		AgentTokens.WithLabelValues(agent, model, "output").Add(float64(outputTokens))
	}
}

// RecordDBQuery records a database query
func RecordDBQuery(database, operation string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}

	DBQueries.WithLabelValues(database, operation, status).Inc()
	DBQueryDuration.WithLabelValues(database, operation).Observe(duration.Seconds())
}
