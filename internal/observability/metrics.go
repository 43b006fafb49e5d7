// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Ledger operation metrics
	OperationsTotal   *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec
	Rollbacks         *prometheus.CounterVec

	// Vault state metrics
	VaultTotalIdle   *prometheus.GaugeVec
	VaultTotalDebt   *prometheus.GaugeVec
	VaultTotalShares *prometheus.GaugeVec
	StrategyDebt     *prometheus.GaugeVec

	// Flow metrics
	AssetsDeposited *prometheus.CounterVec
	AssetsWithdrawn *prometheus.CounterVec
	LossesRealized  *prometheus.CounterVec
	GainsReported   *prometheus.CounterVec
	FeesAssessed    *prometheus.CounterVec

	// Event metrics
	EventsRecorded    *prometheus.CounterVec
	EventRecordErrors *prometheus.CounterVec
	StreamSubscribers prometheus.Gauge
	KeeperRunsTotal   *prometheus.CounterVec
	KeeperRunDuration prometheus.Histogram

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPLatency  *prometheus.HistogramVec
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "vault_ledger"
	}

	return &Metrics{
		// Ledger operation metrics
		OperationsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "operations_total",
			Help:      "Total number of ledger operations by operation and status",
		}, []string{"operation", "status"}),
		OperationDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "operation_duration_seconds",
			Help:      "Ledger operation duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		Rollbacks: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "rollbacks_total",
			Help:      "Total number of operations rolled back by error kind",
		}, []string{"operation", "reason"}),

		// Vault state metrics
		VaultTotalIdle: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "vault",
			Name:      "total_idle",
			Help:      "Uninvested assets held by the vault",
		}, []string{"vault"}),
		VaultTotalDebt: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "vault",
			Name:      "total_debt",
			Help:      "Assets allocated to strategies",
		}, []string{"vault"}),
		VaultTotalShares: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "vault",
			Name:      "total_shares",
			Help:      "Outstanding vault shares",
		}, []string{"vault"}),
		StrategyDebt: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "strategy",
			Name:      "current_debt",
			Help:      "Assets allocated to a strategy",
		}, []string{"vault", "strategy"}),

		// Flow metrics
		AssetsDeposited: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "vault",
			Name:      "assets_deposited_total",
			Help:      "Total assets deposited",
		}, []string{"vault"}),
		AssetsWithdrawn: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "vault",
			Name:      "assets_withdrawn_total",
			Help:      "Total assets paid out to withdrawers",
		}, []string{"vault"}),
		LossesRealized: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "vault",
			Name:      "losses_realized_total",
			Help:      "Total losses realized by source",
		}, []string{"vault", "source"}),
		GainsReported: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "vault",
			Name:      "gains_reported_total",
			Help:      "Total strategy gains reported",
		}, []string{"vault"}),
		FeesAssessed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "vault",
			Name:      "fees_assessed_total",
			Help:      "Total fees assessed by kind",
		}, []string{"vault", "kind"}),

		// Event metrics
		EventsRecorded: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "recorded_total",
			Help:      "Total ledger events recorded by type",
		}, []string{"type"}),
		EventRecordErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "record_errors_total",
			Help:      "Total failures recording ledger events",
		}, []string{"sink"}),
		StreamSubscribers: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "stream_subscribers",
			Help:      "Current number of websocket event subscribers",
		}),
		KeeperRunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "keeper",
			Name:      "runs_total",
			Help:      "Total number of keeper runs by job and status",
		}, []string{"job", "status"}),
		KeeperRunDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "keeper",
			Name:      "run_duration_seconds",
			Help:      "Keeper run duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60},
		}),

		// Database metrics
		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		// HTTP metrics
		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests by route and status code",
		}, []string{"route", "code"}),
		HTTPLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordOperation records a ledger operation outcome.
func RecordOperation(operation, status string, durationSeconds float64) {
	DefaultMetrics.OperationsTotal.WithLabelValues(operation, status).Inc()
	DefaultMetrics.OperationDuration.WithLabelValues(operation).Observe(durationSeconds)
}

// RecordRollback records an operation aborted with reason.
func RecordRollback(operation, reason string) {
	DefaultMetrics.Rollbacks.WithLabelValues(operation, reason).Inc()
}

// UpdateVault updates the vault state gauges.
func UpdateVault(vault string, idle, debt, shares uint64) {
	DefaultMetrics.VaultTotalIdle.WithLabelValues(vault).Set(float64(idle))
	DefaultMetrics.VaultTotalDebt.WithLabelValues(vault).Set(float64(debt))
	DefaultMetrics.VaultTotalShares.WithLabelValues(vault).Set(float64(shares))
}

// UpdateStrategyDebt updates the strategy debt gauge.
func UpdateStrategyDebt(vault, strategy string, debt uint64) {
	DefaultMetrics.StrategyDebt.WithLabelValues(vault, strategy).Set(float64(debt))
}

// DeleteStrategy drops the gauge series of a removed strategy.
func DeleteStrategy(vault, strategy string) {
	DefaultMetrics.StrategyDebt.DeleteLabelValues(vault, strategy)
}

// RecordDeposit records deposited assets.
func RecordDeposit(vault string, amount uint64) {
	DefaultMetrics.AssetsDeposited.WithLabelValues(vault).Add(float64(amount))
}

// RecordWithdrawal records assets paid out.
func RecordWithdrawal(vault string, amount uint64) {
	DefaultMetrics.AssetsWithdrawn.WithLabelValues(vault).Add(float64(amount))
}

// RecordLoss records a realized loss.
func RecordLoss(vault, source string, amount uint64) {
	if amount == 0 {
		return
	}
	DefaultMetrics.LossesRealized.WithLabelValues(vault, source).Add(float64(amount))
}

// RecordGain records a reported gain.
func RecordGain(vault string, amount uint64) {
	if amount == 0 {
		return
	}
	DefaultMetrics.GainsReported.WithLabelValues(vault).Add(float64(amount))
}

// RecordFee records an assessed fee.
func RecordFee(vault, kind string, amount uint64) {
	if amount == 0 {
		return
	}
	DefaultMetrics.FeesAssessed.WithLabelValues(vault, kind).Add(float64(amount))
}

// RecordEvent records a stored ledger event.
func RecordEvent(eventType string) {
	DefaultMetrics.EventsRecorded.WithLabelValues(eventType).Inc()
}

// RecordEventError records a failure writing events to sink.
func RecordEventError(sink string) {
	DefaultMetrics.EventRecordErrors.WithLabelValues(sink).Inc()
}

// SetStreamSubscribers updates the websocket subscriber gauge.
func SetStreamSubscribers(n int) {
	DefaultMetrics.StreamSubscribers.Set(float64(n))
}

// RecordKeeperRun records a keeper job run.
func RecordKeeperRun(job, status string, durationSeconds float64) {
	DefaultMetrics.KeeperRunsTotal.WithLabelValues(job, status).Inc()
	DefaultMetrics.KeeperRunDuration.Observe(durationSeconds)
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(route, code string, seconds float64) {
	DefaultMetrics.HTTPRequests.WithLabelValues(route, code).Inc()
	DefaultMetrics.HTTPLatency.WithLabelValues(route).Observe(seconds)
}
