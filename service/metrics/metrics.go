package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus collectors for the application.
// Following the explicit dependency injection pattern, this struct
// is passed to all components that need to record metrics.
type Metrics struct {
	// Solana RPC Metrics
	solanaRPCCallsTotal   *prometheus.CounterVec
	solanaRPCCallDuration *prometheus.HistogramVec

	// Account Sync Metrics
	accountResolutionsTotal  *prometheus.CounterVec
	staleResultsDiscarded    *prometheus.CounterVec
	connectionSwapsTotal     *prometheus.CounterVec
	tokenAccountsListed      *prometheus.HistogramVec
	tokenEnrichmentFallbacks *prometheus.CounterVec

	// Transfer Metrics
	transfersBuiltTotal     *prometheus.CounterVec
	transfersSubmittedTotal *prometheus.CounterVec
	airdropsRequestedTotal  *prometheus.CounterVec
	confirmationDuration    *prometheus.HistogramVec

	// Database Metrics
	dbQueryDuration   *prometheus.HistogramVec
	dbOperationsTotal *prometheus.CounterVec

	// HTTP Metrics
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsTotal    *prometheus.CounterVec
	sseActiveConnections *prometheus.GaugeVec
	sseEventsSent        *prometheus.CounterVec

	// NATS Metrics
	natsMessagesPublished *prometheus.CounterVec
	natsPublishDuration   *prometheus.HistogramVec
}

// NewMetrics creates a new Metrics instance and registers all collectors.
// If registry is nil, prometheus.DefaultRegisterer is used.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	return &Metrics{
		// Solana RPC Metrics
		solanaRPCCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solana_rpc_calls_total",
				Help: "Total number of Solana RPC calls by method and status",
			},
			[]string{"method", "status", "cluster"},
		),
		solanaRPCCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "solana_rpc_call_duration_seconds",
				Help:    "Duration of Solana RPC calls in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"method", "cluster"},
		),

		// Account Sync Metrics
		accountResolutionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "account_resolutions_total",
				Help: "Total number of completed account view resolutions",
			},
			[]string{"cluster"},
		),
		staleResultsDiscarded: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stale_results_discarded_total",
				Help: "Total number of lookup results discarded as stale",
			},
			[]string{"kind"},
		),
		connectionSwapsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "connection_swaps_total",
				Help: "Total number of successful cluster connection swaps",
			},
			[]string{"cluster"},
		),
		tokenAccountsListed: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "token_accounts_listed",
				Help:    "Number of token accounts returned per listing",
				Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 250},
			},
			[]string{"cluster"},
		),
		tokenEnrichmentFallbacks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "token_enrichment_fallbacks_total",
				Help: "Total number of token accounts rendered with fallback metadata",
			},
			[]string{"cluster"},
		),

		// Transfer Metrics
		transfersBuiltTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "transfers_built_total",
				Help: "Total number of transfer transactions built",
			},
			[]string{"cluster", "status"},
		),
		transfersSubmittedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "transfers_submitted_total",
				Help: "Total number of transfer transactions submitted",
			},
			[]string{"cluster", "status"},
		),
		airdropsRequestedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "airdrops_requested_total",
				Help: "Total number of airdrop requests",
			},
			[]string{"cluster", "status"},
		),
		confirmationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "transaction_confirmation_duration_seconds",
				Help:    "Time from submission to confirmed signature status",
				Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 90},
			},
			[]string{"cluster", "status"},
		),

		// Database Metrics
		dbQueryDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "db_query_duration_seconds",
				Help:    "Duration of database queries in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
			},
			[]string{"operation", "table"},
		),
		dbOperationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "db_operations_total",
				Help: "Total number of database operations",
			},
			[]string{"operation", "status"},
		),

		// HTTP Metrics
		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
			},
			[]string{"handler", "method", "status"},
		),
		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"handler", "method", "status"},
		),
		sseActiveConnections: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "sse_active_connections",
				Help: "Number of active SSE connections",
			},
			[]string{"wallet_address"},
		),
		sseEventsSent: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sse_events_sent_total",
				Help: "Total number of SSE events sent",
			},
			[]string{"wallet_address", "event_type"},
		),

		// NATS Metrics
		natsMessagesPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nats_messages_published_total",
				Help: "Total number of NATS messages published",
			},
			[]string{"subject", "status"},
		),
		natsPublishDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "nats_publish_duration_seconds",
				Help:    "Duration of NATS publish operations in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
			},
			[]string{"subject"},
		),
	}
}

// Solana RPC metric helpers

// RecordRPCCall records a Solana RPC call with duration.
func (m *Metrics) RecordRPCCall(method, status, cluster string, duration float64) {
	m.solanaRPCCallsTotal.WithLabelValues(method, status, cluster).Inc()
	m.solanaRPCCallDuration.WithLabelValues(method, cluster).Observe(duration)
}

// Account sync metric helpers

// RecordAccountResolution records a completed account view resolution.
func (m *Metrics) RecordAccountResolution(cluster string) {
	m.accountResolutionsTotal.WithLabelValues(cluster).Inc()
}

// RecordStaleResultDiscarded records a lookup result dropped as stale.
func (m *Metrics) RecordStaleResultDiscarded(kind string) {
	m.staleResultsDiscarded.WithLabelValues(kind).Inc()
}

// RecordConnectionSwap records a successful cluster connection swap.
func (m *Metrics) RecordConnectionSwap(cluster string) {
	m.connectionSwapsTotal.WithLabelValues(cluster).Inc()
}

// RecordTokenAccountsListed records the size of one token account listing.
func (m *Metrics) RecordTokenAccountsListed(cluster string, count int) {
	m.tokenAccountsListed.WithLabelValues(cluster).Observe(float64(count))
}

// RecordTokenEnrichmentFallback records a token rendered without metadata.
func (m *Metrics) RecordTokenEnrichmentFallback(cluster string) {
	m.tokenEnrichmentFallbacks.WithLabelValues(cluster).Inc()
}

// Transfer metric helpers

// RecordTransferBuilt records a transfer build attempt.
func (m *Metrics) RecordTransferBuilt(cluster, status string) {
	m.transfersBuiltTotal.WithLabelValues(cluster, status).Inc()
}

// RecordTransferSubmitted records a transfer submission attempt.
func (m *Metrics) RecordTransferSubmitted(cluster, status string) {
	m.transfersSubmittedTotal.WithLabelValues(cluster, status).Inc()
}

// RecordAirdropRequested records an airdrop request.
func (m *Metrics) RecordAirdropRequested(cluster, status string) {
	m.airdropsRequestedTotal.WithLabelValues(cluster, status).Inc()
}

// RecordConfirmation records the time taken to confirm a signature.
func (m *Metrics) RecordConfirmation(cluster, status string, duration float64) {
	m.confirmationDuration.WithLabelValues(cluster, status).Observe(duration)
}

// Database metric helpers

// RecordDBQuery records a database query with duration.
func (m *Metrics) RecordDBQuery(operation, table string, duration float64, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.dbQueryDuration.WithLabelValues(operation, table).Observe(duration)
	m.dbOperationsTotal.WithLabelValues(operation, status).Inc()
}

// HTTP metric helpers

// RecordHTTPRequest records an HTTP request with duration.
func (m *Metrics) RecordHTTPRequest(handler, method string, statusCode int, duration float64) {
	status := statusCodeToString(statusCode)
	m.httpRequestDuration.WithLabelValues(handler, method, status).Observe(duration)
	m.httpRequestsTotal.WithLabelValues(handler, method, status).Inc()
}

// RecordSSEConnectionChange records a change in SSE connection count.
func (m *Metrics) RecordSSEConnectionChange(walletAddress string, delta float64) {
	m.sseActiveConnections.WithLabelValues(walletAddress).Add(delta)
}

// RecordSSEEventSent records an SSE event being sent.
func (m *Metrics) RecordSSEEventSent(walletAddress, eventType string) {
	m.sseEventsSent.WithLabelValues(walletAddress, eventType).Inc()
}

// NATS metric helpers

// RecordNATSPublish records a NATS publish operation.
func (m *Metrics) RecordNATSPublish(subject, status string, duration float64) {
	m.natsMessagesPublished.WithLabelValues(subject, status).Inc()
	m.natsPublishDuration.WithLabelValues(subject).Observe(duration)
}

// Helper functions

func statusCodeToString(code int) string {
	// Group status codes by class
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500 && code < 600:
		return "5xx"
	default:
		return "unknown"
	}
}
