package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ============================================
	// Cashier operation metrics
	// ============================================
	CashierOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cashier_operations_total",
			Help: "Total number of cashier operations by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	CashierOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cashier_operation_duration_seconds",
			Help:    "Cashier operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	PendingCashOutCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "cashier_pending_cash_out_count",
		Help: "Current number of pending cash-out operations",
	})

	PendingCashOutTotalAmount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "cashier_pending_cash_out_total_amount",
		Help: "Sum of all pending cash-out amounts",
	})

	ProcessedCashOutCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "cashier_processed_cash_out_count",
		Help: "Monotonic counter of cash-outs settled out of the pending set",
	})

	ShardCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "cashier_shard_count",
		Help: "Current number of shards in the routing table",
	})

	// ============================================
	// Token and hook collaborator metrics
	// ============================================
	TokenCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cashier_token_calls_total",
			Help: "Total number of token collaborator calls by operation and outcome",
		},
		[]string{"op", "outcome"},
	)

	HookInvocationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cashier_hook_invocations_total",
			Help: "Total number of hook contract invocations by hook index",
		},
		[]string{"hook_index", "outcome"},
	)

	// ============================================
	// Database connection metrics
	// ============================================
	DBConnectionPoolSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "cashier_db_connection_pool_size",
		Help: "Database connection pool size",
	})

	DBConnectionIdle = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "cashier_db_connection_idle",
		Help: "Number of idle database connections",
	})

	DBConnectionStatus = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "cashier_db_connection_status",
		Help: "Database connection status (1=healthy, 0=unhealthy)",
	})

	// ============================================
	// NATS metrics
	// ============================================
	NATSConnectionStatus = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "cashier_nats_connection_status",
		Help: "NATS connection status (1=connected, 0=disconnected)",
	})

	NATSMessagesPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cashier_nats_messages_published_total",
			Help: "Total number of NATS messages published",
		},
		[]string{"subject"},
	)

	NATSPublishFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cashier_nats_publish_failures_total",
			Help: "Total number of NATS publish failures",
		},
		[]string{"subject"},
	)

	// ============================================
	// WebSocket push metrics
	// ============================================
	WebSocketConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "cashier_websocket_connections",
		Help: "Current number of WebSocket subscriber connections",
	})
)
