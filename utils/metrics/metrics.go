package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RPCRequestsTotal counts chain requests by network, kind and final status
	RPCRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "subspace_rpc_requests_total",
			Help: "Total number of chain requests after retries",
		},
		[]string{"network", "kind", "status"},
	)

	// RPCAttemptsTotal counts every individual attempt, retries included
	RPCAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "subspace_rpc_attempts_total",
			Help: "Total number of chain request attempts including retries",
		},
		[]string{"network", "kind"},
	)

	// CacheLookupsTotal counts state cache reads by result (hit, miss, expired)
	CacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "subspace_cache_lookups_total",
			Help: "Total number of state cache lookups",
		},
		[]string{"result"},
	)

	// TransactionsTotal counts mutating operations by outcome
	TransactionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "subspace_transactions_total",
			Help: "Total number of mutating operations by outcome",
		},
		[]string{"network", "operation", "outcome"},
	)

	// NetworkSwitchesTotal counts reconnects caused by a different requested network
	NetworkSwitchesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "subspace_network_switches_total",
			Help: "Total number of reconnects to a different network",
		},
	)
)

// RecordRequest records one chain request and the attempts it took
func RecordRequest(network, kind string, attempts int, err error) {
	RPCAttemptsTotal.WithLabelValues(network, kind).Add(float64(attempts))
	status := "ok"
	if err != nil {
		status = "error"
	}
	RPCRequestsTotal.WithLabelValues(network, kind, status).Inc()
}

func RecordCacheLookup(result string) {
	CacheLookupsTotal.WithLabelValues(result).Inc()
}

// RecordTransaction records the outcome of a mutating operation; outcome is
// one of success, failed (on-chain rejection), rejected (local precondition)
// or error (transport)
func RecordTransaction(network, operation, outcome string) {
	TransactionsTotal.WithLabelValues(network, operation, outcome).Inc()
}

func RecordNetworkSwitch() {
	NetworkSwitchesTotal.Inc()
}
