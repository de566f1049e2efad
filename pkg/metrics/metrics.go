package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Election metrics
	ElectionRole = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "bridged_election_role",
			Help: "Current election role of this instance (1 for the held role, 0 otherwise)",
		},
		[]string{"role"},
	)

	KnownPeers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "bridged_election_known_peers",
			Help: "Number of live peer instances tracked by the election engine",
		},
	)

	KeepAlivesSent = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "bridged_election_keepalives_sent_total",
			Help: "Total keep-alive messages sent",
		},
	)

	KeepAlivesReceived = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "bridged_election_keepalives_received_total",
			Help: "Total keep-alive messages received from peers",
		},
	)

	PeerFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "bridged_election_peer_failures_total",
			Help: "Total peer instances declared failed by liveness timeout",
		},
	)

	IDRegenerations = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "bridged_election_id_regenerations_total",
			Help: "Total instance ID regenerations forced by collisions",
		},
	)

	// Communication layer metrics
	SendsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridged_comms_sends_total",
			Help: "Total messages published to the root by kind",
		},
		[]string{"kind"},
	)

	SendsGated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "bridged_comms_sends_gated_total",
			Help: "Total sends suppressed because the instance is not master",
		},
	)

	SendRetries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "bridged_comms_send_retries_total",
			Help: "Total send retries after a connection rebuild",
		},
	)

	SendFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "bridged_comms_send_failures_total",
			Help: "Total sends abandoned after the retry also failed",
		},
	)

	MessagesDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "bridged_comms_messages_dropped_total",
			Help: "Total inbound messages dropped as malformed or unknown",
		},
	)

	PathRecords = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "bridged_comms_path_records",
			Help: "Inter-domain path records currently cached",
		},
	)

	WatchdogFires = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "bridged_comms_watchdog_fires_total",
			Help: "Total keep-alive watchdog expiries that re-sent the domain ID",
		},
	)
)

func init() {
	// Register all metrics
	prometheus.MustRegister(ElectionRole)
	prometheus.MustRegister(KnownPeers)
	prometheus.MustRegister(KeepAlivesSent)
	prometheus.MustRegister(KeepAlivesReceived)
	prometheus.MustRegister(PeerFailures)
	prometheus.MustRegister(IDRegenerations)
	prometheus.MustRegister(SendsTotal)
	prometheus.MustRegister(SendsGated)
	prometheus.MustRegister(SendRetries)
	prometheus.MustRegister(SendFailures)
	prometheus.MustRegister(MessagesDropped)
	prometheus.MustRegister(PathRecords)
	prometheus.MustRegister(WatchdogFires)
}

// SetRole updates the role gauge so exactly one role label reads 1
func SetRole(role string) {
	for _, r := range []string{"unknown", "master", "slave"} {
		v := 0.0
		if r == role {
			v = 1.0
		}
		ElectionRole.WithLabelValues(r).Set(v)
	}
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
