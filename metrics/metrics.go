// Package metrics exposes the relay's Prometheus collectors. Collectors are
// registered with the default registry at init and updated through the small
// helper functions below.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Message kinds used as label values.
const (
	KindBroadcast = "broadcast"
	KindPrivate   = "private"
)

// Eviction reasons used as label values.
const (
	ReasonWriteFailed  = "write_failed"
	ReasonDisconnected = "disconnected"
)

var (
	connectedClients = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "chatrelay_connected_clients",
		Help: "Number of clients currently registered",
	})

	connectionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chatrelay_connections_total",
		Help: "Total connections accepted",
	})

	handshakeFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chatrelay_handshake_failures_total",
		Help: "Connections dropped because the identity handshake could not be written",
	})

	messagesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chatrelay_messages_total",
		Help: "Inbound lines routed, by kind",
	}, []string{"kind"})

	privateMissesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chatrelay_private_misses_total",
		Help: "Private messages addressed to an identity that is not registered",
	})

	evictionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chatrelay_evictions_total",
		Help: "Registry removals, by reason",
	}, []string{"reason"})

	dispatchDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "chatrelay_dispatch_seconds",
		Help:    "Time to deliver one routed line, by kind",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind"})
)

func init() {
	prometheus.MustRegister(
		connectedClients,
		connectionsTotal,
		handshakeFailuresTotal,
		messagesTotal,
		privateMissesTotal,
		evictionsTotal,
		dispatchDuration,
	)
}

func SetConnected(n int)        { connectedClients.Set(float64(n)) }
func IncConnection()            { connectionsTotal.Inc() }
func IncHandshakeFailure()      { handshakeFailuresTotal.Inc() }
func IncMessage(kind string)    { messagesTotal.WithLabelValues(kind).Inc() }
func IncPrivateMiss()           { privateMissesTotal.Inc() }
func IncEviction(reason string) { evictionsTotal.WithLabelValues(reason).Inc() }

func ObserveDispatch(kind string, start time.Time) {
	dispatchDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
}
