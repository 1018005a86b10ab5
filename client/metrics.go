package client

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	framesDispatched = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gamenet",
		Subsystem: "client",
		Name:      "packets_dispatched_total",
		Help:      "Received packets that were handled, by kind.",
	}, []string{"kind"})

	bytesRead = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "gamenet",
		Subsystem: "client",
		Name:      "read_bytes_total",
		Help:      "Bytes read from the socket, before decryption.",
	})

	bytesWritten = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "gamenet",
		Subsystem: "client",
		Name:      "written_bytes_total",
		Help:      "Bytes written to the socket, after encryption.",
	})

	connects = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "gamenet",
		Subsystem: "client",
		Name:      "connects_total",
		Help:      "Connections established.",
	})

	connectFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "gamenet",
		Subsystem: "client",
		Name:      "connect_failures_total",
		Help:      "Connection attempts which failed, including TLS handshakes.",
	})

	disconnects = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "gamenet",
		Subsystem: "client",
		Name:      "disconnects_total",
		Help:      "Connections which were closed, by either side.",
	})

	protocolErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "gamenet",
		Subsystem: "client",
		Name:      "protocol_errors_total",
		Help:      "Framing errors, unknown packets and failed handlers.",
	})

	heartbeats = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "gamenet",
		Subsystem: "client",
		Name:      "heartbeats_total",
		Help:      "OnlineCheck packets queued.",
	})

	downgrades = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "gamenet",
		Subsystem: "client",
		Name:      "downgrades_total",
		Help:      "Switches from an encrypted to a plaintext channel.",
	})
)

func init() {
	prometheus.MustRegister(
		framesDispatched,
		bytesRead,
		bytesWritten,
		connects,
		connectFailures,
		disconnects,
		protocolErrors,
		heartbeats,
		downgrades,
	)
}
