package feed

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/loroworks/loro/go/pkg/playout"
)

// Metrics holds the Prometheus collectors shared by the feed transports.
// The transport label is "ws" or "rtp".
type Metrics struct {
	ChunksReceived    *prometheus.CounterVec
	ChunksRejected    *prometheus.CounterVec
	DecodeErrors      *prometheus.CounterVec
	ConnectionsActive *prometheus.GaugeVec
	RequestsActive    prometheus.GaugeFunc
}

// NewMetrics creates and registers the feed collectors. A nil registerer
// uses the default registry. The active-requests gauge reads the player
// on scrape.
func NewMetrics(reg prometheus.Registerer, player *playout.Player) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		ChunksReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "loro_feed_chunks_received_total",
			Help: "Total number of audio chunks received",
		}, []string{"transport"}),
		ChunksRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "loro_feed_chunks_rejected_total",
			Help: "Total number of audio chunks rejected by admission or ordering",
		}, []string{"transport"}),
		DecodeErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "loro_feed_decode_errors_total",
			Help: "Total number of audio payloads that failed to decode",
		}, []string{"transport"}),
		ConnectionsActive: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "loro_feed_connections_active",
			Help: "Current number of producer connections",
		}, []string{"transport"}),
		RequestsActive: factory.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "loro_playout_requests_active",
			Help: "Current number of buffered playback requests",
		}, func() float64 {
			return float64(len(player.Requests()))
		}),
	}
}

// RecordChunk counts one received chunk and whether admission took it.
func (m *Metrics) RecordChunk(transport string, accepted bool) {
	if m == nil {
		return
	}
	m.ChunksReceived.WithLabelValues(transport).Inc()
	if !accepted {
		m.ChunksRejected.WithLabelValues(transport).Inc()
	}
}

// RecordDecodeError counts one undecodable payload.
func (m *Metrics) RecordDecodeError(transport string) {
	if m == nil {
		return
	}
	m.DecodeErrors.WithLabelValues(transport).Inc()
}

func (m *Metrics) connOpened(transport string) {
	if m == nil {
		return
	}
	m.ConnectionsActive.WithLabelValues(transport).Inc()
}

func (m *Metrics) connClosed(transport string) {
	if m == nil {
		return
	}
	m.ConnectionsActive.WithLabelValues(transport).Dec()
}
