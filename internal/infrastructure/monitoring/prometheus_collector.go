package monitoring

import (
	"streamcast/internal/core/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusCollector exports the server's operational metrics. It also
// observes room lifecycle events to keep the per-room gauges current.
type PrometheusCollector struct {
	clientsConnected prometheus.Gauge
	roomsActive      prometheus.Gauge

	signalsRouted *prometheus.CounterVec

	framesRelayedTotal prometheus.Counter
	frameBytesTotal    prometheus.Counter
	framesDroppedTotal prometheus.Counter
	frameFanout        prometheus.Histogram

	roomViewers *prometheus.GaugeVec
}

func NewPrometheusCollector() *PrometheusCollector {
	return &PrometheusCollector{
		clientsConnected: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "streamcast_clients_connected",
			Help: "Number of currently connected clients",
		}),

		roomsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "streamcast_rooms_active",
			Help: "Number of currently active rooms",
		}),

		signalsRouted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "streamcast_signals_routed_total",
			Help: "Total signaling messages routed, by kind",
		}, []string{"kind"}),

		framesRelayedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "streamcast_relay_frames_total",
			Help: "Total relay frames fanned out to at least one viewer",
		}),

		frameBytesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "streamcast_relay_bytes_total",
			Help: "Total bytes of relay frames accepted from broadcasters",
		}),

		framesDroppedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "streamcast_relay_frames_dropped_total",
			Help: "Total relay frames dropped due to saturated viewer queues",
		}),

		frameFanout: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "streamcast_relay_fanout_viewers",
			Help:    "Number of viewers each relayed frame was delivered to",
			Buckets: prometheus.ExponentialBuckets(1, 2, 8),
		}),

		roomViewers: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "streamcast_room_viewers",
			Help: "Number of viewers per room",
		}, []string{"room_id"}),
	}
}

func (p *PrometheusCollector) ClientConnected() {
	p.clientsConnected.Inc()
}

func (p *PrometheusCollector) ClientDisconnected() {
	p.clientsConnected.Dec()
}

func (p *PrometheusCollector) SignalRouted(kind string) {
	p.signalsRouted.WithLabelValues(kind).Inc()
}

func (p *PrometheusCollector) FrameRelayed(bytes, viewers int) {
	p.framesRelayedTotal.Inc()
	p.frameBytesTotal.Add(float64(bytes))
	p.frameFanout.Observe(float64(viewers))
}

func (p *PrometheusCollector) FrameDropped() {
	p.framesDroppedTotal.Inc()
}

func (p *PrometheusCollector) OnRoomCreated(room *domain.Room) {
	p.roomsActive.Inc()
	p.roomViewers.WithLabelValues(string(room.ID)).Set(0)
}

func (p *PrometheusCollector) OnRoomUpdated(info domain.RoomInfo) {
	p.roomViewers.WithLabelValues(string(info.RoomID)).Set(float64(info.Viewers))
}

func (p *PrometheusCollector) OnRoomClosed(id domain.RoomID) {
	p.roomsActive.Dec()
	p.roomViewers.DeleteLabelValues(string(id))
}
