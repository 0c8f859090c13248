package monitoring

import (
	"vroom/internal/core/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type PrometheusCollector struct {
	// Counters
	connectionsActive prometheus.Gauge
	roomsActive       prometheus.Gauge
	eventsRelayed     prometheus.Counter
	signalsRelayed    prometheus.Counter

	// Per-room metrics
	roomParticipants *prometheus.GaugeVec
	roomAssets       *prometheus.GaugeVec
	streamViewers    *prometheus.GaugeVec
}

func NewPrometheusCollector() *PrometheusCollector {
	return &PrometheusCollector{
		connectionsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "vroom_connections_active",
			Help: "Number of connected session channels",
		}),

		roomsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "vroom_rooms_active",
			Help: "Number of open rooms",
		}),

		eventsRelayed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vroom_events_relayed_total",
			Help: "Total number of realtime events relayed to room members",
		}),

		signalsRelayed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vroom_rtc_signals_relayed_total",
			Help: "Total number of WebRTC signaling messages relayed",
		}),

		roomParticipants: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "vroom_room_participants",
			Help: "Number of participants in each room",
		}, []string{"room_id"}),

		roomAssets: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "vroom_room_assets",
			Help: "Number of shared assets in each room",
		}, []string{"room_id"}),

		streamViewers: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "vroom_livestream_viewers",
			Help: "Number of viewers of the room's livestream",
		}, []string{"room_id"}),
	}
}

func (p *PrometheusCollector) RecordConnectionOpened() {
	p.connectionsActive.Inc()
}

func (p *PrometheusCollector) RecordConnectionClosed() {
	p.connectionsActive.Dec()
}

func (p *PrometheusCollector) RecordRoomCreated() {
	p.roomsActive.Inc()
}

func (p *PrometheusCollector) RecordRoomClosed(roomID domain.RoomID) {
	p.roomsActive.Dec()

	p.roomParticipants.DeleteLabelValues(string(roomID))
	p.roomAssets.DeleteLabelValues(string(roomID))
	p.streamViewers.DeleteLabelValues(string(roomID))
}

func (p *PrometheusCollector) RecordEventRelayed() {
	p.eventsRelayed.Inc()
}

func (p *PrometheusCollector) RecordSignalRelayed() {
	p.signalsRelayed.Inc()
}

func (p *PrometheusCollector) SetRoomParticipants(roomID domain.RoomID, count int) {
	p.roomParticipants.WithLabelValues(string(roomID)).Set(float64(count))
}

func (p *PrometheusCollector) SetRoomAssets(roomID domain.RoomID, count int) {
	p.roomAssets.WithLabelValues(string(roomID)).Set(float64(count))
}

func (p *PrometheusCollector) SetStreamViewers(roomID domain.RoomID, count int) {
	p.streamViewers.WithLabelValues(string(roomID)).Set(float64(count))
}
