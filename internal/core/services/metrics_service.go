package services

import (
	"sync"
	"time"

	"vroom/internal/core/domain"
)

// RoomStats is a point-in-time view of one room's activity.
type RoomStats struct {
	RoomID         domain.RoomID `json:"room_id"`
	Occupancy      int           `json:"occupancy"`
	AssetCount     int           `json:"asset_count"`
	ViewerCount    int           `json:"viewer_count"`
	EventsRelayed  int64         `json:"events_relayed"`
	StreamActive   bool          `json:"stream_active"`
	Timestamp      time.Time     `json:"timestamp"`
}

// Collector mirrors per-room counters into an external metrics backend.
// MetricsService forwards every update; a nil collector disables mirroring.
type Collector interface {
	RecordRoomCreated()
	RecordRoomClosed(roomID domain.RoomID)
	RecordEventRelayed()
	SetRoomParticipants(roomID domain.RoomID, count int)
	SetRoomAssets(roomID domain.RoomID, count int)
	SetStreamViewers(roomID domain.RoomID, count int)
}

// MetricsService keeps per-room activity counters updated by the other
// services as membership, asset, and livestream state changes.
type MetricsService struct {
	mu sync.RWMutex

	collector Collector

	occupancy     map[domain.RoomID]int
	assetCount    map[domain.RoomID]int
	viewerCount   map[domain.RoomID]int
	eventsRelayed map[domain.RoomID]int64
	streamActive  map[domain.RoomID]bool
}

func NewMetricsService() *MetricsService {
	return &MetricsService{
		occupancy:     make(map[domain.RoomID]int),
		assetCount:    make(map[domain.RoomID]int),
		viewerCount:   make(map[domain.RoomID]int),
		eventsRelayed: make(map[domain.RoomID]int64),
		streamActive:  make(map[domain.RoomID]bool),
	}
}

// SetCollector attaches an external backend. Call before the services start
// handling traffic; forwarding is not retroactive.
func (m *MetricsService) SetCollector(c Collector) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.collector = c
}

func (m *MetricsService) RoomCreated() {
	m.mu.RLock()
	c := m.collector
	m.mu.RUnlock()
	if c != nil {
		c.RecordRoomCreated()
	}
}

func (m *MetricsService) IncrementOccupancy(roomID domain.RoomID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.occupancy[roomID]++
	if m.collector != nil {
		m.collector.SetRoomParticipants(roomID, m.occupancy[roomID])
	}
}

func (m *MetricsService) DecrementOccupancy(roomID domain.RoomID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.occupancy[roomID] > 0 {
		m.occupancy[roomID]--
	}
	if m.collector != nil {
		m.collector.SetRoomParticipants(roomID, m.occupancy[roomID])
	}
}

func (m *MetricsService) IncrementAssets(roomID domain.RoomID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.assetCount[roomID]++
	if m.collector != nil {
		m.collector.SetRoomAssets(roomID, m.assetCount[roomID])
	}
}

func (m *MetricsService) DecrementAssets(roomID domain.RoomID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.assetCount[roomID] > 0 {
		m.assetCount[roomID]--
	}
	if m.collector != nil {
		m.collector.SetRoomAssets(roomID, m.assetCount[roomID])
	}
}

func (m *MetricsService) SetViewerCount(roomID domain.RoomID, count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.viewerCount[roomID] = count
	if m.collector != nil {
		m.collector.SetStreamViewers(roomID, count)
	}
}

func (m *MetricsService) SetStreamActive(roomID domain.RoomID, active bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.streamActive[roomID] = active
	if !active {
		m.viewerCount[roomID] = 0
	}
}

func (m *MetricsService) RecordEventRelayed(roomID domain.RoomID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.eventsRelayed[roomID]++
	if m.collector != nil {
		m.collector.RecordEventRelayed()
	}
}

func (m *MetricsService) GetRoomStats(roomID domain.RoomID) RoomStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return RoomStats{
		RoomID:        roomID,
		Occupancy:     m.occupancy[roomID],
		AssetCount:    m.assetCount[roomID],
		ViewerCount:   m.viewerCount[roomID],
		EventsRelayed: m.eventsRelayed[roomID],
		StreamActive:  m.streamActive[roomID],
		Timestamp:     time.Now(),
	}
}

// Forget drops all counters for a room once it is deleted.
func (m *MetricsService) Forget(roomID domain.RoomID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.occupancy, roomID)
	delete(m.assetCount, roomID)
	delete(m.viewerCount, roomID)
	delete(m.eventsRelayed, roomID)
	delete(m.streamActive, roomID)
	if m.collector != nil {
		m.collector.RecordRoomClosed(roomID)
	}
}
