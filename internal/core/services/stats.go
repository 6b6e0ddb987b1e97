package services

import (
	"sync"
	"time"

	"streamcast/internal/core/domain"

	"go.uber.org/zap"
)

// StatsReport is a client's self-reported telemetry push. Broadcasters
// report their outgoing bitrate; viewers report received bytes and whether
// their connection is still peer-to-peer.
type StatsReport struct {
	Bitrate       float64
	BytesReceived int64
	IsP2P         bool
}

// StatsAggregator runs one summary loop per active room and pushes a
// stats_summary to the broadcaster on a fixed period. Telemetry is advisory:
// a lost or late update never affects room or relay correctness.
type StatsAggregator struct {
	registry *ConnectionRegistry
	rooms    *RoomManager
	interval time.Duration
	logger   *zap.SugaredLogger

	mu    sync.Mutex
	stops map[domain.RoomID]chan struct{}
	wg    sync.WaitGroup
}

func NewStatsAggregator(registry *ConnectionRegistry, rooms *RoomManager, interval time.Duration, logger *zap.SugaredLogger) *StatsAggregator {
	return &StatsAggregator{
		registry: registry,
		rooms:    rooms,
		interval: interval,
		logger:   logger,
		stops:    make(map[domain.RoomID]chan struct{}),
	}
}

// Update ingests a stats_update push from a client. Unknown clients and
// clients without a room are ignored.
func (a *StatsAggregator) Update(clientID domain.ClientID, report StatsReport) {
	room, role, ok := a.rooms.RoomOf(clientID)
	if !ok {
		return
	}
	if role == domain.RoleBroadcasting {
		room.SetBitrate(report.Bitrate)
		return
	}
	room.UpdateViewerReport(clientID, report.IsP2P, report.BytesReceived, report.Bitrate)
}

// OnRoomCreated starts the room's summary loop.
func (a *StatsAggregator) OnRoomCreated(room *domain.Room) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, running := a.stops[room.ID]; running {
		return
	}
	stop := make(chan struct{})
	a.stops[room.ID] = stop
	a.wg.Add(1)
	go a.loop(room, stop)
}

func (a *StatsAggregator) OnRoomUpdated(domain.RoomInfo) {}

// OnRoomClosed stops the room's summary loop so no periodic work dangles
// after the room is destroyed.
func (a *StatsAggregator) OnRoomClosed(id domain.RoomID) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if stop, ok := a.stops[id]; ok {
		close(stop)
		delete(a.stops, id)
	}
}

// Close stops every running loop and waits for them to exit.
func (a *StatsAggregator) Close() {
	a.mu.Lock()
	for id, stop := range a.stops {
		close(stop)
		delete(a.stops, id)
	}
	a.mu.Unlock()
	a.wg.Wait()
}

func (a *StatsAggregator) loop(room *domain.Room, stop <-chan struct{}) {
	defer a.wg.Done()

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			a.publish(room)
		}
	}
}

func (a *StatsAggregator) publish(room *domain.Room) {
	stats := room.Stats()
	now := time.Now()

	summary := domain.StatsSummary{
		Type:           domain.MsgStatsSummary,
		ViewerCount:    stats.ViewerCount,
		CurrentBitrate: stats.CurrentBitrate,
		TotalBytesSent: stats.TotalBytesSent,
		Viewers:        make([]domain.ViewerSummary, 0, len(stats.Viewers)),
	}
	for _, vs := range stats.Viewers {
		// P2P viewers are invisible to the relay path, so their byte
		// figure comes from their own report; relay viewers use the
		// server's delivery accounting.
		bytes := vs.BytesSent
		if vs.IsP2P {
			bytes = vs.BytesReceived
		}
		summary.Viewers = append(summary.Viewers, domain.ViewerSummary{
			ID:                vs.ClientID,
			ConnectedDuration: now.Sub(vs.ConnectedAt).Seconds(),
			IsP2P:             vs.IsP2P,
			BytesSent:         bytes,
		})
	}

	a.registry.Send(room.BroadcasterID, summary)
}
