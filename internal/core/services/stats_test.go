package services

import (
	"testing"
	"time"

	"streamcast/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestStats(interval time.Duration) (*ConnectionRegistry, *RoomManager, *StatsAggregator) {
	registry, rooms := newTestRooms()
	stats := NewStatsAggregator(registry, rooms, interval, zap.NewNop().Sugar())
	rooms.AddObserver(stats)
	return registry, rooms, stats
}

func TestStatsSummaryReachesBroadcaster(t *testing.T) {
	registry, rooms, stats := newTestStats(10 * time.Millisecond)
	defer stats.Close()

	broadcasterConn := &fakeConn{}
	broadcasterID := registry.Register(broadcasterConn)
	roomID, err := rooms.CreateRoom(broadcasterID)
	require.NoError(t, err)

	viewerConn := &fakeConn{}
	viewerID := registry.Register(viewerConn)
	_, err = rooms.JoinRoom(viewerID, roomID)
	require.NoError(t, err)

	stats.Update(broadcasterID, StatsReport{Bitrate: 2500})
	stats.Update(viewerID, StatsReport{IsP2P: true, BytesReceived: 4096})

	assert.Eventually(t, func() bool {
		summaries := messagesOfType[domain.StatsSummary](broadcasterConn)
		if len(summaries) == 0 {
			return false
		}
		last := summaries[len(summaries)-1]
		if last.ViewerCount != 1 || last.CurrentBitrate != 2500 {
			return false
		}
		if len(last.Viewers) != 1 {
			return false
		}
		v := last.Viewers[0]
		return v.ID == viewerID && v.IsP2P && v.BytesSent == 4096 && v.ConnectedDuration >= 0
	}, time.Second, 5*time.Millisecond)

	// Summaries go to the broadcaster, not viewers.
	assert.Empty(t, messagesOfType[domain.StatsSummary](viewerConn))
}

func TestStatsReportDoesNotClobberRelayByteAccounting(t *testing.T) {
	registry, rooms, stats := newTestStats(10 * time.Millisecond)
	defer stats.Close()

	broadcasterConn := &fakeConn{}
	broadcasterID := registry.Register(broadcasterConn)
	roomID, err := rooms.CreateRoom(broadcasterID)
	require.NoError(t, err)

	viewerID := registry.Register(&fakeConn{})
	_, err = rooms.JoinRoom(viewerID, roomID)
	require.NoError(t, err)

	room, ok := rooms.Room(roomID)
	require.True(t, ok)

	// The server has relayed 5000 bytes to this viewer; the viewer then
	// self-reports a different figure. The relay accounting must survive.
	room.RecordViewerDelivery(viewerID, 5000)
	stats.Update(viewerID, StatsReport{IsP2P: false, BytesReceived: 12345})

	assert.Eventually(t, func() bool {
		summaries := messagesOfType[domain.StatsSummary](broadcasterConn)
		if len(summaries) == 0 {
			return false
		}
		last := summaries[len(summaries)-1]
		return len(last.Viewers) == 1 && last.Viewers[0].BytesSent == 5000
	}, time.Second, 5*time.Millisecond)
}

func TestStatsLoopStopsWhenRoomCloses(t *testing.T) {
	registry, rooms, stats := newTestStats(10 * time.Millisecond)
	defer stats.Close()

	broadcasterConn := &fakeConn{}
	broadcasterID := registry.Register(broadcasterConn)
	_, err := rooms.CreateRoom(broadcasterID)
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		return len(messagesOfType[domain.StatsSummary](broadcasterConn)) > 0
	}, time.Second, 5*time.Millisecond)

	rooms.LeaveRoom(broadcasterID)

	// Give any in-flight tick a moment to land, then verify no more arrive.
	time.Sleep(30 * time.Millisecond)
	count := len(messagesOfType[domain.StatsSummary](broadcasterConn))
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, count, len(messagesOfType[domain.StatsSummary](broadcasterConn)))
}

func TestStatsUpdateIgnoresRoomlessClients(t *testing.T) {
	registry, _, stats := newTestStats(time.Hour)
	defer stats.Close()

	clientID := registry.Register(&fakeConn{})
	stats.Update(clientID, StatsReport{Bitrate: 100})
	stats.Update("unknown", StatsReport{Bitrate: 100})
}

func TestStatsCloseStopsAllLoops(t *testing.T) {
	registry, rooms, stats := newTestStats(10 * time.Millisecond)

	for i := 0; i < 3; i++ {
		_, err := rooms.CreateRoom(registry.Register(&fakeConn{}))
		require.NoError(t, err)
	}

	done := make(chan struct{})
	go func() {
		stats.Close()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("stats aggregator did not shut down")
	}
}
