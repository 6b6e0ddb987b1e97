package signal

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"streamcast/internal/core/domain"
	"streamcast/internal/core/ports"
	"streamcast/internal/core/services"

	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testServerConfig() Config {
	return Config{
		PingInterval:     50 * time.Millisecond,
		PongTimeout:      time.Second,
		WriteTimeout:     time.Second,
		MaxMessageSize:   1 << 20,
		ControlQueueSize: 64,
		FrameQueueSize:   64,
	}
}

func newTestServer(t *testing.T, cfg Config) (*httptest.Server, *services.RoomManager) {
	t.Helper()
	logger := zap.NewNop().Sugar()
	iceServers := []webrtc.ICEServer{{URLs: []string{"stun:stun.l.google.com:19302"}}}

	registry := services.NewConnectionRegistry(iceServers, ports.NopMetrics{}, logger)
	rooms := services.NewRoomManager(registry, logger)
	signaling := services.NewSignalingRouter(registry, rooms, ports.NopMetrics{}, logger)
	relay := services.NewRelayHub(registry, rooms, ports.NopMetrics{}, logger)
	stats := services.NewStatsAggregator(registry, rooms, time.Hour, logger)
	rooms.AddObserver(stats)

	server := NewServer(cfg, registry, rooms, signaling, relay, stats, logger)

	ts := httptest.NewServer(http.HandlerFunc(server.HandleWebSocket))
	t.Cleanup(func() {
		ts.Close()
		stats.Close()
	})
	return ts, rooms
}

// testClient drives one websocket peer. Text and binary frames arrive on the
// same socket, so readText and readBinary both pull from the read loop and
// fail the test on an unexpected frame type.
type testClient struct {
	t  *testing.T
	ws *websocket.Conn
	id domain.ClientID
}

func dial(t *testing.T, ts *httptest.Server) *testClient {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http")
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { ws.Close() })

	c := &testClient{t: t, ws: ws}
	welcome := decodeAs[domain.Welcome](t, c.readText())
	require.Equal(t, domain.MsgWelcome, welcome.Type)
	require.Len(t, welcome.ClientID, 8)
	require.NotEmpty(t, welcome.ICEServers)
	c.id = welcome.ClientID
	return c
}

func (c *testClient) send(v interface{}) {
	c.t.Helper()
	require.NoError(c.t, c.ws.WriteJSON(v))
}

func (c *testClient) sendBinary(data []byte) {
	c.t.Helper()
	require.NoError(c.t, c.ws.WriteMessage(websocket.BinaryMessage, data))
}

func (c *testClient) readText() []byte {
	c.t.Helper()
	c.ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	mt, data, err := c.ws.ReadMessage()
	require.NoError(c.t, err)
	require.Equal(c.t, websocket.TextMessage, mt)
	return data
}

func (c *testClient) readBinary() []byte {
	c.t.Helper()
	c.ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	mt, data, err := c.ws.ReadMessage()
	require.NoError(c.t, err)
	require.Equal(c.t, websocket.BinaryMessage, mt)
	return data
}

func decodeAs[T any](t *testing.T, data []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(data, &v))
	return v
}

func TestBroadcastSession(t *testing.T) {
	ts, _ := newTestServer(t, testServerConfig())

	broadcaster := dial(t, ts)
	viewer := dial(t, ts)
	require.NotEqual(t, broadcaster.id, viewer.id)

	// Broadcaster opens a room.
	broadcaster.send(map[string]string{"type": "create_room"})
	created := decodeAs[domain.RoomCreated](t, broadcaster.readText())
	require.Equal(t, domain.MsgRoomCreated, created.Type)
	require.Regexp(t, `^[0-9]{6}$`, string(created.RoomID))

	// Viewer joins; both sides are notified.
	viewer.send(map[string]interface{}{"type": "join_room", "room_id": created.RoomID})
	joined := decodeAs[domain.RoomJoined](t, viewer.readText())
	assert.Equal(t, created.RoomID, joined.RoomID)
	assert.Equal(t, broadcaster.id, joined.BroadcasterID)
	assert.Nil(t, joined.Codec)

	viewerJoined := decodeAs[domain.ViewerJoined](t, broadcaster.readText())
	assert.Equal(t, viewer.id, viewerJoined.ViewerID)
	assert.Equal(t, 1, viewerJoined.ViewerCount)

	// SDP offer is forwarded verbatim with the sender attached.
	offerSDP := json.RawMessage(`{"sdp":"v=0\r\no=- 1 1 IN IP4 0.0.0.0","sdpType":"offer"}`)
	broadcaster.send(map[string]interface{}{
		"type":      "offer",
		"target_id": viewer.id,
		"payload":   offerSDP,
	})
	forward := decodeAs[domain.SignalForward](t, viewer.readText())
	assert.Equal(t, domain.MsgOffer, forward.Type)
	assert.Equal(t, broadcaster.id, forward.FromID)
	assert.JSONEq(t, string(offerSDP), string(forward.Payload))

	// Answer travels the other way.
	viewer.send(map[string]interface{}{
		"type":      "answer",
		"target_id": broadcaster.id,
		"payload":   json.RawMessage(`{"sdp":"v=0"}`),
	})
	answer := decodeAs[domain.SignalForward](t, broadcaster.readText())
	assert.Equal(t, domain.MsgAnswer, answer.Type)
	assert.Equal(t, viewer.id, answer.FromID)

	// Viewer falls back to server relay.
	viewer.send(map[string]interface{}{"type": "request_relay", "room_id": created.RoomID})
	ack := decodeAs[domain.RelayEnabled](t, viewer.readText())
	assert.Equal(t, domain.MsgRelayEnabled, ack.Type)

	// Broadcaster announces the codec; the relay viewer receives it.
	broadcaster.send(map[string]interface{}{"type": "codec_config", "codec": "vp8", "width": 1280, "height": 720})
	codec := decodeAs[domain.CodecConfigMessage](t, viewer.readText())
	assert.Equal(t, "vp8", codec.Codec)
	assert.Equal(t, 1280, codec.Width)

	// Binary frames fan out in order with headers intact.
	for i := 0; i < 3; i++ {
		frame := domain.MarshalFrame(domain.FrameHeader{Type: domain.FrameTypeDelta, TimestampUS: float64(i * 1000), DurationUS: 33333}, []byte{byte(i)})
		broadcaster.sendBinary(frame)
	}
	for i := 0; i < 3; i++ {
		header, payload, err := domain.UnmarshalFrame(viewer.readBinary())
		require.NoError(t, err)
		assert.Equal(t, float64(i*1000), header.TimestampUS)
		assert.Equal(t, []byte{byte(i)}, payload)
	}

	// Broadcaster disconnect closes the room.
	broadcaster.ws.Close()
	closed := decodeAs[domain.RoomClosed](t, viewer.readText())
	assert.Equal(t, domain.MsgRoomClosed, closed.Type)
	assert.NotEmpty(t, closed.Message)
}

func TestJoinUnknownRoomReturnsError(t *testing.T) {
	ts, _ := newTestServer(t, testServerConfig())
	client := dial(t, ts)

	client.send(map[string]interface{}{"type": "join_room", "room_id": "000000"})
	errMsg := decodeAs[domain.ErrorMessage](t, client.readText())
	assert.Equal(t, domain.MsgError, errMsg.Type)
	assert.Equal(t, domain.ErrRoomNotFound.Error(), errMsg.Message)
}

func TestSignalToUnknownTargetReturnsError(t *testing.T) {
	ts, _ := newTestServer(t, testServerConfig())
	client := dial(t, ts)

	client.send(map[string]string{"type": "create_room"})
	client.readText()

	client.send(map[string]interface{}{"type": "ice_candidate", "target_id": "ghost", "payload": json.RawMessage(`{}`)})
	errMsg := decodeAs[domain.ErrorMessage](t, client.readText())
	assert.Equal(t, domain.MsgError, errMsg.Type)
	assert.Equal(t, domain.ErrTargetNotFound.Error(), errMsg.Message)
}

func TestMalformedAndUnknownMessagesAreDiscarded(t *testing.T) {
	ts, _ := newTestServer(t, testServerConfig())
	client := dial(t, ts)

	require.NoError(t, client.ws.WriteMessage(websocket.TextMessage, []byte("{not json")))
	client.send(map[string]string{"type": "warp_drive"})

	// The connection survives and keeps serving.
	client.send(map[string]string{"type": "create_room"})
	created := decodeAs[domain.RoomCreated](t, client.readText())
	assert.Equal(t, domain.MsgRoomCreated, created.Type)
}

func TestViewerDisconnectNotifiesBroadcaster(t *testing.T) {
	ts, rooms := newTestServer(t, testServerConfig())

	broadcaster := dial(t, ts)
	broadcaster.send(map[string]string{"type": "create_room"})
	created := decodeAs[domain.RoomCreated](t, broadcaster.readText())

	viewer := dial(t, ts)
	viewer.send(map[string]interface{}{"type": "join_room", "room_id": created.RoomID})
	viewer.readText()
	broadcaster.readText() // viewer_joined

	viewer.ws.Close()

	left := decodeAs[domain.ViewerLeft](t, broadcaster.readText())
	assert.Equal(t, domain.MsgViewerLeft, left.Type)
	assert.Equal(t, viewer.id, left.ViewerID)
	assert.Equal(t, 0, left.ViewerCount)

	infos := rooms.ListRooms()
	require.Len(t, infos, 1)
	assert.Equal(t, 0, infos[0].Viewers)
}

func TestLeaveRoomKeepsConnectionOpen(t *testing.T) {
	ts, rooms := newTestServer(t, testServerConfig())

	broadcaster := dial(t, ts)
	broadcaster.send(map[string]string{"type": "create_room"})
	broadcaster.readText()

	broadcaster.send(map[string]string{"type": "leave_room"})

	assert.Eventually(t, func() bool {
		return len(rooms.ListRooms()) == 0
	}, time.Second, 10*time.Millisecond)

	// The same connection can open a fresh room.
	broadcaster.send(map[string]string{"type": "create_room"})
	created := decodeAs[domain.RoomCreated](t, broadcaster.readText())
	assert.Equal(t, domain.MsgRoomCreated, created.Type)
}

func TestStatsUpdateFlowsToSummary(t *testing.T) {
	cfg := testServerConfig()
	ts, rooms := newTestServer(t, cfg)

	broadcaster := dial(t, ts)
	broadcaster.send(map[string]string{"type": "create_room"})
	created := decodeAs[domain.RoomCreated](t, broadcaster.readText())

	broadcaster.send(map[string]interface{}{"type": "stats_update", "bitrate": 1800.0})

	room, ok := rooms.Room(created.RoomID)
	require.True(t, ok)
	assert.Eventually(t, func() bool {
		return room.Stats().CurrentBitrate == 1800
	}, time.Second, 10*time.Millisecond)
}
