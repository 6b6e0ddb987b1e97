package services

import (
	"streamcast/internal/core/domain"
	"streamcast/internal/core/ports"

	"go.uber.org/zap"
)

// RelayHub is the last-resort media path: when a viewer's direct peer
// connection fails, the broadcaster's binary frames are fanned out through
// the server to that viewer. Frames are fully opaque; the hub never parses,
// validates or transcodes them.
type RelayHub struct {
	registry *ConnectionRegistry
	rooms    *RoomManager
	metrics  ports.MetricsRecorder
	logger   *zap.SugaredLogger
}

func NewRelayHub(registry *ConnectionRegistry, rooms *RoomManager, metrics ports.MetricsRecorder, logger *zap.SugaredLogger) *RelayHub {
	return &RelayHub{
		registry: registry,
		rooms:    rooms,
		metrics:  metrics,
		logger:   logger,
	}
}

// RequestRelay switches the caller to relay mode in the given room. The
// room's relay flag transitions direct-only -> relay-enabled exactly once
// and never reverts; repeating the request has no additional effect. The
// caller is acknowledged and, when the broadcaster has already published a
// codec config, it is replayed so the decoder can be set up before frames
// arrive.
func (h *RelayHub) RequestRelay(clientID domain.ClientID, roomID domain.RoomID) error {
	room, ok := h.rooms.Room(roomID)
	if !ok {
		return domain.ErrRoomNotFound
	}
	if !room.HasViewer(clientID) {
		return domain.ErrNotInRoom
	}

	codec := room.EnableRelay(clientID)

	h.logger.Infow("relay enabled", "room_id", roomID, "viewer_id", clientID)

	h.registry.Send(clientID, domain.RelayEnabled{
		Type:    domain.MsgRelayEnabled,
		Message: "switched to server relay",
	})
	if codec != nil {
		h.registry.Send(clientID, codecMessage(*codec))
	}
	return nil
}

// SetCodecConfig records the broadcaster's codec configuration on the room
// and pushes it to every viewer currently in relay mode. Future relay
// viewers receive it when they switch.
func (h *RelayHub) SetCodecConfig(clientID domain.ClientID, cfg domain.CodecConfig) error {
	room, role, ok := h.rooms.RoomOf(clientID)
	if !ok {
		return domain.ErrNotInRoom
	}
	if role != domain.RoleBroadcasting {
		return domain.ErrNotBroadcaster
	}

	room.SetCodec(cfg)

	h.logger.Infow("codec config set",
		"room_id", room.ID,
		"codec", cfg.Codec,
		"width", cfg.Width,
		"height", cfg.Height,
	)

	msg := codecMessage(cfg)
	for _, viewerID := range room.RelayViewers() {
		h.registry.Send(viewerID, msg)
	}
	return nil
}

// ForwardFrame fans one opaque binary frame out to every relay-mode viewer
// of the sender's room. Delivery to each viewer is independent: frames are
// enqueued without blocking, and a viewer whose queue is saturated has the
// frame dropped rather than delaying the broadcaster or other viewers.
// Frames from clients that are not broadcasting are discarded.
func (h *RelayHub) ForwardFrame(clientID domain.ClientID, frame []byte) {
	room, role, ok := h.rooms.RoomOf(clientID)
	if !ok || role != domain.RoleBroadcasting {
		return
	}

	room.AddBytesSent(int64(len(frame)))

	viewers := room.RelayViewers()
	delivered := 0
	for _, viewerID := range viewers {
		conn, ok := h.registry.Lookup(viewerID)
		if !ok {
			continue
		}
		if conn.SendBinary(frame) {
			room.RecordViewerDelivery(viewerID, int64(len(frame)))
			delivered++
		} else {
			h.metrics.FrameDropped()
		}
	}

	if delivered > 0 {
		h.metrics.FrameRelayed(len(frame), delivered)
	}
}

func codecMessage(cfg domain.CodecConfig) domain.CodecConfigMessage {
	return domain.CodecConfigMessage{
		Type:   domain.MsgCodecConfig,
		Codec:  cfg.Codec,
		Width:  cfg.Width,
		Height: cfg.Height,
	}
}
