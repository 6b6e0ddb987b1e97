package domain

import (
	"encoding/json"

	"github.com/pion/webrtc/v3"
)

// Server-to-client control messages. Every message carries a "type"
// discriminator; the set is closed and clients ignore unknown types.
const (
	MsgWelcome      = "welcome"
	MsgRoomCreated  = "room_created"
	MsgRoomJoined   = "room_joined"
	MsgRoomClosed   = "room_closed"
	MsgViewerJoined = "viewer_joined"
	MsgViewerLeft   = "viewer_left"
	MsgOffer        = "offer"
	MsgAnswer       = "answer"
	MsgICECandidate = "ice_candidate"
	MsgRelayEnabled = "relay_enabled"
	MsgCodecConfig  = "codec_config"
	MsgStatsSummary = "stats_summary"
	MsgError        = "error"
)

type Welcome struct {
	Type       string             `json:"type"`
	ClientID   ClientID           `json:"client_id"`
	ICEServers []webrtc.ICEServer `json:"ice_servers"`
}

type RoomCreated struct {
	Type   string `json:"type"`
	RoomID RoomID `json:"room_id"`
}

type RoomJoined struct {
	Type          string       `json:"type"`
	RoomID        RoomID       `json:"room_id"`
	BroadcasterID ClientID     `json:"broadcaster_id"`
	Codec         *CodecConfig `json:"codec_config,omitempty"`
}

type RoomClosed struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type ViewerJoined struct {
	Type        string   `json:"type"`
	ViewerID    ClientID `json:"viewer_id"`
	ViewerCount int      `json:"viewer_count"`
}

type ViewerLeft struct {
	Type        string   `json:"type"`
	ViewerID    ClientID `json:"viewer_id"`
	ViewerCount int      `json:"viewer_count"`
}

// SignalForward wraps a negotiation payload routed between two clients. The
// payload is forwarded verbatim; only from_id is attached.
type SignalForward struct {
	Type    string          `json:"type"`
	FromID  ClientID        `json:"from_id"`
	Payload json.RawMessage `json:"payload"`
}

type RelayEnabled struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type CodecConfigMessage struct {
	Type   string `json:"type"`
	Codec  string `json:"codec"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

type ViewerSummary struct {
	ID                ClientID `json:"id"`
	ConnectedDuration float64  `json:"connected_duration"`
	IsP2P             bool     `json:"is_p2p"`
	BytesSent         int64    `json:"bytes_sent"`
}

type StatsSummary struct {
	Type           string          `json:"type"`
	ViewerCount    int             `json:"viewer_count"`
	CurrentBitrate float64         `json:"current_bitrate"`
	TotalBytesSent int64           `json:"total_bytes_sent"`
	Viewers        []ViewerSummary `json:"viewers"`
}

type ErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func NewError(message string) ErrorMessage {
	return ErrorMessage{Type: MsgError, Message: message}
}
