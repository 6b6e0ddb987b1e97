package signal

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"streamcast/internal/core/domain"
	"streamcast/internal/core/services"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Should be configured properly for production
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Client-to-server message kinds. Server-to-client kinds live in domain.
const (
	kindCreateRoom   = "create_room"
	kindJoinRoom     = "join_room"
	kindLeaveRoom    = "leave_room"
	kindRequestRelay = "request_relay"
	kindCodecConfig  = "codec_config"
	kindStatsUpdate  = "stats_update"
)

// envelope is the inbound control message. One flat struct decodes every
// kind; irrelevant fields stay zero. Unknown kinds are logged and discarded.
type envelope struct {
	Type     string          `json:"type"`
	RoomID   domain.RoomID   `json:"room_id,omitempty"`
	TargetID domain.ClientID `json:"target_id,omitempty"`
	Payload  json.RawMessage `json:"payload,omitempty"`

	// codec_config
	Codec  string `json:"codec,omitempty"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`

	// stats_update
	Bitrate       float64 `json:"bitrate,omitempty"`
	BytesReceived int64   `json:"bytes_received,omitempty"`
	IsP2P         bool    `json:"is_p2p,omitempty"`
}

// Config holds the transport tuning knobs.
type Config struct {
	PingInterval      time.Duration
	PongTimeout       time.Duration
	WriteTimeout      time.Duration
	MaxMessageSize    int64
	ControlQueueSize  int
	FrameQueueSize    int
	MessagesPerSecond float64 // 0 disables inbound rate limiting
	Burst             int
}

// Server terminates WebSocket connections and dispatches inbound events to
// the core services: text frames to the control handlers, binary frames to
// the relay hub.
type Server struct {
	cfg       Config
	registry  *services.ConnectionRegistry
	rooms     *services.RoomManager
	signaling *services.SignalingRouter
	relay     *services.RelayHub
	stats     *services.StatsAggregator
	logger    *zap.SugaredLogger
}

func NewServer(
	cfg Config,
	registry *services.ConnectionRegistry,
	rooms *services.RoomManager,
	signaling *services.SignalingRouter,
	relay *services.RelayHub,
	stats *services.StatsAggregator,
	logger *zap.SugaredLogger,
) *Server {
	return &Server{
		cfg:       cfg,
		registry:  registry,
		rooms:     rooms,
		signaling: signaling,
		relay:     relay,
		stats:     stats,
		logger:    logger,
	}
}

// HandleWebSocket upgrades the connection and runs its read loop until the
// transport signals connection loss, at which point cleanup is immediate:
// an implicit leave_room followed by unregister.
func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Errorw("websocket upgrade failed", "error", err)
		return
	}

	conn := newClientConn(ws, s.cfg.ControlQueueSize, s.cfg.FrameQueueSize, s.cfg.WriteTimeout, s.cfg.PingInterval, s.logger)
	go conn.writePump()

	clientID := s.registry.Register(conn)
	defer func() {
		s.rooms.Disconnect(clientID)
		s.registry.Unregister(clientID)
		conn.Close()
	}()

	ws.SetReadLimit(s.cfg.MaxMessageSize)
	ws.SetReadDeadline(time.Now().Add(s.cfg.PongTimeout))
	ws.SetPongHandler(func(string) error {
		ws.SetReadDeadline(time.Now().Add(s.cfg.PongTimeout))
		return nil
	})

	var limiter *rate.Limiter
	if s.cfg.MessagesPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(s.cfg.MessagesPerSecond), s.cfg.Burst)
	}

	for {
		messageType, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				s.logger.Infow("read error", "client_id", clientID, "error", err)
			}
			return
		}

		switch messageType {
		case websocket.BinaryMessage:
			s.relay.ForwardFrame(clientID, data)

		case websocket.TextMessage:
			if limiter != nil && !limiter.Allow() {
				s.logger.Warnw("message rate limit exceeded", "client_id", clientID)
				continue
			}
			s.dispatch(clientID, conn, data)
		}
	}
}

// dispatch decodes one control message and routes it by kind. A fault in
// handling one message is reported to the sender and never tears down the
// connection or leaks to other clients.
func (s *Server) dispatch(clientID domain.ClientID, conn *clientConn, data []byte) {
	var msg envelope
	if err := json.Unmarshal(data, &msg); err != nil {
		s.logger.Warnw("discarding malformed message", "client_id", clientID, "error", err)
		return
	}

	switch msg.Type {
	case kindCreateRoom:
		if _, err := s.rooms.CreateRoom(clientID); err != nil {
			s.sendError(conn, err)
		}

	case kindJoinRoom:
		if _, err := s.rooms.JoinRoom(clientID, msg.RoomID); err != nil {
			s.sendError(conn, err)
		}

	case kindLeaveRoom:
		s.rooms.LeaveRoom(clientID)

	case domain.MsgOffer, domain.MsgAnswer, domain.MsgICECandidate:
		err := s.signaling.Route(msg.Type, clientID, msg.TargetID, msg.Payload)
		if errors.Is(err, domain.ErrTargetNotFound) {
			s.sendError(conn, err)
		}

	case kindRequestRelay:
		if err := s.relay.RequestRelay(clientID, msg.RoomID); err != nil {
			s.sendError(conn, err)
		}

	case kindCodecConfig:
		cfg := domain.CodecConfig{Codec: msg.Codec, Width: msg.Width, Height: msg.Height}
		if err := s.relay.SetCodecConfig(clientID, cfg); err != nil {
			s.sendError(conn, err)
		}

	case kindStatsUpdate:
		s.stats.Update(clientID, services.StatsReport{
			Bitrate:       msg.Bitrate,
			BytesReceived: msg.BytesReceived,
			IsP2P:         msg.IsP2P,
		})

	default:
		s.logger.Debugw("ignoring unknown message type", "client_id", clientID, "type", msg.Type)
	}
}

func (s *Server) sendError(conn *clientConn, err error) {
	if sendErr := conn.SendJSON(domain.NewError(err.Error())); sendErr != nil {
		s.logger.Debugw("failed to send error message", "error", sendErr)
	}
}
