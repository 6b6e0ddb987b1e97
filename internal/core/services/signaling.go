package services

import (
	"encoding/json"

	"streamcast/internal/core/domain"
	"streamcast/internal/core/ports"

	"go.uber.org/zap"
)

// SignalingRouter forwards point-to-point negotiation messages (offers,
// answers, ICE candidates) between two members of the same room. Payloads
// are opaque: they are forwarded verbatim with only from_id attached.
type SignalingRouter struct {
	registry *ConnectionRegistry
	rooms    *RoomManager
	metrics  ports.MetricsRecorder
	logger   *zap.SugaredLogger
}

func NewSignalingRouter(registry *ConnectionRegistry, rooms *RoomManager, metrics ports.MetricsRecorder, logger *zap.SugaredLogger) *SignalingRouter {
	return &SignalingRouter{
		registry: registry,
		rooms:    rooms,
		metrics:  metrics,
		logger:   logger,
	}
}

// Route forwards one negotiation message. kind is one of offer, answer or
// ice_candidate. Routing failures are non-fatal: they are reported to the
// sender and never close either connection.
func (s *SignalingRouter) Route(kind string, from, target domain.ClientID, payload json.RawMessage) error {
	if _, _, ok := s.rooms.RoomOf(from); !ok {
		s.logger.Debugw("dropping signal from roomless client", "kind", kind, "from_id", from)
		return domain.ErrNotInRoom
	}

	conn, ok := s.registry.Lookup(target)
	if !ok {
		return domain.ErrTargetNotFound
	}

	if err := conn.SendJSON(domain.SignalForward{
		Type:    kind,
		FromID:  from,
		Payload: payload,
	}); err != nil {
		s.logger.Warnw("failed to forward signal", "kind", kind, "from_id", from, "target_id", target, "error", err)
		return domain.ErrTargetNotFound
	}

	s.metrics.SignalRouted(kind)
	s.logger.Debugw("signal routed", "kind", kind, "from_id", from, "target_id", target)
	return nil
}
