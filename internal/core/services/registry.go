package services

import (
	"sync"
	"time"

	"streamcast/internal/core/domain"
	"streamcast/internal/core/ports"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v3"
	"go.uber.org/zap"
)

// ConnectionRegistry owns the set of currently connected clients. It is the
// sole authority for client identifiers and the single point of cleanup on
// disconnect.
type ConnectionRegistry struct {
	mu      sync.RWMutex
	clients map[domain.ClientID]ports.ClientConn
	since   map[domain.ClientID]time.Time

	iceServers []webrtc.ICEServer
	metrics    ports.MetricsRecorder
	logger     *zap.SugaredLogger
}

func NewConnectionRegistry(iceServers []webrtc.ICEServer, metrics ports.MetricsRecorder, logger *zap.SugaredLogger) *ConnectionRegistry {
	return &ConnectionRegistry{
		clients:    make(map[domain.ClientID]ports.ClientConn),
		since:      make(map[domain.ClientID]time.Time),
		iceServers: iceServers,
		metrics:    metrics,
		logger:     logger,
	}
}

// Register allocates a fresh client identifier, stores the connection and
// sends the welcome message carrying the identifier and the ICE server list.
func (r *ConnectionRegistry) Register(conn ports.ClientConn) domain.ClientID {
	r.mu.Lock()
	var id domain.ClientID
	for {
		id = domain.ClientID(uuid.NewString()[:8])
		if _, taken := r.clients[id]; !taken {
			break
		}
	}
	r.clients[id] = conn
	r.since[id] = time.Now()
	r.mu.Unlock()

	r.metrics.ClientConnected()
	r.logger.Infow("client connected", "client_id", id)

	if err := conn.SendJSON(domain.Welcome{
		Type:       domain.MsgWelcome,
		ClientID:   id,
		ICEServers: r.iceServers,
	}); err != nil {
		r.logger.Warnw("failed to send welcome", "client_id", id, "error", err)
	}

	return id
}

// Unregister removes the client. Safe to call more than once.
func (r *ConnectionRegistry) Unregister(id domain.ClientID) {
	r.mu.Lock()
	_, existed := r.clients[id]
	delete(r.clients, id)
	delete(r.since, id)
	r.mu.Unlock()

	if existed {
		r.metrics.ClientDisconnected()
		r.logger.Infow("client disconnected", "client_id", id)
	}
}

// Lookup resolves a client identifier to its connection handle.
func (r *ConnectionRegistry) Lookup(id domain.ClientID) (ports.ClientConn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.clients[id]
	return conn, ok
}

func (r *ConnectionRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// Send delivers a control message to the client if it is still registered.
func (r *ConnectionRegistry) Send(id domain.ClientID, msg interface{}) {
	conn, ok := r.Lookup(id)
	if !ok {
		return
	}
	if err := conn.SendJSON(msg); err != nil {
		r.logger.Warnw("failed to send message", "client_id", id, "error", err)
	}
}
