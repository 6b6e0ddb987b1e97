package ports

import (
	"context"

	"streamcast/internal/core/domain"
)

// ClientConn is the outbound half of one client connection. Implementations
// must be safe for concurrent use and must never block the caller: both send
// methods enqueue onto a bounded per-connection queue drained by a single
// writer.
type ClientConn interface {
	// SendJSON enqueues a control message. A saturated control queue is an
	// error: control traffic cannot be dropped silently, so the connection
	// is considered dead.
	SendJSON(v interface{}) error

	// SendBinary enqueues an opaque media frame. Returns false when the
	// queue is saturated and the frame was dropped; relayed video favors
	// recency over completeness.
	SendBinary(data []byte) bool

	Close()
}

// RoomObserver receives room lifecycle events. Callbacks are invoked outside
// the room manager's locks and must not block.
type RoomObserver interface {
	OnRoomCreated(room *domain.Room)
	OnRoomUpdated(info domain.RoomInfo)
	OnRoomClosed(id domain.RoomID)
}

// RoomDirectory mirrors the live room set for the listing API. It is a view,
// not a source of truth: room state never survives a restart.
type RoomDirectory interface {
	Upsert(ctx context.Context, info domain.RoomInfo) error
	Remove(ctx context.Context, id domain.RoomID) error
	List(ctx context.Context) ([]domain.RoomInfo, error)
	HealthCheck(ctx context.Context) error
	Close() error
}

// MetricsRecorder receives operational counters from the core services.
type MetricsRecorder interface {
	ClientConnected()
	ClientDisconnected()
	SignalRouted(kind string)
	FrameRelayed(bytes int, viewers int)
	FrameDropped()
}

// NopMetrics discards all measurements.
type NopMetrics struct{}

func (NopMetrics) ClientConnected()      {}
func (NopMetrics) ClientDisconnected()   {}
func (NopMetrics) SignalRouted(string)   {}
func (NopMetrics) FrameRelayed(int, int) {}
func (NopMetrics) FrameDropped()         {}
