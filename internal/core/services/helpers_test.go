package services

import (
	"sync"

	"streamcast/internal/core/domain"
	"streamcast/internal/core/ports"

	"github.com/pion/webrtc/v3"
	"go.uber.org/zap"
)

// fakeConn records everything sent to it. frameCap > 0 simulates a
// saturated outbound queue once that many frames are buffered.
type fakeConn struct {
	mu       sync.Mutex
	messages []interface{}
	frames   [][]byte
	frameCap int
	closed   bool
}

func (f *fakeConn) SendJSON(v interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, v)
	return nil
}

func (f *fakeConn) SendBinary(data []byte) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.frameCap > 0 && len(f.frames) >= f.frameCap {
		return false
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	f.frames = append(f.frames, buf)
	return true
}

func (f *fakeConn) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

func (f *fakeConn) sentMessages() []interface{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]interface{}, len(f.messages))
	copy(out, f.messages)
	return out
}

func (f *fakeConn) sentFrames() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]byte, len(f.frames))
	copy(out, f.frames)
	return out
}

// messagesOfType filters recorded messages by concrete type.
func messagesOfType[T any](f *fakeConn) []T {
	var out []T
	for _, m := range f.sentMessages() {
		if v, ok := m.(T); ok {
			out = append(out, v)
		}
	}
	return out
}

type fakeObserver struct {
	mu      sync.Mutex
	created []domain.RoomID
	updated []domain.RoomInfo
	closed  []domain.RoomID
}

func (o *fakeObserver) OnRoomCreated(room *domain.Room) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.created = append(o.created, room.ID)
}

func (o *fakeObserver) OnRoomUpdated(info domain.RoomInfo) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.updated = append(o.updated, info)
}

func (o *fakeObserver) OnRoomClosed(id domain.RoomID) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.closed = append(o.closed, id)
}

func (o *fakeObserver) closedRooms() []domain.RoomID {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]domain.RoomID, len(o.closed))
	copy(out, o.closed)
	return out
}

var testICEServers = []webrtc.ICEServer{
	{URLs: []string{"stun:stun.l.google.com:19302"}},
}

func newTestRegistry() *ConnectionRegistry {
	return NewConnectionRegistry(testICEServers, ports.NopMetrics{}, zap.NewNop().Sugar())
}

func newTestRooms() (*ConnectionRegistry, *RoomManager) {
	registry := newTestRegistry()
	rooms := NewRoomManager(registry, zap.NewNop().Sugar())
	return registry, rooms
}
