package services

import (
	"fmt"
	"math/rand"
	"sync"

	"streamcast/internal/core/domain"
	"streamcast/internal/core/ports"

	"go.uber.org/zap"
)

type membership struct {
	roomID domain.RoomID
	role   domain.Role
}

// RoomManager owns the set of active rooms and all membership transitions.
// The manager lock covers only the room and membership maps; per-room state
// is guarded by each room's own lock, so operations on distinct rooms never
// contend.
type RoomManager struct {
	registry *ConnectionRegistry
	logger   *zap.SugaredLogger

	mu      sync.RWMutex
	rooms   map[domain.RoomID]*domain.Room
	members map[domain.ClientID]membership

	observers []ports.RoomObserver

	// generateID is swappable in tests to force collisions.
	generateID func() domain.RoomID
}

func NewRoomManager(registry *ConnectionRegistry, logger *zap.SugaredLogger) *RoomManager {
	return &RoomManager{
		registry:   registry,
		logger:     logger,
		rooms:      make(map[domain.RoomID]*domain.Room),
		members:    make(map[domain.ClientID]membership),
		generateID: randomRoomID,
	}
}

func randomRoomID() domain.RoomID {
	return domain.RoomID(fmt.Sprintf("%06d", rand.Intn(1000000)))
}

// AddObserver registers a lifecycle observer. Not safe to call once the
// manager is serving traffic.
func (m *RoomManager) AddObserver(o ports.RoomObserver) {
	m.observers = append(m.observers, o)
}

// CreateRoom creates a room with the caller as broadcaster and returns its
// id. Identifier generation retries on collision against the live-room set
// under the manager lock, so two concurrent callers can never be assigned
// the same id.
func (m *RoomManager) CreateRoom(clientID domain.ClientID) (domain.RoomID, error) {
	m.mu.Lock()
	if _, taken := m.members[clientID]; taken {
		m.mu.Unlock()
		return "", domain.ErrAlreadyInRoom
	}

	var roomID domain.RoomID
	for {
		roomID = m.generateID()
		if _, live := m.rooms[roomID]; !live {
			break
		}
	}

	room := domain.NewRoom(roomID, clientID)
	m.rooms[roomID] = room
	m.members[clientID] = membership{roomID: roomID, role: domain.RoleBroadcasting}
	m.mu.Unlock()

	m.logger.Infow("room created", "room_id", roomID, "broadcaster_id", clientID)

	for _, o := range m.observers {
		o.OnRoomCreated(room)
	}

	m.registry.Send(clientID, domain.RoomCreated{Type: domain.MsgRoomCreated, RoomID: roomID})
	return roomID, nil
}

// JoinRoom adds the caller to the room's viewer set and notifies both sides.
// The membership entry and the room's viewer set are updated together under
// the manager lock, so a concurrent room close always sees the viewer and
// evicts it.
func (m *RoomManager) JoinRoom(clientID domain.ClientID, roomID domain.RoomID) (domain.ClientID, error) {
	m.mu.Lock()
	if _, taken := m.members[clientID]; taken {
		m.mu.Unlock()
		return "", domain.ErrAlreadyInRoom
	}
	room, ok := m.rooms[roomID]
	if !ok {
		m.mu.Unlock()
		return "", domain.ErrRoomNotFound
	}
	m.members[clientID] = membership{roomID: roomID, role: domain.RoleViewing}
	count := room.AddViewer(clientID)
	m.mu.Unlock()

	m.logger.Infow("viewer joined", "room_id", roomID, "viewer_id", clientID, "viewer_count", count)

	joined := domain.RoomJoined{
		Type:          domain.MsgRoomJoined,
		RoomID:        roomID,
		BroadcasterID: room.BroadcasterID,
	}
	if room.RelayEnabled() {
		joined.Codec = room.Codec()
	}
	m.registry.Send(clientID, joined)
	m.registry.Send(room.BroadcasterID, domain.ViewerJoined{
		Type:        domain.MsgViewerJoined,
		ViewerID:    clientID,
		ViewerCount: count,
	})

	m.notifyUpdated(room)
	return room.BroadcasterID, nil
}

// LeaveRoom removes the caller from its room. A broadcaster's departure
// destroys the room and evicts every viewer; a viewer's departure only
// shrinks the viewer set. No-op for clients without a membership.
func (m *RoomManager) LeaveRoom(clientID domain.ClientID) {
	m.mu.Lock()
	mb, ok := m.members[clientID]
	if !ok {
		m.mu.Unlock()
		return
	}
	room := m.rooms[mb.roomID]
	delete(m.members, clientID)

	if mb.role == domain.RoleBroadcasting {
		delete(m.rooms, mb.roomID)
		viewers := room.ViewerIDs()
		for _, v := range viewers {
			delete(m.members, v)
		}
		m.mu.Unlock()

		m.logger.Infow("room closed", "room_id", mb.roomID, "evicted_viewers", len(viewers))

		closed := domain.RoomClosed{Type: domain.MsgRoomClosed, Message: "broadcast ended"}
		for _, v := range viewers {
			m.registry.Send(v, closed)
		}
		for _, o := range m.observers {
			o.OnRoomClosed(mb.roomID)
		}
		return
	}

	m.mu.Unlock()

	removed, count := room.RemoveViewer(clientID)
	if !removed {
		return
	}

	m.logger.Infow("viewer left", "room_id", mb.roomID, "viewer_id", clientID, "viewer_count", count)

	m.registry.Send(room.BroadcasterID, domain.ViewerLeft{
		Type:        domain.MsgViewerLeft,
		ViewerID:    clientID,
		ViewerCount: count,
	})
	m.notifyUpdated(room)
}

// Disconnect handles transport-level connection loss: an implicit leave.
func (m *RoomManager) Disconnect(clientID domain.ClientID) {
	m.LeaveRoom(clientID)
}

// RoomOf returns the room the client belongs to and its role in it.
func (m *RoomManager) RoomOf(clientID domain.ClientID) (*domain.Room, domain.Role, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	mb, ok := m.members[clientID]
	if !ok {
		return nil, domain.RoleUnassigned, false
	}
	return m.rooms[mb.roomID], mb.role, true
}

// Room resolves a live room by id.
func (m *RoomManager) Room(roomID domain.RoomID) (*domain.Room, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	room, ok := m.rooms[roomID]
	return room, ok
}

// ListRooms snapshots the live rooms.
func (m *RoomManager) ListRooms() []domain.RoomInfo {
	m.mu.RLock()
	rooms := make([]*domain.Room, 0, len(m.rooms))
	for _, r := range m.rooms {
		rooms = append(rooms, r)
	}
	m.mu.RUnlock()

	infos := make([]domain.RoomInfo, 0, len(rooms))
	for _, r := range rooms {
		infos = append(infos, r.Info())
	}
	return infos
}

func (m *RoomManager) notifyUpdated(room *domain.Room) {
	info := room.Info()
	for _, o := range m.observers {
		o.OnRoomUpdated(info)
	}
}
