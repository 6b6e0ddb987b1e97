package domain

import (
	"sync"
	"time"
)

// CodecConfig describes how viewers should configure their decoder before
// relayed frames arrive. Set once by the broadcaster.
type CodecConfig struct {
	Codec  string `json:"codec"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// ViewerStats holds per-viewer telemetry. BytesSent is the server's own
// relay-delivery accounting; BytesReceived is what the viewer self-reports
// over its peer connection. The two are written by different paths and are
// never merged.
type ViewerStats struct {
	ClientID      ClientID
	ConnectedAt   time.Time
	BytesSent     int64
	BytesReceived int64
	IsP2P         bool
	Bitrate       float64
}

// RoomInfo is a read-only snapshot of a room for listings and observers.
type RoomInfo struct {
	RoomID    RoomID    `json:"room_id"`
	Viewers   int       `json:"viewers"`
	CreatedAt time.Time `json:"created_at"`
}

// Room is one live broadcast session. The broadcaster exists for the room's
// entire lifetime; the room dies with it. Per-room state is guarded by its
// own lock so operations on distinct rooms never contend.
type Room struct {
	ID            RoomID
	BroadcasterID ClientID
	CreatedAt     time.Time

	mu             sync.RWMutex
	viewers        map[ClientID]*ViewerStats
	relay          map[ClientID]struct{}
	relayEnabled   bool
	codec          *CodecConfig
	totalBytesSent int64
	currentBitrate float64
}

func NewRoom(id RoomID, broadcaster ClientID) *Room {
	return &Room{
		ID:            id,
		BroadcasterID: broadcaster,
		CreatedAt:     time.Now(),
		viewers:       make(map[ClientID]*ViewerStats),
		relay:         make(map[ClientID]struct{}),
	}
}

func (r *Room) AddViewer(id ClientID) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.viewers[id] = &ViewerStats{ClientID: id, ConnectedAt: time.Now()}
	return len(r.viewers)
}

// RemoveViewer deletes the viewer and reports whether it was present along
// with the remaining viewer count.
func (r *Room) RemoveViewer(id ClientID) (bool, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.viewers[id]
	delete(r.viewers, id)
	delete(r.relay, id)
	return ok, len(r.viewers)
}

func (r *Room) HasViewer(id ClientID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.viewers[id]
	return ok
}

func (r *Room) ViewerCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.viewers)
}

func (r *Room) ViewerIDs() []ClientID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]ClientID, 0, len(r.viewers))
	for id := range r.viewers {
		ids = append(ids, id)
	}
	return ids
}

// EnableRelay puts the viewer into relay mode and flips the room's relay
// flag. The flag is monotonic: it never reverts for the room's lifetime.
// Returns the codec config to replay, if one is set.
func (r *Room) EnableRelay(id ClientID) *CodecConfig {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.relay[id] = struct{}{}
	r.relayEnabled = true
	return r.codec
}

func (r *Room) RelayEnabled() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.relayEnabled
}

// RelayViewers returns the viewers currently in relay mode.
func (r *Room) RelayViewers() []ClientID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]ClientID, 0, len(r.relay))
	for id := range r.relay {
		ids = append(ids, id)
	}
	return ids
}

func (r *Room) SetCodec(cfg CodecConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := cfg
	r.codec = &c
}

func (r *Room) Codec() *CodecConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.codec == nil {
		return nil
	}
	c := *r.codec
	return &c
}

func (r *Room) AddBytesSent(n int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.totalBytesSent += n
}

func (r *Room) RecordViewerDelivery(id ClientID, n int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if vs, ok := r.viewers[id]; ok {
		vs.BytesSent += n
	}
}

func (r *Room) SetBitrate(bitrate float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.currentBitrate = bitrate
}

// UpdateViewerReport records a viewer's self-reported stats.
func (r *Room) UpdateViewerReport(id ClientID, isP2P bool, bytesReceived int64, bitrate float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	vs, ok := r.viewers[id]
	if !ok {
		return
	}
	vs.IsP2P = isP2P
	vs.BytesReceived = bytesReceived
	vs.Bitrate = bitrate
}

func (r *Room) Info() RoomInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return RoomInfo{RoomID: r.ID, Viewers: len(r.viewers), CreatedAt: r.CreatedAt}
}

// RoomStats is a consistent snapshot used to build a stats summary.
type RoomStats struct {
	ViewerCount    int
	CurrentBitrate float64
	TotalBytesSent int64
	Viewers        []ViewerStats
}

func (r *Room) Stats() RoomStats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s := RoomStats{
		ViewerCount:    len(r.viewers),
		CurrentBitrate: r.currentBitrate,
		TotalBytesSent: r.totalBytesSent,
		Viewers:        make([]ViewerStats, 0, len(r.viewers)),
	}
	for _, vs := range r.viewers {
		s.Viewers = append(s.Viewers, *vs)
	}
	return s
}
