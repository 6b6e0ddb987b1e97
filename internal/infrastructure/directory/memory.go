package directory

import (
	"context"
	"sort"
	"sync"

	"streamcast/internal/core/domain"
	"streamcast/internal/core/ports"
)

// MemoryDirectory keeps the live-room listing in process memory.
type MemoryDirectory struct {
	mu    sync.RWMutex
	rooms map[domain.RoomID]domain.RoomInfo
}

func NewMemoryDirectory() ports.RoomDirectory {
	return &MemoryDirectory{rooms: make(map[domain.RoomID]domain.RoomInfo)}
}

func (d *MemoryDirectory) Upsert(_ context.Context, info domain.RoomInfo) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.rooms[info.RoomID] = info
	return nil
}

func (d *MemoryDirectory) Remove(_ context.Context, id domain.RoomID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.rooms, id)
	return nil
}

func (d *MemoryDirectory) List(_ context.Context) ([]domain.RoomInfo, error) {
	d.mu.RLock()
	infos := make([]domain.RoomInfo, 0, len(d.rooms))
	for _, info := range d.rooms {
		infos = append(infos, info)
	}
	d.mu.RUnlock()

	sort.Slice(infos, func(i, j int) bool { return infos[i].CreatedAt.Before(infos[j].CreatedAt) })
	return infos, nil
}

func (d *MemoryDirectory) HealthCheck(context.Context) error { return nil }

func (d *MemoryDirectory) Close() error { return nil }
