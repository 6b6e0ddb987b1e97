package directory

import (
	"context"
	"time"

	"streamcast/internal/core/domain"
	"streamcast/internal/core/ports"

	"go.uber.org/zap"
)

// Recorder adapts a RoomDirectory to the room lifecycle observer interface.
// Directory failures are logged and swallowed: the listing is advisory and
// must never affect room correctness.
type Recorder struct {
	dir     ports.RoomDirectory
	timeout time.Duration
	logger  *zap.SugaredLogger
}

func NewRecorder(dir ports.RoomDirectory, logger *zap.SugaredLogger) *Recorder {
	return &Recorder{dir: dir, timeout: 2 * time.Second, logger: logger}
}

func (r *Recorder) OnRoomCreated(room *domain.Room) {
	r.upsert(room.Info())
}

func (r *Recorder) OnRoomUpdated(info domain.RoomInfo) {
	r.upsert(info)
}

func (r *Recorder) OnRoomClosed(id domain.RoomID) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	if err := r.dir.Remove(ctx, id); err != nil {
		r.logger.Warnw("failed to remove room from directory", "room_id", id, "error", err)
	}
}

func (r *Recorder) upsert(info domain.RoomInfo) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	if err := r.dir.Upsert(ctx, info); err != nil {
		r.logger.Warnw("failed to update room directory", "room_id", info.RoomID, "error", err)
	}
}
