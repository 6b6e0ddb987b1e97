package directory

import (
	"streamcast/internal/core/ports"
	"streamcast/pkg/config"

	"go.uber.org/zap"
)

// New creates the room directory: Redis-backed when enabled and reachable,
// falling back to the in-memory implementation otherwise.
func New(cfg *config.Config, logger *zap.SugaredLogger) ports.RoomDirectory {
	if cfg.Redis.Enabled {
		client, err := NewRedisClient(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.PoolSize)
		if err != nil {
			logger.Warnw("failed to connect to Redis, falling back to memory directory", "error", err)
		} else {
			logger.Infow("using Redis room directory", "address", cfg.Redis.Address, "db", cfg.Redis.DB)
			return NewRedisDirectory(client)
		}
	}

	logger.Info("using memory room directory")
	return NewMemoryDirectory()
}
