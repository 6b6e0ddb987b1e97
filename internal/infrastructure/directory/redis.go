package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"streamcast/internal/core/domain"
	"streamcast/internal/core/ports"

	"github.com/redis/go-redis/v9"
)

const roomKeyPrefix = "streamcast:room:"
const activeRoomsKey = "streamcast:rooms:active"

// RedisDirectory mirrors the live-room listing into Redis so the listing API
// can be served by any instance sharing the same Redis. It is a mirror, not
// persistence: entries are replaced wholesale by the owning process.
type RedisDirectory struct {
	client *redis.Client
}

// NewRedisClient creates a Redis client with connection pooling and verifies
// connectivity.
func NewRedisClient(address, password string, db, poolSize int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         address,
		Password:     password,
		DB:           db,
		PoolSize:     poolSize,
		MinIdleConns: 5,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

func NewRedisDirectory(client *redis.Client) ports.RoomDirectory {
	return &RedisDirectory{client: client}
}

func roomKey(id domain.RoomID) string {
	return roomKeyPrefix + string(id)
}

func (d *RedisDirectory) Upsert(ctx context.Context, info domain.RoomInfo) error {
	data, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("failed to marshal room info: %w", err)
	}

	pipe := d.client.TxPipeline()
	pipe.Set(ctx, roomKey(info.RoomID), data, 0)
	pipe.SAdd(ctx, activeRoomsKey, string(info.RoomID))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to upsert room in Redis: %w", err)
	}
	return nil
}

func (d *RedisDirectory) Remove(ctx context.Context, id domain.RoomID) error {
	pipe := d.client.TxPipeline()
	pipe.Del(ctx, roomKey(id))
	pipe.SRem(ctx, activeRoomsKey, string(id))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to remove room from Redis: %w", err)
	}
	return nil
}

func (d *RedisDirectory) List(ctx context.Context) ([]domain.RoomInfo, error) {
	ids, err := d.client.SMembers(ctx, activeRoomsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list active rooms: %w", err)
	}
	if len(ids) == 0 {
		return []domain.RoomInfo{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = roomKey(domain.RoomID(id))
	}

	values, err := d.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch rooms: %w", err)
	}

	infos := make([]domain.RoomInfo, 0, len(values))
	for _, v := range values {
		s, ok := v.(string)
		if !ok {
			continue // entry expired between SMEMBERS and MGET
		}
		var info domain.RoomInfo
		if err := json.Unmarshal([]byte(s), &info); err != nil {
			continue
		}
		infos = append(infos, info)
	}
	return infos, nil
}

func (d *RedisDirectory) HealthCheck(ctx context.Context) error {
	return d.client.Ping(ctx).Err()
}

func (d *RedisDirectory) Close() error {
	return d.client.Close()
}
