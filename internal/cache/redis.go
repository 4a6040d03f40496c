package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/technosupport/physical-mcp/internal/scene"
)

const keyPrefix = "physical-mcp:scene:"

// RedisCache publishes scene snapshots to Redis so multiple VisionAPI
// replicas behind a load balancer see one consistent scene view rather
// than each tracking its own in-process state.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache wraps an already-constructed client.
func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

// NewRedisCacheFromAddr dials addr directly, mirroring
// session.NewManager's constructor shape.
func NewRedisCacheFromAddr(addr, password string) *RedisCache {
	return &RedisCache{client: redis.NewClient(&redis.Options{Addr: addr, Password: password})}
}

func sceneKey(cameraID string) string {
	return keyPrefix + cameraID
}

// Set stores cameraID's snapshot with no expiry; a camera that stops
// reporting keeps its last-known snapshot rather than disappearing.
func (r *RedisCache) Set(ctx context.Context, cameraID string, snap scene.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, sceneKey(cameraID), data, 0).Err(); err != nil {
		return fmt.Errorf("cache: redis set: %w", err)
	}
	return r.client.SAdd(ctx, keyPrefix+"known", cameraID).Err()
}

// Get returns cameraID's last-published snapshot, if any.
func (r *RedisCache) Get(ctx context.Context, cameraID string) (scene.Snapshot, bool, error) {
	data, err := r.client.Get(ctx, sceneKey(cameraID)).Bytes()
	if err == redis.Nil {
		return scene.Snapshot{}, false, nil
	}
	if err != nil {
		return scene.Snapshot{}, false, fmt.Errorf("cache: redis get: %w", err)
	}
	var snap scene.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return scene.Snapshot{}, false, err
	}
	return snap, true, nil
}

// All returns every camera ID ever Set, with its latest snapshot.
func (r *RedisCache) All(ctx context.Context) ([]Entry, error) {
	ids, err := r.client.SMembers(ctx, keyPrefix+"known").Result()
	if err != nil {
		return nil, fmt.Errorf("cache: redis smembers: %w", err)
	}

	out := make([]Entry, 0, len(ids))
	for _, id := range ids {
		snap, ok, err := r.Get(ctx, id)
		if err != nil || !ok {
			continue
		}
		out = append(out, Entry{CameraID: id, Snapshot: snap})
	}
	return out, nil
}
