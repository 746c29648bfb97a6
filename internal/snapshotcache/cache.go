// Package snapshotcache implements DistributedSnapshotCache: a versioned
// payload plus a distributed refresh lock over Redis. Every method here is
// total — a Redis outage degrades the result (not found / not acquired /
// version 0) but never returns an error the caller must special-case.
package snapshotcache

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sentryvms/facecore/internal/domain"
)

const (
	DefaultPayloadTTL = 3 * time.Minute
	DefaultLockTTL    = 20 * time.Second
)

// releaseScript performs an atomic compare-and-delete: the lock is only
// removed if the caller still holds it. Same idiom as the teacher's
// ratelimit Lua-script use for atomic check-then-act over Redis.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end
`)

type Cache struct {
	client     *redis.Client
	keyPrefix  string
	payloadTTL time.Duration
	lockTTL    time.Duration
}

func New(client *redis.Client, keyPrefix string, payloadTTL, lockTTL time.Duration) *Cache {
	if keyPrefix == "" {
		keyPrefix = "facecore:snapshot"
	}
	if payloadTTL <= 0 {
		payloadTTL = DefaultPayloadTTL
	}
	if lockTTL <= 0 {
		lockTTL = DefaultLockTTL
	}
	return &Cache{client: client, keyPrefix: keyPrefix, payloadTTL: payloadTTL, lockTTL: lockTTL}
}

func (c *Cache) payloadKey() string { return c.keyPrefix + ":payload" }
func (c *Cache) versionKey() string { return c.keyPrefix + ":version" }
func (c *Cache) lockKey() string    { return c.keyPrefix + ":lock" }

// TryGet is a best-effort read. Any Redis error or missing key is reported
// as simply "not found" rather than propagated.
func (c *Cache) TryGet(ctx context.Context) (found bool, version uint64, snapshots []domain.FaceProfileSnapshot) {
	pipe := c.client.Pipeline()
	payloadCmd := pipe.Get(ctx, c.payloadKey())
	versionCmd := pipe.Get(ctx, c.versionKey())
	_, err := pipe.Exec(ctx)
	if err != nil && err != redis.Nil {
		log.Printf("[snapshotcache] tryGet pipeline error: %v", err)
		return false, 0, nil
	}

	raw, err := payloadCmd.Bytes()
	if err != nil {
		return false, 0, nil
	}
	var decoded []domain.FaceProfileSnapshot
	if err := json.Unmarshal(raw, &decoded); err != nil {
		log.Printf("[snapshotcache] tryGet payload decode error: %v", err)
		return false, 0, nil
	}

	v, err := versionCmd.Uint64()
	if err != nil {
		v = 0
	}

	return true, v, decoded
}

// Set writes the payload with the configured TTL and atomically increments
// the version counter. Returns 0 on any Redis failure.
func (c *Cache) Set(ctx context.Context, snapshots []domain.FaceProfileSnapshot) uint64 {
	raw, err := json.Marshal(snapshots)
	if err != nil {
		log.Printf("[snapshotcache] set marshal error: %v", err)
		return 0
	}

	if err := c.client.Set(ctx, c.payloadKey(), raw, c.payloadTTL).Err(); err != nil {
		log.Printf("[snapshotcache] set payload error: %v", err)
		return 0
	}

	newVersion, err := c.client.Incr(ctx, c.versionKey()).Result()
	if err != nil {
		log.Printf("[snapshotcache] set version incr error: %v", err)
		return 0
	}
	return uint64(newVersion)
}

// Invalidate shortens the payload TTL (so followers quickly stop trusting
// it) and bumps the version so a subsequent Set is unambiguously newer.
func (c *Cache) Invalidate(ctx context.Context) {
	if err := c.client.Expire(ctx, c.payloadKey(), 2*time.Second).Err(); err != nil && err != redis.Nil {
		log.Printf("[snapshotcache] invalidate expire error: %v", err)
	}
	if err := c.client.Incr(ctx, c.versionKey()).Err(); err != nil {
		log.Printf("[snapshotcache] invalidate incr error: %v", err)
	}
}

// TryAcquireLock attempts a set-if-absent lock with TTL. On any Redis error
// it reports "not acquired" rather than failing the caller.
func (c *Cache) TryAcquireLock(ctx context.Context) (acquired bool, token string) {
	token = uuid.New().String()
	ok, err := c.client.SetNX(ctx, c.lockKey(), token, c.lockTTL).Result()
	if err != nil {
		log.Printf("[snapshotcache] tryAcquireLock error: %v", err)
		return false, ""
	}
	if !ok {
		return false, ""
	}
	return true, token
}

// ReleaseLock releases the lock only if the stored token still matches —
// a compare-and-delete so a stale holder (e.g. after a timeout) can never
// release a lock another instance has since acquired.
func (c *Cache) ReleaseLock(ctx context.Context, token string) {
	if token == "" {
		return
	}
	if err := releaseScript.Run(ctx, c.client, []string{c.lockKey()}, token).Err(); err != nil && err != redis.Nil {
		log.Printf("[snapshotcache] releaseLock error: %v", err)
	}
}
