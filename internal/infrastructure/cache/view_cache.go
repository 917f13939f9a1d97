package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rakaadit/go-rbac-navigation/internal/domain/entity"
)

func viewKey(userID string) string { return "nav:view:" + userID }
func genKey(userID string) string  { return "nav:gen:" + userID }

// Lua script: store the view only while the per-user generation counter
// still matches the one the caller observed before computing the view.
// A concurrent evict bumps the counter, so a stale put is discarded.
var putIfCurrentScript = redis.NewScript(`
local gen = redis.call("GET", KEYS[1])
if gen == false then gen = "0" end
if gen ~= ARGV[1] then
  return 0
end
redis.call("SET", KEYS[2], ARGV[2], "PX", ARGV[3])
return 1
`)

// ViewCache memoizes rendered navigation views per user in Redis.
// It holds derived data only; dropping any key is always safe.
type ViewCache struct {
	rdb *redis.Client
}

func NewViewCache(rdb *redis.Client) *ViewCache {
	return &ViewCache{rdb: rdb}
}

// Get returns the cached view for a user together with the generation
// it was read under, so the caller can hand the generation back to Put
// after a miss.
func (c *ViewCache) Get(ctx context.Context, userID string) (entity.RenderedView, int64, bool, error) {
	gen, err := c.Generation(ctx, userID)
	if err != nil {
		return nil, 0, false, err
	}
	b, err := c.rdb.Get(ctx, viewKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, gen, false, nil
	}
	if err != nil {
		return nil, gen, false, err
	}
	var view entity.RenderedView
	if err := json.Unmarshal(b, &view); err != nil {
		// Treat a corrupt payload as a miss; it will be recomputed.
		return nil, gen, false, nil
	}
	return view, gen, true, nil
}

// Generation returns the user's current invalidation counter.
func (c *ViewCache) Generation(ctx context.Context, userID string) (int64, error) {
	gen, err := c.rdb.Get(ctx, genKey(userID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

// Put stores the view for the user unless the generation moved since
// gen was observed. The discarded case is not an error.
func (c *ViewCache) Put(ctx context.Context, userID string, view entity.RenderedView, gen int64, ttl time.Duration) error {
	b, err := json.Marshal(view)
	if err != nil {
		return err
	}
	return putIfCurrentScript.Run(ctx, c.rdb,
		[]string{genKey(userID), viewKey(userID)},
		gen, b, ttl.Milliseconds(),
	).Err()
}

// Evict invalidates one user's view: bump the generation (so in-flight
// puts lose the race) and drop the cached payload.
func (c *ViewCache) Evict(ctx context.Context, userID string) error {
	pipe := c.rdb.Pipeline()
	pipe.Incr(ctx, genKey(userID))
	pipe.Del(ctx, viewKey(userID))
	_, err := pipe.Exec(ctx)
	return err
}

// EvictAll invalidates a set of users in one round trip.
func (c *ViewCache) EvictAll(ctx context.Context, userIDs []string) error {
	if len(userIDs) == 0 {
		return nil
	}
	pipe := c.rdb.Pipeline()
	for _, id := range userIDs {
		pipe.Incr(ctx, genKey(id))
		pipe.Del(ctx, viewKey(id))
	}
	_, err := pipe.Exec(ctx)
	return err
}
