package session

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrCacheUnavailable wraps Redis transport failures from the snapshot cache.
var ErrCacheUnavailable = errors.New("snapshot cache unavailable")

// ErrCacheMiss is returned by Peek when no snapshot is cached.
var ErrCacheMiss = errors.New("no cached snapshot")

// putIfNewerScript refuses to regress the cached snapshot to an older refresh
// generation. The generation is read straight out of the binary blob (big
// endian, bytes 2..9, after the version byte) so no decode round-trip is
// needed server-side.
const putIfNewerScript = `
local function read_be64(s, i)
  local v = 0
  for off = 0, 7 do
    local b = string.byte(s, i + off)
    if not b then
      return nil
    end
    v = v * 256 + b
  end
  return v
end

local cur = redis.call("GET", KEYS[1])
if cur then
  local have = read_be64(cur, 2)
  local want = read_be64(ARGV[1], 2)
  if have and want and have >= want then
    return 0
  end
end
redis.call("SET", KEYS[1], ARGV[1], "PX", ARGV[2])
return 1
`

var putIfNewerLua = redis.NewScript(putIfNewerScript)

// Cache is an optional Redis-backed, cross-process mirror of the identity
// snapshot. It exists for deployments running several orchestrator instances
// behind one cookie domain; single-process deployments leave it nil.
//
// Only the already-public identity snapshot is stored — never credentials or
// tokens. Writes are generation-guarded so instances racing on Refresh
// cannot clobber a newer snapshot with a stale one.
type Cache struct {
	client *redis.Client
	key    string
	ttl    time.Duration
	now    func() time.Time
}

// NewCache creates a snapshot cache under the given key prefix. TTL bounds
// staleness; zero means one hour.
func NewCache(client *redis.Client, prefix string, ttl time.Duration) *Cache {
	if prefix == "" {
		prefix = "authflow"
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Cache{
		client: client,
		key:    prefix + ":session:snapshot",
		ttl:    ttl,
		now:    time.Now,
	}
}

// Put stores the identity under the given refresh generation. A cached
// record with an equal or newer generation wins and the write is dropped.
func (c *Cache) Put(ctx context.Context, gen uint64, ident *Identity) error {
	if c == nil || c.client == nil || ident == nil {
		return nil
	}
	blob, err := encodeRecord(&record{
		Generation: gen,
		Identity:   *cloneIdentity(ident),
		FetchedAt:  c.now(),
	})
	if err != nil {
		return err
	}
	if err := putIfNewerLua.Run(ctx, c.client,
		[]string{c.key}, blob, c.ttl.Milliseconds()).Err(); err != nil {
		return errors.Join(ErrCacheUnavailable, err)
	}
	return nil
}

// Peek returns the cached identity and its generation without touching the
// provider. Returns ErrCacheMiss when nothing is cached.
func (c *Cache) Peek(ctx context.Context) (*Identity, uint64, error) {
	if c == nil || c.client == nil {
		return nil, 0, ErrCacheMiss
	}
	blob, err := c.client.Get(ctx, c.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, 0, ErrCacheMiss
		}
		return nil, 0, errors.Join(ErrCacheUnavailable, err)
	}
	rec, err := decodeRecord(blob)
	if err != nil {
		return nil, 0, err
	}
	return cloneIdentity(&rec.Identity), rec.Generation, nil
}

// Delete removes the cached snapshot. Idempotent.
func (c *Cache) Delete(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}
	if err := c.client.Del(ctx, c.key).Err(); err != nil {
		return errors.Join(ErrCacheUnavailable, err)
	}
	return nil
}
