package rbac

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

const cacheVersionKey = "rbac:effective:version"

// Cache memoizes resolved effective permission sets in Redis.
//
// Invalidation follows the resolution contract: user-scoped mutations
// (assignments, overrides) delete that user's entry; role-scoped mutations
// (grant set changes, admin flag flips, catalog deletes) bump a global
// version so every stale entry becomes unreachable at once. Override expiry
// invalidates without any mutation: entries are stamped with the earliest
// expiration among the user's active timed overrides and are treated as
// misses once that instant passes, with the Redis TTL capped to match.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	group  singleflight.Group

	hits   prometheus.Counter
	misses prometheus.Counter
}

// NewCache instantiates the cache helper. The registerer may be nil; the
// hit/miss counters are then unregistered no-ops.
func NewCache(client *redis.Client, ttl time.Duration, reg prometheus.Registerer) *Cache {
	hits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "clinicore_rbac_cache_hits_total",
		Help: "Effective permission set cache hits.",
	})
	misses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "clinicore_rbac_cache_misses_total",
		Help: "Effective permission set cache misses.",
	})
	if reg != nil {
		reg.MustRegister(hits, misses)
	}
	return &Cache{client: client, ttl: ttl, hits: hits, misses: misses}
}

type cachedEffective struct {
	Granted          []string `json:"granted"`
	DeniedByOverride []string `json:"deniedByOverride"`
	// StaleAt is the entry's NextExpiry in unix nanoseconds; zero when the
	// set has no timed override and only the TTL bounds its life.
	StaleAt int64 `json:"staleAt,omitempty"`
}

// FetchEffective returns the cached effective set for userID, computing and
// storing it through loader on a miss. An entry whose StaleAt stamp is at or
// before now is a miss: a timed override has lapsed since it was stored.
// Concurrent misses for the same user collapse into one loader call.
func (c *Cache) FetchEffective(ctx context.Context, userID int64, now time.Time, loader func(context.Context) (EffectivePermissionSet, error)) (EffectivePermissionSet, error) {
	if c == nil || c.client == nil {
		return loader(ctx)
	}

	key, err := c.userKey(ctx, userID)
	if err != nil {
		return loader(ctx)
	}

	raw, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		var cached cachedEffective
		if err := json.Unmarshal(raw, &cached); err == nil && !stale(cached, now) {
			c.hits.Inc()
			return fromCached(userID, cached), nil
		}
	} else if !errors.Is(err, redis.Nil) {
		return loader(ctx)
	}
	c.misses.Inc()

	resultChan := c.group.DoChan(key, func() (interface{}, error) {
		set, err := loader(ctx)
		if err != nil {
			return nil, err
		}
		entry := cachedEffective{
			Granted:          set.GrantedCodes(),
			DeniedByOverride: set.DeniedCodes(),
		}
		ttl := c.ttl
		if !set.NextExpiry.IsZero() {
			entry.StaleAt = set.NextExpiry.UnixNano()
			if until := set.NextExpiry.Sub(now); until < ttl {
				ttl = until
			}
		}
		if payload, err := json.Marshal(entry); err == nil && ttl > 0 {
			_ = c.client.Set(ctx, key, payload, ttl).Err()
		}
		return set, nil
	})
	select {
	case <-ctx.Done():
		return EffectivePermissionSet{}, ctx.Err()
	case res := <-resultChan:
		if res.Err != nil {
			return EffectivePermissionSet{}, res.Err
		}
		return res.Val.(EffectivePermissionSet), nil
	}
}

// InvalidateUser drops the cached entry for one user.
func (c *Cache) InvalidateUser(ctx context.Context, userID int64) error {
	if c == nil || c.client == nil {
		return nil
	}
	key, err := c.userKey(ctx, userID)
	if err != nil {
		return err
	}
	return c.client.Del(ctx, key).Err()
}

// BumpVersion invalidates every cached entry at once by rotating the key
// namespace. Old entries fall out via their TTL.
func (c *Cache) BumpVersion(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Incr(ctx, cacheVersionKey).Err()
}

func (c *Cache) version(ctx context.Context) (int64, error) {
	ver, err := c.client.Get(ctx, cacheVersionKey).Int64()
	if errors.Is(err, redis.Nil) {
		if err := c.client.Set(ctx, cacheVersionKey, 1, 0).Err(); err != nil {
			return 0, err
		}
		return 1, nil
	}
	if err != nil {
		return 0, err
	}
	return ver, nil
}

func (c *Cache) userKey(ctx context.Context, userID int64) (string, error) {
	ver, err := c.version(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("rbac:effective:%d:%d", ver, userID), nil
}

func stale(cached cachedEffective, now time.Time) bool {
	return cached.StaleAt > 0 && now.UnixNano() >= cached.StaleAt
}

func fromCached(userID int64, cached cachedEffective) EffectivePermissionSet {
	granted := make(map[string]struct{}, len(cached.Granted))
	for _, code := range cached.Granted {
		granted[code] = struct{}{}
	}
	denied := make(map[string]struct{}, len(cached.DeniedByOverride))
	for _, code := range cached.DeniedByOverride {
		denied[code] = struct{}{}
	}
	set := EffectivePermissionSet{UserID: userID, Granted: granted, DeniedByOverride: denied}
	if cached.StaleAt > 0 {
		set.NextExpiry = time.Unix(0, cached.StaleAt)
	}
	return set
}
