package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/backend-tracking/internal/merge"
)

// RedisStore implements Store on a shared Redis instance so replicas serve
// one cache. The entry JSON is written once per Put and never rewritten on
// reads; a read racing a Put can therefore never clobber the newer value.
// Recency lives in a sorted set for LRU trimming and hit counts in a
// per-entry counter key bumped with INCR. Freshness is judged from the
// embedded insertion time rather than a Redis TTL so an expired entry
// remains readable for the stale-fallback path; the Redis expiry only
// bounds how long a stale copy may linger.
type RedisStore struct {
	Client     *redis.Client
	Prefix     string
	MaxEntries int
	StaleFor   time.Duration
}

const defaultStaleFor = 72 * time.Hour

func (s *RedisStore) entryKey(key Key) string {
	return s.Prefix + "entry:" + key.String()
}

func (s *RedisStore) hitsKey(key Key) string {
	return s.Prefix + "hits:" + key.String()
}

func (s *RedisStore) recencyKey() string {
	return s.Prefix + "recency"
}

// Get implements Store.
func (s *RedisStore) Get(ctx context.Context, key Key) (Entry, bool, error) {
	entry, found, err := s.load(ctx, key)
	if err != nil || !found {
		if err == nil {
			countEvent("miss")
		}
		return Entry{}, false, err
	}
	now := time.Now()
	if entry.Expired(now) {
		countEvent("expired")
		return Entry{}, false, nil
	}

	staleFor := s.StaleFor
	if staleFor <= 0 {
		staleFor = defaultStaleFor
	}
	pipe := s.Client.TxPipeline()
	hits := pipe.Incr(ctx, s.hitsKey(key))
	pipe.Expire(ctx, s.hitsKey(key), entry.TTL+staleFor)
	pipe.ZAdd(ctx, s.recencyKey(), redis.Z{Score: float64(now.UnixNano()), Member: key.String()})
	if _, err := pipe.Exec(ctx); err != nil {
		return Entry{}, false, err
	}
	entry.LastAccessedAt = now
	entry.HitCount = hits.Val()
	countEvent("hit")
	return entry, true, nil
}

// GetStale implements Store.
func (s *RedisStore) GetStale(ctx context.Context, key Key) (Entry, bool, error) {
	entry, found, err := s.load(ctx, key)
	if err != nil || !found {
		return entry, found, err
	}
	if hits, err := s.Client.Get(ctx, s.hitsKey(key)).Int64(); err == nil {
		entry.HitCount = hits
	}
	return entry, true, nil
}

// Put implements Store.
func (s *RedisStore) Put(ctx context.Context, key Key, shipment merge.Shipment, ttl time.Duration) error {
	now := time.Now()
	entry := Entry{
		Shipment:       shipment,
		InsertedAt:     now,
		TTL:            ttl,
		LastAccessedAt: now,
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	staleFor := s.StaleFor
	if staleFor <= 0 {
		staleFor = defaultStaleFor
	}
	pipe := s.Client.TxPipeline()
	pipe.Set(ctx, s.entryKey(key), data, ttl+staleFor)
	pipe.Expire(ctx, s.hitsKey(key), ttl+staleFor)
	pipe.ZAdd(ctx, s.recencyKey(), redis.Z{Score: float64(now.UnixNano()), Member: key.String()})
	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}
	countEvent("put")
	return s.trim(ctx)
}

// Invalidate implements Store.
func (s *RedisStore) Invalidate(ctx context.Context, key Key) error {
	pipe := s.Client.TxPipeline()
	pipe.Del(ctx, s.entryKey(key), s.hitsKey(key))
	pipe.ZRem(ctx, s.recencyKey(), key.String())
	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}
	countEvent("invalidate")
	return nil
}

func (s *RedisStore) load(ctx context.Context, key Key) (Entry, bool, error) {
	data, err := s.Client.Get(ctx, s.entryKey(key)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return Entry{}, false, nil
		}
		return Entry{}, false, err
	}
	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return Entry{}, false, err
	}
	return entry, true, nil
}

// trim evicts the least-recently-used members once the store exceeds its
// bound.
func (s *RedisStore) trim(ctx context.Context) error {
	if s.MaxEntries <= 0 {
		return nil
	}
	count, err := s.Client.ZCard(ctx, s.recencyKey()).Result()
	if err != nil {
		return err
	}
	excess := count - int64(s.MaxEntries)
	if excess <= 0 {
		return nil
	}
	oldest, err := s.Client.ZPopMin(ctx, s.recencyKey(), excess).Result()
	if err != nil {
		return err
	}
	for _, member := range oldest {
		id, ok := member.Member.(string)
		if !ok {
			continue
		}
		if err := s.Client.Del(ctx, s.Prefix+"entry:"+id, s.Prefix+"hits:"+id).Err(); err != nil {
			return err
		}
		countEvent("evict")
	}
	return nil
}
