package unread

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Counts is the badge state for one user.
type Counts struct {
	DM            int64 `json:"dm"`
	Notifications int64 `json:"notifications"`
	NoteBox       int64 `json:"notebox"`
}

func (c *Counts) ptr(kind Kind) *int64 {
	switch kind {
	case KindDM:
		return &c.DM
	case KindNotifications:
		return &c.Notifications
	case KindNoteBox:
		return &c.NoteBox
	}
	return nil
}

// Get returns the counter for kind.
func (c Counts) Get(kind Kind) int64 {
	if p := c.ptr(kind); p != nil {
		return *p
	}
	return 0
}

// Store persists counters. Incr only applies to users whose counters are
// already materialized and reports false otherwise.
type Store interface {
	Incr(ctx context.Context, userID string, kind Kind, delta int64) (bool, error)
	Get(ctx context.Context, userID string) (Counts, bool, error)
	Set(ctx context.Context, userID string, counts Counts) error
}

const defaultTTL = 24 * time.Hour

// incrScript adds ARGV[2] to field ARGV[1] when the hash exists, floors the
// result at zero and refreshes the TTL. It returns -1 for a missing hash.
var incrScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return -1
end
local v = redis.call('HINCRBY', KEYS[1], ARGV[1], ARGV[2])
if v < 0 then
  redis.call('HSET', KEYS[1], ARGV[1], 0)
  v = 0
end
redis.call('EXPIRE', KEYS[1], ARGV[3])
return v
`)

type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &RedisStore{client: client, ttl: ttl}
}

func redisKey(userID string) string {
	return "unread:" + userID
}

func (s *RedisStore) Incr(ctx context.Context, userID string, kind Kind, delta int64) (bool, error) {
	v, err := incrScript.Run(ctx, s.client, []string{redisKey(userID)},
		string(kind), delta, int64(s.ttl/time.Second)).Int64()
	if err != nil {
		return false, fmt.Errorf("incr unread %s: %w", kind, err)
	}
	return v >= 0, nil
}

func (s *RedisStore) Get(ctx context.Context, userID string) (Counts, bool, error) {
	fields, err := s.client.HGetAll(ctx, redisKey(userID)).Result()
	if err != nil {
		return Counts{}, false, fmt.Errorf("get unread: %w", err)
	}
	if len(fields) == 0 {
		return Counts{}, false, nil
	}

	var counts Counts
	for _, src := range Sources {
		n, _ := strconv.ParseInt(fields[string(src.Kind)], 10, 64)
		*counts.ptr(src.Kind) = n
	}
	return counts, true, nil
}

func (s *RedisStore) Set(ctx context.Context, userID string, counts Counts) error {
	key := redisKey(userID)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key,
			string(KindDM), counts.DM,
			string(KindNotifications), counts.Notifications,
			string(KindNoteBox), counts.NoteBox,
		)
		pipe.Expire(ctx, key, s.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("set unread: %w", err)
	}
	return nil
}

// MemoryStore keeps counters in process memory. Used when Redis is not configured.
type MemoryStore struct {
	mu     sync.Mutex
	counts map[string]*Counts
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{counts: make(map[string]*Counts)}
}

func (s *MemoryStore) Incr(ctx context.Context, userID string, kind Kind, delta int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.counts[userID]
	if !ok {
		return false, nil
	}
	p := c.ptr(kind)
	if p == nil {
		return false, fmt.Errorf("unknown counter %q", kind)
	}
	*p += delta
	if *p < 0 {
		*p = 0
	}
	return true, nil
}

func (s *MemoryStore) Get(ctx context.Context, userID string) (Counts, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.counts[userID]
	if !ok {
		return Counts{}, false, nil
	}
	return *c, true, nil
}

func (s *MemoryStore) Set(ctx context.Context, userID string, counts Counts) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := counts
	s.counts[userID] = &c
	return nil
}
