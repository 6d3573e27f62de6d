package jobcache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var slotAcquireScript = redis.NewScript(`
-- KEYS[1] = counter key
-- ARGV[1] = limit (int)
-- ARGV[2] = ttl_ms (int)
local current = redis.call('INCR', KEYS[1])
if current == 1 then
  redis.call('PEXPIRE', KEYS[1], ARGV[2])
else
  if redis.call('PTTL', KEYS[1]) < 0 then
    redis.call('PEXPIRE', KEYS[1], ARGV[2])
  end
end

if current > tonumber(ARGV[1]) then
  redis.call('DECR', KEYS[1])
  return 0
end
return 1
`)

var slotReleaseScript = redis.NewScript(`
local current = redis.call('DECR', KEYS[1])
if current <= 0 then
  redis.call('DEL', KEYS[1])
end
return 1
`)

// Slots caps the number of concurrent render waits per user across replicas.
// The counter TTL bounds leaked slots when a process dies mid-wait.
type Slots struct {
	rdb   redis.Scripter
	limit int
	ttl   time.Duration
}

func NewSlots(rdb redis.Scripter, limit int, ttl time.Duration) *Slots {
	if limit <= 0 {
		limit = 2
	}
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &Slots{rdb: rdb, limit: limit, ttl: ttl}
}

func slotKey(userID string) string { return slotKeyPrefix + userID }

// AcquireRenderSlot reports whether userID may start another wait.
func (s *Slots) AcquireRenderSlot(ctx context.Context, userID string) (bool, error) {
	if userID == "" {
		return false, fmt.Errorf("jobcache: user id is required")
	}
	res, err := slotAcquireScript.Run(ctx, s.rdb, []string{slotKey(userID)}, s.limit, s.ttl.Milliseconds()).Int()
	if err != nil {
		return false, err
	}
	return res == 1, nil
}

func (s *Slots) ReleaseRenderSlot(ctx context.Context, userID string) error {
	if userID == "" {
		return fmt.Errorf("jobcache: user id is required")
	}
	_, err := slotReleaseScript.Run(ctx, s.rdb, []string{slotKey(userID)}).Result()
	return err
}
