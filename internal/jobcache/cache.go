// Package jobcache keeps render job snapshots and per-user render slots in Redis.
package jobcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"edu-video-studio/internal/video"

	"github.com/redis/go-redis/v9"
)

const (
	DefaultTTL = 24 * time.Hour

	jobKeyPrefix  = "video_job:"
	slotKeyPrefix = "render_slots:"
)

var ErrNotFound = errors.New("jobcache: not found")

// Cache stores terminal job snapshots so any API replica can answer status
// reads without another provider call.
type Cache struct {
	rdb redis.Cmdable
	ttl time.Duration
}

func New(rdb redis.Cmdable, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{rdb: rdb, ttl: ttl}
}

func jobKey(id string) string { return jobKeyPrefix + id }

// Put stores job. Only terminal jobs are cached; others are ignored.
func (c *Cache) Put(ctx context.Context, job video.Job) error {
	if job.ID == "" {
		return fmt.Errorf("jobcache: job id is required")
	}
	if !job.Status.Terminal() {
		return nil
	}
	b, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("jobcache: encode: %w", err)
	}
	return c.rdb.Set(ctx, jobKey(job.ID), b, c.ttl).Err()
}

func (c *Cache) Get(ctx context.Context, id string) (video.Job, error) {
	b, err := c.rdb.Get(ctx, jobKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return video.Job{}, ErrNotFound
		}
		return video.Job{}, err
	}
	var job video.Job
	if err := json.Unmarshal(b, &job); err != nil {
		return video.Job{}, fmt.Errorf("jobcache: decode: %w", err)
	}
	return job, nil
}
