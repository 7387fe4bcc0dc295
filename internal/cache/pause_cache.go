// internal/cache/pause_cache.go
package cache

import (
	"context"
	"strconv"

	"github.com/go-redis/redis/v8"
)

// PauseCache flags paused campaigns in Redis so workers can skip queued jobs
// without a database round trip. The flag is best-effort: a cache failure is
// never allowed to fail a pipeline step.
type PauseCache struct {
	client *redis.Client
}

func NewPauseCache(client *redis.Client) *PauseCache {
	return &PauseCache{client: client}
}

func pauseKey(campaignID int) string {
	return "campaign:paused:" + strconv.Itoa(campaignID)
}

func (c *PauseCache) SetPaused(ctx context.Context, campaignID int) error {
	return c.client.Set(ctx, pauseKey(campaignID), "1", 0).Err()
}

func (c *PauseCache) ClearPaused(ctx context.Context, campaignID int) error {
	return c.client.Del(ctx, pauseKey(campaignID)).Err()
}

func (c *PauseCache) IsPaused(ctx context.Context, campaignID int) (bool, error) {
	exists, err := c.client.Exists(ctx, pauseKey(campaignID)).Result()
	if err != nil {
		return false, err
	}
	return exists == 1, nil
}
