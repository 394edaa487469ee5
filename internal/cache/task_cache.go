// Package cache keeps enriched task views in Redis for single-task reads.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"tasktracker/internal/models"
	"tasktracker/pkg/logger"
)

// TaskCache is a best-effort read-through cache. Redis failures are logged
// and treated as misses so the database stays authoritative.
type TaskCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewTaskCache(client *redis.Client, ttl time.Duration) *TaskCache {
	return &TaskCache{client: client, ttl: ttl}
}

func key(id int64) string {
	return fmt.Sprintf("task:%d", id)
}

func (c *TaskCache) Get(ctx context.Context, id int64) (*models.TaskView, bool) {
	cached, err := c.client.Get(ctx, key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		logger.ErrorLogger.Error("Error reading task cache", zap.Int64("task_id", id), zap.Error(err))
		return nil, false
	}

	var v models.TaskView
	if err := json.Unmarshal(cached, &v); err != nil {
		logger.ErrorLogger.Error("Error decoding cached task", zap.Int64("task_id", id), zap.Error(err))
		c.Delete(ctx, id)
		return nil, false
	}
	return &v, true
}

func (c *TaskCache) Set(ctx context.Context, v *models.TaskView) {
	data, err := json.Marshal(v)
	if err != nil {
		logger.ErrorLogger.Error("Error encoding task to JSON", zap.Int64("task_id", v.ID), zap.Error(err))
		return
	}
	if err := c.client.SetEX(ctx, key(v.ID), data, c.ttl).Err(); err != nil {
		logger.ErrorLogger.Error("Error caching task", zap.Int64("task_id", v.ID), zap.Error(err))
	}
}

func (c *TaskCache) Delete(ctx context.Context, id int64) {
	if err := c.client.Del(ctx, key(id)).Err(); err != nil {
		logger.ErrorLogger.Error("Error invalidating cached task", zap.Int64("task_id", id), zap.Error(err))
	}
}
