package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"taskflow-api/domain"
)

type backend interface {
	FetchTasks(ctx context.Context, documentID string) ([]domain.TaskRecord, error)
	UpsertTasks(ctx context.Context, records []domain.TaskRecord) error
	DeleteTasks(ctx context.Context, documentID string, taskIDs []string) error
}

// Cache wraps a Storage instance with Redis-backed caching for per-document
// record reads. Writes go straight through and evict the document entry, so
// a sync pass is always followed by a fresh read.
type Cache struct {
	*Storage
	base  backend
	redis *redis.Client
	ttl   time.Duration
}

// NewCache creates a caching Storage wrapper using the provided Redis client and TTL.
func NewCache(base backend, client *redis.Client, ttl time.Duration) *Cache {
	if base == nil {
		panic("storage.NewCache: base storage is nil")
	}
	if ttl < 0 {
		ttl = 0
	}

	c := &Cache{
		base:  base,
		redis: client,
		ttl:   ttl,
	}
	if s, ok := base.(*Storage); ok {
		c.Storage = s
	}
	return c
}

func (c *Cache) FetchTasks(ctx context.Context, documentID string) ([]domain.TaskRecord, error) {
	if records, ok := c.loadFromCache(ctx, documentID); ok {
		return records, nil
	}

	records, err := c.base.FetchTasks(ctx, documentID)
	if err != nil {
		return nil, err
	}

	c.store(ctx, documentID, records)
	return records, nil
}

func (c *Cache) UpsertTasks(ctx context.Context, records []domain.TaskRecord) error {
	if err := c.base.UpsertTasks(ctx, records); err != nil {
		return err
	}

	seen := make(map[string]struct{}, 1)
	for _, rec := range records {
		if _, ok := seen[rec.DocumentID]; ok {
			continue
		}
		seen[rec.DocumentID] = struct{}{}
		c.evict(ctx, rec.DocumentID)
	}
	return nil
}

func (c *Cache) DeleteTasks(ctx context.Context, documentID string, taskIDs []string) error {
	if err := c.base.DeleteTasks(ctx, documentID, taskIDs); err != nil {
		return err
	}

	c.evict(ctx, documentID)
	return nil
}

func (c *Cache) loadFromCache(ctx context.Context, documentID string) ([]domain.TaskRecord, bool) {
	if c.redis == nil {
		return nil, false
	}
	data, err := c.redis.Get(ctx, tasksCacheKey(documentID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			// On redis errors fall back to the backing storage without failing.
			_ = c.redis.Del(ctx, tasksCacheKey(documentID)).Err()
		}
		return nil, false
	}
	var records []domain.TaskRecord
	if err := json.Unmarshal(data, &records); err != nil {
		_ = c.redis.Del(ctx, tasksCacheKey(documentID)).Err()
		return nil, false
	}
	return records, true
}

func (c *Cache) store(ctx context.Context, documentID string, records []domain.TaskRecord) {
	if c.redis == nil || c.ttl == 0 {
		return
	}
	data, err := json.Marshal(records)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, tasksCacheKey(documentID), data, c.ttl).Err()
}

func (c *Cache) evict(ctx context.Context, documentID string) {
	if c.redis == nil {
		return
	}
	_, _ = c.redis.Del(ctx, tasksCacheKey(documentID)).Result()
}

func tasksCacheKey(documentID string) string {
	return "doctasks:" + documentID
}
