package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/planboard/planboard-core/internal/domain/project"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS CACHE
// Хранит последний опубликованный агрегат прогресса, чтобы API-процессы
// могли отдать его без пересчёта.
// ══════════════════════════════════════════════════════════════════════════════

// ProgressCache реализует project.ProgressStore: последний агрегат под одним ключом.
type ProgressCache struct {
	cache *Cache
	key   string
	ttl   time.Duration
}

// NewProgressCache создаёт кеш агрегатов.
func NewProgressCache(cache *Cache) *ProgressCache {
	return &ProgressCache{
		cache: cache,
		key:   ProgressKey("latest"),
		ttl:   TTLProgressAggregate,
	}
}

// Store сохраняет snapshot, если он новее сохранённого.
// Возвращает false, если в кеше уже лежит более новый агрегат.
func (c *ProgressCache) Store(ctx context.Context, snapshot project.ProgressSnapshot) (bool, error) {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrCacheSerialization, err)
	}

	stored := false
	txf := func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, c.key).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
		case err != nil:
			return err
		default:
			var prev project.ProgressSnapshot
			if json.Unmarshal(current, &prev) == nil && !snapshot.Supersedes(prev) {
				return nil
			}
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, c.key, data, c.ttl)
			return nil
		})
		if err == nil {
			stored = true
		}
		return err
	}

	for attempt := 0; attempt < 3; attempt++ {
		err = c.cache.Client().Watch(ctx, txf, c.key)
		if !errors.Is(err, redis.TxFailedErr) {
			return stored, err
		}
	}
	return false, err
}

// Load возвращает последний агрегат или ErrCacheMiss.
func (c *ProgressCache) Load(ctx context.Context) (project.ProgressSnapshot, error) {
	var snapshot project.ProgressSnapshot
	if err := c.cache.Get(ctx, c.key, &snapshot); err != nil {
		return project.ProgressSnapshot{}, err
	}
	if snapshot.Progress == nil {
		snapshot.Progress = map[string]project.Progress{}
	}
	return snapshot, nil
}

// Clear удаляет агрегат.
func (c *ProgressCache) Clear(ctx context.Context) error {
	return c.cache.Delete(ctx, c.key)
}
