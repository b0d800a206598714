// Package directory answers technician lookups for the scheduling engine.
package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"techsched/internal/model"
)

const cachePrefix = "techsched:technicians:"

// Store is the technician read side of the database.
type Store interface {
	GetTechnician(ctx context.Context, id int64) (*model.Technician, error)
	ListTechnicians(ctx context.Context, activeOnly bool) ([]model.Technician, error)
	ListTechniciansByType(ctx context.Context, techType string, activeOnly bool) ([]model.Technician, error)
}

type Directory struct {
	store    Store
	redis    *redis.Client
	cacheTTL time.Duration
	logger   *zerolog.Logger
}

func New(store Store, logger *zerolog.Logger) *Directory {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Directory{store: store, logger: logger}
}

// UseRedisCache enables a read-through cache for ListByType.
func (d *Directory) UseRedisCache(client *redis.Client, ttl time.Duration) {
	d.redis = client
	d.cacheTTL = ttl
}

// ListByType returns technicians of the given type ordered by id. The type
// is matched after normalisation, so "PLUMBER" finds "Plumber".
func (d *Directory) ListByType(ctx context.Context, techType string, activeOnly bool) ([]model.Technician, error) {
	norm := model.NormalizeType(techType)
	key := fmt.Sprintf("%stype:%s:%t", cachePrefix, norm, activeOnly)

	var cached []model.Technician
	if d.readCache(ctx, key, &cached) {
		return cached, nil
	}

	techs, err := d.store.ListTechniciansByType(ctx, norm, activeOnly)
	if err != nil {
		return nil, err
	}
	if techs == nil {
		techs = []model.Technician{}
	}
	d.writeCache(ctx, key, techs)
	return techs, nil
}

// List returns all technicians ordered by id.
func (d *Directory) List(ctx context.Context, activeOnly bool) ([]model.Technician, error) {
	techs, err := d.store.ListTechnicians(ctx, activeOnly)
	if err != nil {
		return nil, err
	}
	if techs == nil {
		techs = []model.Technician{}
	}
	return techs, nil
}

// Get returns one technician or model.ErrTechnicianNotFound.
func (d *Directory) Get(ctx context.Context, id int64) (*model.Technician, error) {
	return d.store.GetTechnician(ctx, id)
}

// Invalidate drops every cached directory entry.
func (d *Directory) Invalidate(ctx context.Context) error {
	if d.redis == nil {
		return nil
	}
	iter := d.redis.Scan(ctx, 0, cachePrefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scan cache keys: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := d.redis.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("delete cache keys: %w", err)
	}
	d.logger.Debug().Int("keys", len(keys)).Msg("directory cache invalidated")
	return nil
}

func (d *Directory) readCache(ctx context.Context, key string, out any) bool {
	if d.redis == nil || d.cacheTTL <= 0 {
		return false
	}
	val, err := d.redis.Get(ctx, key).Result()
	if err != nil {
		return false
	}
	if err := json.Unmarshal([]byte(val), out); err != nil {
		return false
	}
	return true
}

func (d *Directory) writeCache(ctx context.Context, key string, val any) {
	if d.redis == nil || d.cacheTTL <= 0 {
		return
	}
	data, err := json.Marshal(val)
	if err != nil {
		return
	}
	if err := d.redis.Set(ctx, key, data, d.cacheTTL).Err(); err != nil {
		d.logger.Warn().Err(err).Str("key", key).Msg("directory cache write failed")
	}
}
