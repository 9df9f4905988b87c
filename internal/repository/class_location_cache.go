package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-sync-agent/internal/models"
)

type classLocationSource interface {
	FindByGroup(ctx context.Context, groupID string) (*models.ClassLocation, error)
	FindByID(ctx context.Context, id string) (*models.ClassLocation, error)
}

// CachedClassLocationRepository layers a Redis TTL cache over location
// lookups. Cache failures degrade to the database silently; the fence
// must keep working when Redis is down.
type CachedClassLocationRepository struct {
	source classLocationSource
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewCachedClassLocationRepository wraps the source repository.
func NewCachedClassLocationRepository(source classLocationSource, client *redis.Client, ttl time.Duration, logger *zap.Logger) *CachedClassLocationRepository {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedClassLocationRepository{source: source, client: client, ttl: ttl, logger: logger}
}

// FindByGroup resolves through the cache, falling back to the source.
func (r *CachedClassLocationRepository) FindByGroup(ctx context.Context, groupID string) (*models.ClassLocation, error) {
	return r.lookup(ctx, "class_location:group:"+groupID, func() (*models.ClassLocation, error) {
		return r.source.FindByGroup(ctx, groupID)
	})
}

// FindByID resolves through the cache, falling back to the source.
func (r *CachedClassLocationRepository) FindByID(ctx context.Context, id string) (*models.ClassLocation, error) {
	return r.lookup(ctx, "class_location:id:"+id, func() (*models.ClassLocation, error) {
		return r.source.FindByID(ctx, id)
	})
}

func (r *CachedClassLocationRepository) lookup(ctx context.Context, key string, fetch func() (*models.ClassLocation, error)) (*models.ClassLocation, error) {
	if r.client != nil {
		raw, err := r.client.Get(ctx, key).Bytes()
		if err == nil {
			var loc models.ClassLocation
			if unmarshalErr := json.Unmarshal(raw, &loc); unmarshalErr == nil {
				return &loc, nil
			}
		} else if err != redis.Nil {
			r.logger.Debug("location cache read failed", zap.String("key", key), zap.Error(err))
		}
	}

	loc, err := fetch()
	if err != nil || loc == nil {
		return loc, err
	}

	if r.client != nil {
		if data, marshalErr := json.Marshal(loc); marshalErr == nil {
			if setErr := r.client.Set(ctx, key, data, r.ttl).Err(); setErr != nil {
				r.logger.Debug("location cache write failed", zap.String("key", key), zap.Error(setErr))
			}
		}
	}
	return loc, nil
}
