package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"nil-match-engine/internal/metrics"
	"nil-match-engine/internal/models"
)

var _ Store = (*Cached)(nil)

const keyPrefix = "nilmatch:"

// Cache kinds, used in keys and metric labels.
const (
	kindCampaign    = "campaign"
	kindBrandValues = "brand_values"
	kindCriteria    = "criteria"
	kindCandidate   = "candidate"
)

// Cached is a cache-aside Redis decorator over a Store. Targets, agency
// brand values and criteria, and candidates by id are cached for ttl.
// Redis failures fall through to the wrapped store.
type Cached struct {
	Store
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewCached wraps inner with a Redis cache.
func NewCached(inner Store, client *redis.Client, ttl time.Duration, logger *zap.Logger) *Cached {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cached{Store: inner, client: client, ttl: ttl, logger: logger}
}

// Uncached returns the store beneath any Cached layers of s.
func Uncached(s Store) Store {
	for {
		c, ok := s.(*Cached)
		if !ok {
			return s
		}
		s = c.Store
	}
}

func cacheKey(kind, id string) string {
	return keyPrefix + kind + ":" + id
}

// cacheAside returns the cached value for key or loads, stores and returns it.
func cacheAside[T any](ctx context.Context, c *Cached, kind, key string, load func(context.Context) (T, error)) (T, error) {
	var value T

	raw, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		if jsonErr := json.Unmarshal(raw, &value); jsonErr == nil {
			metrics.CacheRequests.WithLabelValues(kind, metrics.CacheHit).Inc()
			return value, nil
		}
		c.logger.Warn("Discarding undecodable cache entry", zap.String("key", key))
		metrics.CacheRequests.WithLabelValues(kind, metrics.CacheError).Inc()
	case errors.Is(err, redis.Nil):
		metrics.CacheRequests.WithLabelValues(kind, metrics.CacheMiss).Inc()
	default:
		c.logger.Warn("Cache read failed", zap.String("key", key), zap.Error(err))
		metrics.CacheRequests.WithLabelValues(kind, metrics.CacheError).Inc()
	}

	value, err = load(ctx)
	if err != nil {
		return value, err
	}

	if data, err := json.Marshal(value); err == nil {
		if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
			c.logger.Warn("Cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return value, nil
}

// FetchCampaignTarget reads through the cache.
func (c *Cached) FetchCampaignTarget(ctx context.Context, campaignID string) (*models.TargetCriteria, error) {
	return cacheAside(ctx, c, kindCampaign, cacheKey(kindCampaign, campaignID), func(ctx context.Context) (*models.TargetCriteria, error) {
		return c.Store.FetchCampaignTarget(ctx, campaignID)
	})
}

// FetchBrandValues reads through the cache.
func (c *Cached) FetchBrandValues(ctx context.Context, agencyID string) ([]models.BrandValue, error) {
	return cacheAside(ctx, c, kindBrandValues, cacheKey(kindBrandValues, agencyID), func(ctx context.Context) ([]models.BrandValue, error) {
		return c.Store.FetchBrandValues(ctx, agencyID)
	})
}

// FetchAgencyCriteria reads through the cache.
func (c *Cached) FetchAgencyCriteria(ctx context.Context, agencyID string) (*models.AgencyCriteria, error) {
	return cacheAside(ctx, c, kindCriteria, cacheKey(kindCriteria, agencyID), func(ctx context.Context) (*models.AgencyCriteria, error) {
		return c.Store.FetchAgencyCriteria(ctx, agencyID)
	})
}

// FetchCandidatesByIDs serves what it can from one MGET and loads the rest
// from the wrapped store in a single batch.
func (c *Cached) FetchCandidatesByIDs(ctx context.Context, ids []string) (map[string]*models.CandidateProfile, error) {
	out := make(map[string]*models.CandidateProfile, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = cacheKey(kindCandidate, id)
	}

	missing := ids
	vals, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		c.logger.Warn("Cache batch read failed", zap.Int("keys", len(keys)), zap.Error(err))
		metrics.CacheRequests.WithLabelValues(kindCandidate, metrics.CacheError).Add(float64(len(ids)))
	} else {
		missing = make([]string, 0, len(ids))
		for i, v := range vals {
			s, ok := v.(string)
			if !ok {
				missing = append(missing, ids[i])
				continue
			}
			var cand models.CandidateProfile
			if err := json.Unmarshal([]byte(s), &cand); err != nil {
				missing = append(missing, ids[i])
				continue
			}
			out[ids[i]] = &cand
		}
		metrics.CacheRequests.WithLabelValues(kindCandidate, metrics.CacheHit).Add(float64(len(out)))
		metrics.CacheRequests.WithLabelValues(kindCandidate, metrics.CacheMiss).Add(float64(len(missing)))
	}

	if len(missing) == 0 {
		return out, nil
	}

	loaded, err := c.Store.FetchCandidatesByIDs(ctx, missing)
	if err != nil {
		return nil, err
	}

	pipe := c.client.Pipeline()
	for id, cand := range loaded {
		out[id] = cand
		if data, err := json.Marshal(cand); err == nil {
			pipe.Set(ctx, cacheKey(kindCandidate, id), data, c.ttl)
		}
	}
	if _, err := pipe.Exec(ctx); err != nil {
		c.logger.Warn("Cache batch write failed", zap.Int("keys", len(loaded)), zap.Error(err))
	}
	return out, nil
}

// PersistInteractionScore writes through to the wrapped store.
func (c *Cached) PersistInteractionScore(ctx context.Context, interactionID string, result *models.MatchResult) error {
	return c.Store.PersistInteractionScore(ctx, interactionID, result)
}

// Invalidate drops the cached entries for a campaign or agency.
func (c *Cached) Invalidate(ctx context.Context, id string) error {
	keys := []string{
		cacheKey(kindCampaign, id),
		cacheKey(kindBrandValues, id),
		cacheKey(kindCriteria, id),
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to invalidate cache for %s: %w", id, err)
	}
	return nil
}

// Ping checks both the wrapped store and Redis.
func (c *Cached) Ping(ctx context.Context) error {
	if err := c.Store.Ping(ctx); err != nil {
		return err
	}
	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}
