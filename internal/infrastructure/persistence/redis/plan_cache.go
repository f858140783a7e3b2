package redis

import (
	"context"
	"errors"

	"github.com/MiniPiccino/ThinkDeeperProd/internal/domain/plan"
	"github.com/MiniPiccino/ThinkDeeperProd/pkg/logger"
)

// PlanCache decorates a plan.Store with a Redis cache-aside layer. Cache
// errors never fail the call; the underlying store stays authoritative.
type PlanCache struct {
	store plan.Store
	cache *Cache
	log   *logger.Logger
}

var _ plan.Store = (*PlanCache)(nil)

// NewPlanCache wraps the given store. A nil cache makes the wrapper a
// pass-through.
func NewPlanCache(store plan.Store, cache *Cache, log *logger.Logger) *PlanCache {
	if log == nil {
		log = logger.Default()
	}
	return &PlanCache{
		store: store,
		cache: cache,
		log:   log.With(logger.Component("plan_cache")),
	}
}

// GetPlan returns the user's plan label, consulting the cache first.
func (p *PlanCache) GetPlan(ctx context.Context, userID string) (string, error) {
	if p.cache != nil {
		label, err := p.cache.GetString(ctx, PlanKey(userID))
		if err == nil {
			return plan.Normalize(label), nil
		}
		if !errors.Is(err, ErrCacheMiss) {
			p.log.Debug("plan cache read failed", logger.UserID(userID), logger.Err(err))
		}
	}

	label, err := p.store.GetPlan(ctx, userID)
	if err != nil {
		return "", err
	}

	if p.cache != nil {
		if err := p.cache.SetString(ctx, PlanKey(userID), label, TTLPlanCache); err != nil {
			p.log.Debug("plan cache write failed", logger.UserID(userID), logger.Err(err))
		}
	}
	return label, nil
}

// SetPlan writes through to the store and invalidates the cached label.
func (p *PlanCache) SetPlan(ctx context.Context, userID, label string) error {
	if err := p.store.SetPlan(ctx, userID, label); err != nil {
		return err
	}
	if p.cache != nil {
		if err := p.cache.Delete(ctx, PlanKey(userID)); err != nil {
			p.log.Debug("plan cache invalidation failed", logger.UserID(userID), logger.Err(err))
		}
	}
	return nil
}
