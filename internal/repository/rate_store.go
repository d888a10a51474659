package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"RewardBid/internal/domain/models"
	"RewardBid/internal/domain/repository"
	pkgcache "RewardBid/pkg/cache"
)

// CacheRateStore keeps rate snapshots in a cache.Service (Redis in production,
// in-memory when Redis is disabled).
type CacheRateStore struct {
	cache pkgcache.Service
	ttl   time.Duration
}

func NewCacheRateStore(c pkgcache.Service, ttl time.Duration) *CacheRateStore {
	return &CacheRateStore{cache: c, ttl: ttl}
}

func rateKey(sessionID string) string {
	return pkgcache.GenerateKey("rates", sessionID)
}

func (s *CacheRateStore) Save(ctx context.Context, sessionID string, snap models.RateSnapshot) error {
	if err := s.cache.Set(ctx, rateKey(sessionID), snap, s.ttl); err != nil {
		return fmt.Errorf("save rates %s: %w", sessionID, err)
	}
	return nil
}

func (s *CacheRateStore) Load(ctx context.Context, sessionID string) (models.RateSnapshot, error) {
	var snap models.RateSnapshot
	if err := s.cache.Get(ctx, rateKey(sessionID), &snap); err != nil {
		if errors.Is(err, pkgcache.ErrCacheMiss) {
			return snap, repository.ErrNotFound
		}
		return snap, fmt.Errorf("load rates %s: %w", sessionID, err)
	}
	return snap, nil
}

var _ repository.RateStore = (*CacheRateStore)(nil)
