package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"RewardBid/internal/domain/repository"
	"RewardBid/internal/services/bidding"
	svccache "RewardBid/internal/service/cache"
	pkgcache "RewardBid/pkg/cache"
)

// StaticStrengthSource serves a fixed category -> competitor -> strength table.
type StaticStrengthSource struct {
	table map[string]map[string]float64
}

// NewStaticStrengthSource copies table with category keys normalized.
func NewStaticStrengthSource(table map[string]map[string]float64) *StaticStrengthSource {
	norm := make(map[string]map[string]float64, len(table))
	for cat, row := range table {
		key := bidding.NormalizeCategory(cat)
		dst := norm[key]
		if dst == nil {
			dst = make(map[string]float64, len(row))
			norm[key] = dst
		}
		for id, v := range row {
			dst[id] = v
		}
	}
	return &StaticStrengthSource{table: norm}
}

func (s *StaticStrengthSource) Strengths(_ context.Context, category string) (map[string]float64, error) {
	return s.table[bidding.NormalizeCategory(category)], nil
}

// CachedStrengthSource reads strengths published by an upstream job under
// "strengths:<category>" and memoizes them for ttl. Missing keys fall back.
type CachedStrengthSource struct {
	cache    pkgcache.Service
	fallback repository.StrengthSource
	memo     *svccache.TTLCache[map[string]float64]
}

func NewCachedStrengthSource(c pkgcache.Service, fallback repository.StrengthSource, ttl time.Duration) *CachedStrengthSource {
	return &CachedStrengthSource{
		cache:    c,
		fallback: fallback,
		memo:     svccache.NewTTLCache[map[string]float64](ttl),
	}
}

func (s *CachedStrengthSource) Strengths(ctx context.Context, category string) (map[string]float64, error) {
	if v, ok := s.memo.Get(category); ok {
		return v, nil
	}

	var table map[string]float64
	err := s.cache.Get(ctx, pkgcache.GenerateKey("strengths", category), &table)
	switch {
	case err == nil:
	case errors.Is(err, pkgcache.ErrCacheMiss):
		if s.fallback != nil {
			if table, err = s.fallback.Strengths(ctx, category); err != nil {
				return nil, err
			}
		}
	default:
		return nil, fmt.Errorf("read strengths %s: %w", category, err)
	}

	s.memo.Set(category, table)
	return table, nil
}

var (
	_ repository.StrengthSource = (*StaticStrengthSource)(nil)
	_ repository.StrengthSource = (*CachedStrengthSource)(nil)
)
