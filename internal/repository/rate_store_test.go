package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"

	"RewardBid/internal/domain/models"
	"RewardBid/internal/domain/repository"
	pkgcache "RewardBid/pkg/cache"
)

func TestCacheRateStore(t *testing.T) {
	ctx := context.Background()
	mc := pkgcache.NewMemoryCache()
	defer mc.Close()
	store := NewCacheRateStore(mc, 0)

	_, err := store.Load(ctx, "s1")
	check.True(t, errors.Is(err, repository.ErrNotFound))

	snap := models.RateSnapshot{
		Budget:     12.5,
		Categories: map[string]models.RateState{"gas": {Rate: 0.025, M: 0.1, V: 0.01, Steps: 3}},
	}
	assert.NoError(t, store.Save(ctx, "s1", snap))

	got, err := store.Load(ctx, "s1")
	assert.NoError(t, err)
	check.Equal(t, snap, got)
}

func TestStrengthSources(t *testing.T) {
	ctx := context.Background()
	mc := pkgcache.NewMemoryCache()
	defer mc.Close()

	static := NewStaticStrengthSource(map[string]map[string]float64{"travel": {"amex": 1.2}})
	src := NewCachedStrengthSource(mc, static, 0)

	got, err := src.Strengths(ctx, "travel")
	assert.NoError(t, err)
	check.Equal(t, map[string]float64{"amex": 1.2}, got)

	assert.NoError(t, mc.Set(ctx, "strengths:gas", map[string]float64{"chase": 1.7}, 0))
	got, err = src.Strengths(ctx, "gas")
	assert.NoError(t, err)
	check.Equal(t, 1.7, got["chase"])

	// memoized: later writes are not seen until the entry expires
	assert.NoError(t, mc.Set(ctx, "strengths:gas", map[string]float64{"chase": 3}, 0))
	got, err = src.Strengths(ctx, "gas")
	assert.NoError(t, err)
	check.Equal(t, 1.7, got["chase"])

	got, err = src.Strengths(ctx, "health")
	assert.NoError(t, err)
	check.Nil(t, got)
}

func TestStaticStrengthSourceNormalizesCategories(t *testing.T) {
	ctx := context.Background()
	table := map[string]map[string]float64{" Groceries ": {"amex": 1.5}, "TRAVEL": {"chase": 2}}
	src := NewStaticStrengthSource(table)

	got, err := src.Strengths(ctx, "groceries")
	assert.NoError(t, err)
	check.Equal(t, map[string]float64{"amex": 1.5}, got)

	got, err = src.Strengths(ctx, "Travel")
	assert.NoError(t, err)
	check.Equal(t, 2.0, got["chase"])

	// the source keeps its own copy
	table[" Groceries "]["amex"] = 9
	got, err = src.Strengths(ctx, "groceries")
	assert.NoError(t, err)
	check.Equal(t, 1.5, got["amex"])
}
