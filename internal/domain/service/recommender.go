package service

import (
	"context"

	"RewardBid/internal/domain/models"
)

// Recommender picks the competitor that best matches a transaction. Calls may be
// slow or fail; callers treat any error as "keep the placeholder".
type Recommender interface {
	Recommend(ctx context.Context, tx models.Transaction, competitors []string) (*models.Recommendation, error)
}
