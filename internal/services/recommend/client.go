package recommend

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"RewardBid/internal/domain/models"
	domsvc "RewardBid/internal/domain/service"
	"RewardBid/pkg/config"
	xhttp "RewardBid/pkg/http"
)

// SourceHTTP marks recommendations produced by the HTTP collaborator.
const SourceHTTP = "http"

// ErrNoRecommendation is returned when the collaborator answered without a usable key.
var ErrNoRecommendation = errors.New("no recommendation in response")

var answerKey = regexp.MustCompile(`(?i)Recommended Card Key:\s*(\S+)`)

// HTTPRecommender asks an external matcher which competitor suits a transaction.
type HTTPRecommender struct {
	base     *httpBase
	path     string
	attempts int
}

func NewHTTPRecommender(cfg *config.Config, opts ...xhttp.ClientOption) *HTTPRecommender {
	rc := cfg.Recommender
	return &HTTPRecommender{
		base:     newHTTPBase(strings.TrimRight(rc.URL, "/"), rc.Timeout, opts...),
		path:     rc.Path,
		attempts: rc.Attempts,
	}
}

type recommendReq struct {
	Transaction models.Transaction `json:"transaction"`
	Competitors []string           `json:"competitors"`
	Query       string             `json:"query"`
}

type recommendResp struct {
	CompetitorID string `json:"competitor_id"`
	Answer       string `json:"answer"`
}

func (r *HTTPRecommender) Recommend(ctx context.Context, tx models.Transaction, competitors []string) (*models.Recommendation, error) {
	var resp recommendResp
	req := recommendReq{Transaction: tx, Competitors: competitors, Query: Query(tx)}
	if err := r.base.postJSONWithRetry(ctx, r.path, req, &resp, r.attempts); err != nil {
		return nil, fmt.Errorf("recommend: %w", err)
	}

	id := strings.TrimSpace(resp.CompetitorID)
	if id == "" {
		id = ExtractKey(resp.Answer)
	}
	if id == "" {
		return nil, ErrNoRecommendation
	}
	return &models.Recommendation{
		CompetitorID: id,
		Source:       SourceHTTP,
		Answer:       strings.TrimSpace(resp.Answer),
	}, nil
}

// Query is the free-text question sent along with the structured transaction.
func Query(tx models.Transaction) string {
	return fmt.Sprintf("Which card gives the best reward for a %.2f %s purchase at %s?",
		tx.Amount, tx.Category, tx.Merchant)
}

// ExtractKey pulls the competitor id out of a free-text answer, or returns "".
func ExtractKey(answer string) string {
	m := answerKey.FindStringSubmatch(answer)
	if m == nil {
		return ""
	}
	return strings.Trim(m[1], `.,;:"'`)
}

var _ domsvc.Recommender = (*HTTPRecommender)(nil)
