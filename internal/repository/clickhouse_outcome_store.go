package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"RewardBid/internal/domain/models"
	"RewardBid/internal/domain/repository"
)

const outcomeColumns = "ts, session_id, idx, bid_id, category, amount, predicted_rate, heuristic_bid, " +
	"adjustment_factor, allowed_bid, bid, budget_before, budget_after, overshoot, recommended, " +
	"result, winner, offer_value, reason, error, payload"

const outcomeColumnCount = 21

// OutcomeSchema returns the DDL for the outcome table.
func OutcomeSchema(table string) []string {
	return []string{fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	ts                DateTime64(3),
	session_id        String,
	idx               UInt32,
	bid_id            String,
	category          LowCardinality(String),
	amount            Float64,
	predicted_rate    Float64,
	heuristic_bid     Float64,
	adjustment_factor Float64,
	allowed_bid       Float64,
	bid               Float64,
	budget_before     Float64,
	budget_after      Float64,
	overshoot         UInt8,
	recommended       String,
	result            LowCardinality(String),
	winner            String,
	offer_value       Float64,
	reason            String,
	error             String,
	payload           String
) ENGINE = MergeTree
ORDER BY (session_id, ts, idx)`, table)}
}

// ClickHouseOutcomeStore implements OutcomeStorage. Flat columns serve ad-hoc
// analytics; payload keeps the full outcome for Query.
type ClickHouseOutcomeStore struct {
	db    *sql.DB
	table string
}

func NewClickHouseOutcomeStore(db *sql.DB, table string) *ClickHouseOutcomeStore {
	return &ClickHouseOutcomeStore{db: db, table: table}
}

func (s *ClickHouseOutcomeStore) Init(ctx context.Context) error {
	for _, stmt := range OutcomeSchema(s.table) {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init %s: %w", s.table, err)
		}
	}
	return nil
}

func (s *ClickHouseOutcomeStore) StoreBatch(ctx context.Context, sessionID string, outcomes []*models.Outcome) error {
	if len(outcomes) == 0 {
		return nil
	}
	const chunkSize = 1000
	placeholder := "(" + strings.TrimSuffix(strings.Repeat("?, ", outcomeColumnCount), ", ") + ")"

	for start := 0; start < len(outcomes); start += chunkSize {
		end := min(start+chunkSize, len(outcomes))

		values := make([]string, 0, end-start)
		args := make([]interface{}, 0, (end-start)*outcomeColumnCount)
		for _, o := range outcomes[start:end] {
			if o == nil {
				continue
			}
			row, err := outcomeRow(sessionID, o)
			if err != nil {
				return err
			}
			values = append(values, placeholder)
			args = append(args, row...)
		}
		if len(values) == 0 {
			continue
		}
		q := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s", s.table, outcomeColumns, strings.Join(values, ","))
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("insert outcomes: %w", err)
		}
	}
	return nil
}

// Query returns up to limit outcomes in [from, to], oldest first.
func (s *ClickHouseOutcomeStore) Query(ctx context.Context, sessionID string, from, to time.Time, limit int) ([]*models.Outcome, error) {
	if limit <= 0 {
		limit = 100
	}
	q := fmt.Sprintf("SELECT payload FROM %s WHERE session_id = ? AND ts >= ? AND ts <= ? ORDER BY ts DESC, idx DESC LIMIT ?", s.table)
	rows, err := s.db.QueryContext(ctx, q, sessionID, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Outcome
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var o models.Outcome
		if err := json.Unmarshal([]byte(payload), &o); err != nil {
			return nil, fmt.Errorf("decode outcome payload: %w", err)
		}
		out = append(out, &o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func (s *ClickHouseOutcomeStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *ClickHouseOutcomeStore) Close() error {
	return nil // pool owned by pkg/clickhouse
}

func outcomeRow(sessionID string, o *models.Outcome) ([]interface{}, error) {
	payload, err := json.Marshal(o)
	if err != nil {
		return nil, fmt.Errorf("encode outcome: %w", err)
	}
	ts := o.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	var (
		bidID, category, recommended                          string
		amount, rate, heuristic, factor, allowed, bid, bb, ba float64
		overshoot                                             uint8
	)
	if b := o.Bid; b != nil {
		bidID, category, recommended = b.ID, b.Category, b.RecommendedCompetitor()
		amount, rate, heuristic, factor = b.Transaction.Amount, b.PredictedRate, b.HeuristicBid, b.AdjustmentFactor
		allowed, bid, bb, ba = b.AllowedBid, b.Bid, b.BudgetBefore, b.BudgetAfter
		if b.PacingOvershoot {
			overshoot = 1
		}
	}
	return []interface{}{
		ts, sessionID, uint32(o.Index), bidID, category, amount, rate, heuristic,
		factor, allowed, bid, bb, ba, overshoot, recommended,
		string(o.Judgment.Result), o.Judgment.Winner, o.Judgment.OfferValue, o.Judgment.Reason, o.Error, string(payload),
	}, nil
}

var _ repository.OutcomeStorage = (*ClickHouseOutcomeStore)(nil)
