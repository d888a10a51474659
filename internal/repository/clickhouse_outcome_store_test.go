package repository

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"

	"RewardBid/internal/domain/models"
)

func TestOutcomeRowMatchesColumns(t *testing.T) {
	ts := time.Unix(1700000000, 0).UTC()
	o := &models.Outcome{
		Index: 2,
		Bid: &models.BidResult{
			ID:              "b1",
			Category:        "gas",
			Transaction:     models.Transaction{Category: "gas", Amount: 80},
			Bid:             2.4,
			PacingOvershoot: true,
			Placeholder:     "amex",
		},
		Judgment:  models.Judgment{Result: models.ResultLose, Winner: "chase", OfferValue: 3},
		Timestamp: ts,
	}

	row, err := outcomeRow("s1", o)
	assert.NoError(t, err)
	check.Equal(t, outcomeColumnCount, len(row))
	check.Equal(t, outcomeColumnCount, len(strings.Split(outcomeColumns, ",")))
	check.Equal(t, "s1", row[1].(string))
	check.Equal(t, uint32(2), row[2].(uint32))
	check.Equal(t, uint8(1), row[13].(uint8))
	check.Equal(t, "amex", row[14].(string))
	check.Equal(t, "lose", row[15].(string))

	var back models.Outcome
	assert.NoError(t, json.Unmarshal([]byte(row[20].(string)), &back))
	check.Equal(t, 2.4, back.Bid.Bid)
	check.Equal(t, "chase", back.Judgment.Winner)
}

func TestOutcomeRowWithoutBid(t *testing.T) {
	row, err := outcomeRow("s1", &models.Outcome{Index: 0, Error: "bad amount",
		Judgment: models.Judgment{Result: models.ResultError, Reason: "bad amount"}})
	assert.NoError(t, err)
	check.Equal(t, "", row[3].(string))
	check.Equal(t, "error", row[15].(string))
	check.Equal(t, "bad amount", row[19].(string))
}

func TestOutcomeSchema(t *testing.T) {
	stmts := OutcomeSchema("bid_outcomes")
	assert.Equal(t, 1, len(stmts))
	check.True(t, strings.Contains(stmts[0], "CREATE TABLE IF NOT EXISTS bid_outcomes"))
	for _, col := range strings.Split(outcomeColumns, ",") {
		check.True(t, strings.Contains(stmts[0], strings.TrimSpace(col)+" "))
	}
}
