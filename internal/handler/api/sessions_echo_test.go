package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"RewardBid/internal/domain/models"
	"RewardBid/internal/service/ratelimit"
	"RewardBid/internal/usecase"
	xlogger "RewardBid/pkg/logger"

	"github.com/labstack/echo/v4"
	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
)

type testAPI struct {
	e        *echo.Echo
	sessions *usecase.SessionManager
}

func newTestAPI(t *testing.T, limiter *ratelimit.Limiter) *testAPI {
	t.Helper()
	sessions := usecase.NewSessionManager(usecase.EngineSettings{ClampRates: true, ClampToBudget: true}, nil, xlogger.Nop())
	t.Cleanup(func() { _ = sessions.Shutdown(t.Context()) })

	e := echo.New()
	NewSessionsEchoHandler(xlogger.Nop(), sessions, limiter, 50).RegisterRoutes(e)
	NewOutcomeStreamHandler(xlogger.Nop(), sessions).RegisterRoutes(e)
	return &testAPI{e: e, sessions: sessions}
}

type envelope struct {
	Status int             `json:"status"`
	Data   json.RawMessage `json:"data"`
}

func (a *testAPI) do(t *testing.T, method, path, body string) (int, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 {
		assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec.Code, env
}

const threeBids = `{
  "competitors": ["rival_a", "rival_b"],
  "items": [
    {"transaction": {"category": "Groceries", "amount": 150, "merchant": "Safeway"}, "offer": {"competitor_id": "rival_a", "value": 1}},
    {"transaction": {"category": "travel", "amount": 200}, "offers": [{"competitor_id": "rival_a", "value": 100}, {"competitor_id": "rival_b", "value": 2}]},
    {"transaction": {"category": "gas", "amount": 75}}
  ]
}`

func TestCreateSession(t *testing.T) {
	api := newTestAPI(t, nil)

	code, env := api.do(t, http.MethodPost, "/api/sessions", `{"id": "s1", "budget": 20}`)
	assert.Equal(t, http.StatusCreated, code)
	var st usecase.SessionState
	assert.NoError(t, json.Unmarshal(env.Data, &st))
	check.Equal(t, "s1", st.ID)
	check.Equal(t, 20.0, st.Budget)
	check.Equal(t, 0.05, st.Rates["groceries"])

	code, _ = api.do(t, http.MethodPost, "/api/sessions", `{"id": "s1", "budget": 20}`)
	check.Equal(t, http.StatusConflict, code)

	code, env = api.do(t, http.MethodPost, "/api/sessions", `{}`)
	assert.Equal(t, http.StatusCreated, code)
	assert.NoError(t, json.Unmarshal(env.Data, &st))
	check.True(t, st.ID != "")
	check.Equal(t, 50.0, st.Budget)

	code, _ = api.do(t, http.MethodPost, "/api/sessions", `{"budget": -1}`)
	check.Equal(t, http.StatusBadRequest, code)
}

func TestRunBids(t *testing.T) {
	api := newTestAPI(t, nil)
	code, _ := api.do(t, http.MethodPost, "/api/sessions", `{"id": "s1", "budget": 20}`)
	assert.Equal(t, http.StatusCreated, code)

	code, env := api.do(t, http.MethodPost, "/api/sessions/s1/bids", threeBids)
	assert.Equal(t, http.StatusOK, code)

	var report models.RunReport
	assert.NoError(t, json.Unmarshal(env.Data, &report))
	assert.Equal(t, 3, len(report.Outcomes))
	check.Equal(t, "groceries", report.Outcomes[0].Bid.Category)
	check.Equal(t, 3, report.Outcomes[0].Bid.RemainingCount)
	check.Equal(t, 1, report.Outcomes[2].Bid.RemainingCount)
	check.Equal(t, models.ResultWin, report.Outcomes[0].Judgment.Result)
	check.Equal(t, models.ResultLose, report.Outcomes[1].Judgment.Result)
	check.Equal(t, models.ResultError, report.Outcomes[2].Judgment.Result)
	check.Equal(t, "rival_a", report.Outcomes[1].Judgment.Winner)
	check.True(t, report.FinalBudget < 20)
	check.Equal(t, 20.0, report.InitialBudget)

	code, env = api.do(t, http.MethodGet, "/api/sessions/s1/outcomes?limit=2", "")
	assert.Equal(t, http.StatusOK, code)
	var list struct {
		Rows  []models.Outcome `json:"rows"`
		Total int64            `json:"total"`
	}
	assert.NoError(t, json.Unmarshal(env.Data, &list))
	check.Equal(t, int64(2), list.Total)
	check.Equal(t, 1, list.Rows[0].Index)
	check.Equal(t, 2, list.Rows[1].Index)

	code, env = api.do(t, http.MethodGet, "/api/sessions/s1", "")
	assert.Equal(t, http.StatusOK, code)
	var st usecase.SessionState
	assert.NoError(t, json.Unmarshal(env.Data, &st))
	check.Equal(t, 1, st.Runs)
	check.Equal(t, 3, st.Processed)
}

func TestRunBidsValidation(t *testing.T) {
	api := newTestAPI(t, nil)
	api.do(t, http.MethodPost, "/api/sessions", `{"id": "s1", "budget": 20}`)

	code, _ := api.do(t, http.MethodPost, "/api/sessions/s1/bids", `{"items": []}`)
	check.Equal(t, http.StatusBadRequest, code)

	code, _ = api.do(t, http.MethodPost, "/api/sessions/s1/bids", `{"items": [{"transaction": {"amount": 5}}]}`)
	check.Equal(t, http.StatusBadRequest, code)

	code, _ = api.do(t, http.MethodPost, "/api/sessions/nope/bids", threeBids)
	check.Equal(t, http.StatusNotFound, code)
}

func TestRunBidsRateLimited(t *testing.T) {
	api := newTestAPI(t, ratelimit.New(1, 0))
	api.do(t, http.MethodPost, "/api/sessions", `{"id": "s1", "budget": 20}`)

	code, _ := api.do(t, http.MethodPost, "/api/sessions/s1/bids", threeBids)
	check.Equal(t, http.StatusOK, code)
	code, _ = api.do(t, http.MethodPost, "/api/sessions/s1/bids", threeBids)
	check.Equal(t, http.StatusTooManyRequests, code)
}

func TestCloseSession(t *testing.T) {
	api := newTestAPI(t, nil)
	api.do(t, http.MethodPost, "/api/sessions", `{"id": "s1", "budget": 20}`)

	code, _ := api.do(t, http.MethodDelete, "/api/sessions/s1", "")
	check.Equal(t, http.StatusOK, code)

	code, _ = api.do(t, http.MethodGet, "/api/sessions/s1", "")
	check.Equal(t, http.StatusNotFound, code)
	code, _ = api.do(t, http.MethodDelete, "/api/sessions/s1", "")
	check.Equal(t, http.StatusNotFound, code)
}
