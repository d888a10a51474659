package api

import (
	"context"
	"errors"
	"time"

	"RewardBid/internal/domain/models"
	servicemetrics "RewardBid/internal/service/metrics"
	"RewardBid/internal/service/ratelimit"
	"RewardBid/internal/services/bidding"
	"RewardBid/internal/usecase"
	xhttp "RewardBid/pkg/http"
	xlogger "RewardBid/pkg/logger"

	"github.com/labstack/echo/v4"
)

// SessionsEchoHandler exposes bidding sessions over HTTP.
type SessionsEchoHandler struct {
	logger        *xlogger.Logger
	sessions      *usecase.SessionManager
	limiter       *ratelimit.Limiter
	defaultBudget float64
}

func NewSessionsEchoHandler(logger *xlogger.Logger, sessions *usecase.SessionManager, limiter *ratelimit.Limiter, defaultBudget float64) *SessionsEchoHandler {
	servicemetrics.Register(func() float64 { return float64(sessions.Count()) })
	return &SessionsEchoHandler{
		logger:        logger,
		sessions:      sessions,
		limiter:       limiter,
		defaultBudget: defaultBudget,
	}
}

func (h *SessionsEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/sessions")
	g.POST("", h.Create)
	g.GET("", h.List)
	g.GET("/:id", h.Get)
	g.DELETE("/:id", h.Close)
	g.POST("/:id/bids", h.RunBids)
	g.GET("/:id/outcomes", h.Outcomes)
}

func (h *SessionsEchoHandler) Create(c echo.Context) error {
	req := &models.CreateSessionRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if req.Budget == 0 {
		req.Budget = h.defaultBudget
	}

	st, err := h.sessions.Create(c.Request().Context(), usecase.CreateSessionParams{
		ID:        req.ID,
		Budget:    req.Budget,
		Rates:     req.Rates,
		Strengths: req.Strengths,
		Restore:   req.Restore,
	})
	if err != nil {
		return h.fail(c, "create session", err)
	}
	return xhttp.CreatedResponse(c, st)
}

func (h *SessionsEchoHandler) List(c echo.Context) error {
	list := h.sessions.List()
	return xhttp.ListResponse(c, list, int64(len(list)))
}

func (h *SessionsEchoHandler) Get(c echo.Context) error {
	st, err := h.sessions.Get(c.Param("id"))
	if err != nil {
		return h.fail(c, "get session", err)
	}
	return xhttp.SuccessResponse(c, st)
}

func (h *SessionsEchoHandler) Close(c echo.Context) error {
	id := c.Param("id")
	st, err := h.sessions.Close(c.Request().Context(), id)
	if err != nil {
		return h.fail(c, "close session", err)
	}
	h.limiter.Forget(id)
	return xhttp.SuccessResponse(c, st)
}

func (h *SessionsEchoHandler) RunBids(c echo.Context) error {
	id := c.Param("id")
	if !h.limiter.Allow(id) {
		servicemetrics.RateLimited.WithLabelValues(c.Path()).Inc()
		return xhttp.AppErrorResponse(c, xhttp.TooManyRequestsErrorf("too many bid requests for session %s", id))
	}

	req := &models.RunBidsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	batch := req.ToBatch()

	report, err := h.sessions.Run(c.Request().Context(), id, &batch)
	if err != nil {
		return h.fail(c, "run bids", err)
	}
	return xhttp.SuccessResponse(c, report)
}

func (h *SessionsEchoHandler) Outcomes(c echo.Context) error {
	req := &models.OutcomesRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	from := xhttp.QueryTime(c, "from", time.Time{})
	to := xhttp.QueryTime(c, "to", time.Time{})

	outs, err := h.sessions.OutcomesBetween(c.Request().Context(), c.Param("id"), from, to, req.Limit)
	if err != nil {
		return h.fail(c, "query outcomes", err)
	}
	return xhttp.ListResponse(c, outs, int64(len(outs)))
}

func (h *SessionsEchoHandler) fail(c echo.Context, op string, err error) error {
	appErr := toAppError(err)
	if appErr.Status >= 500 {
		h.logger.Error(op+" failed", xlogger.String("session_id", c.Param("id")), xlogger.Error(err))
	}
	return xhttp.AppErrorResponse(c, appErr)
}

func toAppError(err error) *xhttp.AppError {
	var appErr *xhttp.AppError
	switch {
	case errors.As(err, &appErr):
		return appErr
	case errors.Is(err, usecase.ErrSessionNotFound):
		return xhttp.NotFoundErrorf("%v", err).WithError(err)
	case errors.Is(err, usecase.ErrSessionExists):
		return xhttp.ConflictErrorf("%v", err).WithError(err)
	case errors.Is(err, usecase.ErrSessionClosed):
		return xhttp.ConflictErrorf("%v", err).WithError(err)
	case errors.Is(err, bidding.ErrEngineBudget), errors.Is(err, usecase.ErrNilBatch):
		return xhttp.BadRequestErrorf("%v", err).WithError(err)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return xhttp.UnavailableErrorf("request cancelled").WithError(err)
	default:
		return xhttp.InternalErrorf("internal error").WithError(err)
	}
}
