package http

import (
	"time"

	xutil "RewardBid/pkg/util"

	"github.com/labstack/echo/v4"
)

// QueryTime reads a time query param (RFC3339 or unix seconds), or returns def.
func QueryTime(c echo.Context, name string, def time.Time) time.Time {
	return xutil.ParseTimeDefault(c.QueryParam(name), def)
}
