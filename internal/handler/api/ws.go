package api

import (
	"net/http"
	"time"

	servicemetrics "RewardBid/internal/service/metrics"
	"RewardBid/internal/usecase"
	xhttp "RewardBid/pkg/http"
	xlogger "RewardBid/pkg/logger"
	xutil "RewardBid/pkg/util"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

const (
	wsWriteWait    = 10 * time.Second
	wsPongWait     = 60 * time.Second
	wsPingInterval = wsPongWait * 9 / 10
	wsMaxBuffer    = 4096
)

// OutcomeStreamHandler pushes every outcome of a session to websocket clients,
// one JSON Outcome per text message, until the session closes.
type OutcomeStreamHandler struct {
	logger   *xlogger.Logger
	sessions *usecase.SessionManager
	upgrader websocket.Upgrader
}

func NewOutcomeStreamHandler(logger *xlogger.Logger, sessions *usecase.SessionManager) *OutcomeStreamHandler {
	return &OutcomeStreamHandler{
		logger:   logger,
		sessions: sessions,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

func (h *OutcomeStreamHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/ws/sessions/:id", h.Stream)
}

func (h *OutcomeStreamHandler) Stream(c echo.Context) error {
	id := c.Param("id")
	buf := xutil.ParseIntDefault(c.QueryParam("buffer"), 256)
	if buf < 1 || buf > wsMaxBuffer {
		buf = 256
	}

	// Subscribe before upgrading so an unknown session is still a plain 404.
	outcomes, cancel, err := h.sessions.Subscribe(id, buf)
	if err != nil {
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	defer cancel()

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", xlogger.String("session_id", id), xlogger.Error(err))
		return nil
	}
	defer conn.Close()

	servicemetrics.StreamClients.Inc()
	defer servicemetrics.StreamClients.Dec()

	// Reads only serve control frames; a read error means the client is gone.
	gone := make(chan struct{})
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(wsPingInterval)
	defer ping.Stop()

	for {
		select {
		case o, ok := <-outcomes:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed"))
				return nil
			}
			if err := conn.WriteJSON(o); err != nil {
				h.logger.Debug("websocket write failed", xlogger.String("session_id", id), xlogger.Error(err))
				return nil
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return nil
			}
		case <-gone:
			return nil
		case <-c.Request().Context().Done():
			return nil
		}
	}
}
