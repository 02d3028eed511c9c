package signal

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dmehra/meetline/internal/app"
	"github.com/dmehra/meetline/internal/core"
	"github.com/dmehra/meetline/internal/domain"
)

var ErrBackpressure = errors.New("backpressure")

type SignalWSController struct {
	Orch      *app.Orchestrator
	Limiter   *RateLimiter
	ReadLimit int64
}

func NewSignalWSController(orch *app.Orchestrator, readLimit int64) *SignalWSController {
	return &SignalWSController{
		Orch:      orch,
		Limiter:   NewRateLimiter(100, time.Second),
		ReadLimit: readLimit,
	}
}

type WsSignalConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func (c *WsSignalConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errors.New("connection closed")
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *WsSignalConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleSignal upgrades an authenticated request to a websocket and
// registers the session. The role was established by the bearer-token
// middleware; the session id is minted here, one per connection.
func (ctl *SignalWSController) HandleSignal(ctx context.Context, c *gin.Context) {
	role := domain.Role(c.GetString("client_role"))
	sid := core.SessionID(uuid.NewString())
	log.Info().Str("module", "signal").Str("sid", string(sid)).Str("role", string(role)).Msg("new WS connection")

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}
	if ctl.ReadLimit > 0 {
		ws.SetReadLimit(ctl.ReadLimit)
	}

	conn := &WsSignalConn{
		conn: ws,
		send: make(chan core.Frame, 32),
	}

	if _, err := ctl.Orch.Connect(sid, role, conn); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("connection rejected")
		ctl.sendJSON(conn, map[string]string{"type": "error", "error": err.Error()})
		go ctl.writePump(ctx, conn)
		// Give the rejection frame a moment to flush before tearing down.
		go func() {
			time.Sleep(100 * time.Millisecond)
			conn.Close()
		}()
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	go ctl.writePump(ctx, conn)
	go ctl.readPump(ctx, cancel, sid, conn)
}
