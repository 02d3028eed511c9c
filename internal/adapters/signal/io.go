package signal

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dmehra/meetline/internal/core"
)

// envelope is the common part of every inbound message. rid is an
// optional client correlation id echoed on replies, so a precondition
// failure becomes an explicit error reply instead of a silent hang.
type envelope struct {
	Type string `json:"type"`
	RID  string `json:"rid,omitempty"`
}

func (ctl *SignalWSController) writePump(ctx context.Context, c *WsSignalConn) {
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Msg("writePump ctx done")
			return
		case data, ok := <-c.send:
			if !ok {
				log.Warn().Str("module", "signal").Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		}
	}
}

func (ctl *SignalWSController) readPump(ctx context.Context, cancel context.CancelFunc, sid core.SessionID, c *WsSignalConn) {
	defer func() {
		log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("readPump closing")
		ctl.Orch.OnDisconnect(sid)
		ctl.Limiter.Forget(sid)
		cancel()
		c.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("readPump ctx done")
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				log.Info().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("readPump read error")
				return
			}
			if !ctl.Limiter.Allow(sid) {
				log.Warn().Str("module", "signal").Str("sid", string(sid)).Msg("rate limit exceeded, dropping frame")
				continue
			}
			ctl.handleSignal(sid, c, data)
		}
	}
}

func (ctl *SignalWSController) handleSignal(sid core.SessionID, c *WsSignalConn, data []byte) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad json")
		return
	}

	switch env.Type {
	case "getRouterRtpCapabilities":
		ctl.handleRouterRtpCapabilities(c, env.RID)
	case "createWebRtcTransport":
		ctl.handleCreateTransport(sid, c, env.RID, data)
	case "connectWebRtcTransport":
		ctl.handleConnectTransport(sid, c, env.RID, data)
	case "produceMedia":
		ctl.handleProduce(sid, c, env.RID, data)
	case "consumeMedia":
		ctl.handleConsume(sid, c, env.RID, data)
	case "resumeConsumer":
		ctl.handleResumeConsumer(sid, c, env.RID, data)
	case "getProducers":
		ctl.handleGetProducers(sid, c, env.RID)
	case "pauseProducer":
		ctl.handleSetProducerPaused(sid, c, env.RID, data, true)
	case "resumeProducer":
		ctl.handleSetProducerPaused(sid, c, env.RID, data, false)
	case "getRecorderStatus":
		ctl.handleGetRecorderStatus(sid)
	case "recorderStatus":
		ctl.handleRecorderStatus(sid, data)
	default:
		log.Warn().Str("module", "signal").Str("type", env.Type).Msg("unknown signal")
	}
}

func (ctl *SignalWSController) sendJSON(c *WsSignalConn, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("sendJSON marshal")
		return
	}
	_ = c.TrySend(b)
}

// replyErr surfaces a failed request to its sender. Without a rid the
// client has no way to correlate, so the failure is only logged.
func (ctl *SignalWSController) replyErr(c *WsSignalConn, rid string, err error) {
	log.Warn().Err(err).Str("module", "signal").Str("rid", rid).Msg("request failed")
	if rid == "" {
		return
	}
	ctl.sendJSON(c, map[string]string{
		"type":  "error",
		"rid":   rid,
		"error": err.Error(),
	})
}
