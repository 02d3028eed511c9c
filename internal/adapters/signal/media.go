package signal

import (
	"encoding/json"

	mediasoup "github.com/jiyeyuran/mediasoup-go/v2"
	"github.com/rs/zerolog/log"

	"github.com/dmehra/meetline/internal/core"
	"github.com/dmehra/meetline/internal/engine"
)

func (ctl *SignalWSController) handleRouterRtpCapabilities(conn *WsSignalConn, rid string) {
	resp := struct {
		Type string                     `json:"type"`
		RID  string                     `json:"rid,omitempty"`
		Caps *mediasoup.RtpCapabilities `json:"routerRtpCapabilities"`
	}{
		Type: "routerRtpCapabilities",
		RID:  rid,
		Caps: ctl.Orch.RouterRtpCapabilities(),
	}
	ctl.sendJSON(conn, resp)
}

func (ctl *SignalWSController) handleCreateTransport(
	sid core.SessionID,
	conn *WsSignalConn,
	rid string,
	data []byte,
) {
	var p struct {
		IsSender bool `json:"isSender"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad createWebRtcTransport payload")
		return
	}

	info, err := ctl.Orch.CreateTransport(sid, p.IsSender)
	if err != nil {
		ctl.replyErr(conn, rid, err)
		return
	}

	resp := struct {
		Type string `json:"type"`
		RID  string `json:"rid,omitempty"`
		engine.TransportInfo
	}{
		Type:          "transportCreated",
		RID:           rid,
		TransportInfo: info,
	}
	ctl.sendJSON(conn, resp)
}

func (ctl *SignalWSController) handleConnectTransport(
	sid core.SessionID,
	conn *WsSignalConn,
	rid string,
	data []byte,
) {
	var p struct {
		IsSender       bool                      `json:"isSender"`
		DtlsParameters *mediasoup.DtlsParameters `json:"dtlsParameters"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad connectWebRtcTransport payload")
		return
	}

	if err := ctl.Orch.ConnectTransport(sid, p.IsSender, p.DtlsParameters); err != nil {
		ctl.replyErr(conn, rid, err)
		return
	}
	ctl.sendJSON(conn, map[string]string{"type": "transportConnected", "rid": rid})
}

func (ctl *SignalWSController) handleProduce(
	sid core.SessionID,
	conn *WsSignalConn,
	rid string,
	data []byte,
) {
	var p struct {
		Kind          mediasoup.MediaKind      `json:"kind"`
		RtpParameters *mediasoup.RtpParameters `json:"rtpParameters"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad produceMedia payload")
		return
	}

	id, err := ctl.Orch.Produce(sid, p.Kind, p.RtpParameters)
	if err != nil {
		ctl.replyErr(conn, rid, err)
		return
	}

	resp := struct {
		Type string `json:"type"`
		RID  string `json:"rid,omitempty"`
		ID   string `json:"id"`
	}{
		Type: "mediaProduced",
		RID:  rid,
		ID:   id,
	}
	ctl.sendJSON(conn, resp)
}

func (ctl *SignalWSController) handleConsume(
	sid core.SessionID,
	conn *WsSignalConn,
	rid string,
	data []byte,
) {
	var p struct {
		ProducerSocketID string                     `json:"producerSocketId"`
		RtpCapabilities  *mediasoup.RtpCapabilities `json:"rtpCapabilities"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad consumeMedia payload")
		return
	}

	descriptors, err := ctl.Orch.Consume(sid, core.SessionID(p.ProducerSocketID), p.RtpCapabilities)
	if err != nil {
		ctl.replyErr(conn, rid, err)
		return
	}

	resp := struct {
		Type      string                    `json:"type"`
		RID       string                    `json:"rid,omitempty"`
		Consumers []core.ConsumerDescriptor `json:"consumers"`
	}{
		Type:      "consumersCreated",
		RID:       rid,
		Consumers: descriptors,
	}
	ctl.sendJSON(conn, resp)
}

func (ctl *SignalWSController) handleResumeConsumer(
	sid core.SessionID,
	conn *WsSignalConn,
	rid string,
	data []byte,
) {
	var p struct {
		ConsumerID string `json:"consumerId"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad resumeConsumer payload")
		return
	}

	if err := ctl.Orch.ResumeConsumer(sid, p.ConsumerID); err != nil {
		ctl.replyErr(conn, rid, err)
		return
	}
	ctl.sendJSON(conn, map[string]string{"type": "consumerResumed", "rid": rid})
}

func (ctl *SignalWSController) handleGetProducers(
	sid core.SessionID,
	conn *WsSignalConn,
	rid string,
) {
	resp := struct {
		Type      string               `json:"type"`
		RID       string               `json:"rid,omitempty"`
		Producers []core.ProducerOwner `json:"producers"`
	}{
		Type:      core.TypeProducers,
		RID:       rid,
		Producers: ctl.Orch.ListProducers(sid),
	}
	ctl.sendJSON(conn, resp)
}

func (ctl *SignalWSController) handleSetProducerPaused(
	sid core.SessionID,
	conn *WsSignalConn,
	rid string,
	data []byte,
	paused bool,
) {
	var p struct {
		ProducerID string `json:"producerId"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad pause/resume producer payload")
		return
	}

	if err := ctl.Orch.SetProducerPaused(sid, p.ProducerID, paused); err != nil {
		ctl.replyErr(conn, rid, err)
		return
	}
	ack := "producerPaused"
	if !paused {
		ack = "producerResumed"
	}
	ctl.sendJSON(conn, map[string]string{"type": ack, "rid": rid})
}
