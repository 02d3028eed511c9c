package signal

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/dmehra/meetline/internal/core"
	"github.com/dmehra/meetline/internal/domain"
)

// handleGetRecorderStatus forwards the status question to the recorder
// orchestrator. The answer arrives either immediately (no recorder) or
// asynchronously via the recorder's own recorderStatus message.
func (ctl *SignalWSController) handleGetRecorderStatus(sid core.SessionID) {
	s, ok := ctl.Orch.Registry.Get(sid)
	if !ok {
		return
	}
	ctl.Orch.Recorder.QueryStatus(s)
}

// handleRecorderStatus relays the recorder's status report to every
// other session. Only the recorder itself may send it.
func (ctl *SignalWSController) handleRecorderStatus(sid core.SessionID, data []byte) {
	s, ok := ctl.Orch.Registry.Get(sid)
	if !ok || s.Role() != domain.RoleRecorder {
		log.Warn().Str("module", "signal").Str("sid", string(sid)).Msg("recorderStatus from non-recorder session")
		return
	}

	var p struct {
		IsRecording bool `json:"isRecording"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad recorderStatus payload")
		return
	}
	log.Info().Str("module", "signal").Bool("isRecording", p.IsRecording).Msg("recorder status")

	ctl.BroadcastFrom(sid, core.RecorderStatusEvent{
		Type:        core.TypeRecorderStatus,
		IsRecording: p.IsRecording,
	})
}

// BroadcastFrom fans a JSON message out to every session but the origin.
func (ctl *SignalWSController) BroadcastFrom(sid core.SessionID, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("broadcast marshal")
		return
	}
	ctl.Orch.Registry.Broadcast(sid, core.Frame(b))
}
