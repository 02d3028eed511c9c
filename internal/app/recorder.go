package app

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dmehra/meetline/internal/core"
)

// RecorderOrchestrator tracks the singleton recorder connection and
// relays start/stop instructions to it. It holds a weak reference: the
// registry owns the session, this only remembers which one it is.
// Whether recording is actually running is the recorder's own state;
// this layer just forwards instructions and status queries.
type RecorderOrchestrator struct {
	registry *Registry

	mu       sync.Mutex
	sid      core.SessionID
	attached bool
}

func NewRecorderOrchestrator(registry *Registry) *RecorderOrchestrator {
	return &RecorderOrchestrator{registry: registry}
}

// Attach claims the recorder slot. Returns false if another recorder
// already holds it.
func (ro *RecorderOrchestrator) Attach(sid core.SessionID) bool {
	ro.mu.Lock()
	defer ro.mu.Unlock()
	if ro.attached {
		return false
	}
	ro.sid, ro.attached = sid, true
	log.Info().Str("module", "app.recorder").Str("sid", string(sid)).Msg("recorder attached")
	return true
}

// Detach clears the slot if it is held by the given session.
func (ro *RecorderOrchestrator) Detach(sid core.SessionID) {
	ro.mu.Lock()
	defer ro.mu.Unlock()
	if !ro.attached || ro.sid != sid {
		return
	}
	ro.sid, ro.attached = "", false
	log.Info().Str("module", "app.recorder").Str("sid", string(sid)).Msg("recorder detached")
}

func (ro *RecorderOrchestrator) Connected() bool {
	ro.mu.Lock()
	defer ro.mu.Unlock()
	return ro.attached
}

func (ro *RecorderOrchestrator) recorderSession() (*Session, bool) {
	ro.mu.Lock()
	sid, attached := ro.sid, ro.attached
	ro.mu.Unlock()
	if !attached {
		return nil, false
	}
	return ro.registry.Get(sid)
}

// StartRecording instructs the recorder to join and record. No-op when
// no recorder is connected; the next recorder learns nothing about the
// missed transition, which matches the recorder being an optional agent.
func (ro *RecorderOrchestrator) StartRecording(meetURL string) {
	s, ok := ro.recorderSession()
	if !ok {
		log.Warn().Str("module", "app.recorder").Msg("no recorder connected, cannot start recording")
		return
	}
	log.Info().Str("module", "app.recorder").Str("sid", string(s.ID())).Msg("starting recording")
	ro.send(s, core.StartRecordingEvent{Type: core.TypeStartRecording, MeetURL: meetURL})
}

// StopRecording instructs the recorder to stop. No-op when no recorder
// is connected.
func (ro *RecorderOrchestrator) StopRecording() {
	s, ok := ro.recorderSession()
	if !ok {
		log.Warn().Str("module", "app.recorder").Msg("no recorder connected, cannot stop recording")
		return
	}
	log.Info().Str("module", "app.recorder").Str("sid", string(s.ID())).Msg("stopping recording")
	ro.send(s, core.StopRecordingEvent{Type: core.TypeStopRecording})
}

// QueryStatus answers a session's recorder-status question. Without a
// recorder the answer is an immediate "not recording"; otherwise the
// query is forwarded and the recorder's asynchronous recorderStatus
// reply is broadcast by the signaling layer.
func (ro *RecorderOrchestrator) QueryStatus(from *Session) {
	s, ok := ro.recorderSession()
	if !ok {
		ro.send(from, core.RecorderStatusEvent{Type: core.TypeRecorderStatus, IsRecording: false})
		return
	}
	ro.send(s, map[string]string{"type": core.TypeGetRecorderStatus})
}

func (ro *RecorderOrchestrator) send(s *Session, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "app.recorder").Msg("marshal recorder message")
		return
	}
	if err := s.Signal().TrySend(core.Frame(b)); err != nil {
		log.Error().Err(err).Str("module", "app.recorder").Str("sid", string(s.ID())).Msg("send to recorder")
	}
}
