package app

import (
	"github.com/rs/zerolog/log"

	"github.com/dmehra/meetline/internal/core"
	"github.com/dmehra/meetline/internal/domain"
)

// OnDisconnect tears a session down: consumers, then producers, then
// the receiver and sender transports, then presence and recorder
// bookkeeping, then the registry entry. Each engine close is
// best-effort; a failure on one resource must not strand the rest.
// Safe to call more than once; only the first call does anything.
func (o *Orchestrator) OnDisconnect(sid core.SessionID) {
	s, ok := o.Registry.Get(sid)
	if !ok {
		return
	}
	s.op.Lock()
	defer s.op.Unlock()

	if s.Role() == domain.RoleRecorder {
		o.Recorder.Detach(sid)
	}

	stripped, ok := o.Registry.Strip(s)
	if !ok {
		return
	}
	log.Info().Str("module", "app.disconnect").Str("sid", string(sid)).Str("role", string(s.Role())).Msg("session disconnected")

	for _, c := range stripped.consumers {
		if err := c.Close(); err != nil {
			log.Error().Err(err).Str("module", "app.disconnect").Str("consumer", c.ID()).Msg("close consumer")
		}
	}
	for _, p := range stripped.producers {
		if err := p.Close(); err != nil {
			log.Error().Err(err).Str("module", "app.disconnect").Str("producer", p.ID()).Msg("close producer")
		}
	}
	if stripped.recv != nil {
		if err := stripped.recv.Close(); err != nil {
			log.Error().Err(err).Str("module", "app.disconnect").Msg("close recv transport")
		}
	}
	if stripped.send != nil {
		if err := stripped.send.Close(); err != nil {
			log.Error().Err(err).Str("module", "app.disconnect").Msg("close send transport")
		}
	}

	if stripped.hadSender && s.Role() == domain.RoleParticipant {
		o.broadcastFrom(sid, core.ParticipantEvent{
			Type:     core.TypeParticipantDisconnected,
			SocketID: sid,
		})
		if stripped.becameLast {
			log.Info().Str("module", "app.disconnect").Msg("last participant disconnected")
			o.broadcastFrom(sid, core.RecorderStatusEvent{
				Type:        core.TypeRecorderStatus,
				IsRecording: false,
			})
			o.Recorder.StopRecording()
		}
	}

	o.Registry.Remove(sid)
}
