package app

import (
	"encoding/json"
	"fmt"

	mediasoup "github.com/jiyeyuran/mediasoup-go/v2"
	"github.com/rs/zerolog/log"

	"github.com/dmehra/meetline/internal/core"
	"github.com/dmehra/meetline/internal/domain"
	"github.com/dmehra/meetline/internal/engine"
)

// Orchestrator coordinates the session registry, the media engine and
// the recorder. Every mutating operation takes the session's op mutex
// before touching the engine and releases it after the registry
// mutation, so concurrent requests for the same session are serialized
// across the engine round trip.
type Orchestrator struct {
	Registry *Registry
	Engine   engine.Engine
	Recorder *RecorderOrchestrator
	Policy   Policy

	// MeetURL is the join target handed to the recorder on start.
	MeetURL string
}

// Connect registers a new session. A second concurrent recorder is
// rejected: the recorder is a singleton by design.
func (o *Orchestrator) Connect(sid core.SessionID, role domain.Role, sig core.SignalConnection) (*Session, error) {
	if role == domain.RoleRecorder && !o.Recorder.Attach(sid) {
		return nil, ErrRecorderBusy
	}
	return o.Registry.Create(sid, role, sig), nil
}

func (o *Orchestrator) RouterRtpCapabilities() *mediasoup.RtpCapabilities {
	return o.Engine.RouterRtpCapabilities()
}

// CreateTransport allocates a transport on the engine and installs it
// in the session's sender or receiver slot. Re-creating a transport for
// a slot closes the previous one instead of leaking it. A participant
// count transition 0→1 starts the recorder.
func (o *Orchestrator) CreateTransport(sid core.SessionID, isSender bool) (engine.TransportInfo, error) {
	s, ok := o.Registry.Get(sid)
	if !ok {
		return engine.TransportInfo{}, ErrSessionNotFound
	}
	s.op.Lock()
	defer s.op.Unlock()
	if s.TornDown() {
		return engine.TransportInfo{}, ErrSessionNotFound
	}

	kind := engine.RecvTransport
	if isSender {
		kind = engine.SendTransport
	}
	t, err := o.Engine.CreateTransport(kind)
	if err != nil {
		return engine.TransportInfo{}, fmt.Errorf("create transport: %w", err)
	}

	old, becameFirst := o.Registry.AttachTransport(s, isSender, t)
	if old != nil {
		log.Warn().Str("module", "app.orchestrator").Str("sid", string(sid)).Str("kind", kind.String()).Msg("replacing existing transport")
		if err := old.Close(); err != nil {
			log.Error().Err(err).Str("module", "app.orchestrator").Msg("close replaced transport")
		}
	}

	if becameFirst {
		log.Info().Str("module", "app.orchestrator").Str("sid", string(sid)).Msg("first participant connected")
		o.Recorder.StartRecording(o.MeetURL)
	}
	return t.Info(), nil
}

// ConnectTransport applies the client's DTLS parameters to a previously
// created transport of the requested role.
func (o *Orchestrator) ConnectTransport(sid core.SessionID, isSender bool, dtls *mediasoup.DtlsParameters) error {
	s, ok := o.Registry.Get(sid)
	if !ok {
		return ErrSessionNotFound
	}
	s.op.Lock()
	defer s.op.Unlock()
	if s.TornDown() {
		return ErrSessionNotFound
	}

	t := s.Transport(isSender)
	if t == nil {
		return ErrTransportNotFound
	}
	if err := t.Connect(dtls); err != nil {
		return fmt.Errorf("connect transport: %w", err)
	}
	log.Info().Str("module", "app.orchestrator").Str("sid", string(sid)).Bool("sender", isSender).Msg("transport connected")
	return nil
}

// broadcastFrom fans a JSON event out to every session except the
// origin and applies the backpressure policy to slow receivers.
func (o *Orchestrator) broadcastFrom(from core.SessionID, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "app.orchestrator").Msg("broadcast marshal")
		return
	}
	res := o.Registry.Broadcast(from, core.Frame(b))
	if o.Policy == nil {
		return
	}
	for _, slow := range res.Dropped {
		switch o.Policy.OnBackPressure(slow) {
		case KickMember:
			// Async: the kicked session's cascade takes its own op lock
			// and the caller may be holding another session's.
			go o.OnDisconnect(slow.SID)
			slow.Session.Signal().Close()
		case DropFrame, NoAction:
		}
	}
}

// sendTo delivers a JSON message to a single session.
func (o *Orchestrator) sendTo(sid core.SessionID, v any) error {
	s, ok := o.Registry.Get(sid)
	if !ok {
		return ErrSessionNotFound
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.Signal().TrySend(core.Frame(b))
}
