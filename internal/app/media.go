package app

import (
	"fmt"

	mediasoup "github.com/jiyeyuran/mediasoup-go/v2"
	"github.com/rs/zerolog/log"

	"github.com/dmehra/meetline/internal/core"
	"github.com/dmehra/meetline/internal/engine"
)

// Produce creates a producer on the session's sender transport and
// returns its identity. Once the session holds both an audio and a
// video producer it is announced to the others; clients produce both
// kinds on initialization, so the second producer marks readiness.
func (o *Orchestrator) Produce(sid core.SessionID, kind mediasoup.MediaKind, rtp *mediasoup.RtpParameters) (string, error) {
	if kind != "audio" && kind != "video" {
		return "", ErrBadMediaKind
	}
	s, ok := o.Registry.Get(sid)
	if !ok {
		return "", ErrSessionNotFound
	}
	s.op.Lock()
	defer s.op.Unlock()
	if s.TornDown() {
		return "", ErrSessionNotFound
	}

	t := s.Transport(true)
	if t == nil {
		return "", ErrTransportNotFound
	}
	if _, exists := s.producerOfKind(string(kind)); exists {
		return "", ErrDuplicateKind
	}

	p, err := t.Produce(kind, rtp)
	if err != nil {
		return "", fmt.Errorf("produce %s: %w", kind, err)
	}
	n, err := s.AddProducer(p)
	if err != nil {
		// Unreachable while op is held, but never leak the producer.
		_ = p.Close()
		return "", err
	}
	log.Info().Str("module", "app.media").Str("sid", string(sid)).Str("kind", string(kind)).Str("producer", p.ID()).Msg("producer created")

	if n == 2 {
		o.broadcastFrom(sid, core.ParticipantEvent{
			Type:     core.TypeParticipantConnected,
			SocketID: sid,
		})
	}
	return p.ID(), nil
}

// Consume creates paused consumers on the session's receiver transport
// for every producer of the target session that the given capabilities
// can consume and that this session does not consume already.
func (o *Orchestrator) Consume(sid, targetSid core.SessionID, caps *mediasoup.RtpCapabilities) ([]core.ConsumerDescriptor, error) {
	s, ok := o.Registry.Get(sid)
	if !ok {
		return nil, ErrSessionNotFound
	}
	s.op.Lock()
	defer s.op.Unlock()
	if s.TornDown() {
		return nil, ErrSessionNotFound
	}

	t := s.Transport(false)
	if t == nil {
		return nil, ErrTransportNotFound
	}

	target, ok := o.Registry.Get(targetSid)
	if !ok {
		return nil, ErrNoProducers
	}
	producers := target.Producers()
	if len(producers) == 0 {
		return nil, ErrNoProducers
	}

	descriptors := make([]core.ConsumerDescriptor, 0, len(producers))
	for _, p := range producers {
		if !o.Engine.CanConsume(p.ID(), caps) {
			log.Warn().Str("module", "app.media").Str("sid", string(sid)).Str("producer", p.ID()).Msg("capabilities cannot consume producer")
			continue
		}
		if s.ConsumesProducer(p.ID()) {
			log.Debug().Str("module", "app.media").Str("sid", string(sid)).Str("producer", p.ID()).Msg("consumer already exists")
			continue
		}

		c, err := t.Consume(p.ID(), caps)
		if err != nil {
			// Consumers created earlier in the loop are already
			// registered on the session; they stay usable.
			return descriptors, fmt.Errorf("consume producer %s: %w", p.ID(), err)
		}
		o.bindConsumer(c)
		s.AddConsumer(c)

		// Consumers start paused; the client resumes each one once its
		// track is wired. A paused source producer is reported through
		// ListProducers instead.
		descriptors = append(descriptors, core.ConsumerDescriptor{
			ID:            c.ID(),
			Kind:          c.Kind(),
			ProducerID:    p.ID(),
			RtpParameters: c.RtpParameters(),
			Paused:        c.Paused(),
		})
	}
	log.Info().Str("module", "app.media").Str("sid", string(sid)).Str("target", string(targetSid)).Int("consumers", len(descriptors)).Msg("consumers created")
	return descriptors, nil
}

// bindConsumer mirrors the source producer's lifecycle onto the
// consumer: close follows close, pause follows pause.
func (o *Orchestrator) bindConsumer(c engine.Consumer) {
	c.OnProducerClose(func() {
		if err := c.Close(); err != nil {
			log.Error().Err(err).Str("module", "app.media").Str("consumer", c.ID()).Msg("close consumer on producer close")
		}
	})
	c.OnProducerPause(func() {
		if err := c.Pause(); err != nil {
			log.Error().Err(err).Str("module", "app.media").Str("consumer", c.ID()).Msg("pause consumer")
		}
	})
	c.OnProducerResume(func() {
		if err := c.Resume(); err != nil {
			log.Error().Err(err).Str("module", "app.media").Str("consumer", c.ID()).Msg("resume consumer")
		}
	})
}

// ResumeConsumer resumes a consumer the session created earlier.
func (o *Orchestrator) ResumeConsumer(sid core.SessionID, consumerID string) error {
	s, ok := o.Registry.Get(sid)
	if !ok {
		return ErrSessionNotFound
	}
	s.op.Lock()
	defer s.op.Unlock()
	if s.TornDown() {
		return ErrSessionNotFound
	}

	c, ok := s.ConsumerByID(consumerID)
	if !ok {
		return ErrConsumerNotFound
	}
	if err := c.Resume(); err != nil {
		return fmt.Errorf("resume consumer %s: %w", consumerID, err)
	}
	log.Info().Str("module", "app.media").Str("sid", string(sid)).Str("consumer", consumerID).Msg("consumer resumed")
	return nil
}

// SetProducerPaused pauses or resumes one of the session's producers
// and tells everyone else, so their mirrored consumers can follow.
func (o *Orchestrator) SetProducerPaused(sid core.SessionID, producerID string, paused bool) error {
	s, ok := o.Registry.Get(sid)
	if !ok {
		return ErrSessionNotFound
	}
	s.op.Lock()
	defer s.op.Unlock()
	if s.TornDown() {
		return ErrSessionNotFound
	}

	p, ok := s.ProducerByID(producerID)
	if !ok {
		return ErrProducerNotFound
	}

	eventType := core.TypeProducerPaused
	var err error
	if paused {
		err = p.Pause()
	} else {
		err = p.Resume()
		eventType = core.TypeProducerResumed
	}
	if err != nil {
		return fmt.Errorf("set producer %s paused=%t: %w", producerID, paused, err)
	}

	o.broadcastFrom(sid, core.ProducerStateEvent{
		Type:             eventType,
		ProducerSocketID: sid,
		Kind:             p.Kind(),
	})
	return nil
}

// ListProducers returns the identities of all other sessions that
// currently have producers, annotated with the paused state of their
// video producer so late joiners render muted cameras correctly.
func (o *Orchestrator) ListProducers(sid core.SessionID) []core.ProducerOwner {
	owners := make([]core.ProducerOwner, 0)
	for _, snap := range o.Registry.Others(sid) {
		if len(snap.Session.Producers()) == 0 {
			continue
		}
		owner := core.ProducerOwner{ProducerSocketID: snap.SID}
		if video, ok := snap.Session.producerOfKind("video"); ok {
			paused := video.Paused()
			owner.Paused = &paused
		}
		owners = append(owners, owner)
	}
	return owners
}
