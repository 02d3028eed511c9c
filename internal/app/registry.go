package app

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dmehra/meetline/internal/core"
	"github.com/dmehra/meetline/internal/domain"
	"github.com/dmehra/meetline/internal/engine"
)

// Session is one connected client's registry record: its role, signal
// connection and every media resource it owns. Data access goes through
// the accessors below, which hold mu only for the duration of the
// read/write, never across an engine call. op serializes whole
// operations (see Orchestrator).
type Session struct {
	id     core.SessionID
	role   domain.Role
	signal core.SignalConnection

	// op is held for the full span of every mutating operation,
	// including the engine call in the middle. It is what keeps two
	// concurrent produce requests from both reading the producer list
	// before either appends.
	op sync.Mutex

	mu        sync.RWMutex
	send      engine.Transport
	recv      engine.Transport
	producers []engine.Producer
	consumers []engine.Consumer
	torndown  bool
}

func (s *Session) ID() core.SessionID            { return s.id }
func (s *Session) Role() domain.Role             { return s.role }
func (s *Session) Signal() core.SignalConnection { return s.signal }

// TornDown reports whether the disconnect cascade already ran. Every
// operation re-checks this after acquiring op, since a cascade may have
// completed while the operation waited on the lock.
func (s *Session) TornDown() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.torndown
}

func (s *Session) Transport(sender bool) engine.Transport {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if sender {
		return s.send
	}
	return s.recv
}

func (s *Session) hasSender() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.send != nil
}

// Producers returns a snapshot. The list is append-only, so a snapshot
// stays valid for capability checks against another session.
func (s *Session) Producers() []engine.Producer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]engine.Producer, len(s.producers))
	copy(out, s.producers)
	return out
}

func (s *Session) ProducerByID(id string) (engine.Producer, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.producers {
		if p.ID() == id {
			return p, true
		}
	}
	return nil, false
}

func (s *Session) producerOfKind(kind string) (engine.Producer, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.producers {
		if string(p.Kind()) == kind {
			return p, true
		}
	}
	return nil, false
}

// AddProducer appends and returns the new list length. Rejects a second
// producer of the same kind.
func (s *Session) AddProducer(p engine.Producer) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.producers {
		if existing.Kind() == p.Kind() {
			return len(s.producers), ErrDuplicateKind
		}
	}
	s.producers = append(s.producers, p)
	return len(s.producers), nil
}

func (s *Session) AddConsumer(c engine.Consumer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.consumers = append(s.consumers, c)
}

func (s *Session) ConsumerByID(id string) (engine.Consumer, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.consumers {
		if c.ID() == id {
			return c, true
		}
	}
	return nil, false
}

// ConsumesProducer reports whether this session already has a consumer
// bound to the given producer identity.
func (s *Session) ConsumesProducer(producerID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.consumers {
		if c.ProducerID() == producerID {
			return true
		}
	}
	return false
}

// Registry is the process-wide session table. It owns all session
// state; every other component operates through it.
type Registry struct {
	mu       sync.RWMutex
	sessions map[core.SessionID]*Session
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[core.SessionID]*Session)}
}

func (r *Registry) Create(id core.SessionID, role domain.Role, sig core.SignalConnection) *Session {
	s := &Session{id: id, role: role, signal: sig}
	r.mu.Lock()
	r.sessions[id] = s
	r.mu.Unlock()
	log.Info().Str("module", "app.registry").Str("sid", string(id)).Str("role", string(role)).Msg("session created")
	return s
}

func (r *Registry) Get(id core.SessionID) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Remove is idempotent: the cascade can be reached from several failure
// paths and a second removal is a no-op.
func (r *Registry) Remove(id core.SessionID) {
	r.mu.Lock()
	_, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	if ok {
		log.Info().Str("module", "app.registry").Str("sid", string(id)).Msg("session removed")
	}
}

// ParticipantCount is the number of participant sessions that currently
// hold a sender transport. Always recomputed, never cached.
func (r *Registry) ParticipantCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.participantCountLocked()
}

func (r *Registry) participantCountLocked() int {
	n := 0
	for _, s := range r.sessions {
		if s.role == domain.RoleParticipant && s.hasSender() {
			n++
		}
	}
	return n
}

// AttachTransport installs a transport in the session's sender or
// receiver slot and returns the replaced transport, if any, so the
// caller can close it. becameFirst reports a 0→1 participant-count
// transition; it is computed under the registry lock so two concurrent
// first senders cannot both observe it.
func (r *Registry) AttachTransport(s *Session, sender bool, t engine.Transport) (old engine.Transport, becameFirst bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	before := r.participantCountLocked()
	s.mu.Lock()
	if sender {
		old, s.send = s.send, t
	} else {
		old, s.recv = s.recv, t
	}
	s.mu.Unlock()
	after := r.participantCountLocked()
	return old, before == 0 && after == 1
}

// strippedSession holds everything the disconnect cascade must close,
// detached atomically from the session.
type strippedSession struct {
	consumers  []engine.Consumer
	producers  []engine.Producer
	recv       engine.Transport
	send       engine.Transport
	hadSender  bool
	becameLast bool
}

// Strip atomically empties the session and marks it torn down. The
// second call on the same session returns ok=false, which makes the
// cascade run exactly once per connection. becameLast reports the
// participant-count 1→0 transition.
func (r *Registry) Strip(s *Session) (strippedSession, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	before := r.participantCountLocked()

	s.mu.Lock()
	if s.torndown {
		s.mu.Unlock()
		return strippedSession{}, false
	}
	out := strippedSession{
		consumers: s.consumers,
		producers: s.producers,
		recv:      s.recv,
		send:      s.send,
		hadSender: s.send != nil,
	}
	s.consumers, s.producers, s.recv, s.send = nil, nil, nil, nil
	s.torndown = true
	s.mu.Unlock()

	out.becameLast = before > 0 && r.participantCountLocked() == 0
	return out, true
}

// SessionSnap pairs a session id with its record for fan-out.
type SessionSnap struct {
	SID     core.SessionID
	Session *Session
}

// Others returns every session except the given one.
func (r *Registry) Others(except core.SessionID) []SessionSnap {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]SessionSnap, 0, len(r.sessions))
	for sid, s := range r.sessions {
		if sid == except {
			continue
		}
		out = append(out, SessionSnap{SID: sid, Session: s})
	}
	return out
}

// PublishResult reports delivery stats/backpressure to the orchestrator.
type PublishResult struct {
	SentTo  int
	Dropped []SessionSnap
}

// Broadcast fans a frame out to every session except the origin.
func (r *Registry) Broadcast(from core.SessionID, data core.Frame) PublishResult {
	res := PublishResult{}
	for _, snap := range r.Others(from) {
		if err := snap.Session.Signal().TrySend(data); err != nil {
			res.Dropped = append(res.Dropped, snap)
			continue
		}
		res.SentTo++
	}
	log.Debug().Str("module", "app.registry").Str("from", string(from)).Int("sent_to", res.SentTo).Int("dropped", len(res.Dropped)).Msg("broadcast result")
	return res
}
