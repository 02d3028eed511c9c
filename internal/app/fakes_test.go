package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	mediasoup "github.com/jiyeyuran/mediasoup-go/v2"

	"github.com/dmehra/meetline/internal/core"
	"github.com/dmehra/meetline/internal/engine"
)

// fakeSignal records every frame delivered to a session, decoded.
type fakeSignal struct {
	mu     sync.Mutex
	frames []map[string]any
	full   bool
	closed bool
}

func newFakeSignal() *fakeSignal { return &fakeSignal{} }

func (f *fakeSignal) TrySend(frame core.Frame) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.full {
		return errors.New("backpressure")
	}
	var m map[string]any
	if err := json.Unmarshal(frame, &m); err != nil {
		return err
	}
	f.frames = append(f.frames, m)
	return nil
}

func (f *fakeSignal) Close() {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
}

func (f *fakeSignal) ofType(t string) []map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []map[string]any
	for _, m := range f.frames {
		if m["type"] == t {
			out = append(out, m)
		}
	}
	return out
}

// fakeEngine hands out fake transports and propagates producer
// pause/resume/close to the consumers bound to them, the way the real
// engine does internally.
type fakeEngine struct {
	mu          sync.Mutex
	seq         int
	failCreate  bool
	denyConsume map[string]bool
	producers   map[string]*fakeProducer
	consumers   map[string][]*fakeConsumer // keyed by producer id
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{
		denyConsume: make(map[string]bool),
		producers:   make(map[string]*fakeProducer),
		consumers:   make(map[string][]*fakeConsumer),
	}
}

func (e *fakeEngine) nextID(prefix string) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.seq++
	return fmt.Sprintf("%s%d", prefix, e.seq)
}

func (e *fakeEngine) RouterRtpCapabilities() *mediasoup.RtpCapabilities {
	return &mediasoup.RtpCapabilities{}
}

func (e *fakeEngine) CanConsume(producerID string, caps *mediasoup.RtpCapabilities) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return !e.denyConsume[producerID]
}

func (e *fakeEngine) CreateTransport(kind engine.TransportKind) (engine.Transport, error) {
	if e.failCreate {
		return nil, errors.New("engine out of resources")
	}
	return &fakeTransport{eng: e, id: e.nextID("t")}, nil
}

type fakeTransport struct {
	eng *fakeEngine
	id  string

	mu        sync.Mutex
	connected bool
	closes    int
}

func (t *fakeTransport) ID() string { return t.id }

func (t *fakeTransport) Info() engine.TransportInfo {
	return engine.TransportInfo{ID: t.id}
}

func (t *fakeTransport) Connect(dtls *mediasoup.DtlsParameters) error {
	t.mu.Lock()
	t.connected = true
	t.mu.Unlock()
	return nil
}

func (t *fakeTransport) Produce(kind mediasoup.MediaKind, rtp *mediasoup.RtpParameters) (engine.Producer, error) {
	p := &fakeProducer{eng: t.eng, id: t.eng.nextID("p"), kind: kind}
	t.eng.mu.Lock()
	t.eng.producers[p.id] = p
	t.eng.mu.Unlock()
	return p, nil
}

func (t *fakeTransport) Consume(producerID string, caps *mediasoup.RtpCapabilities) (engine.Consumer, error) {
	t.eng.mu.Lock()
	defer t.eng.mu.Unlock()
	p, ok := t.eng.producers[producerID]
	if !ok {
		return nil, errors.New("producer not found")
	}
	t.eng.seq++
	c := &fakeConsumer{id: fmt.Sprintf("c%d", t.eng.seq), producerID: producerID, kind: p.kind, paused: true}
	t.eng.consumers[producerID] = append(t.eng.consumers[producerID], c)
	return c, nil
}

func (t *fakeTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closes++
	return nil
}

func (t *fakeTransport) closeCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closes
}

type fakeProducer struct {
	eng  *fakeEngine
	id   string
	kind mediasoup.MediaKind

	mu     sync.Mutex
	paused bool
	closes int
}

func (p *fakeProducer) ID() string                { return p.id }
func (p *fakeProducer) Kind() mediasoup.MediaKind { return p.kind }

func (p *fakeProducer) Paused() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.paused
}

func (p *fakeProducer) Pause() error {
	p.mu.Lock()
	p.paused = true
	p.mu.Unlock()
	p.eng.fanout(p.id, func(c *fakeConsumer) { c.fireProducerPause() })
	return nil
}

func (p *fakeProducer) Resume() error {
	p.mu.Lock()
	p.paused = false
	p.mu.Unlock()
	p.eng.fanout(p.id, func(c *fakeConsumer) { c.fireProducerResume() })
	return nil
}

func (p *fakeProducer) Close() error {
	p.mu.Lock()
	already := p.closes > 0
	p.closes++
	p.mu.Unlock()
	if !already {
		p.eng.fanout(p.id, func(c *fakeConsumer) { c.fireProducerClose() })
	}
	return nil
}

func (p *fakeProducer) closeCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closes
}

func (e *fakeEngine) fanout(producerID string, fn func(*fakeConsumer)) {
	e.mu.Lock()
	consumers := append([]*fakeConsumer(nil), e.consumers[producerID]...)
	e.mu.Unlock()
	for _, c := range consumers {
		fn(c)
	}
}

type fakeConsumer struct {
	id         string
	producerID string
	kind       mediasoup.MediaKind

	mu               sync.Mutex
	paused           bool
	closed           bool
	closes           int
	onProducerClose  func()
	onProducerPause  func()
	onProducerResume func()
}

func (c *fakeConsumer) ID() string                              { return c.id }
func (c *fakeConsumer) Kind() mediasoup.MediaKind               { return c.kind }
func (c *fakeConsumer) ProducerID() string                      { return c.producerID }
func (c *fakeConsumer) RtpParameters() *mediasoup.RtpParameters { return &mediasoup.RtpParameters{} }

func (c *fakeConsumer) Paused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paused
}

func (c *fakeConsumer) Pause() error {
	c.mu.Lock()
	c.paused = true
	c.mu.Unlock()
	return nil
}

func (c *fakeConsumer) Resume() error {
	c.mu.Lock()
	c.paused = false
	c.mu.Unlock()
	return nil
}

// Close is idempotent like the real engine's: only the first call
// counts as an effective close.
func (c *fakeConsumer) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		c.closes++
	}
	return nil
}

func (c *fakeConsumer) closeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closes
}

func (c *fakeConsumer) OnProducerClose(fn func())  { c.mu.Lock(); c.onProducerClose = fn; c.mu.Unlock() }
func (c *fakeConsumer) OnProducerPause(fn func())  { c.mu.Lock(); c.onProducerPause = fn; c.mu.Unlock() }
func (c *fakeConsumer) OnProducerResume(fn func()) { c.mu.Lock(); c.onProducerResume = fn; c.mu.Unlock() }

func (c *fakeConsumer) fireProducerClose() {
	c.mu.Lock()
	fn := c.onProducerClose
	c.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (c *fakeConsumer) fireProducerPause() {
	c.mu.Lock()
	fn := c.onProducerPause
	c.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (c *fakeConsumer) fireProducerResume() {
	c.mu.Lock()
	fn := c.onProducerResume
	c.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// newTestOrchestrator wires an orchestrator against the fake engine.
func newTestOrchestrator() (*Orchestrator, *fakeEngine) {
	eng := newFakeEngine()
	reg := NewRegistry()
	return &Orchestrator{
		Registry: reg,
		Engine:   eng,
		Recorder: NewRecorderOrchestrator(reg),
		MeetURL:  "http://localhost:3000/stream?mode=recorder",
	}, eng
}
