package engine

import (
	"context"
	"fmt"

	mediasoup "github.com/jiyeyuran/mediasoup-go/v2"
	"github.com/rs/zerolog/log"
)

// routerCodecs is the negotiated codec set: Opus audio and VP8 video,
// one of each, matching what every conferencing client produces.
var routerCodecs = []*mediasoup.RtpCodecCapability{
	{
		Kind:      mediasoup.MediaKind("audio"),
		MimeType:  "audio/opus",
		ClockRate: 48000,
		Channels:  2,
	},
	{
		Kind:      mediasoup.MediaKind("video"),
		MimeType:  "video/VP8",
		ClockRate: 90000,
	},
}

// MediasoupEngine adapts a mediasoup worker/router pair to the Engine
// boundary. One worker, one router, shared by all sessions.
type MediasoupEngine struct {
	worker   *mediasoup.Worker
	router   *mediasoup.Router
	listenIP string
}

type MediasoupOptions struct {
	// WorkerBin is the path to the mediasoup-worker binary.
	WorkerBin string
	// ListenIP is the local address the worker binds media transports to.
	ListenIP string
}

func NewMediasoupEngine(opts MediasoupOptions) (*MediasoupEngine, error) {
	worker, err := mediasoup.NewWorker(opts.WorkerBin, func(s *mediasoup.WorkerSettings) {
		s.LogLevel = mediasoup.WorkerLogLevelWarn
	})
	if err != nil {
		return nil, fmt.Errorf("create mediasoup worker: %w", err)
	}
	log.Info().Str("module", "engine.mediasoup").Msg("worker created")

	// Worker death is unrecoverable: all native transports are gone and
	// every registry entry references dead resources. Exit and restart.
	worker.OnClose(func(ctx context.Context) {
		log.Fatal().Str("module", "engine.mediasoup").Msg("mediasoup worker died")
	})

	router, err := worker.CreateRouter(&mediasoup.RouterOptions{MediaCodecs: routerCodecs})
	if err != nil {
		worker.Close()
		return nil, fmt.Errorf("create mediasoup router: %w", err)
	}
	log.Info().Str("module", "engine.mediasoup").Msg("router created")

	return &MediasoupEngine{worker: worker, router: router, listenIP: opts.ListenIP}, nil
}

func (e *MediasoupEngine) RouterRtpCapabilities() *mediasoup.RtpCapabilities {
	return e.router.RtpCapabilities()
}

func (e *MediasoupEngine) CanConsume(producerID string, caps *mediasoup.RtpCapabilities) bool {
	return e.router.CanConsume(producerID, caps)
}

func (e *MediasoupEngine) CreateTransport(kind TransportKind) (Transport, error) {
	t, err := e.router.CreateWebRtcTransport(&mediasoup.WebRtcTransportOptions{
		ListenInfos: []mediasoup.TransportListenInfo{
			{Protocol: "udp", Ip: e.listenIP},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create %s transport: %w", kind, err)
	}
	log.Info().Str("module", "engine.mediasoup").Str("transport", t.Id()).Str("kind", kind.String()).Msg("transport created")
	return &msTransport{t: t}, nil
}

func (e *MediasoupEngine) Close() {
	e.worker.Close()
}

type msTransport struct {
	t *mediasoup.Transport
}

func (t *msTransport) ID() string { return t.t.Id() }

func (t *msTransport) Info() TransportInfo {
	data := t.t.Data()
	candidates := make([]*mediasoup.IceCandidate, len(data.IceCandidates))
	for i := range data.IceCandidates {
		candidates[i] = &data.IceCandidates[i]
	}
	return TransportInfo{
		ID:             t.t.Id(),
		IceParameters:  &data.IceParameters,
		IceCandidates:  candidates,
		DtlsParameters: &data.DtlsParameters,
	}
}

func (t *msTransport) Connect(dtls *mediasoup.DtlsParameters) error {
	return t.t.Connect(&mediasoup.TransportConnectOptions{DtlsParameters: dtls})
}

func (t *msTransport) Produce(kind mediasoup.MediaKind, rtp *mediasoup.RtpParameters) (Producer, error) {
	p, err := t.t.Produce(&mediasoup.ProducerOptions{Kind: kind, RtpParameters: rtp})
	if err != nil {
		return nil, err
	}
	return &msProducer{p: p}, nil
}

func (t *msTransport) Consume(producerID string, caps *mediasoup.RtpCapabilities) (Consumer, error) {
	c, err := t.t.Consume(&mediasoup.ConsumerOptions{
		ProducerId:      producerID,
		RtpCapabilities: caps,
		Paused:          true,
	})
	if err != nil {
		return nil, err
	}
	return &msConsumer{c: c}, nil
}

func (t *msTransport) Close() error { return t.t.Close() }

type msProducer struct {
	p *mediasoup.Producer
}

func (p *msProducer) ID() string                { return p.p.Id() }
func (p *msProducer) Kind() mediasoup.MediaKind { return p.p.Kind() }
func (p *msProducer) Paused() bool              { return p.p.Paused() }
func (p *msProducer) Pause() error              { return p.p.Pause() }
func (p *msProducer) Resume() error             { return p.p.Resume() }
func (p *msProducer) Close() error              { return p.p.Close() }

type msConsumer struct {
	c *mediasoup.Consumer
}

func (c *msConsumer) ID() string                              { return c.c.Id() }
func (c *msConsumer) Kind() mediasoup.MediaKind               { return c.c.Kind() }
func (c *msConsumer) ProducerID() string                      { return c.c.ProducerId() }
func (c *msConsumer) RtpParameters() *mediasoup.RtpParameters { return c.c.RtpParameters() }
func (c *msConsumer) Paused() bool                            { return c.c.Paused() }
func (c *msConsumer) Pause() error                            { return c.c.Pause() }
func (c *msConsumer) Resume() error                           { return c.c.Resume() }
func (c *msConsumer) Close() error                            { return c.c.Close() }

func (c *msConsumer) OnProducerClose(fn func()) {
	c.c.OnProducerClose(func(ctx context.Context) { fn() })
}

func (c *msConsumer) OnProducerPause(fn func()) {
	c.c.OnProducerPause(func(ctx context.Context) { fn() })
}

func (c *msConsumer) OnProducerResume(fn func()) {
	c.c.OnProducerResume(func(ctx context.Context) { fn() })
}
