// Package engine is the boundary to the media-routing engine (SFU).
// The signaling layer never touches RTP, ICE or DTLS mechanics; it only
// asks the engine to allocate transports, producers and consumers and
// mirrors their lifecycle.
package engine

import mediasoup "github.com/jiyeyuran/mediasoup-go/v2"

// TransportInfo is the connection parameter set handed back to the
// client after transport creation.
type TransportInfo struct {
	ID             string                    `json:"id"`
	IceParameters  *mediasoup.IceParameters  `json:"iceParameters"`
	IceCandidates  []*mediasoup.IceCandidate `json:"iceCandidates"`
	DtlsParameters *mediasoup.DtlsParameters `json:"dtlsParameters"`
}

type Engine interface {
	// RouterRtpCapabilities returns the engine's negotiated capability set.
	RouterRtpCapabilities() *mediasoup.RtpCapabilities
	CreateTransport(kind TransportKind) (Transport, error)
	// CanConsume reports whether the given capabilities suffice to
	// consume the producer.
	CanConsume(producerID string, caps *mediasoup.RtpCapabilities) bool
}

// TransportKind tags a transport's direction.
type TransportKind int

const (
	RecvTransport TransportKind = iota
	SendTransport
)

func (k TransportKind) String() string {
	if k == SendTransport {
		return "send"
	}
	return "recv"
}

type Transport interface {
	ID() string
	Info() TransportInfo
	Connect(dtls *mediasoup.DtlsParameters) error
	Produce(kind mediasoup.MediaKind, rtp *mediasoup.RtpParameters) (Producer, error)
	// Consume creates a paused consumer for the given producer.
	Consume(producerID string, caps *mediasoup.RtpCapabilities) (Consumer, error)
	// Close is idempotent and closes every producer/consumer on the transport.
	Close() error
}

type Producer interface {
	ID() string
	Kind() mediasoup.MediaKind
	Paused() bool
	Pause() error
	Resume() error
	Close() error
}

type Consumer interface {
	ID() string
	Kind() mediasoup.MediaKind
	ProducerID() string
	RtpParameters() *mediasoup.RtpParameters
	Paused() bool
	Pause() error
	Resume() error
	Close() error

	// Lifecycle propagation from the consumed producer. Handlers fire on
	// engine goroutines; they must not block.
	OnProducerClose(func())
	OnProducerPause(func())
	OnProducerResume(func())
}
