package core

import mediasoup "github.com/jiyeyuran/mediasoup-go/v2"

// Server-initiated message types.
const (
	TypeParticipantConnected    = "participantConnected"
	TypeParticipantDisconnected = "participantDisconnected"
	TypeProducerPaused          = "producerPaused"
	TypeProducerResumed         = "producerResumed"
	TypeProducers               = "producers"
	TypeRecorderStatus          = "recorderStatus"
	TypeStartRecording          = "startRecording"
	TypeStopRecording           = "stopRecording"
	TypeGetRecorderStatus       = "getRecorderStatus"
)

// ConsumerDescriptor is what a consuming client needs to attach one
// remote producer. Consumers are created paused; the client resumes
// each one once its track is wired.
type ConsumerDescriptor struct {
	ID            string                   `json:"id"`
	Kind          mediasoup.MediaKind      `json:"kind"`
	ProducerID    string                   `json:"producerId"`
	RtpParameters *mediasoup.RtpParameters `json:"rtpParameters"`
	Paused        bool                     `json:"paused"`
}

// ProducerOwner identifies a session that has media to consume.
// Paused carries the video producer state so late joiners don't render
// a blank tile for an already muted camera.
type ProducerOwner struct {
	ProducerSocketID SessionID `json:"producerSocketId"`
	Paused           *bool     `json:"paused,omitempty"`
}

type ParticipantEvent struct {
	Type     string    `json:"type"`
	SocketID SessionID `json:"socketId"`
}

type ProducerStateEvent struct {
	Type             string              `json:"type"`
	ProducerSocketID SessionID           `json:"producerSocketId"`
	Kind             mediasoup.MediaKind `json:"kind"`
}

type RecorderStatusEvent struct {
	Type        string `json:"type"`
	IsRecording bool   `json:"isRecording"`
}

type StartRecordingEvent struct {
	Type    string `json:"type"`
	MeetURL string `json:"meetUrl"`
}

type StopRecordingEvent struct {
	Type string `json:"type"`
}
