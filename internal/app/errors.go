package app

import "errors"

// Precondition errors. The signaling adapter maps these to explicit
// error replies so clients can tell "not yet ready" from a lost frame.
var (
	ErrSessionNotFound   = errors.New("session not found")
	ErrTransportNotFound = errors.New("transport not found")
	ErrNoProducers       = errors.New("no producers to consume")
	ErrProducerNotFound  = errors.New("producer not found")
	ErrConsumerNotFound  = errors.New("consumer not found")
	ErrDuplicateKind     = errors.New("producer of this kind already exists")
	ErrBadMediaKind      = errors.New("kind must be audio or video")
	ErrRecorderBusy      = errors.New("a recorder is already connected")
)
