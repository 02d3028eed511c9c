package app

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	KickMember
	DropFrame
)

// Policy decides what happens to a session whose signal queue is full
// during an event fan-out.
type Policy interface {
	OnBackPressure(slow SessionSnap) BackpressureAction
}

// SimplePolicy disconnects slow receivers: a client that cannot drain
// presence events will not keep its media state consistent either.
type SimplePolicy struct{}

func (SimplePolicy) OnBackPressure(SessionSnap) BackpressureAction {
	return KickMember
}
