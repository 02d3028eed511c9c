package app

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dmehra/meetline/internal/core"
	"github.com/dmehra/meetline/internal/domain"
)

func TestRegistryRemoveIdempotent(t *testing.T) {
	reg := NewRegistry()
	reg.Create("a", domain.RoleParticipant, newFakeSignal())

	reg.Remove("a")
	reg.Remove("a")

	_, ok := reg.Get("a")
	require.False(t, ok)
}

func TestParticipantCountRequiresSenderAndRole(t *testing.T) {
	reg := NewRegistry()
	eng := newFakeEngine()

	p := reg.Create("p", domain.RoleParticipant, newFakeSignal())
	rec := reg.Create("rec", domain.RoleRecorder, newFakeSignal())
	reg.Create("idle", domain.RoleParticipant, newFakeSignal())

	require.Equal(t, 0, reg.ParticipantCount())

	tp, err := eng.CreateTransport(0)
	require.NoError(t, err)
	old, becameFirst := reg.AttachTransport(p, true, tp)
	require.Nil(t, old)
	require.True(t, becameFirst)
	require.Equal(t, 1, reg.ParticipantCount())

	// A recorder with a sender transport never counts.
	tr, err := eng.CreateTransport(0)
	require.NoError(t, err)
	_, becameFirst = reg.AttachTransport(rec, true, tr)
	require.False(t, becameFirst)
	require.Equal(t, 1, reg.ParticipantCount())

	// A receiver transport doesn't count either.
	idle, _ := reg.Get("idle")
	tRecv, err := eng.CreateTransport(0)
	require.NoError(t, err)
	_, becameFirst = reg.AttachTransport(idle, false, tRecv)
	require.False(t, becameFirst)
	require.Equal(t, 1, reg.ParticipantCount())
}

func TestAttachTransportReturnsReplaced(t *testing.T) {
	reg := NewRegistry()
	eng := newFakeEngine()
	s := reg.Create("a", domain.RoleParticipant, newFakeSignal())

	t1, _ := eng.CreateTransport(1)
	t2, _ := eng.CreateTransport(1)

	old, becameFirst := reg.AttachTransport(s, true, t1)
	require.Nil(t, old)
	require.True(t, becameFirst)

	old, becameFirst = reg.AttachTransport(s, true, t2)
	require.Same(t, t1, old)
	require.False(t, becameFirst)
	require.Same(t, t2, s.Transport(true))
}

func TestStripRunsOnce(t *testing.T) {
	reg := NewRegistry()
	eng := newFakeEngine()
	s := reg.Create("a", domain.RoleParticipant, newFakeSignal())

	tp, _ := eng.CreateTransport(1)
	reg.AttachTransport(s, true, tp)

	stripped, ok := reg.Strip(s)
	require.True(t, ok)
	require.True(t, stripped.hadSender)
	require.True(t, stripped.becameLast)
	require.True(t, s.TornDown())

	_, ok = reg.Strip(s)
	require.False(t, ok)
}

func TestBroadcastSkipsOriginAndReportsDropped(t *testing.T) {
	reg := NewRegistry()
	origin := newFakeSignal()
	healthy := newFakeSignal()
	slow := newFakeSignal()
	slow.full = true

	reg.Create("origin", domain.RoleParticipant, origin)
	reg.Create("healthy", domain.RoleParticipant, healthy)
	reg.Create("slow", domain.RoleParticipant, slow)

	res := reg.Broadcast("origin", core.Frame(`{"type":"hello"}`))
	require.Equal(t, 1, res.SentTo)
	require.Len(t, res.Dropped, 1)
	require.Equal(t, core.SessionID("slow"), res.Dropped[0].SID)

	require.Empty(t, origin.ofType("hello"))
	require.Len(t, healthy.ofType("hello"), 1)
}

func TestAddProducerRejectsDuplicateKind(t *testing.T) {
	reg := NewRegistry()
	eng := newFakeEngine()
	s := reg.Create("a", domain.RoleParticipant, newFakeSignal())

	tp, _ := eng.CreateTransport(1)
	p1, err := tp.Produce("audio", nil)
	require.NoError(t, err)
	n, err := s.AddProducer(p1)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	p2, err := tp.Produce("audio", nil)
	require.NoError(t, err)
	_, err = s.AddProducer(p2)
	require.ErrorIs(t, err, ErrDuplicateKind)

	p3, err := tp.Produce("video", nil)
	require.NoError(t, err)
	n, err = s.AddProducer(p3)
	require.NoError(t, err)
	require.Equal(t, 2, n)
}
