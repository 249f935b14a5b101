package sctpcore_test

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/hrissan/sctpmux/enginetest"
	"github.com/hrissan/sctpmux/sctpcore"
	"github.com/hrissan/sctpmux/sctperrors"
)

type countingStats struct {
	sctpcore.NopStats
	created         atomic.Int32
	allocFailed     atomic.Int32
	closed          atomic.Int32
	initIgnored     atomic.Int32
	incomingDropped atomic.Int32
	outgoingDropped atomic.Int32
	unknown         atomic.Int32
	rejected        atomic.Int32

	mu       sync.Mutex
	lostErrs []error
}

func (s *countingStats) SocketCreated(sctpcore.Handle, sctpcore.Kind, uint16) { s.created.Add(1) }
func (s *countingStats) SocketAllocationFailed(sctpcore.Kind, uint16)         { s.allocFailed.Add(1) }
func (s *countingStats) SocketClosed(sctpcore.Handle, sctpcore.Kind)          { s.closed.Add(1) }
func (s *countingStats) EngineInitIgnored(uint16, uint16)                     { s.initIgnored.Add(1) }
func (s *countingStats) IncomingDropped(sctpcore.Handle, int, int)            { s.incomingDropped.Add(1) }
func (s *countingStats) OutgoingDropped(sctpcore.Handle, int)                 { s.outgoingDropped.Add(1) }
func (s *countingStats) UnknownSocket(string, sctpcore.Kind)                  { s.unknown.Add(1) }
func (s *countingStats) SendRejected(sctpcore.Handle, int, int)               { s.rejected.Add(1) }

func (s *countingStats) PacketSendFailed(kind sctpcore.Kind, size int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lostErrs = append(s.lostErrs, err)
}

func (s *countingStats) LostErrs() []error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]error{}, s.lostErrs...)
}

type packetRecorder struct {
	mu      sync.Mutex
	packets [][]byte
	err     error
}

func (r *packetRecorder) SendPacket(packet []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.packets = append(r.packets, append([]byte{}, packet...))
	return nil
}

func (r *packetRecorder) Packets() [][]byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]byte{}, r.packets...)
}

func newTestManager(t *testing.T, firstHandle sctpcore.Handle) (*sctpcore.Manager, *enginetest.Engine, *countingStats) {
	t.Helper()
	st := &countingStats{}
	engine := enginetest.New(firstHandle)
	opts := sctpcore.DefaultOptions(st)
	opts.LocalPort = 9899
	m, err := sctpcore.NewManager(engine, opts)
	require.NoError(t, err)
	return m, engine, st
}

func TestClientScenario(t *testing.T) {
	m, engine, _ := newTestManager(t, 0x7f00)

	client := m.CreateClientSocket(5000)
	require.NotNil(t, client)
	h1 := engine.LastHandle()
	require.Equal(t, sctpcore.Handle(0x7f00), h1)
	s, ok := m.Registry().Lookup(h1)
	require.True(t, ok)
	assert.Same(t, client, s)
	assert.Equal(t, uint16(5000), client.LocalPort())

	require.True(t, client.Connect(6000))
	connects := engine.Calls(enginetest.OpConnect)
	require.Len(t, connects, 1)
	assert.Equal(t, h1, connects[0].Handle)
	assert.Equal(t, uint16(6000), connects[0].Port)
	assert.Equal(t, sctpcore.StateConnecting, client.State())

	sender := &packetRecorder{}
	client.SetDataSender(sender)
	payload := []byte("INIT")
	assert.Equal(t, sctpcore.OutgoingOK, engine.EmitOutgoing(h1, payload))
	assert.Equal(t, [][]byte{payload}, sender.Packets())

	client.Close()
	_, ok = m.Registry().Lookup(h1)
	assert.False(t, ok)
	assert.Equal(t, sctpcore.StateClosed, client.State())

	assert.Equal(t, sctpcore.OutgoingFailed, engine.EmitOutgoing(h1, payload))
	assert.Len(t, sender.Packets(), 1, "late callback must not reach closed socket")
}

func TestAllocationFailure(t *testing.T) {
	m, engine, st := newTestManager(t, 1)
	engine.SetFailAllocations(true)

	assert.Nil(t, m.CreateServerSocket(5000))
	assert.Nil(t, m.CreateClientSocket(5000))
	assert.Equal(t, 0, m.Len())
	assert.Equal(t, int32(2), st.allocFailed.Load())
	assert.Equal(t, int32(0), st.created.Load())

	engine.SetFailAllocations(false)
	assert.NotNil(t, m.CreateServerSocket(5000))
	assert.Equal(t, 1, m.Len())
}

func TestIdempotentInit(t *testing.T) {
	m, engine, st := newTestManager(t, 1)
	m.Init(1234)
	m.Init(4321)

	initialized, port := engine.Initialized()
	assert.True(t, initialized)
	assert.Equal(t, uint16(9899), port)
	assert.Equal(t, uint16(9899), m.Gateway().LocalPort())
	assert.Equal(t, 1, engine.CountCalls(enginetest.OpInit))
	assert.Equal(t, int32(2), st.initIgnored.Load())
	assert.Same(t, m.Dispatcher(), m.Gateway().Callbacks())
}

func TestGatewayNotInitialized(t *testing.T) {
	engine := enginetest.New(1)
	g := sctpcore.NewGateway(engine, nil)
	assert.False(t, g.Initialized())
	assert.Equal(t, sctpcore.NoHandle, g.CreateHandle(5000))
	assert.Equal(t, 0, engine.CountCalls(enginetest.OpCreate))
}

func TestSendAfterClose(t *testing.T) {
	m, engine, st := newTestManager(t, 1)
	s := m.CreateClientSocket(5000)
	require.NotNil(t, s)
	assert.Equal(t, 3, s.Send([]byte("abc"), true, 1, sctpcore.PPIDWebRTCString))

	s.Close()
	callsBefore := len(engine.Calls(""))
	lenBefore := m.Len()

	assert.Equal(t, sctpcore.SendError, s.Send([]byte("abc"), true, 1, sctpcore.PPIDWebRTCString))
	assert.Equal(t, sctpcore.SendError, m.Send(s, []byte("abc"), false, 2, 0))
	assert.False(t, s.Connect(6000))
	assert.False(t, m.Connect(s, 6000))
	assert.False(t, s.ConnInput([]byte{1}))

	assert.Equal(t, callsBefore, len(engine.Calls("")), "no engine calls after close")
	assert.Equal(t, lenBefore, m.Len())
	assert.Equal(t, sctpcore.NoHandle, m.Registry().ResolveHandle(s))
	assert.GreaterOrEqual(t, st.unknown.Load(), int32(3))
}

func TestSendForwardsArguments(t *testing.T) {
	m, engine, _ := newTestManager(t, 10)
	s := m.CreateServerSocket(5000)
	require.NotNil(t, s)
	data := []byte("payload")
	assert.Equal(t, len(data), s.Send(data, false, 3, sctpcore.PPIDWebRTCBinary))

	sends := engine.Calls(enginetest.OpSend)
	require.Len(t, sends, 1)
	assert.Equal(t, enginetest.Call{
		Op:       enginetest.OpSend,
		Handle:   10,
		Data:     data,
		Ordered:  false,
		StreamID: 3,
		PPID:     sctpcore.PPIDWebRTCBinary,
	}, sends[0])
}

func TestEngineRejectionPassedThrough(t *testing.T) {
	m, engine, st := newTestManager(t, 1)
	s := m.CreateClientSocket(5000)
	require.NotNil(t, s)
	engine.SetSendResult(func(h sctpcore.Handle, data []byte) int { return -11 })

	assert.Equal(t, -11, s.Send([]byte("x"), true, 0, 0))
	assert.Equal(t, int32(1), st.rejected.Load())
	assert.Equal(t, 1, engine.CountCalls(enginetest.OpSend), "must not retry")
}

func TestConnectRejected(t *testing.T) {
	m, engine, _ := newTestManager(t, 1)
	engine.SetConnectResult(false)
	s := m.CreateClientSocket(5000)
	require.NotNil(t, s)
	assert.False(t, s.Connect(6000))
	assert.Equal(t, sctpcore.StateUnconnected, s.State())

	engine.SetConnectResult(true)
	assert.True(t, s.Connect(6000))
	assert.Equal(t, sctpcore.StateConnecting, s.State())
}

func TestServerListenAccept(t *testing.T) {
	m, engine, _ := newTestManager(t, 1)
	s := m.CreateServerSocket(5000)
	require.NotNil(t, s)
	require.True(t, s.Listen())
	require.True(t, s.Accept())
	a, ok := engine.Association(engine.LastHandle())
	require.True(t, ok)
	assert.True(t, a.Listening)
	assert.True(t, a.Accepting)
	assert.Equal(t, sctpcore.StateConnecting, s.State())
}

func TestConnInputForwarded(t *testing.T) {
	m, engine, _ := newTestManager(t, 1)
	s := m.CreateServerSocket(5000)
	require.NotNil(t, s)
	require.True(t, s.ConnInput([]byte{0x13, 0x88}))
	inputs := engine.Calls(enginetest.OpConnInput)
	require.Len(t, inputs, 1)
	assert.Equal(t, []byte{0x13, 0x88}, inputs[0].Data)
}

func TestCloseReleasesHandleOnce(t *testing.T) {
	m, engine, st := newTestManager(t, 1)
	s := m.CreateClientSocket(5000)
	require.NotNil(t, s)

	var g errgroup.Group
	for i := 0; i < 8; i++ {
		g.Go(func() error {
			s.Close()
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, 1, engine.CountCalls(enginetest.OpClose))
	assert.Equal(t, int32(1), st.closed.Load())
	select {
	case <-s.Done():
	default:
		t.Fatal("Done must be closed")
	}
}

func TestCloseAll(t *testing.T) {
	m, engine, _ := newTestManager(t, 1)
	for i := 0; i < 5; i++ {
		require.NotNil(t, m.CreateClientSocket(uint16(5000+i)))
	}
	m.CloseAll()
	assert.Equal(t, 0, m.Len())
	assert.Equal(t, 5, engine.CountCalls(enginetest.OpClose))
}

func TestManagersShareEngine(t *testing.T) {
	engine := enginetest.New(1)
	st1 := &countingStats{}
	opts1 := sctpcore.DefaultOptions(st1)
	opts1.LocalPort = 1111
	m1, err := sctpcore.NewManager(engine, opts1)
	require.NoError(t, err)
	opts2 := sctpcore.DefaultOptions(&countingStats{})
	opts2.LocalPort = 2222
	m2, err := sctpcore.NewManager(engine, opts2)
	require.NoError(t, err)

	initialized, port := engine.Initialized()
	assert.True(t, initialized)
	assert.Equal(t, uint16(1111), port)
	assert.Equal(t, uint16(1111), m2.Gateway().LocalPort())
	assert.Equal(t, 1, engine.CountCalls(enginetest.OpInit))
	assert.Equal(t, int32(1), st1.initIgnored.Load())
	assert.Same(t, m1.Gateway(), m2.Gateway())
	assert.Same(t, m1.Dispatcher(), engine.Callbacks())

	s1 := m1.CreateClientSocket(5000)
	require.NotNil(t, s1)
	h1 := engine.LastHandle()
	s2 := m2.CreateClientSocket(5001)
	require.NotNil(t, s2)
	h2 := engine.LastHandle()
	var got1, got2 []string
	s1.SetDataCallback(func(data []byte, _ uint16, _ uint16, _ uint32, _ uint32, _ uint32, _ int) {
		got1 = append(got1, string(data))
	})
	s2.SetDataCallback(func(data []byte, _ uint16, _ uint16, _ uint32, _ uint32, _ uint32, _ int) {
		got2 = append(got2, string(data))
	})
	engine.EmitIncoming(h1, []byte("one"), 0, 0, 0)
	engine.EmitIncoming(h2, []byte("two"), 0, 0, 0)
	assert.Equal(t, []string{"one"}, got1)
	assert.Equal(t, []string{"two"}, got2)

	assert.Equal(t, 1, m1.Len())
	assert.Equal(t, 1, m2.Len())
	m2.CloseAll()
	assert.Equal(t, 1, m1.Len())
	assert.Equal(t, 0, m2.Len())
	assert.NotEqual(t, sctpcore.StateClosed, s1.State())
	assert.Equal(t, sctpcore.StateClosed, s2.State())
	engine.EmitIncoming(h1, []byte("still here"), 0, 0, 0)
	assert.Equal(t, []string{"one", "still here"}, got1)
	m1.CloseAll()
	assert.Equal(t, 0, m1.Len())
}

func TestUniqueHandles(t *testing.T) {
	m, _, _ := newTestManager(t, 1)
	var mu sync.Mutex
	sockets := map[sctpcore.Socket]struct{}{}
	var g errgroup.Group
	for w := 0; w < 4; w++ {
		g.Go(func() error {
			for i := 0; i < 50; i++ {
				var s sctpcore.Socket
				if i%2 == 0 {
					s = m.CreateClientSocket(5000)
				} else {
					s = m.CreateServerSocket(5000)
				}
				mu.Lock()
				sockets[s] = struct{}{}
				mu.Unlock()
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	require.Equal(t, 200, m.Len())

	handles := map[sctpcore.Handle]struct{}{}
	for s := range sockets {
		h := m.Registry().ResolveHandle(s)
		require.True(t, h.Valid())
		handles[h] = struct{}{}
	}
	assert.Len(t, handles, 200)
}

func TestRoutingUnderConcurrentChurn(t *testing.T) {
	m, engine, _ := newTestManager(t, 1)
	a := m.CreateClientSocket(5000)
	b := m.CreateClientSocket(5001)
	require.NotNil(t, a)
	require.NotNil(t, b)
	ha := m.Registry().ResolveHandle(a)
	hb := m.Registry().ResolveHandle(b)

	var gotA, gotB atomic.Int32
	a.SetDataCallback(func(data []byte, streamID uint16, ssn uint16, tsn uint32, ppid uint32, context uint32, flags int) {
		if string(data) != "for-a" {
			t.Errorf("socket A received %q", data)
		}
		gotA.Add(1)
	})
	b.SetDataCallback(func(data []byte, streamID uint16, ssn uint16, tsn uint32, ppid uint32, context uint32, flags int) {
		gotB.Add(1)
	})

	const deliveries = 2000
	var g errgroup.Group
	g.Go(func() error {
		for i := 0; i < 500; i++ {
			s := m.CreateServerSocket(6000)
			if s == nil {
				return errors.New("allocation failed")
			}
			s.Close()
		}
		return nil
	})
	for w := 0; w < 4; w++ {
		g.Go(func() error {
			for i := 0; i < deliveries/4; i++ {
				engine.EmitIncoming(ha, []byte("for-a"), 1, sctpcore.PPIDWebRTCString, 0)
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, int32(deliveries), gotA.Load())
	assert.Equal(t, int32(0), gotB.Load())
	assert.NotEqual(t, ha, hb)
}

func TestIncomingDataPassesFlagsThrough(t *testing.T) {
	m, engine, _ := newTestManager(t, 1)
	s := m.CreateServerSocket(5000)
	require.NotNil(t, s)
	h := engine.LastHandle()

	type delivery struct {
		data     string
		streamID uint16
		ssn      uint16
		tsn      uint32
		ppid     uint32
		context  uint32
		flags    int
	}
	var got []delivery
	s.SetDataCallback(func(data []byte, streamID uint16, ssn uint16, tsn uint32, ppid uint32, context uint32, flags int) {
		got = append(got, delivery{string(data), streamID, ssn, tsn, ppid, context, flags})
	})
	m.Dispatcher().OnIncomingData(h, []byte("hi"), 4, 17, 100500, sctpcore.PPIDWebRTCString, 9, 0x80)
	require.Len(t, got, 1)
	assert.Equal(t, delivery{"hi", 4, 17, 100500, sctpcore.PPIDWebRTCString, 9, 0x80}, got[0])
}

func TestNotificationsDriveState(t *testing.T) {
	m, engine, st := newTestManager(t, 1)
	s := m.CreateClientSocket(5000)
	require.NotNil(t, s)
	h := engine.LastHandle()

	var notifications []sctpcore.Notification
	s.SetNotificationListener(func(n sctpcore.Notification) {
		notifications = append(notifications, n)
	})
	dataCalls := 0
	s.SetDataCallback(func([]byte, uint16, uint16, uint32, uint32, uint32, int) { dataCalls++ })

	require.True(t, s.Connect(6000))
	engine.EmitAssocChange(h, sctpcore.AssocCommUp)
	assert.Equal(t, sctpcore.StateConnected, s.State())
	assert.Equal(t, 0, dataCalls, "notifications are not data")

	engine.EmitAssocChange(h, sctpcore.AssocCommLost)
	require.Len(t, notifications, 2)
	assert.Equal(t, uint16(sctpcore.AssocCommLost), notifications[1].AssocState)
	assert.Equal(t, sctpcore.StateClosed, s.State())
	assert.Equal(t, 0, m.Len())
	assert.Equal(t, 1, engine.CountCalls(enginetest.OpClose))
	assert.Equal(t, int32(1), st.closed.Load())

	engine.EmitIncoming(h, []byte("late"), 0, 0, 0)
	assert.Equal(t, 0, dataCalls)
	assert.Equal(t, uint64(1), m.Dispatcher().DroppedIncoming())
}

func TestOutgoingDataResults(t *testing.T) {
	m, engine, st := newTestManager(t, 1)
	s := m.CreateClientSocket(5000)
	require.NotNil(t, s)
	h := engine.LastHandle()

	assert.Equal(t, sctpcore.OutgoingFailed, engine.EmitOutgoing(h, []byte{1}), "no sender")

	sender := &packetRecorder{err: errors.New("network is down")}
	s.SetDataSender(sender)
	assert.Equal(t, sctpcore.OutgoingFailed, engine.EmitOutgoing(h, []byte{1}))

	sender.err = nil
	assert.Equal(t, sctpcore.OutgoingOK, engine.EmitOutgoing(h, []byte{1}))

	assert.Equal(t, sctpcore.OutgoingFailed, engine.EmitOutgoing(h+100, []byte{1}))
	assert.Equal(t, uint64(1), m.Dispatcher().DroppedOutgoing())

	lost := st.LostErrs()
	require.Len(t, lost, 2)
	assert.ErrorIs(t, lost[0], sctperrors.ErrNoDataSender)
	assert.EqualError(t, lost[1], "network is down")
}

func TestNewManagerValidatesOptions(t *testing.T) {
	opts := sctpcore.DefaultOptions(nil)
	opts.MaxQueuedMessages = 0
	_, err := sctpcore.NewManager(enginetest.New(1), opts)
	assert.Error(t, err)
}
