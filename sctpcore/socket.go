// Copyright (c) 2025, Grigory Buteyko aka Hrissan
// Licensed under the MIT License. See LICENSE for details.

package sctpcore

import (
	"sync"
	"sync/atomic"

	"github.com/hrissan/sctpmux/sctperrors"
)

type Kind int32

const (
	KindServer Kind = 1
	KindClient Kind = 2
)

func (k Kind) String() string {
	switch k {
	case KindServer:
		return "server"
	case KindClient:
		return "client"
	}
	return "unknown"
}

type State int32

const (
	StateUnconnected State = 0
	StateConnecting  State = 1
	StateConnected   State = 2
	StateClosed      State = 3
)

func (s State) String() string {
	switch s {
	case StateUnconnected:
		return "unconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// Socket is what Registry stores and Dispatcher calls. Hooks are called from
// engine goroutines at any time, including after socket was closed.
// Implementations embed Endpoint, see ServerSocket and ClientSocket.
type Socket interface {
	OnIncomingData(data []byte, streamID uint16, ssn uint16, tsn uint32, ppid uint32, context uint32, flags int)
	OnOutgoingData(data []byte, tos uint8, dontFragment bool) int
	Kind() Kind

	endpoint() *Endpoint
}

// data is valid only during the call.
type DataCallback func(data []byte, streamID uint16, ssn uint16, tsn uint32, ppid uint32, context uint32, flags int)

// n.Body is valid only during the call.
type NotificationListener func(n Notification)

// DataSender puts packets produced by engine on the wire, usually UDP or DTLS.
// packet is valid only during the call.
type DataSender interface {
	SendPacket(packet []byte) error
}

// PacketInput is implemented by sockets, links deliver received packets here.
type PacketInput interface {
	ConnInput(packet []byte) bool
}

// Endpoint contains state common for server and client sockets.
type Endpoint struct {
	manager   *Manager
	self      Socket // the value registered in Registry
	localPort uint16
	state     atomic.Int32

	closeOnce sync.Once
	done      chan struct{}

	mu           sync.Mutex
	dataCallback DataCallback
	listener     NotificationListener
	sender       DataSender
}

var _ PacketInput = &Endpoint{}

func (e *Endpoint) init(m *Manager, self Socket, localPort uint16) {
	e.manager = m
	e.self = self
	e.localPort = localPort
	e.done = make(chan struct{})
}

func (e *Endpoint) endpoint() *Endpoint { return e }

func (e *Endpoint) LocalPort() uint16 { return e.localPort }
func (e *Endpoint) State() State      { return State(e.state.Load()) }

// Closed when socket is closed by application or by engine.
func (e *Endpoint) Done() <-chan struct{} { return e.done }

func (e *Endpoint) SetDataCallback(cb DataCallback) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.dataCallback = cb
}

func (e *Endpoint) SetNotificationListener(l NotificationListener) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listener = l
}

// Must be set before connecting, engine starts sending immediately.
func (e *Endpoint) SetDataSender(sender DataSender) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sender = sender
}

// Returns number of bytes accepted by engine, or negative value on error.
func (e *Endpoint) Send(data []byte, ordered bool, streamID uint16, ppid uint32) int {
	return e.manager.Send(e.self, data, ordered, streamID, ppid)
}

func (e *Endpoint) ConnInput(packet []byte) bool {
	return e.manager.ConnInput(e.self, packet)
}

func (e *Endpoint) Close() {
	e.manager.Close(e.self)
}

func (e *Endpoint) OnIncomingData(data []byte, streamID uint16, ssn uint16, tsn uint32, ppid uint32, context uint32, flags int) {
	if e.State() == StateClosed {
		return // callback raced with close
	}
	if flags&MsgNotification != 0 {
		e.onNotification(data)
		return
	}
	e.mu.Lock()
	cb := e.dataCallback
	e.mu.Unlock()
	if cb != nil {
		cb(data, streamID, ssn, tsn, ppid, context, flags)
	}
}

func (e *Endpoint) OnOutgoingData(data []byte, tos uint8, dontFragment bool) int {
	if err := e.sendPacket(data); err != nil {
		e.manager.opts.Stats.PacketSendFailed(e.self.Kind(), len(data), err)
		return OutgoingFailed
	}
	return OutgoingOK
}

func (e *Endpoint) sendPacket(data []byte) error {
	if e.State() == StateClosed {
		return sctperrors.ErrSocketClosed
	}
	e.mu.Lock()
	sender := e.sender
	e.mu.Unlock()
	if sender == nil {
		return sctperrors.ErrNoDataSender
	}
	return sender.SendPacket(data)
}

func (e *Endpoint) onNotification(data []byte) {
	n, err := ParseNotification(data)
	if err != nil {
		return // engine's business, we cannot do anything useful
	}
	if n.Up() {
		e.state.CompareAndSwap(int32(StateConnecting), int32(StateConnected))
		e.state.CompareAndSwap(int32(StateUnconnected), int32(StateConnected))
	}
	e.mu.Lock()
	l := e.listener
	e.mu.Unlock()
	if l != nil {
		l(n)
	}
	if n.Terminal() {
		e.manager.Close(e.self)
	}
}

// returns false if socket is already closed
func (e *Endpoint) markClosed() bool {
	for {
		st := e.state.Load()
		if State(st) == StateClosed {
			return false
		}
		if e.state.CompareAndSwap(st, int32(StateClosed)) {
			e.closeOnce.Do(func() { close(e.done) })
			return true
		}
	}
}

// Connecting is set before engine call, because engine can report COMM_UP
// before the call returns.
func (e *Endpoint) startConnecting(start func() bool) error {
	if !e.state.CompareAndSwap(int32(StateUnconnected), int32(StateConnecting)) {
		if e.State() == StateClosed {
			return sctperrors.ErrSocketClosed
		}
		return nil // already connecting or connected
	}
	if start() {
		return nil
	}
	e.state.CompareAndSwap(int32(StateConnecting), int32(StateUnconnected))
	return sctperrors.ErrConnectRejected
}

// ServerSocket waits for the peer to start association.
type ServerSocket struct {
	Endpoint
}

var _ Socket = &ServerSocket{}

func (s *ServerSocket) Kind() Kind { return KindServer }

func (s *ServerSocket) Listen() bool {
	return s.manager.Listen(s)
}

// Returns immediately, association is up after COMM_UP notification.
func (s *ServerSocket) Accept() bool {
	err := s.startConnecting(func() bool { return s.manager.Accept(s) })
	return err == nil
}

// ClientSocket starts association with the peer.
type ClientSocket struct {
	Endpoint
}

var _ Socket = &ClientSocket{}

func (s *ClientSocket) Kind() Kind { return KindClient }

// Returns immediately, association is up after COMM_UP notification.
func (s *ClientSocket) Connect(remotePort uint16) bool {
	err := s.startConnecting(func() bool { return s.manager.Connect(s, remotePort) })
	return err == nil
}
