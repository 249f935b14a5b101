// Copyright (c) 2025, Grigory Buteyko aka Hrissan
// Licensed under the MIT License. See LICENSE for details.

package sctpcore

import (
	"sync"
)

// Manager creates sockets, routes application calls to the engine and closes sockets.
// Sockets are found by handle in Registry, so after Close nothing reaches them.
// Managers created over the same engine share Gateway, Registry and Dispatcher,
// because engine is initialized once and has a single callback slot.
type Manager struct {
	opts *Options
	*engineState
}

type engineState struct {
	gateway    *Gateway
	registry   *Registry
	dispatcher *Dispatcher
}

// Entries are never removed, engines live as long as the process.
var (
	enginesMu sync.Mutex
	engines   = map[Engine]*engineState{}
)

// engine must be comparable, all our engines are pointers.
func stateForEngine(engine Engine, stats Stats) *engineState {
	enginesMu.Lock()
	defer enginesMu.Unlock()
	if st, ok := engines[engine]; ok {
		return st
	}
	registry := NewRegistry()
	st := &engineState{
		gateway:    NewGateway(engine, stats),
		registry:   registry,
		dispatcher: NewDispatcher(registry, stats),
	}
	engines[engine] = st
	return st
}

// Initializes engine with opts.LocalPort and registers Dispatcher as its callback
// target. If engine was already initialized by another Manager, the port is ignored.
func NewManager(engine Engine, opts *Options) (*Manager, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	m := &Manager{
		opts:        opts,
		engineState: stateForEngine(engine, opts.Stats),
	}
	m.Init(opts.LocalPort)
	return m, nil
}

func (m *Manager) Options() *Options       { return m.opts }
func (m *Manager) Gateway() *Gateway       { return m.gateway }
func (m *Manager) Registry() *Registry     { return m.registry }
func (m *Manager) Dispatcher() *Dispatcher { return m.dispatcher }

func (m *Manager) owns(s Socket) bool { return s.endpoint().manager == m }

// Number of live sockets created by this Manager.
func (m *Manager) Len() int {
	n := 0
	m.registry.Range(func(h Handle, s Socket) bool {
		if m.owns(s) {
			n++
		}
		return true
	})
	return n
}

// Does nothing if engine is already initialized, whatever localPort is.
func (m *Manager) Init(localPort uint16) {
	m.gateway.Init(localPort, m.dispatcher)
}

// Returns nil if engine could not allocate association.
func (m *Manager) CreateServerSocket(localPort uint16) *ServerSocket {
	s := &ServerSocket{}
	s.init(m, s, localPort)
	if !m.register(s, localPort) {
		return nil
	}
	return s
}

// Returns nil if engine could not allocate association.
func (m *Manager) CreateClientSocket(localPort uint16) *ClientSocket {
	s := &ClientSocket{}
	s.init(m, s, localPort)
	if !m.register(s, localPort) {
		return nil
	}
	return s
}

// Engine does not use new handle before we return from here, because there
// is no association yet, so inserting after allocation is safe.
func (m *Manager) register(s Socket, localPort uint16) bool {
	h := m.gateway.CreateHandle(localPort)
	if !h.Valid() {
		m.opts.Stats.SocketAllocationFailed(s.Kind(), localPort)
		return false
	}
	m.registry.Insert(h, s)
	m.opts.Stats.SocketCreated(h, s.Kind(), localPort)
	return true
}

func (m *Manager) resolve(op string, s Socket) Handle {
	h := m.registry.ResolveHandle(s)
	if !h.Valid() {
		m.opts.Stats.UnknownSocket(op, s.Kind())
	}
	return h
}

// Returns false if socket is closed, or engine rejected request.
// True does not mean connection is established.
func (m *Manager) Connect(s Socket, remotePort uint16) bool {
	h := m.resolve("connect", s)
	if !h.Valid() {
		return false
	}
	return m.gateway.Connect(h, remotePort)
}

func (m *Manager) Listen(s Socket) bool {
	h := m.resolve("listen", s)
	if !h.Valid() {
		return false
	}
	return m.gateway.Listen(h)
}

func (m *Manager) Accept(s Socket) bool {
	h := m.resolve("accept", s)
	if !h.Valid() {
		return false
	}
	return m.gateway.Accept(h)
}

// Returns number of bytes accepted, SendError for closed socket, or
// engine's negative result. We never retry.
func (m *Manager) Send(s Socket, data []byte, ordered bool, streamID uint16, ppid uint32) int {
	h := m.resolve("send", s)
	if !h.Valid() {
		return SendError
	}
	n := m.gateway.Send(h, data, ordered, streamID, ppid)
	if n < 0 {
		m.opts.Stats.SendRejected(h, len(data), n)
	}
	return n
}

func (m *Manager) ConnInput(s Socket, packet []byte) bool {
	h := m.resolve("conninput", s)
	if !h.Valid() {
		return false
	}
	m.gateway.ConnInput(h, packet)
	return true
}

// Called by application, or by socket when engine reports association is gone.
// Callback already in flight may still reach socket after we return, but none
// started later will. Safe to call many times and concurrently.
func (m *Manager) Close(s Socket) {
	s.endpoint().markClosed()
	h := m.registry.ResolveHandle(s)
	if !h.Valid() || !m.registry.Remove(h) {
		return
	}
	m.opts.Stats.SocketClosed(h, s.Kind())
	// engine can reuse handle after this call
	m.gateway.CloseHandle(h)
}

// Closes sockets created by this Manager, other managers of the same engine are not affected.
func (m *Manager) CloseAll() {
	m.registry.Range(func(h Handle, s Socket) bool {
		if m.owns(s) {
			m.Close(s)
		}
		return true
	})
}
