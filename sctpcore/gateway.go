// Copyright (c) 2025, Grigory Buteyko aka Hrissan
// Licensed under the MIT License. See LICENSE for details.

package sctpcore

import (
	"sync"
)

// Gateway is the single place where we call into the engine.
// It owns process state: engine can be initialized only once, and it has
// only one slot for callbacks.
type Gateway struct {
	engine Engine
	stats  Stats

	mu          sync.Mutex
	initialized bool
	localPort   uint16
	callbacks   Callbacks
}

func NewGateway(engine Engine, stats Stats) *Gateway {
	if stats == nil {
		stats = NopStats{}
	}
	return &Gateway{engine: engine, stats: stats}
}

// Starts engine and registers cb as its callback target. Second and later calls
// are ignored together with their arguments, so the port of the first call wins.
func (g *Gateway) Init(localPort uint16, cb Callbacks) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.initialized {
		g.stats.EngineInitIgnored(localPort, g.localPort)
		return
	}
	g.engine.Init(localPort, cb)
	g.initialized = true
	g.localPort = localPort
	g.callbacks = cb
	g.stats.EngineInitialized(localPort)
}

func (g *Gateway) Initialized() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.initialized
}

// Port of the first Init call, 0 if not initialized.
func (g *Gateway) LocalPort() uint16 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.localPort
}

func (g *Gateway) Callbacks() Callbacks {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.callbacks
}

// Returns NoHandle if engine failed, or was never initialized.
func (g *Gateway) CreateHandle(localPort uint16) Handle {
	if !g.Initialized() {
		return NoHandle
	}
	return g.engine.CreateAssociation(localPort)
}

func (g *Gateway) Connect(h Handle, remotePort uint16) bool {
	return g.engine.Connect(h, remotePort)
}

func (g *Gateway) Listen(h Handle) bool {
	return g.engine.Listen(h)
}

func (g *Gateway) Accept(h Handle) bool {
	return g.engine.Accept(h)
}

func (g *Gateway) Send(h Handle, data []byte, ordered bool, streamID uint16, ppid uint32) int {
	return g.engine.Send(h, data, ordered, streamID, ppid)
}

func (g *Gateway) ConnInput(h Handle, packet []byte) {
	g.engine.ConnInput(h, packet)
}

func (g *Gateway) CloseHandle(h Handle) {
	g.engine.Close(h)
}
