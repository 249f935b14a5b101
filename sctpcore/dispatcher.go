// Copyright (c) 2025, Grigory Buteyko aka Hrissan
// Licensed under the MIT License. See LICENSE for details.

package sctpcore

import (
	"sync/atomic"
)

// Dispatcher receives all engine callbacks and forwards each one to the socket
// registered for its handle. It does not look inside data, notifications are
// forwarded with their flags like everything else.
type Dispatcher struct {
	registry *Registry
	stats    Stats

	droppedIncoming atomic.Uint64
	droppedOutgoing atomic.Uint64
}

var _ Callbacks = &Dispatcher{}

func NewDispatcher(registry *Registry, stats Stats) *Dispatcher {
	if stats == nil {
		stats = NopStats{}
	}
	return &Dispatcher{registry: registry, stats: stats}
}

// No error is reported to engine for unknown handle, socket was probably closed
// while engine was preparing this data.
func (d *Dispatcher) OnIncomingData(h Handle, data []byte, streamID uint16, ssn uint16, tsn uint32, ppid uint32, context uint32, flags int) {
	s, ok := d.registry.Lookup(h)
	if !ok {
		d.droppedIncoming.Add(1)
		d.stats.IncomingDropped(h, len(data), flags)
		return
	}
	s.OnIncomingData(data, streamID, ssn, tsn, ppid, context, flags)
}

// Engine needs definite result for flow control, so unknown handle is a failure.
func (d *Dispatcher) OnOutgoingData(h Handle, data []byte, tos uint8, dontFragment bool) int {
	s, ok := d.registry.Lookup(h)
	if !ok {
		d.droppedOutgoing.Add(1)
		d.stats.OutgoingDropped(h, len(data))
		return OutgoingFailed
	}
	return s.OnOutgoingData(data, tos, dontFragment)
}

// Counters do not distinguish closed sockets from handles which never existed.
func (d *Dispatcher) DroppedIncoming() uint64 { return d.droppedIncoming.Load() }
func (d *Dispatcher) DroppedOutgoing() uint64 { return d.droppedOutgoing.Load() }
