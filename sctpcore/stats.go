// Copyright (c) 2025, Grigory Buteyko aka Hrissan
// Licensed under the MIT License. See LICENSE for details.

package sctpcore

// Stats is notified about everything interesting that happens in the layer.
// Methods are called from engine goroutines as well as application ones,
// so implementations must be thread-safe and must not call back into Manager.
type Stats interface {
	EngineInitialized(localPort uint16)
	// second and later Init calls, localPort is the ignored argument
	EngineInitIgnored(localPort uint16, activePort uint16)

	SocketCreated(h Handle, kind Kind, localPort uint16)
	SocketAllocationFailed(kind Kind, localPort uint16)
	SocketClosed(h Handle, kind Kind)

	// callbacks for handles not in registry
	IncomingDropped(h Handle, size int, flags int)
	OutgoingDropped(h Handle, size int)

	// op: connect, send, listen, accept, conninput
	UnknownSocket(op string, kind Kind)
	SendRejected(h Handle, size int, result int)
	// engine produced a packet, but socket could not put it on the wire
	PacketSendFailed(kind Kind, size int, err error)
}

type NopStats struct{}

var _ Stats = NopStats{}

func (NopStats) EngineInitialized(uint16)            {}
func (NopStats) EngineInitIgnored(uint16, uint16)    {}
func (NopStats) SocketCreated(Handle, Kind, uint16)  {}
func (NopStats) SocketAllocationFailed(Kind, uint16) {}
func (NopStats) SocketClosed(Handle, Kind)           {}
func (NopStats) IncomingDropped(Handle, int, int)    {}
func (NopStats) OutgoingDropped(Handle, int)         {}
func (NopStats) UnknownSocket(string, Kind)          {}
func (NopStats) SendRejected(Handle, int, int)       {}
func (NopStats) PacketSendFailed(Kind, int, error)   {}
