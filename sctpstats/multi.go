// Copyright (c) 2025, Grigory Buteyko aka Hrissan
// Licensed under the MIT License. See LICENSE for details.

package sctpstats

import "github.com/hrissan/sctpmux/sctpcore"

// Multi forwards every event to all its members in order.
type Multi []sctpcore.Stats

var _ sctpcore.Stats = Multi{}

func (m Multi) EngineInitialized(localPort uint16) {
	for _, s := range m {
		s.EngineInitialized(localPort)
	}
}

func (m Multi) EngineInitIgnored(localPort uint16, activePort uint16) {
	for _, s := range m {
		s.EngineInitIgnored(localPort, activePort)
	}
}

func (m Multi) SocketCreated(h sctpcore.Handle, kind sctpcore.Kind, localPort uint16) {
	for _, s := range m {
		s.SocketCreated(h, kind, localPort)
	}
}

func (m Multi) SocketAllocationFailed(kind sctpcore.Kind, localPort uint16) {
	for _, s := range m {
		s.SocketAllocationFailed(kind, localPort)
	}
}

func (m Multi) SocketClosed(h sctpcore.Handle, kind sctpcore.Kind) {
	for _, s := range m {
		s.SocketClosed(h, kind)
	}
}

func (m Multi) IncomingDropped(h sctpcore.Handle, size int, flags int) {
	for _, s := range m {
		s.IncomingDropped(h, size, flags)
	}
}

func (m Multi) OutgoingDropped(h sctpcore.Handle, size int) {
	for _, s := range m {
		s.OutgoingDropped(h, size)
	}
}

func (m Multi) UnknownSocket(op string, kind sctpcore.Kind) {
	for _, s := range m {
		s.UnknownSocket(op, kind)
	}
}

func (m Multi) SendRejected(h sctpcore.Handle, size int, result int) {
	for _, s := range m {
		s.SendRejected(h, size, result)
	}
}

func (m Multi) PacketSendFailed(kind sctpcore.Kind, size int, err error) {
	for _, s := range m {
		s.PacketSendFailed(kind, size, err)
	}
}
