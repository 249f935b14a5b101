// Copyright (c) 2025, Grigory Buteyko aka Hrissan
// Licensed under the MIT License. See LICENSE for details.

package sctpcore

// MsgNotification is set in flags of OnIncomingData when the payload is an SCTP
// notification (usrsctp MSG_NOTIFICATION) rather than application data.
const MsgNotification = 0x2000

const (
	// SendError is returned by Send when the socket is not registered.
	// Engines return their own negative values, which are passed through verbatim.
	SendError = -1

	OutgoingOK     = 0
	OutgoingFailed = -1
)

// Engine is the external SCTP protocol implementation. There is exactly one
// instance per Manager, all calls come through Gateway.
//
// Engine calls its Callbacks on its own goroutines, concurrently with
// application calls, possibly even before the call that triggered them returns.
type Engine interface {
	// Called once. Engine must keep cb and use it for all callbacks.
	Init(localPort uint16, cb Callbacks)
	// Returns NoHandle on failure. Handle must not be reused until Close(handle).
	CreateAssociation(localPort uint16) Handle
	// Starts connection, returns immediately. True only means request was accepted.
	Connect(h Handle, remotePort uint16) bool
	Listen(h Handle) bool
	// Starts waiting for incoming association, returns immediately.
	Accept(h Handle) bool
	// Returns number of bytes accepted, or negative value on error.
	Send(h Handle, data []byte, ordered bool, streamID uint16, ppid uint32) int
	// Packet received from the lower layer (network or DTLS).
	// Engine must not retain packet after call returns.
	ConnInput(h Handle, packet []byte)
	Close(h Handle)
}

// Callbacks are process-wide entry points, registered with the engine once during Init.
type Callbacks interface {
	// data is valid only during the call.
	OnIncomingData(h Handle, data []byte, streamID uint16, ssn uint16, tsn uint32, ppid uint32, context uint32, flags int)
	// Packet engine wants to put on the wire. Returns OutgoingOK or OutgoingFailed.
	// data is valid only during the call.
	OnOutgoingData(h Handle, data []byte, tos uint8, dontFragment bool) int
}
