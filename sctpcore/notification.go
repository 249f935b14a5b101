// Copyright (c) 2025, Grigory Buteyko aka Hrissan
// Licensed under the MIT License. See LICENSE for details.

package sctpcore

import (
	"encoding/binary"

	"github.com/hrissan/sctpmux/sctperrors"
)

// Notification types, values are from usrsctp.h
const (
	NotificationAssocChange     = 0x0001
	NotificationPeerAddrChange  = 0x0002
	NotificationRemoteError     = 0x0003
	NotificationSendFailed      = 0x0004
	NotificationShutdownEvent   = 0x0005
	NotificationAdaptation      = 0x0006
	NotificationPartialDelivery = 0x0007
	NotificationAuthentication  = 0x0008
	NotificationStreamReset     = 0x0009
	NotificationSenderDry       = 0x000a
	NotificationsStopped        = 0x000b
	NotificationAssocReset      = 0x000c
	NotificationStreamChange    = 0x000d
	NotificationSendFailedEvent = 0x000e
)

// sac_state of NotificationAssocChange
const (
	AssocCommUp       = 0x0001
	AssocCommLost     = 0x0002
	AssocRestart      = 0x0003
	AssocShutdownComp = 0x0004
	AssocCantStart    = 0x0005
)

const (
	notificationHeaderSize = 8
	assocChangeSize        = 20 // without sac_info
)

// Notification is the common header of struct sctp_notification. Engines pass
// structs in host byte order. Assoc fields are set only for NotificationAssocChange.
type Notification struct {
	Type   uint16
	Flags  uint16
	Length uint32

	AssocState      uint16
	AssocError      uint16
	OutboundStreams uint16
	InboundStreams  uint16
	AssocID         uint32

	Body []byte // everything after the header, points into the parsed data
}

func ParseNotification(data []byte) (Notification, error) {
	var n Notification
	if len(data) < notificationHeaderSize {
		return n, sctperrors.ErrNotificationTooShort
	}
	n.Type = binary.NativeEndian.Uint16(data[0:])
	n.Flags = binary.NativeEndian.Uint16(data[2:])
	n.Length = binary.NativeEndian.Uint32(data[4:])
	n.Body = data[notificationHeaderSize:]
	if n.Type != NotificationAssocChange {
		return n, nil
	}
	if len(data) < assocChangeSize {
		return n, sctperrors.ErrNotificationTooShort
	}
	n.AssocState = binary.NativeEndian.Uint16(data[8:])
	n.AssocError = binary.NativeEndian.Uint16(data[10:])
	n.OutboundStreams = binary.NativeEndian.Uint16(data[12:])
	n.InboundStreams = binary.NativeEndian.Uint16(data[14:])
	n.AssocID = binary.NativeEndian.Uint32(data[16:])
	return n, nil
}

// For engines which do not produce usrsctp notifications themselves.
func AppendAssocChange(data []byte, state uint16, assocErr uint16, outboundStreams uint16, inboundStreams uint16) []byte {
	data = binary.NativeEndian.AppendUint16(data, NotificationAssocChange)
	data = binary.NativeEndian.AppendUint16(data, 0)
	data = binary.NativeEndian.AppendUint32(data, assocChangeSize)
	data = binary.NativeEndian.AppendUint16(data, state)
	data = binary.NativeEndian.AppendUint16(data, assocErr)
	data = binary.NativeEndian.AppendUint16(data, outboundStreams)
	data = binary.NativeEndian.AppendUint16(data, inboundStreams)
	data = binary.NativeEndian.AppendUint32(data, 0)
	return data
}

// Association is gone for good, socket must be closed.
func (n Notification) Terminal() bool {
	if n.Type != NotificationAssocChange {
		return false
	}
	switch n.AssocState {
	case AssocCommLost, AssocShutdownComp, AssocCantStart:
		return true
	}
	return false
}

func (n Notification) Up() bool {
	return n.Type == NotificationAssocChange && (n.AssocState == AssocCommUp || n.AssocState == AssocRestart)
}
