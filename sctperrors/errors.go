// Copyright (c) 2025, Grigory Buteyko aka Hrissan
// Licensed under the MIT License. See LICENSE for details.

package sctperrors

import (
	"fmt"
)

// we do not allocate on error returning path,
// so all errors are completely static

type Error struct {
	fatal bool
	code  int
	text  string
}

func (e *Error) Error() string {
	if e.fatal {
		return fmt.Sprintf("sctpmux (fatal): %d %s", e.code, e.text)
	}
	return fmt.Sprintf("sctpmux (warning): %d %s", e.code, e.text)
}

func (e *Error) Fatal() bool { return e.fatal }
func (e *Error) Code() int   { return e.code }

func NewFatal(code int, text string) error {
	return &Error{
		fatal: true,
		code:  code,
		text:  text,
	}
}

func NewWarning(code int, text string) error {
	return &Error{
		fatal: false,
		code:  code,
		text:  text,
	}
}

// These two are raised as panics, they mean the registry is corrupted.
var ErrDuplicateHandle = NewFatal(-100, "handle or socket is already registered")
var ErrNoHandle = NewFatal(-101, "attempt to register zero handle")

var ErrAllocationFailed = NewWarning(-200, "engine failed to allocate association")
var ErrSocketClosed = NewWarning(-202, "socket is closed")
var ErrConnectRejected = NewWarning(-203, "engine rejected connect request")
var ErrAcceptRejected = NewWarning(-204, "engine rejected accept request")
var ErrSendRejected = NewWarning(-205, "engine rejected send")
var ErrNoDataSender = NewWarning(-206, "socket has no data sender")
var ErrAssociationFailed = NewWarning(-207, "association could not be established")
var ErrNoPeerAddress = NewWarning(-208, "link peer address is not known yet")
var ErrMessageQueueFull = NewWarning(-209, "incoming message queue overflow")
var ErrNotificationTooShort = NewWarning(-210, "notification is shorter than its header")
