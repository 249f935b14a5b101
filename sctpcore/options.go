// Copyright (c) 2025, Grigory Buteyko aka Hrissan
// Licensed under the MIT License. See LICENSE for details.

package sctpcore

import (
	"fmt"
	"time"
)

// PPID values used by WebRTC data channels [rfc8831:8]
const (
	PPIDWebRTCDCEP        = 50
	PPIDWebRTCString      = 51
	PPIDWebRTCBinary      = 53
	PPIDWebRTCStringEmpty = 56
	PPIDWebRTCBinaryEmpty = 57
)

type Options struct {
	Stats Stats

	// Passed to Engine.Init. For usrsctp this is UDP encapsulation port, 0 disables it.
	LocalPort uint16

	// socket parameters are not used by core, they are here for convenience
	SocketReadErrorDelay time.Duration
	SocketBufferSize     int

	// limit on messages buffered by sctpmux.Conn before reader picks them up
	MaxQueuedMessages int

	// used by sctpmux.Conn.Write
	DefaultStreamID uint16
	DefaultPPID     uint32
	DefaultOrdered  bool
}

func DefaultOptions(stats Stats) *Options {
	if stats == nil {
		stats = NopStats{}
	}
	return &Options{
		Stats:                stats,
		LocalPort:            0,
		SocketReadErrorDelay: 50 * time.Millisecond,
		SocketBufferSize:     1 << 20,
		MaxQueuedMessages:    1024,
		DefaultStreamID:      0,
		DefaultPPID:          PPIDWebRTCBinary,
		DefaultOrdered:       true,
	}
}

func (opts *Options) Validate() error {
	if opts.Stats == nil {
		return fmt.Errorf("Stats must be set, use NopStats{} to disable")
	}
	if opts.MaxQueuedMessages < 1 {
		return fmt.Errorf("MaxQueuedMessages (%d) should be at least 1", opts.MaxQueuedMessages)
	}
	if opts.SocketBufferSize < 0 {
		return fmt.Errorf("SocketBufferSize (%d) must not be negative", opts.SocketBufferSize)
	}
	if opts.SocketReadErrorDelay < 0 {
		return fmt.Errorf("SocketReadErrorDelay (%v) must not be negative", opts.SocketReadErrorDelay)
	}
	return nil
}
