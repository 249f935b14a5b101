// Copyright (c) 2025, Grigory Buteyko aka Hrissan
// Licensed under the MIT License. See LICENSE for details.

//go:build linux

package sctpudp

import (
	"net"

	"golang.org/x/sys/unix"
)

// SO_RCVBUFFORCE would ignore rmem_max, but needs CAP_NET_ADMIN, so we use plain options.
func setSocketBuffers(socket *net.UDPConn, size int) error {
	rc, err := socket.SyscallConn()
	if err != nil {
		return err
	}
	var opErr error
	err = rc.Control(func(fd uintptr) {
		if opErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_RCVBUF, size); opErr != nil {
			return
		}
		opErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_SNDBUF, size)
	})
	if err != nil {
		return err
	}
	return opErr
}
