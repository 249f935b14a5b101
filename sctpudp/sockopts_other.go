// Copyright (c) 2025, Grigory Buteyko aka Hrissan
// Licensed under the MIT License. See LICENSE for details.

//go:build !linux

package sctpudp

import "net"

func setSocketBuffers(socket *net.UDPConn, size int) error {
	if err := socket.SetReadBuffer(size); err != nil {
		return err
	}
	return socket.SetWriteBuffer(size)
}
