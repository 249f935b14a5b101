// Copyright (c) 2025, Grigory Buteyko aka Hrissan
// Licensed under the MIT License. See LICENSE for details.

package sctpudp

import (
	"fmt"
	"net"

	log "github.com/sirupsen/logrus"
)

// bufferSize 0 leaves kernel defaults.
func OpenSocket(addressPort string, bufferSize int) (*net.UDPConn, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addressPort)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve local udp address %s: %w", addressPort, err)
	}
	socket, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, fmt.Errorf("cannot listen to udp address %s: %w", addressPort, err)
	}
	if bufferSize > 0 {
		if err := setSocketBuffers(socket, bufferSize); err != nil {
			// kernel limits are not fatal, we continue with defaults
			log.WithError(err).WithField("size", bufferSize).Warn("sctpudp: cannot set socket buffer size")
		}
	}
	log.WithFields(log.Fields{"address": addressPort, "local": socket.LocalAddr().String()}).Info("sctpudp: opened socket")
	return socket, nil
}

// for tests and tools
func OpenSocketMust(addressPort string, bufferSize int) *net.UDPConn {
	socket, err := OpenSocket(addressPort, bufferSize)
	if err != nil {
		log.Fatalf("sctpudp: %v", err)
	}
	return socket
}
