// Copyright (c) 2025, Grigory Buteyko aka Hrissan
// Licensed under the MIT License. See LICENSE for details.

package sctpudp

import (
	"errors"
	"net"
	"time"
)

// Blocks until socket is closed (externally).
// Engine must copy packet if it needs it after ConnInput returns,
// we reuse the same buffer for all datagrams.
func (l *Link) GoRunReceiver() {
	datagram := make([]byte, 65536)
	for {
		n, addr, err := l.socket.ReadFromUDPAddrPort(datagram)
		if n != 0 { // do not check for an error here
			l.receivedDatagram(datagram[:n], addr)
		}
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			l.log.WithError(err).Debug("socket read error")
			time.Sleep(l.readErrorDelay)
		}
	}
}
