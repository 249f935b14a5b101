// Copyright (c) 2025, Grigory Buteyko aka Hrissan
// Licensed under the MIT License. See LICENSE for details.

package pionengine

import (
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hrissan/sctpmux/sctpcore"
)

type engineAddr struct {
	port uint16
}

func (a engineAddr) Network() string { return "sctpmux" }
func (a engineAddr) String() string  { return "engine:" + strconv.Itoa(int(a.port)) }

// packetConn is the lower layer of pion association. Packets pion writes go
// to OnOutgoingData, packets given to ConnInput are returned by Read.
// One Read returns one packet, like DTLS connection would.
type packetConn struct {
	e          *Engine
	h          sctpcore.Handle
	localAddr  engineAddr
	remoteAddr engineAddr

	incoming  chan []byte
	closeOnce sync.Once
	closed    chan struct{}

	droppedIncoming atomic.Uint64
	droppedOutgoing atomic.Uint64
}

var _ net.Conn = &packetConn{}

func newPacketConn(e *Engine, h sctpcore.Handle, localPort uint16, queueSize int) *packetConn {
	return &packetConn{
		e:         e,
		h:         h,
		localAddr: engineAddr{port: localPort},
		incoming:  make(chan []byte, queueSize),
		closed:    make(chan struct{}),
	}
}

// Never blocks, packets are dropped when reader is too slow, SCTP will retransmit.
func (c *packetConn) push(packet []byte) {
	select {
	case <-c.closed:
		return
	default:
	}
	select {
	case c.incoming <- append([]byte{}, packet...):
	default:
		c.droppedIncoming.Add(1)
	}
}

func (c *packetConn) Read(b []byte) (int, error) {
	select {
	case p := <-c.incoming:
		return copy(b, p), nil
	case <-c.closed:
		return 0, net.ErrClosed
	}
}

// Lost packet is not an error for SCTP, and pion closes association
// on any write error, so we report success unless we are closed.
func (c *packetConn) Write(b []byte) (int, error) {
	select {
	case <-c.closed:
		return 0, net.ErrClosed
	default:
	}
	if c.e.callbacks().OnOutgoingData(c.h, b, 0, false) != sctpcore.OutgoingOK {
		c.droppedOutgoing.Add(1)
	}
	return len(b), nil
}

func (c *packetConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *packetConn) LocalAddr() net.Addr                { return c.localAddr }
func (c *packetConn) RemoteAddr() net.Addr               { return c.remoteAddr }
func (c *packetConn) SetDeadline(t time.Time) error      { return nil }
func (c *packetConn) SetReadDeadline(t time.Time) error  { return nil }
func (c *packetConn) SetWriteDeadline(t time.Time) error { return nil }
