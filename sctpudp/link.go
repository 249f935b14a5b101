// Copyright (c) 2025, Grigory Buteyko aka Hrissan
// Licensed under the MIT License. See LICENSE for details.

package sctpudp

import (
	"net"
	"net/netip"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/hrissan/sctpmux/sctpcore"
	"github.com/hrissan/sctpmux/sctperrors"
)

type boundInput struct {
	in sctpcore.PacketInput
}

// Link carries packets of one association over UDP socket.
// If peer is not set, it is learned from the first datagram received, and
// datagrams from other addresses are ignored after that.
type Link struct {
	socket         *net.UDPConn
	readErrorDelay time.Duration
	log            *log.Entry

	peer  atomic.Pointer[netip.AddrPort]
	input atomic.Pointer[boundInput]

	sentPackets     atomic.Uint64
	receivedPackets atomic.Uint64
	droppedPackets  atomic.Uint64
}

var _ sctpcore.DataSender = &Link{}

func NewLink(socket *net.UDPConn, peer netip.AddrPort, opts *sctpcore.Options) *Link {
	l := &Link{
		socket:         socket,
		readErrorDelay: opts.SocketReadErrorDelay,
		log:            log.WithField("local", socket.LocalAddr().String()),
	}
	if peer.IsValid() {
		peer = unmap(peer)
		l.peer.Store(&peer)
	}
	return l
}

func unmap(addr netip.AddrPort) netip.AddrPort {
	return netip.AddrPortFrom(addr.Addr().Unmap(), addr.Port())
}

// Datagrams received before Bind are dropped.
func (l *Link) Bind(in sctpcore.PacketInput) {
	l.input.Store(&boundInput{in: in})
}

func (l *Link) Peer() (netip.AddrPort, bool) {
	p := l.peer.Load()
	if p == nil {
		return netip.AddrPort{}, false
	}
	return *p, true
}

// Next datagram from any address sets the new peer. Used by servers
// accepting peers one after another on the same socket.
func (l *Link) ForgetPeer() {
	l.peer.Store(nil)
}

func (l *Link) LocalAddr() net.Addr { return l.socket.LocalAddr() }

func (l *Link) SendPacket(packet []byte) error {
	peer := l.peer.Load()
	if peer == nil {
		return sctperrors.ErrNoPeerAddress
	}
	if _, err := l.socket.WriteToUDPAddrPort(packet, *peer); err != nil {
		l.log.WithError(err).WithField("peer", peer.String()).Debug("socket write error")
		return err
	}
	l.sentPackets.Add(1)
	return nil
}

// Stops receiver, after that SendPacket returns errors.
func (l *Link) Close() error {
	return l.socket.Close()
}

func (l *Link) receivedDatagram(datagram []byte, addr netip.AddrPort) {
	addr = unmap(addr)
	peer := l.peer.Load()
	for peer == nil { // ForgetPeer may run between CompareAndSwap and Load
		if l.peer.CompareAndSwap(nil, &addr) {
			l.log.WithField("peer", addr.String()).Debug("learned peer address")
			peer = &addr
			break
		}
		peer = l.peer.Load()
	}
	if *peer != addr {
		l.droppedPackets.Add(1)
		return
	}
	bound := l.input.Load()
	if bound == nil {
		l.droppedPackets.Add(1)
		return
	}
	l.receivedPackets.Add(1)
	if !bound.in.ConnInput(datagram) {
		l.droppedPackets.Add(1) // socket already closed
	}
}

func (l *Link) SentPackets() uint64     { return l.sentPackets.Load() }
func (l *Link) ReceivedPackets() uint64 { return l.receivedPackets.Load() }
func (l *Link) DroppedPackets() uint64  { return l.droppedPackets.Load() }
