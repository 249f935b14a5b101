// Copyright (c) 2025, Grigory Buteyko aka Hrissan
// Licensed under the MIT License. See LICENSE for details.

package sctpmux

import (
	"context"

	"github.com/hrissan/sctpmux/sctpcore"
	"github.com/hrissan/sctpmux/sctperrors"
)

// Link carries packets of one socket, usually sctpudp.Link or DTLS connection.
type Link interface {
	sctpcore.DataSender
	Bind(in sctpcore.PacketInput)
}

// Dial creates client socket over link and waits until association is up.
// On error the socket is closed.
func Dial(ctx context.Context, m *sctpcore.Manager, link Link, localPort uint16, remotePort uint16) (*Conn, error) {
	s := m.CreateClientSocket(localPort)
	if s == nil {
		return nil, sctperrors.ErrAllocationFailed
	}
	conn := newConn(&s.Endpoint, m.Options(), remotePort)
	s.SetDataSender(link)
	link.Bind(s)
	if !s.Connect(remotePort) {
		s.Close()
		return nil, sctperrors.ErrConnectRejected
	}
	return waitConnected(ctx, conn)
}

// Accept creates server socket over link and waits for the peer to establish association.
func Accept(ctx context.Context, m *sctpcore.Manager, link Link, localPort uint16) (*Conn, error) {
	s := m.CreateServerSocket(localPort)
	if s == nil {
		return nil, sctperrors.ErrAllocationFailed
	}
	conn := newConn(&s.Endpoint, m.Options(), 0)
	s.SetDataSender(link)
	link.Bind(s)
	if !s.Listen() || !s.Accept() {
		s.Close()
		return nil, sctperrors.ErrAcceptRejected
	}
	return waitConnected(ctx, conn)
}

func waitConnected(ctx context.Context, conn *Conn) (*Conn, error) {
	if err := conn.WaitConnected(ctx); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return conn, nil
}
