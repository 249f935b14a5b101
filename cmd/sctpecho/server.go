package main

import (
	"context"
	"errors"
	"io"
	"net/netip"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/hrissan/sctpmux"
	"github.com/hrissan/sctpmux/sctpudp"
)

const acceptRetryDelay = 100 * time.Millisecond

func runServer(ctx context.Context, cfg *Config) error {
	s, err := newStack(ctx, cfg, cfg.ListenAddress, netip.AddrPort{})
	if err != nil {
		return err
	}
	log.Infof("echo server listening on %s, SCTP port %d", s.link.LocalAddr(), cfg.LocalPort)
	return s.run(ctx, func(ctx context.Context) error {
		for ctx.Err() == nil {
			s.link.ForgetPeer()
			conn, err := sctpmux.Accept(ctx, s.manager, s.link, cfg.LocalPort)
			if err != nil {
				if ctx.Err() == nil {
					log.WithError(err).Warn("accept failed")
				}
				select {
				case <-ctx.Done():
				case <-time.After(acceptRetryDelay):
				}
				continue
			}
			serveEcho(ctx, conn, s.link)
		}
		return nil
	})
}

func serveEcho(ctx context.Context, conn *sctpmux.Conn, link *sctpudp.Link) {
	defer conn.Close()
	peer, _ := link.Peer()
	entry := log.WithField("peer", peer.String())
	entry.Info("association up")
	echoed := 0
	for {
		msg, err := conn.ReadMessage(ctx)
		if err != nil {
			switch {
			case errors.Is(err, io.EOF):
				entry.WithField("echoed", echoed).Info("peer closed association")
			case ctx.Err() != nil:
			default:
				entry.WithError(err).Warn("read failed")
			}
			return
		}
		if err := conn.WriteMessage(msg); err != nil {
			entry.WithError(err).Warn("echo failed")
			return
		}
		echoed++
	}
}
