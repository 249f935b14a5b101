package main

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/cenkalti/backoff/v4"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/hrissan/sctpmux"
	"github.com/hrissan/sctpmux/sctperrors"
)

type clientStats struct {
	sent     int
	received int
}

func runClient(ctx context.Context, cfg *Config) (clientStats, error) {
	var stats clientStats
	peerAddr, err := net.ResolveUDPAddr("udp", cfg.PeerAddress)
	if err != nil {
		return stats, fmt.Errorf("invalid peer address %q: %w", cfg.PeerAddress, err)
	}
	listenAddress := cfg.ListenAddress
	if listenAddress == "" {
		listenAddress = ":0"
	}
	s, err := newStack(ctx, cfg, listenAddress, peerAddr.AddrPort())
	if err != nil {
		return stats, err
	}
	err = s.run(ctx, func(ctx context.Context) error {
		conn, err := dialWithRetries(ctx, cfg, s)
		if err != nil {
			return err
		}
		defer conn.Close()
		return echoLoop(ctx, cfg, conn, &stats)
	})
	return stats, err
}

func dialWithRetries(ctx context.Context, cfg *Config, s *stack) (*sctpmux.Conn, error) {
	var conn *sctpmux.Conn
	operation := func() error {
		dialCtx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
		defer cancel()
		c, err := sctpmux.Dial(dialCtx, s.manager, s.link, cfg.LocalPort, cfg.RemotePort)
		if err != nil {
			if errors.Is(err, sctperrors.ErrAllocationFailed) || ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			log.WithError(err).Info("dial failed, will retry")
			return err
		}
		conn = c
		return nil
	}
	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), cfg.DialAttempts), ctx)
	if err := backoff.Retry(operation, b); err != nil {
		return nil, fmt.Errorf("dial %s: %w", cfg.PeerAddress, err)
	}
	log.WithField("peer", cfg.PeerAddress).Info("association up")
	return conn, nil
}

func echoLoop(ctx context.Context, cfg *Config, conn *sctpmux.Conn, stats *clientStats) error {
	limit := rate.Inf
	if cfg.Rate > 0 {
		limit = rate.Limit(cfg.Rate)
	}
	limiter := rate.NewLimiter(limit, 1)
	payload := make([]byte, cfg.MessageSize)
	for i := 0; cfg.Messages == 0 || i < cfg.Messages; i++ {
		if err := limiter.Wait(ctx); err != nil {
			return nil // interrupted
		}
		binary.BigEndian.PutUint64(payload, uint64(i))
		start := time.Now()
		err := conn.WriteMessage(sctpmux.Message{
			Data:      payload,
			StreamID:  cfg.StreamID,
			PPID:      cfg.PPID,
			Unordered: cfg.Unordered,
		})
		if err != nil {
			return fmt.Errorf("send message %d: %w", i, err)
		}
		stats.sent++

		replyCtx, cancel := context.WithTimeout(ctx, cfg.ReplyTimeout)
		reply, err := conn.ReadMessage(replyCtx)
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("wait echo %d: %w", i, err)
		}
		if !bytes.Equal(reply.Data, payload) {
			return fmt.Errorf("echo %d does not match message", i)
		}
		stats.received++
		log.WithFields(log.Fields{"seq": i, "rtt": time.Since(start)}).Debug("echo received")
	}
	return nil
}
