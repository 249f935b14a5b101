// Copyright (c) 2025, Grigory Buteyko aka Hrissan
// Licensed under the MIT License. See LICENSE for details.

package sctpstats

import (
	"context"
	"sync/atomic"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/hrissan/sctpmux/sctpcore"
)

// StatsMetrics counts events with OpenTelemetry instruments.
type StatsMetrics struct {
	ctx context.Context

	socketsCreated  metric.Int64Counter
	socketsClosed   metric.Int64Counter
	allocFailures   metric.Int64Counter
	dropped         metric.Int64Counter
	unknownSocket   metric.Int64Counter
	sendRejected    metric.Int64Counter
	packetsLost     metric.Int64Counter
	initIgnored     metric.Int64Counter
	liveSocketsDiff metric.Int64UpDownCounter

	live atomic.Int64
}

var _ sctpcore.Stats = &StatsMetrics{}

func NewStatsMetrics(ctx context.Context, meter metric.Meter) (*StatsMetrics, error) {
	s := &StatsMetrics{ctx: ctx}
	var err error
	if s.socketsCreated, err = meter.Int64Counter("sctpmux_sockets_created",
		metric.WithDescription("sockets registered")); err != nil {
		return nil, err
	}
	if s.socketsClosed, err = meter.Int64Counter("sctpmux_sockets_closed",
		metric.WithDescription("sockets removed from registry")); err != nil {
		return nil, err
	}
	if s.allocFailures, err = meter.Int64Counter("sctpmux_allocation_failures",
		metric.WithDescription("engine failed to create association")); err != nil {
		return nil, err
	}
	if s.dropped, err = meter.Int64Counter("sctpmux_callbacks_dropped",
		metric.WithDescription("engine callbacks for handles not in registry")); err != nil {
		return nil, err
	}
	if s.unknownSocket, err = meter.Int64Counter("sctpmux_unknown_socket_calls",
		metric.WithDescription("application calls on closed or never registered sockets")); err != nil {
		return nil, err
	}
	if s.sendRejected, err = meter.Int64Counter("sctpmux_send_rejected",
		metric.WithDescription("sends rejected by engine")); err != nil {
		return nil, err
	}
	if s.packetsLost, err = meter.Int64Counter("sctpmux_packets_lost",
		metric.WithDescription("packets engine produced, but socket failed to send")); err != nil {
		return nil, err
	}
	if s.initIgnored, err = meter.Int64Counter("sctpmux_init_ignored",
		metric.WithDescription("engine init calls after the first one")); err != nil {
		return nil, err
	}
	if s.liveSocketsDiff, err = meter.Int64UpDownCounter("sctpmux_sockets_live",
		metric.WithDescription("sockets currently registered")); err != nil {
		return nil, err
	}
	return s, nil
}

// Live returns number of sockets created minus closed, as seen by this instance.
func (s *StatsMetrics) Live() int64 { return s.live.Load() }

func (s *StatsMetrics) EngineInitialized(localPort uint16) {}

func (s *StatsMetrics) EngineInitIgnored(localPort uint16, activePort uint16) {
	s.initIgnored.Add(s.ctx, 1)
}

func (s *StatsMetrics) SocketCreated(h sctpcore.Handle, kind sctpcore.Kind, localPort uint16) {
	attrs := metric.WithAttributes(attribute.String("kind", kind.String()))
	s.socketsCreated.Add(s.ctx, 1, attrs)
	s.liveSocketsDiff.Add(s.ctx, 1, attrs)
	s.live.Add(1)
}

func (s *StatsMetrics) SocketAllocationFailed(kind sctpcore.Kind, localPort uint16) {
	s.allocFailures.Add(s.ctx, 1, metric.WithAttributes(attribute.String("kind", kind.String())))
}

func (s *StatsMetrics) SocketClosed(h sctpcore.Handle, kind sctpcore.Kind) {
	attrs := metric.WithAttributes(attribute.String("kind", kind.String()))
	s.socketsClosed.Add(s.ctx, 1, attrs)
	s.liveSocketsDiff.Add(s.ctx, -1, attrs)
	s.live.Add(-1)
}

func (s *StatsMetrics) IncomingDropped(h sctpcore.Handle, size int, flags int) {
	s.dropped.Add(s.ctx, 1, metric.WithAttributes(attribute.String("direction", "incoming")))
}

func (s *StatsMetrics) OutgoingDropped(h sctpcore.Handle, size int) {
	s.dropped.Add(s.ctx, 1, metric.WithAttributes(attribute.String("direction", "outgoing")))
}

func (s *StatsMetrics) UnknownSocket(op string, kind sctpcore.Kind) {
	s.unknownSocket.Add(s.ctx, 1, metric.WithAttributes(attribute.String("op", op)))
}

func (s *StatsMetrics) SendRejected(h sctpcore.Handle, size int, result int) {
	s.sendRejected.Add(s.ctx, 1)
}

func (s *StatsMetrics) PacketSendFailed(kind sctpcore.Kind, size int, err error) {
	s.packetsLost.Add(s.ctx, 1, metric.WithAttributes(attribute.String("kind", kind.String())))
}
