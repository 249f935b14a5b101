// Copyright (c) 2025, Grigory Buteyko aka Hrissan
// Licensed under the MIT License. See LICENSE for details.

package sctpstats

import (
	"sync/atomic"

	log "github.com/sirupsen/logrus"

	"github.com/hrissan/sctpmux/sctpcore"
)

// StatsLog writes events to logrus. Drops are frequent during shutdown races,
// so they are printed only when printDrops is set.
type StatsLog struct {
	entry      *log.Entry
	printDrops atomic.Bool
}

var _ sctpcore.Stats = &StatsLog{}

func NewStatsLog(logger *log.Logger) *StatsLog {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &StatsLog{entry: logger.WithField("component", "sctpmux")}
}

func NewStatsLogVerbose(logger *log.Logger) *StatsLog {
	s := NewStatsLog(logger)
	s.printDrops.Store(true)
	return s
}

func (s *StatsLog) SetPrintDrops(v bool) { s.printDrops.Store(v) }

func (s *StatsLog) EngineInitialized(localPort uint16) {
	s.entry.WithField("port", localPort).Info("engine initialized")
}

func (s *StatsLog) EngineInitIgnored(localPort uint16, activePort uint16) {
	s.entry.WithFields(log.Fields{"port": localPort, "active_port": activePort}).
		Debug("engine already initialized, init ignored")
}

func (s *StatsLog) SocketCreated(h sctpcore.Handle, kind sctpcore.Kind, localPort uint16) {
	s.entry.WithFields(log.Fields{"handle": h, "kind": kind, "port": localPort}).Debug("socket created")
}

func (s *StatsLog) SocketAllocationFailed(kind sctpcore.Kind, localPort uint16) {
	s.entry.WithFields(log.Fields{"kind": kind, "port": localPort}).Warn("engine failed to allocate association")
}

func (s *StatsLog) SocketClosed(h sctpcore.Handle, kind sctpcore.Kind) {
	s.entry.WithFields(log.Fields{"handle": h, "kind": kind}).Debug("socket closed")
}

func (s *StatsLog) IncomingDropped(h sctpcore.Handle, size int, flags int) {
	if !s.printDrops.Load() {
		return
	}
	s.entry.WithFields(log.Fields{"handle": h, "size": size, "flags": flags}).Trace("incoming data for unknown handle dropped")
}

func (s *StatsLog) OutgoingDropped(h sctpcore.Handle, size int) {
	if !s.printDrops.Load() {
		return
	}
	s.entry.WithFields(log.Fields{"handle": h, "size": size}).Trace("outgoing data for unknown handle dropped")
}

func (s *StatsLog) UnknownSocket(op string, kind sctpcore.Kind) {
	s.entry.WithFields(log.Fields{"op": op, "kind": kind}).Debug("socket is not registered")
}

func (s *StatsLog) SendRejected(h sctpcore.Handle, size int, result int) {
	s.entry.WithFields(log.Fields{"handle": h, "size": size, "result": result}).Debug("engine rejected send")
}

// Link errors repeat for every retransmission, so they are printed like drops.
func (s *StatsLog) PacketSendFailed(kind sctpcore.Kind, size int, err error) {
	if !s.printDrops.Load() {
		return
	}
	s.entry.WithError(err).WithFields(log.Fields{"kind": kind, "size": size}).Trace("outgoing packet lost")
}
