// Copyright (c) 2025, Grigory Buteyko aka Hrissan
// Licensed under the MIT License. See LICENSE for details.

// Package pionengine implements sctpcore.Engine on top of pion/sctp.
//
// Each handle owns packetConn, which pion association uses as lower layer.
// All callbacks are invoked from goroutines owned by this package, never
// while holding engine or association locks, so sockets may call back into
// engine (close on COMM_LOST, for example).
//
// SCTP ports are not carried by pion packets, so localPort and remotePort are
// only remembered for diagnostics. Notifications carry zero ssn and tsn.
package pionengine

import (
	"errors"
	"sync"

	"github.com/pion/logging"
	"github.com/pion/sctp"
	log "github.com/sirupsen/logrus"

	"github.com/hrissan/sctpmux/sctpcore"
)

const (
	DefaultInboundQueue   = 256
	DefaultReadBufferSize = 1 << 18

	// pion opens/accepts up to this many streams, we only report it in COMM_UP
	notifiedStreams = 0xffff
)

var errNotConnected = errors.New("association is not established")

type Config struct {
	LoggerFactory        logging.LoggerFactory // nil means logrus standard logger
	MaxReceiveBufferSize uint32                // 0 means pion default
	MaxMessageSize       uint32                // 0 means pion default
	InboundQueue         int                   // packets waiting for pion read loop, per association
	ReadBufferSize       int                   // must fit the largest message peer sends
	FirstHandle          sctpcore.Handle
}

type assocState int

const (
	assocIdle assocState = iota
	assocListening
	assocStarting
	assocUp
	assocDown // established once, then lost, or failed to establish
	assocClosed
)

type association struct {
	e    *Engine
	h    sctpcore.Handle
	conn *packetConn

	mu         sync.Mutex
	state      assocState
	remotePort uint16
	assoc      *sctp.Association
	streams    map[uint16]*stream
}

// Reliability params are per stream in pion and apply to the next write,
// so setting them and writing must not interleave with other senders.
type stream struct {
	*sctp.Stream
	sendMu sync.Mutex
}

func (s *stream) send(data []byte, ordered bool, ppid uint32) (int, error) {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	s.SetReliabilityParams(!ordered, sctp.ReliabilityTypeReliable, 0)
	return s.WriteSCTP(data, sctp.PayloadProtocolIdentifier(ppid))
}

type Engine struct {
	config Config
	log    *log.Entry

	mu           sync.Mutex
	cb           sctpcore.Callbacks
	localPort    uint16
	nextHandle   sctpcore.Handle
	associations map[sctpcore.Handle]*association
}

var _ sctpcore.Engine = &Engine{}

func New(config Config) *Engine {
	if config.LoggerFactory == nil {
		config.LoggerFactory = NewLogrusFactory(nil)
	}
	if config.InboundQueue <= 0 {
		config.InboundQueue = DefaultInboundQueue
	}
	if config.ReadBufferSize <= 0 {
		config.ReadBufferSize = DefaultReadBufferSize
	}
	if !config.FirstHandle.Valid() {
		config.FirstHandle = 1
	}
	return &Engine{
		config:       config,
		log:          log.WithField("component", "pionengine"),
		nextHandle:   config.FirstHandle,
		associations: map[sctpcore.Handle]*association{},
	}
}

// Only the first call has effect, engine has one port and one callback target.
func (e *Engine) Init(localPort uint16, cb sctpcore.Callbacks) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cb != nil {
		e.log.WithFields(log.Fields{"port": localPort, "initialized_port": e.localPort}).Warn("engine already initialized, ignoring")
		return
	}
	e.localPort = localPort
	e.cb = cb
}

type nopCallbacks struct{}

func (nopCallbacks) OnIncomingData(sctpcore.Handle, []byte, uint16, uint16, uint32, uint32, uint32, int) {
}
func (nopCallbacks) OnOutgoingData(sctpcore.Handle, []byte, uint8, bool) int {
	return sctpcore.OutgoingFailed
}

func (e *Engine) callbacks() sctpcore.Callbacks {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cb == nil {
		return nopCallbacks{}
	}
	return e.cb
}

func (e *Engine) get(h sctpcore.Handle) *association {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.associations[h]
}

// Len returns number of associations not yet closed.
func (e *Engine) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.associations)
}

// Handles are never reused, so late packets for closed association cannot reach new one.
func (e *Engine) CreateAssociation(localPort uint16) sctpcore.Handle {
	e.mu.Lock()
	defer e.mu.Unlock()
	h := e.nextHandle
	if !h.Valid() { // wrapped around, impossible in practice
		return sctpcore.NoHandle
	}
	e.nextHandle++
	e.associations[h] = &association{
		e:       e,
		h:       h,
		conn:    newPacketConn(e, h, localPort, e.config.InboundQueue),
		streams: map[uint16]*stream{},
	}
	return h
}

func (e *Engine) Connect(h sctpcore.Handle, remotePort uint16) bool {
	a := e.get(h)
	if a == nil {
		return false
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state != assocIdle {
		return false
	}
	a.state = assocStarting
	a.remotePort = remotePort
	a.conn.remoteAddr = engineAddr{port: remotePort}
	go a.run(sctp.Client)
	return true
}

func (e *Engine) Listen(h sctpcore.Handle) bool {
	a := e.get(h)
	if a == nil {
		return false
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	switch a.state {
	case assocIdle:
		a.state = assocListening
		return true
	case assocListening:
		return true
	}
	return false
}

func (e *Engine) Accept(h sctpcore.Handle) bool {
	a := e.get(h)
	if a == nil {
		return false
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state != assocIdle && a.state != assocListening {
		return false
	}
	a.state = assocStarting
	go a.run(sctp.Server)
	return true
}

func (e *Engine) Send(h sctpcore.Handle, data []byte, ordered bool, streamID uint16, ppid uint32) int {
	a := e.get(h)
	if a == nil {
		return sctpcore.SendError
	}
	s, err := a.stream(streamID, ppid)
	if err != nil {
		e.log.WithError(err).WithField("handle", h).Debug("send failed to open stream")
		return sctpcore.SendError
	}
	n, err := s.send(data, ordered, ppid)
	if err != nil {
		e.log.WithError(err).WithField("handle", h).Debug("send failed")
		return sctpcore.SendError
	}
	return n
}

func (e *Engine) ConnInput(h sctpcore.Handle, packet []byte) {
	if a := e.get(h); a != nil {
		a.conn.push(packet)
	}
}

// Close never waits for association goroutines, it can be called from them.
func (e *Engine) Close(h sctpcore.Handle) {
	e.mu.Lock()
	a := e.associations[h]
	delete(e.associations, h)
	e.mu.Unlock()
	if a == nil {
		return
	}
	a.mu.Lock()
	a.state = assocClosed
	assoc := a.assoc
	a.assoc = nil
	a.streams = nil
	a.mu.Unlock()

	_ = a.conn.Close()
	if assoc != nil {
		go func() {
			if err := assoc.Close(); err != nil {
				e.log.WithError(err).WithField("handle", h).Debug("association close")
			}
		}()
	}
}

func (e *Engine) notify(h sctpcore.Handle, state uint16) {
	n := sctpcore.AppendAssocChange(nil, state, 0, notifiedStreams, notifiedStreams)
	e.callbacks().OnIncomingData(h, n, 0, 0, 0, 0, 0, sctpcore.MsgNotification)
}

func (a *association) closed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state == assocClosed
}

// start is sctp.Client or sctp.Server, both block until handshake finishes.
func (a *association) run(start func(sctp.Config) (*sctp.Association, error)) {
	e := a.e
	assoc, err := start(sctp.Config{
		NetConn:              a.conn,
		LoggerFactory:        e.config.LoggerFactory,
		MaxReceiveBufferSize: e.config.MaxReceiveBufferSize,
		MaxMessageSize:       e.config.MaxMessageSize,
	})
	if err != nil {
		a.mu.Lock()
		wasClosed := a.state == assocClosed
		if !wasClosed {
			a.state = assocDown
		}
		a.mu.Unlock()
		if !wasClosed {
			e.log.WithError(err).WithField("handle", a.h).Debug("association handshake failed")
			e.notify(a.h, sctpcore.AssocCantStart)
		}
		return
	}
	a.mu.Lock()
	if a.state == assocClosed {
		a.mu.Unlock()
		_ = assoc.Close()
		return
	}
	a.state = assocUp
	a.assoc = assoc
	a.mu.Unlock()

	e.notify(a.h, sctpcore.AssocCommUp)
	a.acceptStreams(assoc)
}

// Runs until association is closed by either side.
func (a *association) acceptStreams(assoc *sctp.Association) {
	for {
		s, err := assoc.AcceptStream()
		if err != nil {
			break
		}
		if a.addStream(s) {
			go a.readStream(s)
		}
	}
	a.mu.Lock()
	wasClosed := a.state == assocClosed
	if !wasClosed {
		a.state = assocDown
		a.assoc = nil
	}
	a.mu.Unlock()
	if !wasClosed {
		a.e.notify(a.h, sctpcore.AssocCommLost)
	}
}

func (a *association) addStream(s *sctp.Stream) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state != assocUp {
		return false
	}
	if _, ok := a.streams[s.StreamIdentifier()]; ok {
		return false
	}
	a.streams[s.StreamIdentifier()] = &stream{Stream: s}
	return true
}

// Streams are opened on first send and live as long as association.
func (a *association) stream(streamID uint16, ppid uint32) (*stream, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state != assocUp || a.assoc == nil {
		return nil, errNotConnected
	}
	if s, ok := a.streams[streamID]; ok {
		return s, nil
	}
	s, err := a.assoc.OpenStream(streamID, sctp.PayloadProtocolIdentifier(ppid))
	if err != nil {
		return nil, err
	}
	st := &stream{Stream: s}
	a.streams[streamID] = st
	go a.readStream(s)
	return st, nil
}

func (a *association) readStream(s *sctp.Stream) {
	buf := make([]byte, a.e.config.ReadBufferSize)
	sid := s.StreamIdentifier()
	for {
		n, ppi, err := s.ReadSCTP(buf)
		if err != nil {
			if !a.closed() {
				a.e.log.WithError(err).WithFields(log.Fields{"handle": a.h, "stream": sid}).Debug("stream read loop finished")
			}
			return
		}
		a.e.callbacks().OnIncomingData(a.h, buf[:n], sid, 0, 0, uint32(ppi), 0, 0)
	}
}

// Dropped packets per association, for tests and diagnostics.
func (e *Engine) DroppedPackets(h sctpcore.Handle) (incoming uint64, outgoing uint64) {
	if a := e.get(h); a != nil {
		return a.conn.droppedIncoming.Load(), a.conn.droppedOutgoing.Load()
	}
	return 0, 0
}
