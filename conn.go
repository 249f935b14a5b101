// Copyright (c) 2025, Grigory Buteyko aka Hrissan
// Licensed under the MIT License. See LICENSE for details.

package sctpmux

import (
	"context"
	"io"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/eapache/queue"
	log "github.com/sirupsen/logrus"

	"github.com/hrissan/sctpmux/sctpcore"
	"github.com/hrissan/sctpmux/sctperrors"
)

// toy implementation on top of socket callbacks, not optimized at all

type Message struct {
	Data      []byte
	StreamID  uint16
	PPID      uint32
	Unordered bool // only for sending, engine does not report it
}

type Addr struct {
	Port uint16
}

func (a Addr) Network() string { return "sctp" }
func (a Addr) String() string  { return ":" + strconv.Itoa(int(a.Port)) }

// Conn is message-oriented connection over server or client socket.
// Read and Write implement net.Conn on top of it, using default stream and PPID.
type Conn struct {
	ep         *sctpcore.Endpoint
	opts       *sctpcore.Options
	localAddr  net.Addr
	remoteAddr net.Addr
	log        *log.Entry

	mu       sync.Mutex
	lostErr  error // set by terminal notification, reported after queue is drained
	condRead chan struct{}
	condUp   chan struct{} // closed when association is up
	up       bool
	reading  *queue.Queue // of Message
	partial  []byte       // rest of the message returned by Read
	dropped  uint64
}

var _ net.Conn = &Conn{}
var _ io.ReadWriter = &Conn{}

func newConn(ep *sctpcore.Endpoint, opts *sctpcore.Options, remotePort uint16) *Conn {
	c := &Conn{
		ep:         ep,
		opts:       opts,
		localAddr:  Addr{Port: ep.LocalPort()},
		remoteAddr: Addr{Port: remotePort},
		log:        log.WithFields(log.Fields{"local_port": ep.LocalPort(), "remote_port": remotePort}),
		condRead:   make(chan struct{}, 1),
		condUp:     make(chan struct{}),
		reading:    queue.New(),
	}
	ep.SetDataCallback(c.onData)
	ep.SetNotificationListener(c.onNotification)
	return c
}

func signalCond(cond chan struct{}) {
	select {
	case cond <- struct{}{}:
	default:
	}
}

func (c *Conn) LocalAddr() net.Addr                { return c.localAddr }
func (c *Conn) RemoteAddr() net.Addr               { return c.remoteAddr }
func (c *Conn) SetDeadline(t time.Time) error      { return nil } // use ReadMessage with context
func (c *Conn) SetReadDeadline(t time.Time) error  { return nil }
func (c *Conn) SetWriteDeadline(t time.Time) error { return nil }

func (c *Conn) State() sctpcore.State { return c.ep.State() }

// Messages dropped because nobody was reading.
func (c *Conn) DroppedMessages() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dropped
}

func (c *Conn) onData(data []byte, streamID uint16, ssn uint16, tsn uint32, ppid uint32, context uint32, flags int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.reading.Length() >= c.opts.MaxQueuedMessages {
		c.dropped++ // we are losing messages, because no one is reading on our side
		if c.dropped == 1 {
			c.log.WithError(sctperrors.ErrMessageQueueFull).WithField("queued", c.reading.Length()).Warn("dropping incoming messages")
		}
		return
	}
	c.reading.Add(Message{Data: append([]byte{}, data...), StreamID: streamID, PPID: ppid})
	signalCond(c.condRead)
}

func (c *Conn) onNotification(n sctpcore.Notification) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case n.Up():
		if !c.up {
			c.up = true
			close(c.condUp)
		}
	case n.Terminal():
		if c.lostErr != nil {
			return
		}
		if c.up {
			c.lostErr = io.EOF
		} else {
			c.lostErr = sctperrors.ErrAssociationFailed
		}
	}
}

// Returns nil when association is up, error if it failed or ctx is done.
func (c *Conn) WaitConnected(ctx context.Context) error {
	select {
	case <-c.condUp:
		return nil
	default:
	}
	select {
	case <-c.condUp:
		return nil
	case <-c.ep.Done():
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.up { // came up and went down before we woke
			return nil
		}
		if c.lostErr != nil {
			return c.lostErr
		}
		return net.ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Messages received before close are still returned, then io.EOF if peer
// went away, or net.ErrClosed after Close.
func (c *Conn) ReadMessage(ctx context.Context) (Message, error) {
	for {
		if m, ok := c.popMessage(); ok {
			return m, nil
		}
		select {
		case <-c.ep.Done():
			c.mu.Lock()
			defer c.mu.Unlock()
			if c.reading.Length() != 0 { // arrived just before close
				return c.reading.Remove().(Message), nil
			}
			if c.lostErr == io.EOF {
				return Message{}, io.EOF
			}
			return Message{}, net.ErrClosed
		case <-c.condRead:
		case <-ctx.Done():
			return Message{}, ctx.Err()
		}
	}
}

func (c *Conn) popMessage() (Message, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.reading.Length() == 0 {
		return Message{}, false
	}
	return c.reading.Remove().(Message), true
}

// Read returns message bodies as byte stream, empty messages are skipped,
// because they violate io.Reader contract.
func (c *Conn) Read(b []byte) (int, error) {
	if len(b) == 0 {
		return 0, nil
	}
	for len(c.partial) == 0 {
		m, err := c.ReadMessage(context.Background())
		if err != nil {
			return 0, err
		}
		c.partial = m.Data
	}
	copied := copy(b, c.partial)
	c.partial = c.partial[copied:]
	return copied, nil
}

func (c *Conn) WriteMessage(m Message) error {
	if c.ep.State() == sctpcore.StateClosed {
		return net.ErrClosed
	}
	if c.ep.Send(m.Data, !m.Unordered, m.StreamID, m.PPID) < 0 {
		if c.ep.State() == sctpcore.StateClosed {
			return net.ErrClosed
		}
		return sctperrors.ErrSendRejected
	}
	return nil
}

func (c *Conn) Write(b []byte) (int, error) {
	if len(b) == 0 { // we send no empty messages, peer's Read would skip them anyway
		return 0, nil
	}
	err := c.WriteMessage(Message{
		Data:      b,
		StreamID:  c.opts.DefaultStreamID,
		PPID:      c.opts.DefaultPPID,
		Unordered: !c.opts.DefaultOrdered,
	})
	if err != nil {
		return 0, err
	}
	return len(b), nil
}

func (c *Conn) Close() error {
	c.ep.Close()
	return nil
}
