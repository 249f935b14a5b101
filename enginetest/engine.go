// Package enginetest provides a recording sctpcore.Engine for tests.
//
// Engine does not implement any protocol. It allocates handles, remembers every
// call, and lets the test play the role of engine goroutines by invoking the
// registered callbacks with Emit* methods.
package enginetest

import (
	"sync"

	"github.com/hrissan/sctpmux/sctpcore"
)

const (
	OpInit      = "init"
	OpCreate    = "create"
	OpConnect   = "connect"
	OpListen    = "listen"
	OpAccept    = "accept"
	OpSend      = "send"
	OpConnInput = "conninput"
	OpClose     = "close"
)

// Call is one recorded engine call. Fields not relevant to Op are zero.
type Call struct {
	Op       string
	Handle   sctpcore.Handle
	Port     uint16
	Data     []byte
	Ordered  bool
	StreamID uint16
	PPID     uint32
}

type Association struct {
	Handle     sctpcore.Handle
	LocalPort  uint16
	RemotePort uint16
	Listening  bool
	Accepting  bool
	Connecting bool
	Closed     bool
}

type Engine struct {
	mu sync.Mutex

	initialized bool
	initPort    uint16
	cb          sctpcore.Callbacks

	nextHandle   sctpcore.Handle
	associations map[sctpcore.Handle]*Association
	calls        []Call

	failAllocations bool
	connectResult   bool
	acceptResult    bool
	sendResult      func(h sctpcore.Handle, data []byte) int
}

var _ sctpcore.Engine = &Engine{}

// New returns engine allocating handles firstHandle, firstHandle+1, ...
// Handles are never reused, like real engines which hand out pointers to live structs.
func New(firstHandle sctpcore.Handle) *Engine {
	if !firstHandle.Valid() {
		firstHandle = 1
	}
	return &Engine{
		nextHandle:    firstHandle,
		associations:  map[sctpcore.Handle]*Association{},
		connectResult: true,
		acceptResult:  true,
	}
}

func (e *Engine) record(c Call) {
	if c.Data != nil {
		c.Data = append([]byte{}, c.Data...)
	}
	e.calls = append(e.calls, c)
}

func (e *Engine) Init(localPort uint16, cb sctpcore.Callbacks) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.record(Call{Op: OpInit, Port: localPort})
	if e.initialized { // recorded, but has no effect, like in real engines
		return
	}
	e.initialized = true
	e.initPort = localPort
	e.cb = cb
}

func (e *Engine) CreateAssociation(localPort uint16) sctpcore.Handle {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.record(Call{Op: OpCreate, Port: localPort})
	if e.failAllocations {
		return sctpcore.NoHandle
	}
	h := e.nextHandle
	e.nextHandle++
	e.associations[h] = &Association{Handle: h, LocalPort: localPort}
	return h
}

func (e *Engine) Connect(h sctpcore.Handle, remotePort uint16) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.record(Call{Op: OpConnect, Handle: h, Port: remotePort})
	a, ok := e.associations[h]
	if !ok || a.Closed || !e.connectResult {
		return false
	}
	a.RemotePort = remotePort
	a.Connecting = true
	return true
}

func (e *Engine) Listen(h sctpcore.Handle) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.record(Call{Op: OpListen, Handle: h})
	a, ok := e.associations[h]
	if !ok || a.Closed {
		return false
	}
	a.Listening = true
	return true
}

func (e *Engine) Accept(h sctpcore.Handle) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.record(Call{Op: OpAccept, Handle: h})
	a, ok := e.associations[h]
	if !ok || a.Closed || !e.acceptResult {
		return false
	}
	a.Accepting = true
	return true
}

func (e *Engine) Send(h sctpcore.Handle, data []byte, ordered bool, streamID uint16, ppid uint32) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.record(Call{Op: OpSend, Handle: h, Data: data, Ordered: ordered, StreamID: streamID, PPID: ppid})
	if e.sendResult != nil {
		return e.sendResult(h, data)
	}
	a, ok := e.associations[h]
	if !ok || a.Closed {
		return -1
	}
	return len(data)
}

func (e *Engine) ConnInput(h sctpcore.Handle, packet []byte) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.record(Call{Op: OpConnInput, Handle: h, Data: packet})
}

func (e *Engine) Close(h sctpcore.Handle) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.record(Call{Op: OpClose, Handle: h})
	if a, ok := e.associations[h]; ok {
		a.Closed = true
	}
}

func (e *Engine) SetFailAllocations(fail bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.failAllocations = fail
}

func (e *Engine) SetConnectResult(ok bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.connectResult = ok
}

func (e *Engine) SetAcceptResult(ok bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.acceptResult = ok
}

// f is called under engine lock and must not call engine.
func (e *Engine) SetSendResult(f func(h sctpcore.Handle, data []byte) int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sendResult = f
}

func (e *Engine) Initialized() (bool, uint16) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.initialized, e.initPort
}

func (e *Engine) Callbacks() sctpcore.Callbacks {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cb
}

// Returns copy of recorded calls, all of them if op is empty.
func (e *Engine) Calls(op string) []Call {
	e.mu.Lock()
	defer e.mu.Unlock()
	var result []Call
	for _, c := range e.calls {
		if op == "" || c.Op == op {
			result = append(result, c)
		}
	}
	return result
}

func (e *Engine) CountCalls(op string) int {
	return len(e.Calls(op))
}

func (e *Engine) Association(h sctpcore.Handle) (Association, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	a, ok := e.associations[h]
	if !ok {
		return Association{}, false
	}
	return *a, true
}

// Handle returned by the last successful CreateAssociation.
func (e *Engine) LastHandle() sctpcore.Handle {
	e.mu.Lock()
	defer e.mu.Unlock()
	var last sctpcore.Handle
	for h := range e.associations {
		if h > last {
			last = h
		}
	}
	return last
}

// Callbacks are invoked without engine lock, like engine goroutines would do.

func (e *Engine) EmitIncoming(h sctpcore.Handle, data []byte, streamID uint16, ppid uint32, flags int) {
	e.Callbacks().OnIncomingData(h, data, streamID, 0, 0, ppid, 0, flags)
}

func (e *Engine) EmitOutgoing(h sctpcore.Handle, data []byte) int {
	return e.Callbacks().OnOutgoingData(h, data, 0, false)
}

func (e *Engine) EmitAssocChange(h sctpcore.Handle, state uint16) {
	n := sctpcore.AppendAssocChange(nil, state, 0, 1, 1)
	e.Callbacks().OnIncomingData(h, n, 0, 0, 0, 0, 0, sctpcore.MsgNotification)
}
