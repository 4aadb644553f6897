// Package ctlibtest provides a CT-Lib simulation for tests.
//
// Library implements ctlib.Library in Go. It installs the Go trampolines
// of package ctlib, invokes them synchronously from EmitServerMessage and
// EmitClientMessage, and poisons the message memory as soon as the
// callback returned.
package ctlibtest

import (
	"fmt"
	"sync"
	"unsafe"

	ctlib "github.com/ase-go/ctlib-bindings-go"
)

// Op names a simulated native call.
type Op int

const (
	OpCtxAlloc Op = iota
	OpInit
	OpExit
	OpCtxDrop
	OpCallback
	OpConAlloc
	OpConDrop
	OpConStatus
)

var opNames = map[Op]string{
	OpCtxAlloc:  "cs_ctx_alloc",
	OpInit:      "ct_init",
	OpExit:      "ct_exit",
	OpCtxDrop:   "cs_ctx_drop",
	OpCallback:  "ct_callback",
	OpConAlloc:  "ct_con_alloc",
	OpConDrop:   "ct_con_drop",
	OpConStatus: "ct_con_props",
}

func (op Op) String() string {
	if name, ok := opNames[op]; ok {
		return name
	}
	return fmt.Sprintf("Op(%d)", int(op))
}

type callbacks struct {
	server ctlib.ServerMessageFunc
	client ctlib.ClientMessageFunc
}

// Callback types as ct_callback takes them.
const (
	csServerMsgCB = 2 // CS_SERVERMSG_CB
	csClientMsgCB = 3 // CS_CLIENTMSG_CB
)

func (cb *callbacks) set(cbType int32) bool {
	switch cbType {
	case csClientMsgCB:
		cb.client = ctlib.ClientMessageTrampoline
	case csServerMsgCB:
		cb.server = ctlib.ServerMessageTrampoline
	default:
		return false
	}
	return true
}

// The simulated handles must have a non-zero size so that two live
// objects never share an address.
type context struct {
	initialized bool
	callbacks   callbacks
	installs    map[ctlib.MessageClass]int
}

type connection struct {
	ctx       *context
	callbacks callbacks
	status    int32
}

// Library is a simulated CT-Lib. The zero value is not usable, use New.
type Library struct {
	mu       sync.Mutex
	contexts map[unsafe.Pointer]*context
	conns    map[unsafe.Pointer]*connection
	failNext map[Op]ctlib.StatusCode
	calls    map[Op]int

	// garbage is what a failing ct_con_alloc leaves in its out-parameter.
	garbage [8]byte
}

var _ ctlib.Library = (*Library)(nil)

// New returns an empty simulated library.
func New() *Library {
	lib := &Library{
		contexts: map[unsafe.Pointer]*context{},
		conns:    map[unsafe.Pointer]*connection{},
		failNext: map[Op]ctlib.StatusCode{},
		calls:    map[Op]int{},
	}
	fill(lib.garbage[:])
	return lib
}

// FailNext makes the next call of op return code without any effect.
func (l *Library) FailNext(op Op, code ctlib.StatusCode) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failNext[op] = code
}

// Calls returns how often op was called.
func (l *Library) Calls(op Op) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls[op]
}

// Installed returns how often a callback for class was installed on ctx.
func (l *Library) Installed(ctx ctlib.Context, class ctlib.MessageClass) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	c, ok := l.context(ctx)
	if !ok {
		return 0
	}
	return c.installs[class]
}

// Connections returns the number of allocated connections.
func (l *Library) Connections() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.conns)
}

// Contexts returns the number of allocated contexts.
func (l *Library) Contexts() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.contexts)
}

// enter counts the call and reports an injected failure. Callers hold mu.
func (l *Library) enter(op Op) (ctlib.StatusCode, bool) {
	l.calls[op]++
	code, ok := l.failNext[op]
	if ok {
		delete(l.failNext, op)
	}
	return code, ok
}

// context looks the handle up before using it, since callers may pass
// anything, including the garbage of a failed ct_con_alloc.
func (l *Library) context(ctx ctlib.Context) (*context, bool) {
	c, ok := l.contexts[ctx.Ptr()]
	return c, ok
}

func (l *Library) connection(con ctlib.Connection) (*connection, bool) {
	c, ok := l.conns[con.Ptr()]
	return c, ok
}

func (l *Library) CtxAlloc(ctx *ctlib.Context) ctlib.StatusCode {
	l.mu.Lock()
	defer l.mu.Unlock()

	if code, fail := l.enter(OpCtxAlloc); fail {
		return code
	}

	c := &context{installs: map[ctlib.MessageClass]int{}}
	l.contexts[unsafe.Pointer(c)] = c
	*ctx = ctlib.ContextFromPtr(unsafe.Pointer(c))
	return ctlib.Succeed
}

func (l *Library) Init(ctx ctlib.Context) ctlib.StatusCode {
	l.mu.Lock()
	defer l.mu.Unlock()

	if code, fail := l.enter(OpInit); fail {
		return code
	}

	c, ok := l.context(ctx)
	if !ok {
		return ctlib.Fail
	}
	c.initialized = true
	return ctlib.Succeed
}

// Exit closes all connections of ctx.
func (l *Library) Exit(ctx ctlib.Context) ctlib.StatusCode {
	l.mu.Lock()
	defer l.mu.Unlock()

	if code, fail := l.enter(OpExit); fail {
		return code
	}

	c, ok := l.context(ctx)
	if !ok || !c.initialized {
		return ctlib.Fail
	}
	for p, con := range l.conns {
		if con.ctx == c {
			delete(l.conns, p)
		}
	}
	c.initialized = false
	return ctlib.Succeed
}

// CtxDrop fails while ct_exit was not called for ctx.
func (l *Library) CtxDrop(ctx ctlib.Context) ctlib.StatusCode {
	l.mu.Lock()
	defer l.mu.Unlock()

	if code, fail := l.enter(OpCtxDrop); fail {
		return code
	}

	c, ok := l.context(ctx)
	if !ok || c.initialized {
		return ctlib.Fail
	}
	delete(l.contexts, ctx.Ptr())
	return ctlib.Succeed
}

// Callback installs the trampoline of class on con, or on ctx if con is
// nil. Installing again overwrites the previous callback.
func (l *Library) Callback(ctx ctlib.Context, con ctlib.Connection, class ctlib.MessageClass) ctlib.StatusCode {
	l.mu.Lock()
	defer l.mu.Unlock()

	if code, fail := l.enter(OpCallback); fail {
		return code
	}

	if !con.IsNil() {
		cn, ok := l.connection(con)
		if !ok {
			return ctlib.Fail
		}
		if !cn.callbacks.set(class.CallbackType()) {
			return ctlib.Fail
		}
		return ctlib.Succeed
	}

	c, ok := l.context(ctx)
	if !ok || !c.initialized || !c.callbacks.set(class.CallbackType()) {
		return ctlib.Fail
	}
	c.installs[class]++
	return ctlib.Succeed
}

// ConAlloc allocates a connection that inherits the callbacks installed
// on ctx at this point. On failure con is set to a garbage handle.
func (l *Library) ConAlloc(ctx ctlib.Context, con *ctlib.Connection) ctlib.StatusCode {
	l.mu.Lock()
	defer l.mu.Unlock()

	if code, fail := l.enter(OpConAlloc); fail {
		*con = ctlib.ConnectionFromPtr(unsafe.Pointer(&l.garbage))
		return code
	}

	c, ok := l.context(ctx)
	if !ok || !c.initialized {
		*con = ctlib.ConnectionFromPtr(unsafe.Pointer(&l.garbage))
		return ctlib.Fail
	}

	cn := &connection{ctx: c, callbacks: c.callbacks}
	l.conns[unsafe.Pointer(cn)] = cn
	*con = ctlib.ConnectionFromPtr(unsafe.Pointer(cn))
	return ctlib.Succeed
}

func (l *Library) ConDrop(con ctlib.Connection) ctlib.StatusCode {
	l.mu.Lock()
	defer l.mu.Unlock()

	if code, fail := l.enter(OpConDrop); fail {
		return code
	}

	if _, ok := l.connection(con); !ok {
		return ctlib.Fail
	}
	delete(l.conns, con.Ptr())
	return ctlib.Succeed
}

// ConStatus fails for handles that are not live connections.
func (l *Library) ConStatus(con ctlib.Connection, status *int32) ctlib.StatusCode {
	l.mu.Lock()
	defer l.mu.Unlock()

	if code, fail := l.enter(OpConStatus); fail {
		return code
	}

	cn, ok := l.connection(con)
	if !ok {
		return ctlib.Fail
	}
	*status = cn.status
	return ctlib.Succeed
}

// resolve returns the callbacks that apply to a message for con, or for
// ctx if con is nil.
func (l *Library) resolve(ctx ctlib.Context, con ctlib.Connection) (callbacks, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !con.IsNil() {
		cn, ok := l.connection(con)
		if !ok {
			return callbacks{}, false
		}
		return cn.callbacks, true
	}

	c, ok := l.context(ctx)
	if !ok {
		return callbacks{}, false
	}
	return c.callbacks, true
}

// EmitServerMessage delivers msg the way CT-Lib's I/O loop would: the
// installed callback runs on the calling goroutine, and the message memory
// is poisoned once it returns. The callback's status is returned, or
// NoMsg if no callback is installed.
func (l *Library) EmitServerMessage(ctx ctlib.Context, con ctlib.Connection, msg ServerMsg) ctlib.StatusCode {
	cb, ok := l.resolve(ctx, con)
	if !ok || cb.server == nil {
		return ctlib.NoMsg
	}

	raw := newRawServerMessage(msg)
	defer raw.scribble()
	return cb.server(ctx, con, raw)
}

// EmitClientMessage is EmitServerMessage for client-library messages.
func (l *Library) EmitClientMessage(ctx ctlib.Context, con ctlib.Connection, msg ClientMsg) ctlib.StatusCode {
	cb, ok := l.resolve(ctx, con)
	if !ok || cb.client == nil {
		return ctlib.NoMsg
	}

	raw := newRawClientMessage(msg)
	defer raw.scribble()
	return cb.client(ctx, con, raw)
}
