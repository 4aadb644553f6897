//go:build cgo && ctlib

package ctlib

/*
#cgo linux,amd64 LDFLAGS: -lsybct64 -lsybcs64 -lsybtcl64 -lsybcomn64 -lsybintl64 -lsybunic64 -ldl -lm
#cgo linux,arm64 LDFLAGS: -lsybct64 -lsybcs64 -lsybtcl64 -lsybcomn64 -lsybintl64 -lsybunic64 -ldl -lm
#cgo darwin LDFLAGS: -lsybct64 -lsybcs64 -lsybtcl64 -lsybcomn64 -lsybintl64 -lsybunic64
#cgo windows,amd64 LDFLAGS: -llibsybct64 -llibsybcs64
#include "bridge.h"
*/
import "C"

import (
	"bytes"
	"unsafe"
)

// Native is the Library backed by libsybct.
type Native struct{}

var _ Library = Native{}

func (Native) CtxAlloc(ctx *Context) StatusCode {
	var c *C.CS_CONTEXT
	ret := C.cs_ctx_alloc(C.CS_CURRENT_VERSION, &c)
	*ctx = ContextFromPtr(unsafe.Pointer(c))
	return StatusCode(ret)
}

func (Native) Init(ctx Context) StatusCode {
	return StatusCode(C.ct_init(csContext(ctx), C.CS_CURRENT_VERSION))
}

func (Native) Exit(ctx Context) StatusCode {
	return StatusCode(C.ct_exit(csContext(ctx), C.CS_UNUSED))
}

func (Native) CtxDrop(ctx Context) StatusCode {
	return StatusCode(C.cs_ctx_drop(csContext(ctx)))
}

func (Native) Callback(ctx Context, con Connection, class MessageClass) StatusCode {
	fn := unsafe.Pointer(C.ctlib_server_message_cb)
	if class == ClientMessageClass {
		fn = unsafe.Pointer(C.ctlib_client_message_cb)
	}

	cbType := C.CS_INT(class.CallbackType())
	return StatusCode(C.ct_callback(csContext(ctx), csConnection(con), C.CS_SET, cbType, fn))
}

func (Native) ConAlloc(ctx Context, con *Connection) StatusCode {
	var c *C.CS_CONNECTION
	ret := C.ct_con_alloc(csContext(ctx), &c)
	*con = ConnectionFromPtr(unsafe.Pointer(c))
	return StatusCode(ret)
}

func (Native) ConDrop(con Connection) StatusCode {
	return StatusCode(C.ct_con_drop(csConnection(con)))
}

func (Native) ConStatus(con Connection, status *int32) StatusCode {
	var s C.CS_INT
	ret := C.ct_con_props(csConnection(con), C.CS_GET, C.CS_CON_STATUS, unsafe.Pointer(&s), C.CS_UNUSED, nil)
	*status = int32(s)
	return StatusCode(ret)
}

func csContext(ctx Context) *C.CS_CONTEXT {
	return (*C.CS_CONTEXT)(ctx.Ptr())
}

func csConnection(con Connection) *C.CS_CONNECTION {
	return (*C.CS_CONNECTION)(con.Ptr())
}

// srvMsg is called from C by ctlib_server_message_cb.
// Don't change the following line. It is the directive for cgo to make
// the function available from C.
//
//export srvMsg
func srvMsg(ctx *C.CS_CONTEXT, con *C.CS_CONNECTION, msg *C.CS_SERVERMSG) C.CS_RETCODE {
	view := &cServerMessage{msg: msg}
	defer view.release()

	return C.CS_RETCODE(dispatchServerMessage(ContextFromPtr(unsafe.Pointer(ctx)), ConnectionFromPtr(unsafe.Pointer(con)), view))
}

// cltMsg is called from C by ctlib_client_message_cb.
//
//export cltMsg
func cltMsg(ctx *C.CS_CONTEXT, con *C.CS_CONNECTION, msg *C.CS_CLIENTMSG) C.CS_RETCODE {
	view := &cClientMessage{msg: msg}
	defer view.release()

	return C.CS_RETCODE(dispatchClientMessage(ContextFromPtr(unsafe.Pointer(ctx)), ConnectionFromPtr(unsafe.Pointer(con)), view))
}

// cServerMessage reads a CS_SERVERMSG owned by CT-Lib. After release all
// accessors return zero values.
type cServerMessage struct {
	msg *C.CS_SERVERMSG
}

var _ ServerMessageView = (*cServerMessage)(nil)

func (v *cServerMessage) release() { v.msg = nil }

func (v *cServerMessage) MsgNumber() int64 {
	if v.msg == nil {
		return 0
	}
	return int64(v.msg.msgnumber)
}

func (v *cServerMessage) State() int64 {
	if v.msg == nil {
		return 0
	}
	return int64(v.msg.state)
}

func (v *cServerMessage) Severity() int64 {
	if v.msg == nil {
		return 0
	}
	return int64(v.msg.severity)
}

func (v *cServerMessage) Text() string {
	if v.msg == nil {
		return ""
	}
	return nativeString(unsafe.Pointer(&v.msg.text[0]), v.msg.textlen, len(v.msg.text))
}

func (v *cServerMessage) Server() string {
	if v.msg == nil {
		return ""
	}
	return nativeString(unsafe.Pointer(&v.msg.svrname[0]), v.msg.svrnlen, len(v.msg.svrname))
}

func (v *cServerMessage) Proc() string {
	if v.msg == nil {
		return ""
	}
	return nativeString(unsafe.Pointer(&v.msg.proc[0]), v.msg.proclen, len(v.msg.proc))
}

func (v *cServerMessage) Line() int64 {
	if v.msg == nil {
		return 0
	}
	return int64(v.msg.line)
}

func (v *cServerMessage) Status() int64 {
	if v.msg == nil {
		return 0
	}
	return int64(v.msg.status)
}

func (v *cServerMessage) SQLState() string {
	if v.msg == nil {
		return ""
	}
	return nativeString(unsafe.Pointer(&v.msg.sqlstate[0]), v.msg.sqlstatelen, len(v.msg.sqlstate))
}

// cClientMessage reads a CS_CLIENTMSG owned by CT-Lib. After release all
// accessors return zero values.
type cClientMessage struct {
	msg *C.CS_CLIENTMSG
}

var _ ClientMessageView = (*cClientMessage)(nil)

func (v *cClientMessage) release() { v.msg = nil }

func (v *cClientMessage) Severity() int64 {
	if v.msg == nil {
		return 0
	}
	return int64(v.msg.severity)
}

func (v *cClientMessage) MsgNumber() int64 {
	if v.msg == nil {
		return 0
	}
	return int64(v.msg.msgnumber)
}

func (v *cClientMessage) Text() string {
	if v.msg == nil {
		return ""
	}
	return nativeString(unsafe.Pointer(&v.msg.msgstring[0]), v.msg.msgstringlen, len(v.msg.msgstring))
}

func (v *cClientMessage) OSNumber() int64 {
	if v.msg == nil {
		return 0
	}
	return int64(v.msg.osnumber)
}

func (v *cClientMessage) OSString() string {
	if v.msg == nil {
		return ""
	}
	return nativeString(unsafe.Pointer(&v.msg.osstring[0]), v.msg.osstringlen, len(v.msg.osstring))
}

func (v *cClientMessage) Status() int64 {
	if v.msg == nil {
		return 0
	}
	return int64(v.msg.status)
}

func (v *cClientMessage) SQLState() string {
	if v.msg == nil {
		return ""
	}
	return nativeString(unsafe.Pointer(&v.msg.sqlstate[0]), v.msg.sqlstatelen, len(v.msg.sqlstate))
}

// nativeString copies n bytes of a fixed size native buffer. Lengths out of
// range (CS_NULLTERM or garbage) fall back to the first NUL byte.
func nativeString(p unsafe.Pointer, n C.CS_INT, size int) string {
	l := int(n)
	if l < 0 || l > size {
		l = size
		if i := bytes.IndexByte(unsafe.Slice((*byte)(p), size), 0); i >= 0 {
			l = i
		}
	}
	if l == 0 {
		return ""
	}
	return C.GoStringN((*C.char)(p), C.int(l))
}
