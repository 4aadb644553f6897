package ctlib

// Library is the part of the CT-Lib API the bridge calls. The methods keep
// the native calling convention: results are written to out-parameters and
// every call returns a StatusCode.
//
// Native (built with -tags ctlib) calls into libsybct; ctlibtest.Library
// simulates it in Go.
type Library interface {
	// CtxAlloc is cs_ctx_alloc.
	CtxAlloc(ctx *Context) StatusCode
	// Init is ct_init.
	Init(ctx Context) StatusCode
	// Exit is ct_exit with CS_UNUSED.
	Exit(ctx Context) StatusCode
	// CtxDrop is cs_ctx_drop.
	CtxDrop(ctx Context) StatusCode
	// Callback is ct_callback with CS_SET. It installs the library's
	// trampoline for class on ctx, or on con if con is not nil.
	Callback(ctx Context, con Connection, class MessageClass) StatusCode
	// ConAlloc is ct_con_alloc.
	ConAlloc(ctx Context, con *Connection) StatusCode
	// ConDrop is ct_con_drop.
	ConDrop(con Connection) StatusCode
	// ConStatus is ct_con_props with CS_GET and CS_CON_STATUS.
	ConStatus(con Connection, status *int32) StatusCode
}
