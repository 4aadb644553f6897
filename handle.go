package ctlib

import (
	"fmt"
	"unsafe"
)

// Context is an opaque CS_CONTEXT handle. The memory behind it belongs to
// the native library.
type Context struct {
	ptr unsafe.Pointer
}

// ContextFromPtr wraps a native CS_CONTEXT pointer. It is meant for
// Library implementations.
func ContextFromPtr(ptr unsafe.Pointer) Context {
	return Context{ptr: ptr}
}

// Ptr returns the native pointer.
func (ctx Context) Ptr() unsafe.Pointer {
	return ctx.ptr
}

// IsNil reports whether the handle is unset.
func (ctx Context) IsNil() bool {
	return ctx.ptr == nil
}

func (ctx Context) String() string {
	return fmt.Sprintf("CS_CONTEXT(%p)", ctx.ptr)
}

// Connection is an opaque CS_CONNECTION handle owned by the Context that
// allocated it.
type Connection struct {
	ptr unsafe.Pointer
}

// ConnectionFromPtr wraps a native CS_CONNECTION pointer. It is meant for
// Library implementations.
func ConnectionFromPtr(ptr unsafe.Pointer) Connection {
	return Connection{ptr: ptr}
}

// Ptr returns the native pointer.
func (con Connection) Ptr() unsafe.Pointer {
	return con.ptr
}

// IsNil reports whether the handle is unset. A nil Connection passed to
// Library.Callback addresses the whole context.
func (con Connection) IsNil() bool {
	return con.ptr == nil
}

func (con Connection) String() string {
	return fmt.Sprintf("CS_CONNECTION(%p)", con.ptr)
}
