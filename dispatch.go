package ctlib

import (
	"log"
	"sync/atomic"
)

// Host receives the messages the native library reports. It is the Go
// side of the srvMsg and cltMsg entry points.
//
// Both methods run synchronously on the thread the native library uses to
// service the connection, possibly for several connections at once. They
// must not block for long and must not keep the view after returning.
type Host interface {
	ServerMessage(ctx Context, con Connection, msg ServerMessageView) StatusCode
	ClientMessage(ctx Context, con Connection, msg ClientMessageView) StatusCode
}

// HostFuncs adapts plain functions to Host. A nil function answers with
// DefaultStatus.
type HostFuncs struct {
	Server ServerMessageFunc
	Client ClientMessageFunc
}

var _ Host = HostFuncs{}

func (h HostFuncs) ServerMessage(ctx Context, con Connection, msg ServerMessageView) StatusCode {
	if h.Server == nil {
		return DefaultStatus
	}
	return h.Server(ctx, con, msg)
}

func (h HostFuncs) ClientMessage(ctx Context, con Connection, msg ClientMessageView) StatusCode {
	if h.Client == nil {
		return DefaultStatus
	}
	return h.Client(ctx, con, msg)
}

// hostSlot boxes the linked Host so it can live in an atomic.Pointer.
type hostSlot struct {
	host Host
}

// linked is the process-wide dispatch target. The native library only
// stores plain function pointers, so there is exactly one.
var linked atomic.Pointer[hostSlot]

// Link makes h the receiver of all server and client messages. It
// replaces a previously linked host. Link(nil) is Unlink().
func Link(h Host) {
	if h == nil {
		Unlink()
		return
	}
	linked.Store(&hostSlot{host: h})
}

// Unlink removes the linked host. Messages arriving afterwards are
// answered with DefaultStatus.
func Unlink() {
	linked.Store(nil)
}

// Linked reports whether a host is linked.
func Linked() bool {
	return linked.Load() != nil
}

func dispatchServerMessage(ctx Context, con Connection, msg ServerMessageView) (status StatusCode) {
	slot := linked.Load()
	if slot == nil {
		return DefaultStatus
	}

	defer func() {
		if r := recover(); r != nil {
			log.Printf("[ERROR] host panicked on server message for %v: %v", con, r)
			status = PanicStatus
		}
	}()

	return slot.host.ServerMessage(ctx, con, msg)
}

func dispatchClientMessage(ctx Context, con Connection, msg ClientMessageView) (status StatusCode) {
	slot := linked.Load()
	if slot == nil {
		return DefaultStatus
	}

	defer func() {
		if r := recover(); r != nil {
			log.Printf("[ERROR] host panicked on client message for %v: %v", con, r)
			status = PanicStatus
		}
	}()

	return slot.host.ClientMessage(ctx, con, msg)
}
