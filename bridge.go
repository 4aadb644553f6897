// Package ctlib bridges the message callbacks of SAP Open Client
// Client-Library (CT-Lib) to Go.
//
// CT-Lib reports server messages and client-library messages through
// plain C function pointers installed with ct_callback. This package
// provides those functions, forwards every message to the Host linked
// with Link and hands the Host's status back to CT-Lib unchanged.
//
// A typical setup:
//
//	ctlib.Link(broker)
//	b := ctlib.New(lib)
//	ctx, err := b.OpenContext()
//	...
//	if err := b.RegisterCallbacks(ctx); err != nil {
//		...
//	}
//	con, err := b.AllocateConnection(ctx).Unwrap()
//
// The cgo binding to libsybct is only compiled with the build tag ctlib;
// see cmd/ctlib-setup for the required CGO_CFLAGS and CGO_LDFLAGS.
package ctlib

import (
	"errors"

	"github.com/go-pkgz/lgr"
	"github.com/hashicorp/go-multierror"
)

// Bridge performs the calls into the native library that need more than
// a direct function call: callback registration and the two step
// connection allocation.
type Bridge struct {
	lib Library
	log lgr.L
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithLogger sets the logger used for failed native calls. The default
// is lgr.Std.
func WithLogger(l lgr.L) Option {
	return func(b *Bridge) {
		if l != nil {
			b.log = l
		}
	}
}

// New returns a Bridge calling into lib.
func New(lib Library, opts ...Option) *Bridge {
	b := &Bridge{lib: lib, log: lgr.Std}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// RegisterServerMessageCallback installs the server message trampoline on
// ctx. The status of ct_callback is returned unchanged. Messages emitted
// before registration are lost.
func (b *Bridge) RegisterServerMessageCallback(ctx Context) StatusCode {
	return b.register(ctx, ServerMessageClass)
}

// RegisterClientMessageCallback installs the client message trampoline on
// ctx. The status of ct_callback is returned unchanged.
func (b *Bridge) RegisterClientMessageCallback(ctx Context) StatusCode {
	return b.register(ctx, ClientMessageClass)
}

// RegisterCallbacks installs both trampolines on ctx. Every failed
// registration is reported as a *StatusError.
func (b *Bridge) RegisterCallbacks(ctx Context) error {
	errs := new(multierror.Error)
	if err := b.RegisterClientMessageCallback(ctx).Err("ct_callback for client messages"); err != nil {
		errs = multierror.Append(errs, err)
	}
	if err := b.RegisterServerMessageCallback(ctx).Err("ct_callback for server messages"); err != nil {
		errs = multierror.Append(errs, err)
	}
	return errs.ErrorOrNil()
}

func (b *Bridge) register(ctx Context, class MessageClass) StatusCode {
	status := b.lib.Callback(ctx, Connection{}, class)
	if !status.Succeeded() {
		b.log.Logf("[WARN] ct_callback for %s messages on %v returned %v", class, ctx, status)
	}
	return status
}

// ConnAlloc is the result of AllocateConnection. The connection is only
// reachable when the allocation succeeded.
type ConnAlloc struct {
	con    Connection
	status StatusCode
}

// Status returns the status of ct_con_alloc.
func (r ConnAlloc) Status() StatusCode {
	return r.status
}

// Ok reports whether the allocation succeeded.
func (r ConnAlloc) Ok() bool {
	return r.status.Succeeded()
}

// Connection returns the allocated connection and true, or a nil
// connection and false if the allocation failed.
func (r ConnAlloc) Connection() (Connection, bool) {
	if !r.Ok() {
		return Connection{}, false
	}
	return r.con, true
}

// Unwrap returns the allocated connection or a *StatusError.
func (r ConnAlloc) Unwrap() (Connection, error) {
	if err := r.status.Err("ct_con_alloc"); err != nil {
		return Connection{}, err
	}
	return r.con, nil
}

// MustConnection is like Unwrap but panics if the allocation failed.
func (r ConnAlloc) MustConnection() Connection {
	con, err := r.Unwrap()
	if err != nil {
		panic(err)
	}
	return con
}

// AllocateConnection allocates a connection under ctx. Whatever
// ct_con_alloc wrote to its out-parameter is discarded unless the call
// succeeded. There is no retry.
func (b *Bridge) AllocateConnection(ctx Context) ConnAlloc {
	var con Connection
	status := b.lib.ConAlloc(ctx, &con)
	if !status.Succeeded() {
		b.log.Logf("[WARN] ct_con_alloc on %v returned %v", ctx, status)
		return ConnAlloc{status: status}
	}
	return ConnAlloc{con: con, status: status}
}

// DropConnection deallocates con.
func (b *Bridge) DropConnection(con Connection) StatusCode {
	return b.lib.ConDrop(con)
}

// ConnectionStatus reads CS_CON_STATUS of con.
func (b *Bridge) ConnectionStatus(con Connection) (int32, StatusCode) {
	var status int32
	ret := b.lib.ConStatus(con, &status)
	return status, ret
}

// OpenContext allocates and initializes a new context. If ct_init fails
// the context is dropped again.
func (b *Bridge) OpenContext() (Context, error) {
	var ctx Context
	if err := b.lib.CtxAlloc(&ctx).Err("cs_ctx_alloc"); err != nil {
		return Context{}, err
	}

	if err := b.lib.Init(ctx).Err("ct_init"); err != nil {
		if dropErr := b.lib.CtxDrop(ctx).Err("cs_ctx_drop"); dropErr != nil {
			return Context{}, multierror.Append(err, dropErr)
		}
		return Context{}, err
	}

	return ctx, nil
}

// CloseContext exits CT-Lib for ctx and deallocates it. The context is
// dropped even if ct_exit fails.
func (b *Bridge) CloseContext(ctx Context) error {
	if ctx.IsNil() {
		return errors.New("can't close nil context")
	}

	errs := new(multierror.Error)
	if err := b.lib.Exit(ctx).Err("ct_exit, has results pending"); err != nil {
		errs = multierror.Append(errs, err)
	}
	if err := b.lib.CtxDrop(ctx).Err("cs_ctx_drop"); err != nil {
		errs = multierror.Append(errs, err)
	}
	return errs.ErrorOrNil()
}
