package ctlibtest

import (
	"strings"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ctlib "github.com/ase-go/ctlib-bindings-go"
)

func open(t *testing.T, lib *Library) ctlib.Context {
	t.Helper()
	var ctx ctlib.Context
	require.Equal(t, ctlib.Succeed, lib.CtxAlloc(&ctx))
	require.Equal(t, ctlib.Succeed, lib.Init(ctx))
	return ctx
}

func TestOp_String(t *testing.T) {
	assert.Equal(t, "ct_con_alloc", OpConAlloc.String())
	assert.Equal(t, "ct_callback", OpCallback.String())
	assert.Equal(t, "Op(99)", Op(99).String())
}

func TestLibrary_contextLifecycle(t *testing.T) {
	lib := New()
	ctx := open(t, lib)
	assert.Equal(t, 1, lib.Contexts())

	assert.Equal(t, ctlib.Fail, lib.CtxDrop(ctx), "drop requires ct_exit")

	var con ctlib.Connection
	require.Equal(t, ctlib.Succeed, lib.ConAlloc(ctx, &con))
	assert.Equal(t, 1, lib.Connections())

	assert.Equal(t, ctlib.Succeed, lib.Exit(ctx))
	assert.Equal(t, 0, lib.Connections(), "ct_exit closes the connections")
	assert.Equal(t, ctlib.Fail, lib.Exit(ctx))

	assert.Equal(t, ctlib.Succeed, lib.CtxDrop(ctx))
	assert.Equal(t, 0, lib.Contexts())
	assert.Equal(t, ctlib.Fail, lib.Init(ctx), "dropped context")
}

func TestLibrary_FailNext(t *testing.T) {
	lib := New()
	ctx := open(t, lib)

	lib.FailNext(OpConAlloc, ctlib.MemError)
	var con ctlib.Connection
	assert.Equal(t, ctlib.MemError, lib.ConAlloc(ctx, &con))
	assert.False(t, con.IsNil(), "a failed allocation leaves garbage behind")
	assert.Equal(t, 0, lib.Connections())

	assert.Equal(t, ctlib.Succeed, lib.ConAlloc(ctx, &con), "failure is injected once")
	assert.Equal(t, 2, lib.Calls(OpConAlloc))

	var status int32
	lib.FailNext(OpConStatus, ctlib.Busy)
	assert.Equal(t, ctlib.Busy, lib.ConStatus(con, &status))
	assert.Equal(t, ctlib.Succeed, lib.ConStatus(con, &status))
}

func TestLibrary_garbageHandleIsNotAConnection(t *testing.T) {
	lib := New()
	ctx := open(t, lib)

	lib.FailNext(OpConAlloc, ctlib.Fail)
	var garbage ctlib.Connection
	lib.ConAlloc(ctx, &garbage)

	var status int32
	assert.Equal(t, ctlib.Fail, lib.ConStatus(garbage, &status))
	assert.Equal(t, ctlib.Fail, lib.ConDrop(garbage))
	assert.Equal(t, ctlib.Fail, lib.Callback(ctx, garbage, ctlib.ServerMessageClass))
	assert.Equal(t, ctlib.NoMsg, lib.EmitServerMessage(ctx, garbage, ServerMsg{Text: "x"}))
	assert.Equal(t, 0, lib.Connections())
}

func TestLibrary_foreignHandles(t *testing.T) {
	lib := New()
	var small [2]byte
	ctx := ctlib.ContextFromPtr(unsafe.Pointer(&small))
	con := ctlib.ConnectionFromPtr(unsafe.Pointer(&small[1]))

	assert.Equal(t, ctlib.Fail, lib.Init(ctx))
	assert.Equal(t, ctlib.Fail, lib.Exit(ctx))
	assert.Equal(t, ctlib.Fail, lib.CtxDrop(ctx))
	assert.Equal(t, ctlib.Fail, lib.Callback(ctx, ctlib.Connection{}, ctlib.ClientMessageClass))
	assert.Equal(t, 0, lib.Installed(ctx, ctlib.ClientMessageClass))

	var out ctlib.Connection
	assert.Equal(t, ctlib.Fail, lib.ConAlloc(ctx, &out))

	var status int32
	assert.Equal(t, ctlib.Fail, lib.ConStatus(con, &status))
	assert.Equal(t, ctlib.NoMsg, lib.EmitClientMessage(ctx, con, ClientMsg{Text: "x"}))
}

func TestLibrary_callbacks(t *testing.T) {
	lib := New()
	ctx := open(t, lib)

	assert.Equal(t, ctlib.NoMsg, lib.EmitServerMessage(ctx, ctlib.Connection{}, ServerMsg{Text: "nobody listens"}))

	require.Equal(t, ctlib.Succeed, lib.Callback(ctx, ctlib.Connection{}, ctlib.ServerMessageClass))
	assert.Equal(t, 1, lib.Installed(ctx, ctlib.ServerMessageClass))
	assert.Equal(t, 0, lib.Installed(ctx, ctlib.ClientMessageClass))
	assert.Equal(t, ctlib.NoMsg, lib.EmitClientMessage(ctx, ctlib.Connection{}, ClientMsg{Text: "nobody listens"}))

	var con ctlib.Connection
	require.Equal(t, ctlib.Succeed, lib.ConAlloc(ctx, &con))
	assert.Equal(t, ctlib.NoMsg, lib.EmitClientMessage(ctx, con, ClientMsg{}))

	require.Equal(t, ctlib.Succeed, lib.Callback(ctx, con, ctlib.ClientMessageClass))
	assert.Equal(t, 0, lib.Installed(ctx, ctlib.ClientMessageClass), "connection level install")

	var cb callbacks
	assert.False(t, cb.set(7), "unknown callback type")
	assert.True(t, cb.set(ctlib.ClientMessageClass.CallbackType()))
	assert.NotNil(t, cb.client)
	assert.Nil(t, cb.server)

	ctlib.Unlink()
	assert.Equal(t, ctlib.DefaultStatus, lib.EmitClientMessage(ctx, con, ClientMsg{}))
	assert.Equal(t, ctlib.DefaultStatus, lib.EmitServerMessage(ctx, con, ServerMsg{}))
}

func TestRawServerMessage_scribble(t *testing.T) {
	raw := newRawServerMessage(ServerMsg{
		MsgNumber: 207, State: 1, Severity: 10, Text: "deadlock", Server: "ASE", Proc: "sp_who", Line: 4, SQLState: "40001",
	})

	text, server := raw.Text(), raw.Server()
	assert.Equal(t, "deadlock", text)
	assert.Equal(t, "ASE", server)
	assert.Equal(t, "sp_who", raw.Proc())
	assert.Equal(t, "40001", raw.SQLState())
	assert.Equal(t, int64(4), raw.Line())

	raw.scribble()
	assert.Equal(t, strings.Repeat("\xa5", len("deadlock")), text)
	assert.Equal(t, strings.Repeat("\xa5", len("ASE")), server)
	assert.Equal(t, int64(-1), raw.MsgNumber())
	assert.Equal(t, int64(-1), raw.Severity())
}

func TestRawServerMessage_truncates(t *testing.T) {
	long := strings.Repeat("x", maxMsg+10)
	raw := newRawServerMessage(ServerMsg{Text: long})
	assert.Len(t, raw.Text(), maxMsg)
}

func TestRawClientMessage(t *testing.T) {
	raw := newRawClientMessage(ClientMsg{
		Severity: ctlib.SevCommFail, MsgNumber: ClientMsgNumber(4, 1, 5, 44), Text: "timed out", OSNumber: 110, OSString: "ETIMEDOUT",
	})

	owned := ctlib.CopyClientMessage(raw)
	raw.scribble()

	assert.Equal(t, "timed out", owned.Text)
	assert.Equal(t, "ETIMEDOUT", owned.OSString)
	assert.Equal(t, int64(4), owned.Layer())
	assert.Equal(t, int64(1), owned.Origin())
	assert.Equal(t, int64(44), owned.Number())
	assert.Equal(t, "", raw.SQLState())
	assert.Equal(t, int64(-1), raw.OSNumber())
}

func TestClientMsgNumber(t *testing.T) {
	assert.Equal(t, int64(0x04010544), ClientMsgNumber(4, 1, 5, 0x44))
	assert.Equal(t, int64(0x000000ff), ClientMsgNumber(0, 0, 0, 0x1ff))
}
