package ctlib

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
)

// serverView serves its strings straight out of buf, like a view over
// native memory.
type serverView struct {
	buf  []byte
	text int
}

func (v *serverView) MsgNumber() int64 { return 207 }
func (v *serverView) State() int64     { return 1 }
func (v *serverView) Severity() int64  { return 10 }
func (v *serverView) Text() string     { return unsafe.String(&v.buf[0], v.text) }
func (v *serverView) Server() string   { return "ASE" }
func (v *serverView) Proc() string     { return "" }
func (v *serverView) Line() int64      { return 3 }
func (v *serverView) Status() int64    { return 0 }
func (v *serverView) SQLState() string { return "40001" }

type clientView struct {
	buf []byte
}

func (v *clientView) Severity() int64  { return SevCommFail }
func (v *clientView) MsgNumber() int64 { return 0x04010544 }
func (v *clientView) Text() string     { return unsafe.String(&v.buf[0], len(v.buf)) }
func (v *clientView) OSNumber() int64  { return 110 }
func (v *clientView) OSString() string { return "Connection timed out" }
func (v *clientView) Status() int64    { return 0 }
func (v *clientView) SQLState() string { return "" }

func TestCopyServerMessage(t *testing.T) {
	view := &serverView{buf: []byte("deadlock"), text: len("deadlock")}
	msg := CopyServerMessage(view)

	for i := range view.buf {
		view.buf[i] = 0xA5
	}

	assert.Equal(t, ServerMessage{
		MsgNumber: 207, State: 1, Severity: 10, Text: "deadlock", Server: "ASE", Line: 3, SQLState: "40001",
	}, msg)
	assert.NotEqual(t, "deadlock", view.Text(), "the view must alias its buffer")

	assert.Equal(t, "deadlock", msg.Content())
	assert.Equal(t, int64(207), msg.MessageNumber())
	assert.Equal(t, int64(10), msg.MessageSeverity())
	assert.Equal(t, ServerMessageClass, msg.Class())
}

func TestCopyClientMessage(t *testing.T) {
	view := &clientView{buf: []byte("read from the server has timed out")}
	msg := CopyClientMessage(view)

	for i := range view.buf {
		view.buf[i] = 0
	}

	assert.Equal(t, "read from the server has timed out", msg.Text)
	assert.Equal(t, "Connection timed out", msg.OSString)
	assert.Equal(t, int64(110), msg.OSNumber)
	assert.Equal(t, ClientMessageClass, msg.Class())

	assert.Equal(t, int64(4), msg.Layer())
	assert.Equal(t, int64(1), msg.Origin())
	assert.Equal(t, int64(0x44), msg.Number())
}

func TestMessageClass(t *testing.T) {
	assert.Equal(t, "server", ServerMessageClass.String())
	assert.Equal(t, "client", ClientMessageClass.String())
	assert.Equal(t, "MessageClass(7)", MessageClass(7).String())

	assert.Equal(t, int32(2), ServerMessageClass.CallbackType())
	assert.Equal(t, int32(3), ClientMessageClass.CallbackType())
}

func TestHandles(t *testing.T) {
	var x, y int
	ctx := ContextFromPtr(unsafe.Pointer(&x))
	con := ConnectionFromPtr(unsafe.Pointer(&y))

	assert.False(t, ctx.IsNil())
	assert.False(t, con.IsNil())
	assert.True(t, Context{}.IsNil())
	assert.True(t, Connection{}.IsNil())

	assert.Equal(t, unsafe.Pointer(&x), ctx.Ptr())
	assert.Equal(t, ctx, ContextFromPtr(unsafe.Pointer(&x)))
	assert.NotEqual(t, con, ConnectionFromPtr(unsafe.Pointer(&x)))
	assert.Contains(t, ctx.String(), "CS_CONTEXT(0x")
	assert.Contains(t, con.String(), "CS_CONNECTION(0x")
}
