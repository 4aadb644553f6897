package ctlibtest

import (
	"unsafe"

	ctlib "github.com/ase-go/ctlib-bindings-go"
)

// Buffer sizes of the native message structures (CS_MAX_MSG, CS_MAX_CHAR,
// CS_SQLSTATE_SIZE).
const (
	maxMsg       = 1024
	maxName      = 256
	sqlStateSize = 8
)

// poison is written over a raw message after the callback returned.
const poison = 0xA5

// ServerMsg is the content of a simulated server message.
type ServerMsg struct {
	MsgNumber int64
	State     int64
	Severity  int64
	Text      string
	Server    string
	Proc      string
	Line      int64
	Status    int64
	SQLState  string
}

// ClientMsg is the content of a simulated client-library message.
type ClientMsg struct {
	Severity  int64
	MsgNumber int64
	Text      string
	OSNumber  int64
	OSString  string
	Status    int64
	SQLState  string
}

// ClientMsgNumber packs a client message number the way CT-Lib does.
func ClientMsgNumber(layer, origin, severity, number int64) int64 {
	return (layer&0xff)<<24 | (origin&0xff)<<16 | (severity&0xff)<<8 | number&0xff
}

// rawServerMessage mirrors CS_SERVERMSG. The strings its accessors return
// alias the fixed buffers, the same way a view over C memory would, so a
// string kept past the callback changes when the buffers are poisoned.
type rawServerMessage struct {
	msgnumber   int32
	state       int32
	severity    int32
	text        [maxMsg]byte
	textlen     int32
	svrname     [maxName]byte
	svrnlen     int32
	proc        [maxName]byte
	proclen     int32
	line        int32
	status      int32
	sqlstate    [sqlStateSize]byte
	sqlstatelen int32
}

var _ ctlib.ServerMessageView = (*rawServerMessage)(nil)

func newRawServerMessage(msg ServerMsg) *rawServerMessage {
	raw := &rawServerMessage{
		msgnumber: int32(msg.MsgNumber),
		state:     int32(msg.State),
		severity:  int32(msg.Severity),
		line:      int32(msg.Line),
		status:    int32(msg.Status),
	}
	raw.textlen = int32(copy(raw.text[:], msg.Text))
	raw.svrnlen = int32(copy(raw.svrname[:], msg.Server))
	raw.proclen = int32(copy(raw.proc[:], msg.Proc))
	raw.sqlstatelen = int32(copy(raw.sqlstate[:], msg.SQLState))
	return raw
}

// scribble overwrites the message the way freed native memory would look.
func (r *rawServerMessage) scribble() {
	fill(r.text[:])
	fill(r.svrname[:])
	fill(r.proc[:])
	fill(r.sqlstate[:])
	r.msgnumber, r.state, r.severity, r.line, r.status = -1, -1, -1, -1, -1
}

func (r *rawServerMessage) MsgNumber() int64 { return int64(r.msgnumber) }
func (r *rawServerMessage) State() int64     { return int64(r.state) }
func (r *rawServerMessage) Severity() int64  { return int64(r.severity) }
func (r *rawServerMessage) Text() string     { return alias(r.text[:], r.textlen) }
func (r *rawServerMessage) Server() string   { return alias(r.svrname[:], r.svrnlen) }
func (r *rawServerMessage) Proc() string     { return alias(r.proc[:], r.proclen) }
func (r *rawServerMessage) Line() int64      { return int64(r.line) }
func (r *rawServerMessage) Status() int64    { return int64(r.status) }
func (r *rawServerMessage) SQLState() string { return alias(r.sqlstate[:], r.sqlstatelen) }

// rawClientMessage mirrors CS_CLIENTMSG.
type rawClientMessage struct {
	severity     int32
	msgnumber    int32
	msgstring    [maxMsg]byte
	msgstringlen int32
	osnumber     int32
	osstring     [maxMsg]byte
	osstringlen  int32
	status       int32
	sqlstate     [sqlStateSize]byte
	sqlstatelen  int32
}

var _ ctlib.ClientMessageView = (*rawClientMessage)(nil)

func newRawClientMessage(msg ClientMsg) *rawClientMessage {
	raw := &rawClientMessage{
		severity:  int32(msg.Severity),
		msgnumber: int32(msg.MsgNumber),
		osnumber:  int32(msg.OSNumber),
		status:    int32(msg.Status),
	}
	raw.msgstringlen = int32(copy(raw.msgstring[:], msg.Text))
	raw.osstringlen = int32(copy(raw.osstring[:], msg.OSString))
	raw.sqlstatelen = int32(copy(raw.sqlstate[:], msg.SQLState))
	return raw
}

func (r *rawClientMessage) scribble() {
	fill(r.msgstring[:])
	fill(r.osstring[:])
	fill(r.sqlstate[:])
	r.severity, r.msgnumber, r.osnumber, r.status = -1, -1, -1, -1
}

func (r *rawClientMessage) Severity() int64  { return int64(r.severity) }
func (r *rawClientMessage) MsgNumber() int64 { return int64(r.msgnumber) }
func (r *rawClientMessage) Text() string     { return alias(r.msgstring[:], r.msgstringlen) }
func (r *rawClientMessage) OSNumber() int64  { return int64(r.osnumber) }
func (r *rawClientMessage) OSString() string { return alias(r.osstring[:], r.osstringlen) }
func (r *rawClientMessage) Status() int64    { return int64(r.status) }
func (r *rawClientMessage) SQLState() string { return alias(r.sqlstate[:], r.sqlstatelen) }

func alias(buf []byte, n int32) string {
	if n <= 0 {
		return ""
	}
	return unsafe.String(&buf[0], min(int(n), len(buf)))
}

func fill(buf []byte) {
	for i := range buf {
		buf[i] = poison
	}
}
