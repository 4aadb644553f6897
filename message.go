package ctlib

import (
	"fmt"
	"strings"
)

// MessageClass distinguishes the two notification channels of the native
// library.
type MessageClass int

const (
	ServerMessageClass MessageClass = iota
	ClientMessageClass
)

// CT-Lib callback types, see ct_callback.
const (
	csClientMsgCB = 3
	csServerMsgCB = 2
)

func (class MessageClass) String() string {
	switch class {
	case ServerMessageClass:
		return "server"
	case ClientMessageClass:
		return "client"
	default:
		return fmt.Sprintf("MessageClass(%d)", int(class))
	}
}

// CallbackType returns the CT-Lib callback type (CS_SERVERMSG_CB or
// CS_CLIENTMSG_CB) of the class.
func (class MessageClass) CallbackType() int32 {
	if class == ClientMessageClass {
		return csClientMsgCB
	}
	return csServerMsgCB
}

// Client message severities (CS_SV_*).
const (
	SevInform       int64 = 0
	SevAPIFail      int64 = 1
	SevRetryFail    int64 = 2
	SevResourceFail int64 = 3
	SevConfigFail   int64 = 4
	SevCommFail     int64 = 5
	SevInternalFail int64 = 6
	SevFatal        int64 = 7
)

// ServerSevInform is the severity the server uses for purely
// informational messages such as database context changes.
const ServerSevInform int64 = 10

// ServerMessageView is a borrowed CS_SERVERMSG. It is only valid while the
// callback that received it runs; use CopyServerMessage to keep the data.
type ServerMessageView interface {
	MsgNumber() int64
	State() int64
	Severity() int64
	Text() string
	Server() string
	Proc() string
	Line() int64
	Status() int64
	SQLState() string
}

// ClientMessageView is a borrowed CS_CLIENTMSG. It is only valid while the
// callback that received it runs; use CopyClientMessage to keep the data.
type ClientMessageView interface {
	Severity() int64
	MsgNumber() int64
	Text() string
	OSNumber() int64
	OSString() string
	Status() int64
	SQLState() string
}

// Message is implemented by the owned message copies.
type Message interface {
	Content() string
	MessageNumber() int64
	MessageSeverity() int64
	Class() MessageClass
}

var (
	_ Message = ServerMessage{}
	_ Message = ClientMessage{}
)

// ServerMessage is an owned copy of a server message.
type ServerMessage struct {
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

// CopyServerMessage deep-copies a borrowed server message.
func CopyServerMessage(view ServerMessageView) ServerMessage {
	return ServerMessage{
		MsgNumber: view.MsgNumber(),
		State:     view.State(),
		Severity:  view.Severity(),
		Text:      strings.Clone(view.Text()),
		Server:    strings.Clone(view.Server()),
		Proc:      strings.Clone(view.Proc()),
		Line:      view.Line(),
		Status:    view.Status(),
		SQLState:  strings.Clone(view.SQLState()),
	}
}

func (msg ServerMessage) Content() string        { return msg.Text }
func (msg ServerMessage) MessageNumber() int64   { return msg.MsgNumber }
func (msg ServerMessage) MessageSeverity() int64 { return msg.Severity }
func (msg ServerMessage) Class() MessageClass    { return ServerMessageClass }

// ClientMessage is an owned copy of a client-library message.
type ClientMessage struct {
	Severity  int64
	MsgNumber int64
	Text      string
	OSNumber  int64
	OSString  string
	Status    int64
	SQLState  string
}

// CopyClientMessage deep-copies a borrowed client message.
func CopyClientMessage(view ClientMessageView) ClientMessage {
	return ClientMessage{
		Severity:  view.Severity(),
		MsgNumber: view.MsgNumber(),
		Text:      strings.Clone(view.Text()),
		OSNumber:  view.OSNumber(),
		OSString:  strings.Clone(view.OSString()),
		Status:    view.Status(),
		SQLState:  strings.Clone(view.SQLState()),
	}
}

func (msg ClientMessage) Content() string        { return msg.Text }
func (msg ClientMessage) MessageNumber() int64   { return msg.MsgNumber }
func (msg ClientMessage) MessageSeverity() int64 { return msg.Severity }
func (msg ClientMessage) Class() MessageClass    { return ClientMessageClass }

// The client message number packs four bytes, see CS_LAYER, CS_ORIGIN,
// CS_SEVERITY and CS_NUMBER.

// Layer returns the layer that raised the message.
func (msg ClientMessage) Layer() int64 { return (msg.MsgNumber >> 24) & 0xff }

// Origin returns the origin of the error inside the layer.
func (msg ClientMessage) Origin() int64 { return (msg.MsgNumber >> 16) & 0xff }

// Number returns the layer specific message number.
func (msg ClientMessage) Number() int64 { return msg.MsgNumber & 0xff }
