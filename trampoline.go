package ctlib

// ServerMessageFunc is the Go shape of the CT-Lib server message callback
// prototype.
type ServerMessageFunc func(ctx Context, con Connection, msg ServerMessageView) StatusCode

// ClientMessageFunc is the Go shape of the CT-Lib client message callback
// prototype.
type ClientMessageFunc func(ctx Context, con Connection, msg ClientMessageView) StatusCode

var (
	_ ServerMessageFunc = ServerMessageTrampoline
	_ ClientMessageFunc = ClientMessageTrampoline
)

// ServerMessageTrampoline is the server message callback for libraries
// implemented in Go. It forwards to the linked Host and returns its status
// verbatim, or DefaultStatus if no host is linked.
func ServerMessageTrampoline(ctx Context, con Connection, msg ServerMessageView) StatusCode {
	return dispatchServerMessage(ctx, con, msg)
}

// ClientMessageTrampoline is the client message callback for libraries
// implemented in Go. It forwards to the linked Host and returns its status
// verbatim, or DefaultStatus if no host is linked.
func ClientMessageTrampoline(ctx Context, con Connection, msg ClientMessageView) StatusCode {
	return dispatchClientMessage(ctx, con, msg)
}
