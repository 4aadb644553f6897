package ctmsg

import (
	"fmt"
	"strings"

	"github.com/go-pkgz/lgr"

	ctlib "github.com/ase-go/ctlib-bindings-go"
)

// LogHandler returns a MessageHandler writing every message to l, one
// line per message. Informational messages are logged at DEBUG.
func LogHandler(l lgr.L) MessageHandler {
	if l == nil {
		l = lgr.NoOp
	}
	return func(msg ctlib.Message) {
		switch m := msg.(type) {
		case ctlib.ServerMessage:
			l.Logf("[%s] %s", serverLevel(m.Severity), FormatServerMessage(m))
		case ctlib.ClientMessage:
			l.Logf("[%s] %s", clientLevel(m.Severity), FormatClientMessage(m))
		default:
			l.Logf("[INFO] %s message %d: %s", msg.Class(), msg.MessageNumber(), msg.Content())
		}
	}
}

// Server severities above 16 abort the batch.
func serverLevel(severity int64) string {
	switch {
	case severity <= ctlib.ServerSevInform:
		return "DEBUG"
	case severity <= 16:
		return "WARN"
	default:
		return "ERROR"
	}
}

func clientLevel(severity int64) string {
	switch {
	case severity == ctlib.SevInform:
		return "DEBUG"
	case severity < ctlib.SevCommFail:
		return "WARN"
	default:
		return "ERROR"
	}
}

// FormatServerMessage renders m on one line. Empty origin fields are left
// out.
func FormatServerMessage(m ctlib.ServerMessage) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "server message %d, severity %d, state %d", m.MsgNumber, m.Severity, m.State)
	if m.Line > 0 {
		fmt.Fprintf(&sb, ", line %d", m.Line)
	}
	if m.Server != "" {
		fmt.Fprintf(&sb, ", server %s", m.Server)
	}
	if m.Proc != "" {
		fmt.Fprintf(&sb, ", procedure %s", m.Proc)
	}
	if m.SQLState != "" {
		fmt.Fprintf(&sb, ", sqlstate %s", m.SQLState)
	}
	fmt.Fprintf(&sb, ": %s", strings.TrimRight(m.Text, "\n"))
	return sb.String()
}

// FormatClientMessage renders m on one line with its message number split
// into layer, origin, severity and number.
func FormatClientMessage(m ctlib.ClientMessage) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "client message LAYER = (%d) ORIGIN = (%d) SEVERITY = (%d) NUMBER = (%d): %s",
		m.Layer(), m.Origin(), m.Severity, m.Number(), strings.TrimRight(m.Text, "\n"))
	if m.OSString != "" {
		fmt.Fprintf(&sb, ", os error %d %s", m.OSNumber, m.OSString)
	}
	return sb.String()
}
