package ctmsg

import (
	"fmt"
	"strings"
	"time"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/timestamppb"

	ctlib "github.com/ase-go/ctlib-bindings-go"
)

// Encode converts env to a protobuf Struct so that it can travel in any
// message with a google.protobuf.Struct field. Handles are rendered as
// strings, they mean nothing outside the process. Servers running a single
// byte charset send text that is not UTF-8; invalid bytes become U+FFFD.
func Encode(env Envelope) (*structpb.Struct, error) {
	if env.Message == nil {
		return nil, fmt.Errorf("envelope %s has no message", env.ID)
	}

	received, err := protojson.Marshal(timestamppb.New(env.Received))
	if err != nil {
		return nil, fmt.Errorf("can't encode receive time: %w", err)
	}

	msg, err := messageFields(env.Message)
	if err != nil {
		return nil, err
	}

	st, err := structpb.NewStruct(map[string]any{
		"id":         env.ID.String(),
		"class":      env.Message.Class().String(),
		"context":    env.Context.String(),
		"connection": env.Connection.String(),
		"received":   trimQuotes(string(received)),
		"message":    msg,
	})
	if err != nil {
		return nil, fmt.Errorf("can't encode envelope %s: %w", env.ID, err)
	}
	return st, nil
}

// MarshalJSON renders env as protobuf JSON.
func MarshalJSON(env Envelope) ([]byte, error) {
	st, err := Encode(env)
	if err != nil {
		return nil, err
	}
	return protojson.Marshal(st)
}

// ReceivedAt reads the receive time back from an encoded envelope.
func ReceivedAt(st *structpb.Struct) (time.Time, error) {
	v, ok := st.GetFields()["received"]
	if !ok {
		return time.Time{}, fmt.Errorf("no receive time")
	}

	var ts timestamppb.Timestamp
	if err := protojson.Unmarshal([]byte(`"`+v.GetStringValue()+`"`), &ts); err != nil {
		return time.Time{}, fmt.Errorf("can't decode receive time: %w", err)
	}
	return ts.AsTime(), nil
}

func messageFields(msg ctlib.Message) (map[string]any, error) {
	switch m := msg.(type) {
	case ctlib.ServerMessage:
		return map[string]any{
			"msgnumber": m.MsgNumber,
			"state":     m.State,
			"severity":  m.Severity,
			"text":      validUTF8(m.Text),
			"server":    validUTF8(m.Server),
			"proc":      validUTF8(m.Proc),
			"line":      m.Line,
			"status":    m.Status,
			"sqlstate":  validUTF8(m.SQLState),
		}, nil
	case ctlib.ClientMessage:
		return map[string]any{
			"severity":  m.Severity,
			"msgnumber": m.MsgNumber,
			"layer":     m.Layer(),
			"origin":    m.Origin(),
			"number":    m.Number(),
			"text":      validUTF8(m.Text),
			"osnumber":  m.OSNumber,
			"osstring":  validUTF8(m.OSString),
			"status":    m.Status,
			"sqlstate":  validUTF8(m.SQLState),
		}, nil
	default:
		return nil, fmt.Errorf("unsupported message type %T", msg)
	}
}

func validUTF8(s string) string {
	return strings.ToValidUTF8(s, "\uFFFD")
}

func trimQuotes(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}
