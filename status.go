package ctlib

import (
	"fmt"
	"strconv"
)

// StatusCode is a CS_RETCODE. It is returned by every native call and by
// every message callback, where it tells the native library how to
// proceed with the event that triggered the callback.
type StatusCode int32

// Return codes as defined by cspublic.h.
const (
	Succeed       StatusCode = 1
	Fail          StatusCode = 0
	MemError      StatusCode = -1
	Pending       StatusCode = -2
	Quiet         StatusCode = -3
	Busy          StatusCode = -4
	Interrupt     StatusCode = -5
	BlkHasText    StatusCode = -6
	Continue      StatusCode = -7
	Fatal         StatusCode = -8
	RetHAFailover StatusCode = -9
	Unsupported   StatusCode = -10
	Canceled      StatusCode = -202
	RowFail       StatusCode = -203
	EndData       StatusCode = -204
	EndResults    StatusCode = -205
	EndItem       StatusCode = -206
	NoMsg         StatusCode = -207
	TimedOut      StatusCode = -208
)

const (
	// DefaultStatus is returned by the trampolines when no host is
	// linked. The native library continues as if the message had been
	// handled.
	DefaultStatus = Succeed
	// PanicStatus is returned by the trampolines when the host panics
	// while handling a message.
	PanicStatus = Succeed
)

var statusNames = map[StatusCode]string{
	Succeed:       "CS_SUCCEED",
	Fail:          "CS_FAIL",
	MemError:      "CS_MEM_ERROR",
	Pending:       "CS_PENDING",
	Quiet:         "CS_QUIET",
	Busy:          "CS_BUSY",
	Interrupt:     "CS_INTERRUPT",
	BlkHasText:    "CS_BLK_HAS_TEXT",
	Continue:      "CS_CONTINUE",
	Fatal:         "CS_FATAL",
	RetHAFailover: "CS_RET_HAFAILOVER",
	Unsupported:   "CS_UNSUPPORTED",
	Canceled:      "CS_CANCELED",
	RowFail:       "CS_ROW_FAIL",
	EndData:       "CS_END_DATA",
	EndResults:    "CS_END_RESULTS",
	EndItem:       "CS_END_ITEM",
	NoMsg:         "CS_NOMSG",
	TimedOut:      "CS_TIMED_OUT",
}

// String satisfies the stringer interface.
func (s StatusCode) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "CS_RETCODE(" + strconv.FormatInt(int64(s), 10) + ")"
}

// Succeeded reports whether s is CS_SUCCEED.
func (s StatusCode) Succeeded() bool {
	return s == Succeed
}

// Err returns nil for CS_SUCCEED and a *StatusError naming op otherwise.
func (s StatusCode) Err(op string) error {
	if s.Succeeded() {
		return nil
	}
	return &StatusError{Op: op, Code: s}
}

// StatusError describes a native call that did not return CS_SUCCEED.
type StatusError struct {
	Op   string
	Code StatusCode
}

func (err *StatusError) Error() string {
	return fmt.Sprintf("%s: %s", err.Op, describeStatus(err.Code))
}

// Is reports whether target is a *StatusError with the same code. The
// operation name is not compared.
func (err *StatusError) Is(target error) bool {
	other, ok := target.(*StatusError)
	if !ok {
		return false
	}
	return other.Code == err.Code
}

// describeStatus turns a return code into a message according to the
// Client-Library Programmers Guide.
func describeStatus(code StatusCode) string {
	switch code {
	case Fail:
		return "Routine failed"
	case Canceled:
		return "Routine was canceled"
	case Pending:
		return "Operation is pending, see asynchronous programming"
	case Busy:
		return "An operation is already pending for this connection, see asynchronous programming"
	case MemError:
		return "Memory allocation failure"
	case Unsupported:
		return "Operation is not supported"
	case TimedOut:
		return "Operation timed out"
	default:
		return "Unknown error code: " + strconv.FormatInt(int64(code), 10)
	}
}
