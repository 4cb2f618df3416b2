package orbdemux

import (
	"errors"
	"fmt"
)

// Error is a structured orbdemux error carrying the failing operation,
// a high-level category, the channel it relates to (if any), and the
// underlying cause.
type Error struct {
	Op      string    // operation that failed (e.g. "open-source", "open-channel")
	Channel int       // channel number, -1 if not applicable
	Code    ErrorCode // high-level error category
	Msg     string    // human-readable message
	Inner   error     // wrapped error
}

func (e *Error) Error() string {
	var parts []string
	if e.Op != "" {
		parts = append(parts, fmt.Sprintf("op=%s", e.Op))
	}
	if e.Channel >= 0 {
		parts = append(parts, fmt.Sprintf("channel=%d", e.Channel))
	}

	msg := e.Msg
	if msg == "" {
		msg = string(e.Code)
	}

	if len(parts) > 0 {
		return fmt.Sprintf("orbdemux: %s (%s)", msg, parts[len(parts)-1])
	}
	return fmt.Sprintf("orbdemux: %s", msg)
}

// Unwrap returns the wrapped error for errors.Is/As support.
func (e *Error) Unwrap() error { return e.Inner }

// Is reports whether target is another *Error with the same code.
func (e *Error) Is(target error) bool {
	if target == nil {
		return false
	}
	if te, ok := target.(*Error); ok {
		return e.Code == te.Code
	}
	return false
}

// ErrorCode is a high-level error category.
type ErrorCode string

const (
	ErrCodeBadOption       ErrorCode = "invalid option"
	ErrCodeSourceOpen      ErrorCode = "could not open source"
	ErrCodeSourceRead      ErrorCode = "source read failed"
	ErrCodeRingOverflow    ErrorCode = "raw block ring overflow"
	ErrCodeDecodeError     ErrorCode = "decode error"
	ErrCodeChannelOpen     ErrorCode = "could not open channel listener"
	ErrCodeSubscriberEvict ErrorCode = "subscriber evicted"
	ErrCodeShutdown        ErrorCode = "pipeline shutdown"
)

// NewError creates a structured error not tied to a specific channel.
func NewError(op string, code ErrorCode, msg string) *Error {
	return &Error{Op: op, Channel: -1, Code: code, Msg: msg}
}

// NewChannelError creates a structured error tied to a channel.
func NewChannelError(op string, channel int, code ErrorCode, msg string) *Error {
	return &Error{Op: op, Channel: channel, Code: code, Msg: msg}
}

// WrapError wraps an existing error with orbdemux context. A nil inner
// error yields a nil *Error; stored in an error interface, that nil
// pointer compares non-nil.
func WrapError(op string, code ErrorCode, inner error) *Error {
	if inner == nil {
		return nil
	}
	if oe, ok := inner.(*Error); ok {
		return &Error{Op: op, Channel: oe.Channel, Code: oe.Code, Msg: oe.Msg, Inner: oe.Inner}
	}
	return &Error{Op: op, Channel: -1, Code: code, Msg: inner.Error(), Inner: inner}
}

// IsCode reports whether err is an *Error (directly or wrapped) with
// the given code.
func IsCode(err error, code ErrorCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}
