// Package api
// Author: momentics <momentics@gmail.com>
//
// Error taxonomy shared by channels, dispatchers, transports and the facade.

package api

import (
	"errors"
	"fmt"
)

// Sentinel errors. Every error produced by the library matches exactly one of
// these with errors.Is.
var (
	ErrInvalidAddress     = errors.New("invalid address")
	ErrAddressInUse       = errors.New("address in use")
	ErrUnsupportedPattern = errors.New("unsupported pattern")
	ErrPatternViolation   = errors.New("pattern violation")
	ErrCodec              = errors.New("codec error")
	ErrReplyTimeout       = errors.New("reply timeout")
	ErrChannelClosed      = errors.New("channel closed")
)

// ErrorCode represents specific error conditions in the library.
type ErrorCode int

const (
	ErrCodeOK ErrorCode = iota
	ErrCodeInvalidAddress
	ErrCodeAddressInUse
	ErrCodeUnsupportedPattern
	ErrCodePatternViolation
	ErrCodeCodec
	ErrCodeReplyTimeout
	ErrCodeChannelClosed
)

func (c ErrorCode) sentinel() error {
	switch c {
	case ErrCodeInvalidAddress:
		return ErrInvalidAddress
	case ErrCodeAddressInUse:
		return ErrAddressInUse
	case ErrCodeUnsupportedPattern:
		return ErrUnsupportedPattern
	case ErrCodePatternViolation:
		return ErrPatternViolation
	case ErrCodeCodec:
		return ErrCodec
	case ErrCodeReplyTimeout:
		return ErrReplyTimeout
	case ErrCodeChannelClosed:
		return ErrChannelClosed
	}
	return nil
}

// Error represents a structured error with code and context.
type Error struct {
	Code    ErrorCode
	Message string
	Context map[string]any
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if s := e.Code.sentinel(); s != nil {
		msg = s.Error() + ": " + msg
	}
	if len(e.Context) > 0 {
		msg = fmt.Sprintf("%s (context: %+v)", msg, e.Context)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Is matches the sentinel belonging to the error code.
func (e *Error) Is(target error) bool {
	s := e.Code.sentinel()
	return s != nil && s == target
}

// Unwrap exposes the underlying cause, if any.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new structured error.
func NewError(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Context: make(map[string]any),
	}
}

// WithContext adds context information to the error.
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// WithCause attaches the lower-level error that triggered e.
func (e *Error) WithCause(err error) *Error {
	e.Cause = err
	return e
}

// Violation builds a PatternViolation for op attempted on pattern p.
func Violation(p Pattern, op, reason string) *Error {
	return NewError(ErrCodePatternViolation, reason).
		WithContext("pattern", p.String()).
		WithContext("op", op)
}

// CodecError reports an encode or decode failure. It carries the offending
// payload (decode) or value (encode).
type CodecError struct {
	Op      string // "encode" or "decode"
	Payload []byte
	Value   any
	Err     error
}

func (e *CodecError) Error() string {
	if e.Op == "decode" {
		return fmt.Sprintf("codec: decode %d bytes: %v", len(e.Payload), e.Err)
	}
	return fmt.Sprintf("codec: encode %T: %v", e.Value, e.Err)
}

// Is reports ErrCodec for every CodecError.
func (e *CodecError) Is(target error) bool {
	return target == ErrCodec
}

func (e *CodecError) Unwrap() error {
	return e.Err
}
