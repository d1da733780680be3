package client

import (
	"errors"
	"fmt"
)

// Code is the client's closed error taxonomy. The numeric value says how to react:
// 1-99 are transient and worth retrying, 100-199 end the session and need a new
// Handshake, 200 and up are caller or configuration mistakes that retrying won't fix.
//
// Every Code is an error, use errors.Is(err, ErrNotConnected) to test for one.
type Code int

const (
	OK Code = 0

	ErrWouldBlock Code = 1
	ErrTimeout    Code = 2
	ErrIO         Code = 3

	ErrNotConnected    Code = 100
	ErrConnectionLost  Code = 101
	ErrProtocol        Code = 102
	ErrServer          Code = 103
	ErrStaleConnection Code = 104

	ErrInvalidArg     Code = 200
	ErrBufferFull     Code = 201
	ErrBufferOverflow Code = 202
	ErrNoMemory       Code = 203
	ErrInvalidState   Code = 204
	ErrAuthFailed     Code = 205
	ErrNotFound       Code = 206
)

func (c Code) Error() string {
	return "piconats: " + c.String()
}

func (c Code) String() string {
	switch c {
	case OK:
		return "ok"
	case ErrWouldBlock:
		return "operation would block"
	case ErrTimeout:
		return "timeout"
	case ErrIO:
		return "i/o error"
	case ErrNotConnected:
		return "not connected"
	case ErrConnectionLost:
		return "connection lost"
	case ErrProtocol:
		return "protocol error"
	case ErrServer:
		return "server error"
	case ErrStaleConnection:
		return "stale connection"
	case ErrInvalidArg:
		return "invalid argument"
	case ErrBufferFull:
		return "buffer full"
	case ErrBufferOverflow:
		return "buffer overflow"
	case ErrNoMemory:
		return "no memory"
	case ErrInvalidState:
		return "invalid state"
	case ErrAuthFailed:
		return "authorization failed"
	case ErrNotFound:
		return "not found"
	default:
		return fmt.Sprintf("unknown error %d", int(c))
	}
}

// Class groups codes by how they should be handled.
type Class int

const (
	ClassNone Class = iota

	// ClassTransient errors may succeed if retried
	ClassTransient

	// ClassSession errors mean the connection is unusable until the next Handshake
	ClassSession

	// ClassCaller errors are bad arguments, bad configuration or misuse
	ClassCaller
)

func (c Class) String() string {
	switch c {
	case ClassNone:
		return "none"
	case ClassTransient:
		return "transient"
	case ClassSession:
		return "session"
	case ClassCaller:
		return "caller"
	default:
		return "unknown"
	}
}

func (c Code) Class() Class {
	switch {
	case c == OK:
		return ClassNone
	case c < 100:
		return ClassTransient
	case c < 200:
		return ClassSession
	default:
		return ClassCaller
	}
}

// Error attaches the failed operation and the underlying cause to a Code.
type Error struct {
	Code Code
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("piconats: %s: %s", e.Op, e.Code.String())
	}
	return fmt.Sprintf("piconats: %s: %s: %v", e.Op, e.Code.String(), e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrX) match on the code.
func (e *Error) Is(target error) bool {
	code, ok := target.(Code)
	return ok && code == e.Code
}

var (
	errEmptyQueue = errors.New("queue group must not be empty")
	errNilHandler = errors.New("handler must not be nil")
	errTableFull  = errors.New("subscription table is full")
	errNoSID      = errors.New("no free subscription id")
	errZeroMax    = errors.New("max must be at least 1")
	errNilRequest = errors.New("request must not be nil")
	errInFlight   = errors.New("request is already in flight")
	errIdle       = errors.New("request is not in flight")
)

func opError(code Code, op string, err error) error {
	return &Error{Code: code, Op: op, Err: err}
}

// CodeOf recovers the Code of an error returned by this package. nil is OK, and any
// error from outside the taxonomy is treated as ErrIO.
func CodeOf(err error) Code {
	if err == nil {
		return OK
	}

	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}

	var code Code
	if errors.As(err, &code) {
		return code
	}

	return ErrIO
}

// IsTransient checks if an error is worth retrying as is.
func IsTransient(err error) bool {
	return CodeOf(err).Class() == ClassTransient
}

// IsSession checks if an error means the session must be re-established.
func IsSession(err error) bool {
	return CodeOf(err).Class() == ClassSession
}
