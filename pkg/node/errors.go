package node

import (
	"errors"
	"fmt"
)

var (
	// ErrNoInit is returned when the input closes before the init message arrives.
	ErrNoInit = errors.New("no init message received")
	// ErrMalformedInit is returned when the first line is not a valid init envelope.
	ErrMalformedInit = errors.New("malformed init message")
)

// TransportError wraps an I/O failure on the input or output stream.
type TransportError struct {
	Op  string // "read" or "write"
	Err error
}

func (e *TransportError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }
func (e *TransportError) Unwrap() error { return e.Err }

// HandlerError wraps a failure returned by Handler.Handle.
type HandlerError struct {
	Type  string
	MsgID *uint64
	Err   error
}

func (e *HandlerError) Error() string {
	if e.MsgID != nil {
		return fmt.Sprintf("handle %s (msg_id %d): %v", e.Type, *e.MsgID, e.Err)
	}
	return fmt.Sprintf("handle %s: %v", e.Type, e.Err)
}

func (e *HandlerError) Unwrap() error { return e.Err }
