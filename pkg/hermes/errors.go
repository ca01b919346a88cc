package hermes

import (
	"errors"
	"fmt"
)

var (
	ErrProtocol     = errors.New("protocol error")
	ErrNotFound     = errors.New("does not exist")
	ErrNotCallable  = errors.New("is not a function")
	ErrNoRouter     = errors.New("no router has been set")
	ErrSocketClosed = errors.New("socket is closed")
)

// ProtocolError reports a transport or caller violating the protocol
// contract, as opposed to a failure of the remote handler itself.
type ProtocolError struct {
	Msg string
	Err error
}

func NewProtocolError(msg string) *ProtocolError {
	return &ProtocolError{Msg: msg}
}

func protocolErrorf(err error, format string, args ...any) *ProtocolError {
	msg := fmt.Sprintf(format, args...)
	if err != nil {
		msg = msg + " " + err.Error()
	}

	return &ProtocolError{Msg: msg, Err: err}
}

func (e *ProtocolError) Error() string {
	return e.Msg
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

func (e *ProtocolError) Is(target error) bool {
	return target == ErrProtocol
}

// UserError carries the message of a failed remote handler verbatim.
type UserError struct {
	Message string
}

func (e *UserError) Error() string {
	return e.Message
}

func IsProtocolError(err error) bool {
	return errors.Is(err, ErrProtocol)
}

func IsUserError(err error) bool {
	var ue *UserError
	return errors.As(err, &ue)
}
