package stream

import "errors"

var (
	ErrInvalidFrame     = errors.New("invalid frame")
	ErrPayloadOverflow  = errors.New("payload length does not fit the frame header")
	ErrConnectionClosed = errors.New("connection closed")
	ErrNotConnected     = errors.New("not connected")
	ErrServerClosed     = errors.New("server closed")
)
